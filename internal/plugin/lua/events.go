package lua

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dshills/yieldbus/internal/event"
	"github.com/dshills/yieldbus/internal/event/events"
	"github.com/dshills/yieldbus/internal/event/eventtype"
	lua "github.com/yuin/gopher-lua"
)

// eventTypeName is the metatable name of event userdata.
const eventTypeName = "yieldbus.event"

// EventAPI exposes an event bus to one Lua state as the "events" module.
//
// Scripts declare handlers with events.on while loading. The declared
// registrations form a Listener the plugin host registers all at once when
// the plugin is enabled. Once live, further events.on calls register
// immediately.
//
//	events.on("block.break", { priority = events.HIGH }, function(ev, yield)
//	    if ev:get("material") == "bedrock" then
//	        ev:cancel()
//	    end
//	    yield()
//	end)
//
// Handlers observe synchronous events only. Asynchronous events are
// dispatched off the coordinator where the Lua state must not be touched, so
// Lua handlers pass them through untouched.
type EventAPI struct {
	state  *State
	bus    *event.Bus
	owner  event.Owner
	bridge *Bridge
	logger *slog.Logger

	mu       sync.Mutex
	declared []*event.Registration
	live     bool
	detached bool
}

// NewEventAPI creates the event API for state, registering handlers on bus
// on behalf of owner.
func NewEventAPI(state *State, bus *event.Bus, owner event.Owner, logger *slog.Logger) *EventAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventAPI{
		state:  state,
		bus:    bus,
		owner:  owner,
		bridge: NewBridge(state.L),
		logger: logger,
	}
}

// Install registers the events module and the event userdata type.
func (a *EventAPI) Install() {
	L := a.state.L

	mt := L.NewTypeMetatable(eventTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"type":           a.evType,
		"source":         a.evSource,
		"is_a":           a.evIsA,
		"is_async":       a.evIsAsync,
		"is_cancellable": a.evIsCancellable,
		"is_cancelled":   a.evIsCancelled,
		"set_cancelled":  a.evSetCancelled,
		"cancel":         a.evCancel,
		"get":            a.evGet,
		"set":            a.evSet,
		"fields":         a.evFields,
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		ev := checkEvent(L)
		L.Push(lua.LString("event<" + string(ev.EventType()) + ">"))
		return 1
	}))

	fields := make(map[string]lua.LValue)
	for _, p := range event.Priorities() {
		fields[p.String()] = lua.LNumber(p)
	}
	a.state.RegisterModule("events", map[string]lua.LGFunction{
		"on":    a.on,
		"off":   a.off,
		"is_a":  a.isA,
		"types": a.types,
	}, fields)
}

// Registrations returns the handlers the script has declared.
func (a *EventAPI) Registrations() []*event.Registration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.declared)
}

// SetLive controls whether events.on registers on the bus immediately.
func (a *EventAPI) SetLive(live bool) {
	a.mu.Lock()
	a.live = live
	a.mu.Unlock()
}

// Detach forgets every declared handler and rejects further declarations.
// Registrations already on the bus are left to the caller.
func (a *EventAPI) Detach() {
	a.mu.Lock()
	a.declared = nil
	a.live = false
	a.detached = true
	a.mu.Unlock()
}

// events.on(tag, [opts], fn) -> id
func (a *EventAPI) on(L *lua.LState) int {
	tag := eventtype.Tag(L.CheckString(1))

	var opts *lua.LTable
	fnIndex := 2
	if L.GetTop() >= 3 {
		opts = L.OptTable(2, nil)
		fnIndex = 3
	}
	fn := L.CheckFunction(fnIndex)

	if !a.bus.Hierarchy().Has(tag) {
		L.ArgError(1, fmt.Sprintf("unknown event type %q", tag))
		return 0
	}

	regOpts := []event.RegistrationOption{event.WithOwner(a.owner)}
	if opts != nil {
		o, err := a.parseOptions(opts)
		if err != nil {
			L.ArgError(2, err.Error())
			return 0
		}
		regOpts = append(regOpts, o...)
	}
	reg := event.NewRegistration(tag, &luaHandler{api: a, fn: fn}, regOpts...)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.detached {
		L.RaiseError("%s", ErrAPIClosed.Error())
		return 0
	}
	if a.live {
		if err := a.bus.Register(reg); err != nil {
			L.RaiseError("register %s: %s", tag, err.Error())
			return 0
		}
	}
	a.declared = append(a.declared, reg)

	L.Push(lua.LString(reg.ID()))
	return 1
}

func (a *EventAPI) parseOptions(opts *lua.LTable) ([]event.RegistrationOption, error) {
	var out []event.RegistrationOption

	switch v := opts.RawGetString("priority").(type) {
	case *lua.LNilType:
	case lua.LString:
		p, err := event.ParsePriority(string(v))
		if err != nil {
			return nil, err
		}
		out = append(out, event.WithPriority(p))
	case lua.LNumber:
		p := event.Priority(v)
		if !p.IsValid() {
			return nil, fmt.Errorf("%w: %v", event.ErrInvalidPriority, v)
		}
		out = append(out, event.WithPriority(p))
	default:
		return nil, fmt.Errorf("priority must be a name or number, got %s", v.Type())
	}

	if ignore, ok := a.bridge.GetTableBool(opts, "ignore_cancelled"); ok && ignore {
		out = append(out, event.WithIgnoreCancelled())
	}
	if name, ok := a.bridge.GetTableString(opts, "name"); ok {
		out = append(out, event.WithName(name))
	}
	return out, nil
}

// events.off(id) -> bool
func (a *EventAPI) off(L *lua.LState) int {
	id := L.CheckString(1)

	a.mu.Lock()
	defer a.mu.Unlock()

	i := slices.IndexFunc(a.declared, func(r *event.Registration) bool { return r.ID() == id })
	if i < 0 {
		L.Push(lua.LFalse)
		return 1
	}
	reg := a.declared[i]
	a.declared = slices.Delete(a.declared, i, i+1)
	if a.live {
		_ = a.bus.Unregister(reg)
	}
	L.Push(lua.LTrue)
	return 1
}

// events.is_a(tag, ancestor) -> bool
func (a *EventAPI) isA(L *lua.LState) int {
	tag := eventtype.Tag(L.CheckString(1))
	ancestor := eventtype.Tag(L.CheckString(2))
	L.Push(lua.LBool(a.bus.Hierarchy().IsA(tag, ancestor)))
	return 1
}

// events.types() -> {tag...}
func (a *EventAPI) types(L *lua.LState) int {
	tags := a.bus.Hierarchy().Tags()
	t := L.CreateTable(len(tags), 0)
	for i, tag := range tags {
		t.RawSetInt(i+1, lua.LString(tag))
	}
	L.Push(t)
	return 1
}

// pushEvent wraps ev as userdata.
func (a *EventAPI) pushEvent(L *lua.LState, ev event.Event) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = ev
	L.SetMetatable(ud, L.GetTypeMetatable(eventTypeName))
	return ud
}

func checkEvent(L *lua.LState) event.Event {
	ud := L.CheckUserData(1)
	ev, ok := ud.Value.(event.Event)
	if !ok {
		L.ArgError(1, "event expected")
		return nil
	}
	return ev
}

func (a *EventAPI) evType(L *lua.LState) int {
	L.Push(lua.LString(checkEvent(L).EventType()))
	return 1
}

func (a *EventAPI) evSource(L *lua.LState) int {
	ev := checkEvent(L)
	var source string
	if mp, ok := ev.(event.MetadataProvider); ok {
		source = mp.EventMetadata().Source
	}
	L.Push(lua.LString(source))
	return 1
}

func (a *EventAPI) evIsA(L *lua.LState) int {
	ev := checkEvent(L)
	L.Push(lua.LBool(a.bus.Hierarchy().IsA(ev.EventType(), eventtype.Tag(L.CheckString(2)))))
	return 1
}

func (a *EventAPI) evIsAsync(L *lua.LState) int {
	L.Push(lua.LBool(checkEvent(L).IsAsync()))
	return 1
}

func (a *EventAPI) evIsCancellable(L *lua.LState) int {
	_, ok := checkEvent(L).(event.Cancellable)
	L.Push(lua.LBool(ok))
	return 1
}

func (a *EventAPI) evIsCancelled(L *lua.LState) int {
	L.Push(lua.LBool(event.IsCancelled(checkEvent(L))))
	return 1
}

func (a *EventAPI) evSetCancelled(L *lua.LState) int {
	ev := checkEvent(L)
	c, ok := ev.(event.Cancellable)
	if !ok {
		L.RaiseError("%s is not cancellable", ev.EventType())
		return 0
	}
	c.SetCancelled(L.OptBool(2, true))
	return 0
}

func (a *EventAPI) evCancel(L *lua.LState) int {
	L.SetTop(1)
	return a.evSetCancelled(L)
}

func (a *EventAPI) evGet(L *lua.LState) int {
	ev := checkEvent(L)
	name := L.CheckString(2)
	fields, err := events.Fields(ev)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(a.bridge.ToLuaValue(fields[name]))
	return 1
}

func (a *EventAPI) evSet(L *lua.LState) int {
	ev := checkEvent(L)
	name := L.CheckString(2)
	if err := events.SetField(ev, name, a.bridge.ToGoValue(L.Get(3))); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (a *EventAPI) evFields(L *lua.LState) int {
	fields, err := events.Fields(checkEvent(L))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(a.bridge.ToLuaValue(fields))
	return 1
}

// luaHandler runs a Lua function as an event handler. The function receives
// the event and a yield function.
type luaHandler struct {
	api *EventAPI
	fn  *lua.LFunction
}

// Handle implements event.Handler.
//
// Yield may unwind with a panic when a later stage aborts the dispatch.
// gopher-lua converts Go panics inside protected calls into Lua errors, so
// the panic is captured at the yield boundary, Lua is unwound with an error
// and the captured value is re-raised once control is back in Go.
func (h *luaHandler) Handle(_ context.Context, ev event.Event, y event.Yielder) error {
	if ev.IsAsync() {
		return nil
	}
	state := h.api.state
	if state.IsClosed() {
		return ErrStateClosed
	}
	L := state.L

	var (
		unwinding any
		fatal     error
	)
	yield := L.NewFunction(func(L *lua.LState) int {
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					unwinding = r
				}
			}()
			err = y.Yield()
		}()

		switch {
		case unwinding != nil:
			L.RaiseError("dispatch aborted")
		case err != nil:
			fatal = err
			L.RaiseError("%s", err.Error())
		}
		return 0
	})

	err := state.Invoke(h.fn, h.api.pushEvent(L, ev), yield)
	if unwinding != nil {
		panic(unwinding)
	}
	if err != nil && fatal != nil {
		return fatal
	}
	return err
}
