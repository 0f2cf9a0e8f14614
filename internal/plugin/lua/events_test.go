package lua

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/dshills/yieldbus/internal/event"
	"github.com/dshills/yieldbus/internal/event/events"
	glua "github.com/yuin/gopher-lua"
)

type luaFixture struct {
	state  *State
	bus    *event.Bus
	api    *EventAPI
	owner  *event.StaticOwner
	ctx    context.Context
	trace  []string
	errs   []error
	logBuf *bytes.Buffer
}

func newLuaFixture(t *testing.T) *luaFixture {
	t.Helper()

	f := &luaFixture{
		state:  newTestState(t),
		owner:  event.NewStaticOwner("test-plugin"),
		logBuf: &bytes.Buffer{},
	}
	f.bus = event.NewBus(
		event.WithHierarchy(events.NewHierarchy()),
		event.WithExceptionPolicy(event.PolicyFunc(func(err error, _ string) {
			f.errs = append(f.errs, err)
		})),
	)
	f.ctx = f.bus.Coordinator().Bind(context.Background())

	logger := slog.New(slog.NewTextHandler(f.logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f.api = NewEventAPI(f.state, f.bus, f.owner, logger)
	f.api.Install()
	InstallLog(f.state, logger)

	f.state.SetGlobal("trace", f.state.L.NewFunction(func(L *glua.LState) int {
		f.trace = append(f.trace, L.CheckString(1))
		return 0
	}))
	return f
}

func (f *luaFixture) load(t *testing.T, code string) {
	t.Helper()
	if err := f.state.DoString(context.Background(), code); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if _, err := f.bus.RegisterListener(f.owner, f.api); err != nil {
		t.Fatalf("RegisterListener() error = %v", err)
	}
	f.api.SetLive(true)
}

func (f *luaFixture) terminal(name string, err error) event.TerminalFunc {
	return func(context.Context, event.Event) error {
		f.trace = append(f.trace, name)
		return err
	}
}

func TestEventAPI_YieldWrapsTerminal(t *testing.T) {
	f := newLuaFixture(t)
	f.load(t, `
		events.on("block.break", function(ev, yield)
			trace("before")
			yield()
			trace("after")
		end)
		events.on("block.break", { priority = "HIGH" }, function(ev)
			trace("high")
		end)
	`)

	ev := events.NewBlockBreak(events.Location{}, "stone", "alex")
	if err := f.bus.Dispatch(f.ctx, ev, f.terminal("terminal", nil)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	want := []string{"before", "high", "terminal", "after"}
	if !slices.Equal(f.trace, want) {
		t.Errorf("trace = %v, want %v", f.trace, want)
	}
}

func TestEventAPI_EventAccess(t *testing.T) {
	f := newLuaFixture(t)
	f.load(t, `
		events.on("entity.damage", function(ev)
			assert(ev:type() == "entity.damage.by_entity")
			assert(ev:is_a("cancellable"))
			assert(not ev:is_async())
			assert(ev:get("damager") == "alex")
			ev:set("damage", ev:get("damage") / 2)
			if ev:get("entity") == "villager" then
				ev:cancel()
			end
		end)
	`)

	ev := events.NewEntityDamageByEntity("villager", "alex", 9)
	if err := f.bus.Dispatch(f.ctx, ev, nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(f.errs) != 0 {
		t.Fatalf("handler failed: %v", f.errs)
	}
	if ev.Damage != 4.5 {
		t.Errorf("Damage = %v, want 4.5", ev.Damage)
	}
	if !ev.IsCancelled() {
		t.Error("expected event to be cancelled")
	}
}

func TestEventAPI_TerminalErrorUnwindsLua(t *testing.T) {
	f := newLuaFixture(t)
	f.load(t, `
		events.on("block.break", function(ev, yield)
			local ok = pcall(yield)
			trace("resumed:" .. tostring(ok))
		end)
	`)

	boom := errors.New("terminal failed")
	err := f.bus.Dispatch(f.ctx, events.NewBlockBreak(events.Location{}, "stone", "alex"), f.terminal("terminal", boom))
	if !errors.Is(err, boom) {
		t.Fatalf("Dispatch() error = %v, want %v", err, boom)
	}
	// pcall in the script cannot swallow the unwind.
	if len(f.errs) != 0 {
		t.Errorf("terminal failure must not reach the policy: %v", f.errs)
	}
	if f.trace[0] != "terminal" {
		t.Errorf("trace = %v", f.trace)
	}
}

func TestEventAPI_DoubleYield(t *testing.T) {
	f := newLuaFixture(t)
	f.load(t, `
		events.on("block.break", function(ev, yield)
			yield()
			yield()
		end)
	`)

	err := f.bus.Dispatch(f.ctx, events.NewBlockBreak(events.Location{}, "stone", "alex"), f.terminal("terminal", nil))
	if !errors.Is(err, event.ErrDoubleYield) {
		t.Fatalf("Dispatch() error = %v, want ErrDoubleYield", err)
	}
}

func TestEventAPI_ScriptErrorIsolated(t *testing.T) {
	f := newLuaFixture(t)
	f.load(t, `
		events.on("block.break", { priority = events.LOW }, function(ev)
			error("script bug")
		end)
		events.on("block.break", { priority = events.HIGH }, function(ev)
			trace("still runs")
		end)
	`)

	err := f.bus.Dispatch(f.ctx, events.NewBlockBreak(events.Location{}, "stone", "alex"), f.terminal("terminal", nil))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(f.errs) != 1 || !strings.Contains(f.errs[0].Error(), "script bug") {
		t.Errorf("policy errors = %v", f.errs)
	}
	if !slices.Equal(f.trace, []string{"still runs", "terminal"}) {
		t.Errorf("trace = %v", f.trace)
	}
}

func TestEventAPI_AsyncEventsPassThrough(t *testing.T) {
	f := newLuaFixture(t)
	f.load(t, `
		events.on("player.chat", function(ev)
			trace("lua")
			ev:cancel()
		end)
	`)

	chat := events.NewPlayerChat("alex", "hi")
	if err := f.bus.Dispatch(context.Background(), chat, nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(f.trace) != 0 || chat.IsCancelled() {
		t.Error("Lua handlers must not run for async events")
	}
}

func TestEventAPI_Declarations(t *testing.T) {
	f := newLuaFixture(t)

	err := f.state.DoString(context.Background(), `events.on("no.such.type", function() end)`)
	if err == nil || !strings.Contains(err.Error(), "unknown event type") {
		t.Errorf("expected unknown event type error, got %v", err)
	}
	err = f.state.DoString(context.Background(), `events.on("block", { priority = "URGENT" }, function() end)`)
	if err == nil {
		t.Error("expected invalid priority error")
	}

	f.load(t, `
		first = events.on("block", { name = "first", ignore_cancelled = true }, function() end)
		second = events.on("block", function() end)
	`)
	regs := f.api.Registrations()
	if len(regs) != 2 {
		t.Fatalf("Registrations() = %d, want 2", len(regs))
	}
	if regs[0].Name() != "first" || !regs[0].IgnoreCancelled() || regs[0].Owner() != event.Owner(f.owner) {
		t.Errorf("unexpected first registration %+v", regs[0])
	}
	if f.bus.Registry().Count() != 2 {
		t.Errorf("registry count = %d, want 2", f.bus.Registry().Count())
	}

	// Live declarations register immediately, off removes them.
	if err := f.state.DoString(context.Background(), `
		third = events.on("player", function() end)
		assert(events.off(second))
		assert(not events.off("unknown"))
	`); err != nil {
		t.Fatal(err)
	}
	if f.bus.Registry().Count() != 2 || len(f.api.Registrations()) != 2 {
		t.Errorf("after on/off: registry=%d declared=%d", f.bus.Registry().Count(), len(f.api.Registrations()))
	}

	f.api.Detach()
	if err := f.state.DoString(context.Background(), `events.on("block", function() end)`); err == nil {
		t.Error("events.on after Detach should fail")
	}
}

func TestEventAPI_Helpers(t *testing.T) {
	f := newLuaFixture(t)
	err := f.state.DoString(context.Background(), `
		assert(events.is_a("block.break", "block"))
		assert(not events.is_a("block", "block.break"))
		assert(events.MONITOR == 5 and events.LOWEST == 0)
		local n = 0
		for _ in ipairs(events.types()) do n = n + 1 end
		assert(n > 10)
	`)
	if err != nil {
		t.Fatal(err)
	}
}

func TestInstallLog(t *testing.T) {
	f := newLuaFixture(t)
	err := f.state.DoString(context.Background(), `
		log.warn("low health", { player = "alex", hp = 3 })
		print("hello", "world")
	`)
	if err != nil {
		t.Fatal(err)
	}
	out := f.logBuf.String()
	for _, want := range []string{"level=WARN", `msg="low health"`, "hp=3", "player=alex", `msg="hello\tworld"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
