package events

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/dshills/yieldbus/internal/event"
	"github.com/dshills/yieldbus/internal/event/eventtype"
)

func TestNewHierarchy(t *testing.T) {
	h := NewHierarchy()

	tests := []struct {
		tag      eventtype.Tag
		ancestor eventtype.Tag
		want     bool
	}{
		{TypeBlockBreak, TypeBlock, true},
		{TypeBlockBreak, TypeCancellable, true},
		{TypeBlockBreak, TypeEvent, true},
		{TypePlayerJoin, TypeCancellable, false},
		{TypeEntityDamageByEntity, TypeEntityDamage, true},
		{TypeEntityDamageByEntity, TypeCancellable, true},
		{TypeInventoryClick, TypePlayer, false},
	}
	for _, tt := range tests {
		if got := h.IsA(tt.tag, tt.ancestor); got != tt.want {
			t.Errorf("IsA(%s, %s) = %v, want %v", tt.tag, tt.ancestor, got, tt.want)
		}
	}

	// Defining twice is harmless.
	if err := Define(h); err != nil {
		t.Errorf("second Define() failed: %v", err)
	}
}

func TestCatalogueMatchesFactories(t *testing.T) {
	h := NewHierarchy()
	for _, tag := range ConcreteTypes() {
		if !h.Has(tag) {
			t.Errorf("concrete type %s missing from hierarchy", tag)
		}
		ev, err := New(tag, "test")
		if err != nil {
			t.Fatalf("New(%s) failed: %v", tag, err)
		}
		if ev.EventType() != tag {
			t.Errorf("New(%s).EventType() = %s", tag, ev.EventType())
		}
		_, cancellable := ev.(event.Cancellable)
		if cancellable != h.IsA(tag, TypeCancellable) {
			t.Errorf("%s: Cancellable implementation (%v) disagrees with hierarchy", tag, cancellable)
		}
	}
}

func TestChatIsAsync(t *testing.T) {
	if !NewPlayerChat("alex", "hi").IsAsync() {
		t.Error("player chat must be async")
	}
	if NewBlockBreak(Location{}, "stone", "alex").IsAsync() {
		t.Error("block break must be sync")
	}
	ev, _ := New(TypePlayerChat, "test")
	if !ev.IsAsync() {
		t.Error("decoded player chat must be async")
	}
}

func TestDecode(t *testing.T) {
	ev, err := Decode(TypeBlockBreak, "scenario", map[string]any{
		"material": "diamond_ore",
		"player":   "alex",
		"block":    map[string]any{"world": "overworld", "x": 10, "y": 12, "z": -4},
	})
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	bb, ok := ev.(*BlockBreak)
	if !ok {
		t.Fatalf("expected *BlockBreak, got %T", ev)
	}
	want := Location{World: "overworld", X: 10, Y: 12, Z: -4}
	if bb.Block != want || bb.Material != "diamond_ore" || bb.Player != "alex" {
		t.Errorf("unexpected payload %+v", bb)
	}
	if !bb.DropItems {
		t.Error("expected default DropItems to survive decoding")
	}
	if bb.EventMetadata().Source != "scenario" {
		t.Errorf("unexpected source %q", bb.EventMetadata().Source)
	}

	if _, err := Decode(TypeBlock, "", nil); !errors.Is(err, ErrNotConcrete) {
		t.Errorf("expected ErrNotConcrete, got %v", err)
	}
	if _, err := Decode(TypeEntityDamage, "", map[string]any{"damage": "lots"}); err == nil {
		t.Error("expected error for ill-typed field")
	}
}

func TestDecodeInlineDamage(t *testing.T) {
	ev, err := Decode(TypeEntityDamageByEntity, "", map[string]any{
		"entity":  "zombie",
		"damager": "alex",
		"damage":  3.5,
	})
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	d, ok := ev.(DamageEvent)
	if !ok {
		t.Fatalf("expected DamageEvent, got %T", ev)
	}
	info := d.DamageInfo()
	if info.Entity != "zombie" || info.Damage != 3.5 || info.Cause != DamageCauseAttack {
		t.Errorf("unexpected damage %+v", info)
	}
	if ev.(*EntityDamageByEntity).Damager != "alex" {
		t.Error("expected damager to decode")
	}
}

func TestFieldsAndSetField(t *testing.T) {
	chat := NewPlayerChat("alex", "hello", "sam")
	chat.SetCancelled(true)

	fields, err := Fields(chat)
	if err != nil {
		t.Fatalf("Fields() failed: %v", err)
	}
	if fields["message"] != "hello" || fields["player"] != "alex" {
		t.Errorf("unexpected fields %v", fields)
	}

	if err := SetField(chat, "message", "HELLO"); err != nil {
		t.Fatalf("SetField() failed: %v", err)
	}
	if chat.Message != "HELLO" {
		t.Errorf("expected rewritten message, got %q", chat.Message)
	}
	if !chat.IsCancelled() || !slices.Equal(chat.Recipients, []string{"sam"}) {
		t.Error("SetField must leave other state untouched")
	}
	if err := SetField(chat, "nope", 1); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestDispatchThroughHierarchy(t *testing.T) {
	bus := event.NewBus(event.WithHierarchy(NewHierarchy()), event.WithExceptionPolicy(event.NopPolicy{}))
	ctx := bus.Coordinator().Bind(context.Background())

	var seen []string
	if _, err := bus.On(TypeEntityDamage, func(ctx context.Context, ev event.Event, y event.Yielder) error {
		d := ev.(DamageEvent).DamageInfo()
		d.Damage /= 2
		seen = append(seen, "halved")
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := bus.On(TypeCancellable, func(ctx context.Context, ev event.Event, y event.Yielder) error {
		seen = append(seen, "cancellable")
		return nil
	}, event.WithPriority(event.PriorityMonitor)); err != nil {
		t.Fatal(err)
	}

	ev := NewEntityDamageByEntity("zombie", "alex", 8)
	if err := bus.Dispatch(ctx, ev, nil); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if ev.Damage != 4 {
		t.Errorf("expected damage 4, got %v", ev.Damage)
	}
	if !slices.Equal(seen, []string{"halved", "cancellable"}) {
		t.Errorf("unexpected handler order %v", seen)
	}
}

func TestLocationString(t *testing.T) {
	if got := (Location{World: "w", X: 1, Y: 2, Z: 3}).String(); got != "w(1, 2, 3)" {
		t.Errorf("String() = %q", got)
	}
}
