// Package events defines the domain event catalogue dispatched through the
// event bus.
//
// Each event type has a tag constant and, for concrete types, a payload struct.
// Events are grouped by the part of the world they describe:
//
//   - Block events: blocks broken and placed
//   - Player events: joins, quits, chat and movement
//   - Entity events: damage, including damage dealt by another entity
//   - Inventory events: slot clicks
//
// # Hierarchy
//
// Tags form a hierarchy rooted at "event". Cancellable events also descend
// from "cancellable", so a handler bound there sees every event whose default
// action can be vetoed:
//
//	event
//	├── cancellable
//	├── block
//	│   ├── block.break      (cancellable)
//	│   └── block.place      (cancellable)
//	├── player
//	│   ├── player.join
//	│   ├── player.quit
//	│   ├── player.chat      (cancellable, async)
//	│   └── player.move      (cancellable)
//	├── entity
//	│   └── entity.damage    (cancellable)
//	│       └── entity.damage.by_entity
//	└── inventory
//	    └── inventory.click  (cancellable)
//
// Use NewHierarchy to obtain a hierarchy with the whole catalogue defined.
//
// # Usage
//
//	bus := event.NewBus(event.WithHierarchy(events.NewHierarchy()))
//	ev := events.NewBlockBreak(events.Location{World: "world", X: 1, Y: 64, Z: 2}, "stone", "alex")
//	err := bus.Dispatch(ctx, ev, func(ctx context.Context, e event.Event) error {
//	    world.Remove(ev.Block)
//	    return nil
//	})
//
// # Decoding
//
// Decode builds an event from a tag and a field map, so events can be described
// in YAML scenario files or created by plugins:
//
//	ev, err := events.Decode("player.chat", "script", map[string]any{
//	    "player":  "alex",
//	    "message": "hello",
//	})
package events
