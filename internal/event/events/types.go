package events

import (
	"fmt"

	"github.com/dshills/yieldbus/internal/event/eventtype"
)

// Abstract event types. They are never dispatched directly but collect
// handlers for all their descendants.
const (
	// TypeEvent is the root of the hierarchy.
	TypeEvent eventtype.Tag = "event"

	// TypeCancellable is the parent of every event whose default action can be vetoed.
	TypeCancellable eventtype.Tag = "cancellable"

	// TypeBlock is the parent of block events.
	TypeBlock eventtype.Tag = "block"

	// TypePlayer is the parent of player events.
	TypePlayer eventtype.Tag = "player"

	// TypeEntity is the parent of entity events.
	TypeEntity eventtype.Tag = "entity"

	// TypeInventory is the parent of inventory events.
	TypeInventory eventtype.Tag = "inventory"
)

// Concrete event types.
const (
	// TypeBlockBreak is dispatched when a player breaks a block.
	TypeBlockBreak eventtype.Tag = "block.break"

	// TypeBlockPlace is dispatched when a player places a block.
	TypeBlockPlace eventtype.Tag = "block.place"

	// TypePlayerJoin is dispatched when a player joins.
	TypePlayerJoin eventtype.Tag = "player.join"

	// TypePlayerQuit is dispatched when a player leaves.
	TypePlayerQuit eventtype.Tag = "player.quit"

	// TypePlayerChat is dispatched, asynchronously, when a player sends a chat message.
	TypePlayerChat eventtype.Tag = "player.chat"

	// TypePlayerMove is dispatched when a player moves.
	TypePlayerMove eventtype.Tag = "player.move"

	// TypeEntityDamage is dispatched when an entity takes damage.
	TypeEntityDamage eventtype.Tag = "entity.damage"

	// TypeEntityDamageByEntity is dispatched when an entity is damaged by another entity.
	TypeEntityDamageByEntity eventtype.Tag = "entity.damage.by_entity"

	// TypeInventoryClick is dispatched when a player clicks an inventory slot.
	TypeInventoryClick eventtype.Tag = "inventory.click"
)

// definition is one node of the catalogue hierarchy.
type definition struct {
	tag     eventtype.Tag
	parents []eventtype.Tag
}

// catalogue lists the hierarchy in definition order; parents come first.
var catalogue = []definition{
	{TypeEvent, nil},
	{TypeCancellable, []eventtype.Tag{TypeEvent}},
	{TypeBlock, []eventtype.Tag{TypeEvent}},
	{TypeBlockBreak, []eventtype.Tag{TypeBlock, TypeCancellable}},
	{TypeBlockPlace, []eventtype.Tag{TypeBlock, TypeCancellable}},
	{TypePlayer, []eventtype.Tag{TypeEvent}},
	{TypePlayerJoin, []eventtype.Tag{TypePlayer}},
	{TypePlayerQuit, []eventtype.Tag{TypePlayer}},
	{TypePlayerChat, []eventtype.Tag{TypePlayer, TypeCancellable}},
	{TypePlayerMove, []eventtype.Tag{TypePlayer, TypeCancellable}},
	{TypeEntity, []eventtype.Tag{TypeEvent}},
	{TypeEntityDamage, []eventtype.Tag{TypeEntity, TypeCancellable}},
	{TypeEntityDamageByEntity, []eventtype.Tag{TypeEntityDamage}},
	{TypeInventory, []eventtype.Tag{TypeEvent}},
	{TypeInventoryClick, []eventtype.Tag{TypeInventory, TypeCancellable}},
}

// Define adds the whole catalogue to h. It is idempotent.
func Define(h *eventtype.Hierarchy) error {
	for _, d := range catalogue {
		if err := h.Define(d.tag, d.parents...); err != nil {
			return fmt.Errorf("define %s: %w", d.tag, err)
		}
	}
	return nil
}

// NewHierarchy returns a hierarchy containing the whole catalogue.
func NewHierarchy() *eventtype.Hierarchy {
	h := eventtype.NewHierarchy()
	if err := Define(h); err != nil {
		// The catalogue is static; failing here is a programming error.
		panic(err)
	}
	return h
}

// Location is a block position in a world.
type Location struct {
	World string `yaml:"world" json:"world"`
	X     int    `yaml:"x" json:"x"`
	Y     int    `yaml:"y" json:"y"`
	Z     int    `yaml:"z" json:"z"`
}

// String returns the location as world(x, y, z).
func (l Location) String() string {
	return fmt.Sprintf("%s(%d, %d, %d)", l.World, l.X, l.Y, l.Z)
}
