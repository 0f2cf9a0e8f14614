package events

import "github.com/dshills/yieldbus/internal/event"

// ClickType is the kind of inventory click.
type ClickType string

// Click types.
const (
	ClickLeft       ClickType = "left"
	ClickRight      ClickType = "right"
	ClickShiftLeft  ClickType = "shift_left"
	ClickShiftRight ClickType = "shift_right"
	ClickDrop       ClickType = "drop"
)

// InventoryClick is dispatched when a player clicks a slot.
// Cancelling it leaves the inventory unchanged.
type InventoryClick struct {
	event.Base        `yaml:"-" json:"-"`
	event.CancelState `yaml:"-" json:"-"`

	// Player is the clicking player's name.
	Player string `yaml:"player" json:"player"`

	// Inventory names the open inventory.
	Inventory string `yaml:"inventory" json:"inventory"`

	// Slot is the clicked slot index.
	Slot int `yaml:"slot" json:"slot"`

	// Click is the kind of click.
	Click ClickType `yaml:"click" json:"click"`

	// Item is the item in the slot, empty if none.
	Item string `yaml:"item" json:"item"`
}

// NewInventoryClick creates an inventory click event.
func NewInventoryClick(player, inventory string, slot int, click ClickType, item string) *InventoryClick {
	return &InventoryClick{
		Base:      event.NewBase(TypeInventoryClick, player),
		Player:    player,
		Inventory: inventory,
		Slot:      slot,
		Click:     click,
		Item:      item,
	}
}
