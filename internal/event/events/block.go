package events

import "github.com/dshills/yieldbus/internal/event"

// BlockBreak is dispatched when a player breaks a block.
// Cancelling it keeps the block in place.
type BlockBreak struct {
	event.Base        `yaml:"-" json:"-"`
	event.CancelState `yaml:"-" json:"-"`

	// Block is the position of the broken block.
	Block Location `yaml:"block" json:"block"`

	// Material is the block material.
	Material string `yaml:"material" json:"material"`

	// Player is the name of the player breaking the block.
	Player string `yaml:"player" json:"player"`

	// DropItems controls whether the block drops its items.
	DropItems bool `yaml:"drop_items" json:"drop_items"`

	// Experience is the amount of experience dropped.
	Experience int `yaml:"experience" json:"experience"`
}

// NewBlockBreak creates a block break event.
func NewBlockBreak(block Location, material, player string) *BlockBreak {
	return &BlockBreak{
		Base:      event.NewBase(TypeBlockBreak, player),
		Block:     block,
		Material:  material,
		Player:    player,
		DropItems: true,
	}
}

// BlockPlace is dispatched when a player places a block.
// Cancelling it removes the placed block again.
type BlockPlace struct {
	event.Base        `yaml:"-" json:"-"`
	event.CancelState `yaml:"-" json:"-"`

	// Block is the position of the placed block.
	Block Location `yaml:"block" json:"block"`

	// Material is the placed material.
	Material string `yaml:"material" json:"material"`

	// Against is the position of the block it was placed against.
	Against Location `yaml:"against" json:"against"`

	// Player is the name of the player placing the block.
	Player string `yaml:"player" json:"player"`

	// CanBuild reports whether the placement is allowed by the world.
	CanBuild bool `yaml:"can_build" json:"can_build"`
}

// NewBlockPlace creates a block place event.
func NewBlockPlace(block, against Location, material, player string) *BlockPlace {
	return &BlockPlace{
		Base:     event.NewBase(TypeBlockPlace, player),
		Block:    block,
		Material: material,
		Against:  against,
		Player:   player,
		CanBuild: true,
	}
}
