package events

import "github.com/dshills/yieldbus/internal/event"

// PlayerJoin is dispatched when a player joins.
type PlayerJoin struct {
	event.Base `yaml:"-" json:"-"`

	// Player is the joining player's name.
	Player string `yaml:"player" json:"player"`

	// Message is the broadcast join message. Empty suppresses it.
	Message string `yaml:"message" json:"message"`
}

// NewPlayerJoin creates a player join event with the default message.
func NewPlayerJoin(player string) *PlayerJoin {
	return &PlayerJoin{
		Base:    event.NewBase(TypePlayerJoin, player),
		Player:  player,
		Message: player + " joined the game",
	}
}

// PlayerQuit is dispatched when a player leaves.
type PlayerQuit struct {
	event.Base `yaml:"-" json:"-"`

	// Player is the leaving player's name.
	Player string `yaml:"player" json:"player"`

	// Message is the broadcast quit message. Empty suppresses it.
	Message string `yaml:"message" json:"message"`

	// Reason is why the player left, if known.
	Reason string `yaml:"reason" json:"reason"`
}

// NewPlayerQuit creates a player quit event with the default message.
func NewPlayerQuit(player, reason string) *PlayerQuit {
	return &PlayerQuit{
		Base:    event.NewBase(TypePlayerQuit, player),
		Player:  player,
		Message: player + " left the game",
		Reason:  reason,
	}
}

// PlayerChat is dispatched when a player sends a chat message.
//
// Chat arrives on network goroutines, so the event is asynchronous and must
// not be dispatched on the coordinator.
type PlayerChat struct {
	event.Base        `yaml:"-" json:"-"`
	event.CancelState `yaml:"-" json:"-"`

	// Player is the sender's name.
	Player string `yaml:"player" json:"player"`

	// Message is the chat message. Handlers may rewrite it.
	Message string `yaml:"message" json:"message"`

	// Format is the printf-style format applied to player and message.
	Format string `yaml:"format" json:"format"`

	// Recipients lists the players the message is delivered to.
	Recipients []string `yaml:"recipients" json:"recipients"`
}

// NewPlayerChat creates a chat event with the default format.
func NewPlayerChat(player, message string, recipients ...string) *PlayerChat {
	return &PlayerChat{
		Base:       event.NewAsyncBase(TypePlayerChat, player),
		Player:     player,
		Message:    message,
		Format:     "<%s> %s",
		Recipients: recipients,
	}
}

// PlayerMove is dispatched when a player moves from one block to another.
// Cancelling it returns the player to From.
type PlayerMove struct {
	event.Base        `yaml:"-" json:"-"`
	event.CancelState `yaml:"-" json:"-"`

	// Player is the moving player's name.
	Player string `yaml:"player" json:"player"`

	// From is the previous location.
	From Location `yaml:"from" json:"from"`

	// To is the new location. Handlers may change it.
	To Location `yaml:"to" json:"to"`
}

// NewPlayerMove creates a player move event.
func NewPlayerMove(player string, from, to Location) *PlayerMove {
	return &PlayerMove{
		Base:   event.NewBase(TypePlayerMove, player),
		Player: player,
		From:   from,
		To:     to,
	}
}
