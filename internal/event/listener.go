package event

import (
	"fmt"
	"slices"
)

// Listener produces the registrations of one listener object.
//
// How the registrations are produced does not matter to the bus: a Go type
// may build them by hand, a plugin may declare them in a script.
type Listener interface {
	Registrations() []*Registration
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func() []*Registration

// Registrations implements Listener.
func (f ListenerFunc) Registrations() []*Registration {
	return f()
}

// Registrations is a fixed set of registrations usable as a Listener.
type Registrations []*Registration

// Registrations implements Listener.
func (r Registrations) Registrations() []*Registration {
	return r
}

// RegisterListener registers every registration produced by l on behalf of
// owner. Registrations without an owner are assigned owner.
//
// Registration is all or nothing: if any registration fails, the ones already
// added are removed again, assigned owners are cleared and the first error is
// returned.
func (b *Bus) RegisterListener(owner Owner, l Listener) ([]*Registration, error) {
	if l == nil {
		return nil, ErrNilHandler
	}

	regs := l.Registrations()
	if err := b.registry.RegisterOwned(owner, regs); err != nil {
		return nil, fmt.Errorf("register listener: %w", err)
	}
	return slices.Clone(regs), nil
}
