package event

import (
	"github.com/dshills/yieldbus/internal/event/eventtype"
	"github.com/google/uuid"
)

// RegistrationConfig contains configuration for a registration.
type RegistrationConfig struct {
	// Priority determines execution order (lower values execute first).
	Priority Priority

	// IgnoreCancelled skips the handler while the event is cancelled.
	IgnoreCancelled bool

	// Owner groups the registration for bulk removal and liveness checks.
	Owner Owner

	// Name is used in reports. Defaults to the registration ID.
	Name string
}

// DefaultRegistrationConfig returns a default registration configuration.
func DefaultRegistrationConfig() RegistrationConfig {
	return RegistrationConfig{
		Priority: PriorityNormal,
	}
}

// RegistrationOption is a function that configures a registration.
type RegistrationOption func(*RegistrationConfig)

// WithPriority sets the registration priority.
func WithPriority(p Priority) RegistrationOption {
	return func(c *RegistrationConfig) {
		c.Priority = p
	}
}

// WithIgnoreCancelled skips the handler while the event is cancelled.
func WithIgnoreCancelled() RegistrationOption {
	return func(c *RegistrationConfig) {
		c.IgnoreCancelled = true
	}
}

// WithOwner sets the registration owner.
func WithOwner(o Owner) RegistrationOption {
	return func(c *RegistrationConfig) {
		c.Owner = o
	}
}

// WithName sets the name used in reports.
func WithName(name string) RegistrationOption {
	return func(c *RegistrationConfig) {
		c.Name = name
	}
}

// Registration binds a handler to an event type.
//
// A registration fires for events of its type and of every type descending
// from it. The same registration may be present at most once in its list.
type Registration struct {
	id      string
	tag     eventtype.Tag
	handler Handler
	config  RegistrationConfig
}

// NewRegistration creates a registration for the given event type.
func NewRegistration(tag eventtype.Tag, h Handler, opts ...RegistrationOption) *Registration {
	config := DefaultRegistrationConfig()
	for _, opt := range opts {
		opt(&config)
	}

	r := &Registration{
		id:      uuid.NewString(),
		tag:     tag,
		handler: h,
		config:  config,
	}
	if r.config.Name == "" {
		r.config.Name = r.id
	}
	return r
}

// Listen is a shorthand for NewRegistration with a HandlerFunc.
func Listen(tag eventtype.Tag, fn HandlerFunc, opts ...RegistrationOption) *Registration {
	return NewRegistration(tag, fn, opts...)
}

// ID returns the registration ID.
func (r *Registration) ID() string {
	return r.id
}

// EventType returns the event type the handler is bound to.
func (r *Registration) EventType() eventtype.Tag {
	return r.tag
}

// Handler returns the registration's handler.
func (r *Registration) Handler() Handler {
	return r.handler
}

// Priority returns the registration priority.
func (r *Registration) Priority() Priority {
	return r.config.Priority
}

// IgnoreCancelled reports whether the handler is skipped for cancelled events.
func (r *Registration) IgnoreCancelled() bool {
	return r.config.IgnoreCancelled
}

// Owner returns the registration owner, or nil.
func (r *Registration) Owner() Owner {
	return r.config.Owner
}

// Name returns the display name of the registration.
func (r *Registration) Name() string {
	return r.config.Name
}

// IsLive reports whether the owner currently allows the handler to run.
func (r *Registration) IsLive() bool {
	return r.config.Owner == nil || r.config.Owner.Enabled()
}

// ownerName returns the owner's name or "".
func (r *Registration) ownerName() string {
	if r.config.Owner == nil {
		return ""
	}
	return r.config.Owner.Name()
}

// shouldRun reports whether the handler runs for ev at this instant.
func (r *Registration) shouldRun(ev Event) bool {
	if !r.IsLive() {
		return false
	}
	if r.config.IgnoreCancelled && IsCancelled(ev) {
		return false
	}
	return true
}
