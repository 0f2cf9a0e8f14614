package events

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/dshills/yieldbus/internal/event"
	"github.com/dshills/yieldbus/internal/event/eventtype"
	"gopkg.in/yaml.v3"
)

// ErrNotConcrete is returned when decoding a tag that has no payload type.
var ErrNotConcrete = errors.New("event type has no payload")

// factories creates an empty payload for each concrete type.
var factories = map[eventtype.Tag]func(source string) event.Event{
	TypeBlockBreak: func(s string) event.Event { return &BlockBreak{Base: event.NewBase(TypeBlockBreak, s), DropItems: true} },
	TypeBlockPlace: func(s string) event.Event { return &BlockPlace{Base: event.NewBase(TypeBlockPlace, s), CanBuild: true} },
	TypePlayerJoin: func(s string) event.Event { return &PlayerJoin{Base: event.NewBase(TypePlayerJoin, s)} },
	TypePlayerQuit: func(s string) event.Event { return &PlayerQuit{Base: event.NewBase(TypePlayerQuit, s)} },
	TypePlayerChat: func(s string) event.Event {
		return &PlayerChat{Base: event.NewAsyncBase(TypePlayerChat, s), Format: "<%s> %s"}
	},
	TypePlayerMove: func(s string) event.Event { return &PlayerMove{Base: event.NewBase(TypePlayerMove, s)} },
	TypeEntityDamage: func(s string) event.Event {
		return &EntityDamage{Base: event.NewBase(TypeEntityDamage, s), Cause: DamageCauseCustom}
	},
	TypeEntityDamageByEntity: func(s string) event.Event {
		return &EntityDamageByEntity{EntityDamage: EntityDamage{Base: event.NewBase(TypeEntityDamageByEntity, s), Cause: DamageCauseAttack}}
	},
	TypeInventoryClick: func(s string) event.Event {
		return &InventoryClick{Base: event.NewBase(TypeInventoryClick, s), Click: ClickLeft}
	},
}

// ConcreteTypes returns the tags that have a payload type, sorted.
func ConcreteTypes() []eventtype.Tag {
	return slices.Sorted(maps.Keys(factories))
}

// IsConcrete reports whether tag has a payload type.
func IsConcrete(tag eventtype.Tag) bool {
	_, ok := factories[tag]
	return ok
}

// New creates an event of type tag with default field values.
func New(tag eventtype.Tag, source string) (event.Event, error) {
	factory, ok := factories[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConcrete, tag)
	}
	return factory(source), nil
}

// Decode creates an event of type tag and fills it from fields.
// Field names are the payload's yaml names; unknown names are ignored.
func Decode(tag eventtype.Tag, source string, fields map[string]any) (event.Event, error) {
	ev, err := New(tag, source)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return ev, nil
	}
	if err := apply(ev, fields); err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag, err)
	}
	return ev, nil
}

// Fields returns the payload of ev as a field map keyed by yaml name.
// Cancellation state and metadata are not included.
func Fields(ev event.Event) (map[string]any, error) {
	data, err := yaml.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventType(), err)
	}
	fields := make(map[string]any)
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventType(), err)
	}
	return fields, nil
}

// SetField assigns one payload field of ev by its yaml name.
func SetField(ev event.Event, name string, value any) error {
	fields, err := Fields(ev)
	if err != nil {
		return err
	}
	if _, ok := fields[name]; !ok {
		return fmt.Errorf("%s has no field %q", ev.EventType(), name)
	}
	return apply(ev, map[string]any{name: value})
}

// apply decodes fields into the payload pointed to by ev, leaving absent
// fields unchanged.
func apply(ev event.Event, fields map[string]any) error {
	data, err := yaml.Marshal(fields)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, ev)
}
