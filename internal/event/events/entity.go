package events

import "github.com/dshills/yieldbus/internal/event"

// DamageCause identifies what damaged an entity.
type DamageCause string

// Damage causes.
const (
	DamageCauseContact    DamageCause = "contact"
	DamageCauseAttack     DamageCause = "entity_attack"
	DamageCauseProjectile DamageCause = "projectile"
	DamageCauseFall       DamageCause = "fall"
	DamageCauseFire       DamageCause = "fire"
	DamageCauseVoid       DamageCause = "void"
	DamageCauseCustom     DamageCause = "custom"
)

// EntityDamage is dispatched when an entity takes damage.
type EntityDamage struct {
	event.Base        `yaml:"-" json:"-"`
	event.CancelState `yaml:"-" json:"-"`

	// Entity identifies the damaged entity.
	Entity string `yaml:"entity" json:"entity"`

	// Cause is what dealt the damage.
	Cause DamageCause `yaml:"cause" json:"cause"`

	// Damage is the amount of damage. Handlers may change it.
	Damage float64 `yaml:"damage" json:"damage"`
}

// NewEntityDamage creates an entity damage event.
func NewEntityDamage(entity string, cause DamageCause, damage float64) *EntityDamage {
	return &EntityDamage{
		Base:   event.NewBase(TypeEntityDamage, entity),
		Entity: entity,
		Cause:  cause,
		Damage: damage,
	}
}

// DamageInfo returns the damage part of the event.
func (e *EntityDamage) DamageInfo() *EntityDamage {
	return e
}

// DamageEvent is implemented by every entity damage event, including
// EntityDamageByEntity.
type DamageEvent interface {
	event.Cancellable
	DamageInfo() *EntityDamage
}

// EntityDamageByEntity is dispatched when an entity is damaged by another.
// Handlers bound to entity.damage also receive it.
type EntityDamageByEntity struct {
	EntityDamage `yaml:",inline"`

	// Damager identifies the attacking entity.
	Damager string `yaml:"damager" json:"damager"`
}

// NewEntityDamageByEntity creates an entity-on-entity damage event.
func NewEntityDamageByEntity(entity, damager string, damage float64) *EntityDamageByEntity {
	return &EntityDamageByEntity{
		EntityDamage: EntityDamage{
			Base:   event.NewBase(TypeEntityDamageByEntity, damager),
			Entity: entity,
			Cause:  DamageCauseAttack,
			Damage: damage,
		},
		Damager: damager,
	}
}
