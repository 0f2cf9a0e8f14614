package event

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dshills/yieldbus/internal/event/eventtype"
)

// Registry manages handler lists for every event type of a hierarchy.
// It is thread-safe for concurrent access.
//
// Mutations hold the write lock and invalidate the baked sequence of the
// mutated type and all of its descendants. Baking holds the read lock, so it
// can never interleave with a mutation and always publishes a sequence
// consistent with the raw registrations.
type Registry struct {
	mu        sync.RWMutex
	hierarchy *eventtype.Hierarchy
	lists     map[eventtype.Tag]*HandlerList
	seq       uint64
	count     int

	bakes atomic.Uint64
}

// NewRegistry creates a registry over the given hierarchy.
func NewRegistry(h *eventtype.Hierarchy) *Registry {
	if h == nil {
		h = eventtype.NewHierarchy()
	}
	return &Registry{
		hierarchy: h,
		lists:     make(map[eventtype.Tag]*HandlerList),
	}
}

// Hierarchy returns the type hierarchy the registry resolves against.
func (r *Registry) Hierarchy() *eventtype.Hierarchy {
	return r.hierarchy
}

// Register adds a registration to the list of its event type.
func (r *Registry) Register(reg *Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(reg)
}

// RegisterOwned adds every registration in regs, assigning owner to those
// that have none. Either all of them are added or none is, and owners assigned
// by a failed call are cleared again.
func (r *Registry) RegisterOwned(owner Owner, regs []*Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var added, adopted []*Registration
	for _, reg := range regs {
		if owner != nil && reg != nil && reg.config.Owner == nil {
			reg.config.Owner = owner
			adopted = append(adopted, reg)
		}
		if err := r.registerLocked(reg); err != nil {
			for _, a := range added {
				r.unregisterLocked(a)
			}
			for _, a := range adopted {
				a.config.Owner = nil
			}
			return err
		}
		added = append(added, reg)
	}
	return nil
}

// registerLocked validates and adds reg. Caller must hold the write lock.
func (r *Registry) registerLocked(reg *Registration) error {
	if reg == nil || reg.handler == nil {
		return ErrNilHandler
	}
	if !reg.config.Priority.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, int(reg.config.Priority))
	}
	if !r.hierarchy.Has(reg.tag) {
		return fmt.Errorf("%w: %s", ErrUnknownEventType, reg.tag)
	}

	list := r.listLocked(reg.tag)
	if list.contains(reg) {
		return fmt.Errorf("%w: %s on %s", ErrDuplicateRegistration, reg.Name(), reg.tag)
	}

	r.seq++
	list.add(reg, r.seq)
	r.count++
	r.invalidateLocked(reg.tag)
	return nil
}

// Unregister removes a registration.
func (r *Registry) Unregister(reg *Registration) error {
	if reg == nil {
		return ErrNotRegistered
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.unregisterLocked(reg) {
		return fmt.Errorf("%w: %s on %s", ErrNotRegistered, reg.Name(), reg.tag)
	}
	return nil
}

// unregisterLocked removes reg if present. Caller must hold the write lock.
func (r *Registry) unregisterLocked(reg *Registration) bool {
	list, ok := r.lists[reg.tag]
	if !ok || !list.remove(reg) {
		return false
	}
	r.count--
	r.invalidateLocked(reg.tag)
	return true
}

// UnregisterOwner removes every registration belonging to owner.
// Returns the number of registrations removed.
func (r *Registry) UnregisterOwner(owner Owner) int {
	if owner == nil {
		return 0
	}
	return r.removeWhere(func(reg *Registration) bool {
		return reg.config.Owner == owner
	})
}

// UnregisterAll removes every registration.
func (r *Registry) UnregisterAll() int {
	return r.removeWhere(func(*Registration) bool { return true })
}

// Sweep removes registrations whose owner is no longer enabled.
func (r *Registry) Sweep() int {
	return r.removeWhere(func(reg *Registration) bool { return !reg.IsLive() })
}

// removeWhere removes matching registrations from every list.
func (r *Registry) removeWhere(fn func(*Registration) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for tag, list := range r.lists {
		if n := list.removeIf(fn); n > 0 {
			removed += n
			r.invalidateLocked(tag)
		}
	}
	r.count -= removed
	return removed
}

// Resolve returns the baked handler sequence for a concrete event type,
// computing and caching it if absent.
//
// The returned slice must not be modified. It stays valid, and unchanged,
// after later mutations of the registry.
func (r *Registry) Resolve(tag eventtype.Tag) ([]*Registration, error) {
	r.mu.RLock()
	if list, ok := r.lists[tag]; ok {
		if seq, ok := list.cached(); ok {
			r.mu.RUnlock()
			return seq, nil
		}
		seq := r.bakeLocked(tag)
		list.publish(seq)
		r.mu.RUnlock()
		return seq, nil
	}
	r.mu.RUnlock()

	if !r.hierarchy.Has(tag) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.listLocked(tag)
	if seq, ok := list.cached(); ok {
		return seq, nil
	}
	seq := r.bakeLocked(tag)
	list.publish(seq)
	return seq, nil
}

// bakeEntry is a registration annotated with its hierarchy depth and the
// sequence number this registry assigned it.
type bakeEntry struct {
	reg   *Registration
	depth int
	seq   uint64
}

// bakeLocked merges the registrations of tag and all its ancestors and sorts
// them by priority, then depth (most specific first), then registration order.
// Caller must hold r.mu (read or write).
func (r *Registry) bakeLocked(tag eventtype.Tag) []*Registration {
	r.bakes.Add(1)

	var entries []bakeEntry
	for _, level := range r.hierarchy.Ancestors(tag) {
		list, ok := r.lists[level.Tag]
		if !ok {
			continue
		}
		for _, reg := range list.regs {
			entries = append(entries, bakeEntry{reg: reg, depth: level.Depth, seq: list.seqOf(reg)})
		}
	}

	slices.SortFunc(entries, func(a, b bakeEntry) int {
		return cmp.Or(
			cmp.Compare(a.reg.config.Priority, b.reg.config.Priority),
			cmp.Compare(a.depth, b.depth),
			cmp.Compare(a.seq, b.seq),
		)
	})

	seq := make([]*Registration, len(entries))
	for i, e := range entries {
		seq[i] = e.reg
	}
	return seq
}

// invalidateLocked drops the bakes of tag and its descendants.
// Caller must hold the write lock.
func (r *Registry) invalidateLocked(tag eventtype.Tag) {
	for _, t := range r.hierarchy.Descendants(tag) {
		if list, ok := r.lists[t]; ok {
			list.invalidate()
		}
	}
}

// listLocked returns the list for tag, creating it if needed.
// Caller must hold the write lock.
func (r *Registry) listLocked(tag eventtype.Tag) *HandlerList {
	list, ok := r.lists[tag]
	if !ok {
		list = newHandlerList(tag)
		r.lists[tag] = list
	}
	return list
}

// IsRegistered reports whether reg is currently registered.
func (r *Registry) IsRegistered(reg *Registration) bool {
	if reg == nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	list, ok := r.lists[reg.tag]
	return ok && list.contains(reg)
}

// Count returns the total number of registrations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// CountByType returns the number of registrations bound directly to tag.
func (r *Registry) CountByType(tag eventtype.Tag) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list, ok := r.lists[tag]
	if !ok {
		return 0
	}
	return len(list.regs)
}

// ByType returns the registrations bound directly to tag, in registration order.
func (r *Registry) ByType(tag eventtype.Tag) []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list, ok := r.lists[tag]
	if !ok {
		return nil
	}
	return list.snapshot()
}

// ByOwner returns every registration belonging to owner.
func (r *Registry) ByOwner(owner Owner) []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []bakeEntry
	for _, list := range r.lists {
		for _, reg := range list.regs {
			if reg.config.Owner == owner {
				entries = append(entries, bakeEntry{reg: reg, seq: list.seqOf(reg)})
			}
		}
	}
	slices.SortFunc(entries, func(a, b bakeEntry) int { return cmp.Compare(a.seq, b.seq) })

	out := make([]*Registration, len(entries))
	for i, e := range entries {
		out[i] = e.reg
	}
	return out
}

// Bakes returns how many handler sequences have been computed.
func (r *Registry) Bakes() uint64 {
	return r.bakes.Load()
}
