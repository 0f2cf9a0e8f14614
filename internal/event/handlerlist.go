package event

import (
	"slices"
	"sync/atomic"

	"github.com/dshills/yieldbus/internal/event/eventtype"
)

// HandlerList holds the registrations bound directly to one event type and a
// cached copy of the baked sequence for that type.
//
// The raw registrations are only touched under the owning Registry's lock.
// The baked sequence is published through an atomic pointer and is never
// modified after publication, so a dispatch holding it keeps a stable snapshot.
type HandlerList struct {
	tag   eventtype.Tag
	regs  []*Registration
	index map[*Registration]uint64 // registration -> sequence number
	baked atomic.Pointer[[]*Registration]
}

// newHandlerList creates an empty list for tag.
func newHandlerList(tag eventtype.Tag) *HandlerList {
	return &HandlerList{
		tag:   tag,
		index: make(map[*Registration]uint64),
	}
}

// Tag returns the event type of the list.
func (l *HandlerList) Tag() eventtype.Tag {
	return l.tag
}

// contains reports whether reg is present.
func (l *HandlerList) contains(reg *Registration) bool {
	_, ok := l.index[reg]
	return ok
}

// seqOf returns the sequence number reg was added with.
func (l *HandlerList) seqOf(reg *Registration) uint64 {
	return l.index[reg]
}

// add appends reg in registration order under sequence number seq.
func (l *HandlerList) add(reg *Registration, seq uint64) bool {
	if l.contains(reg) {
		return false
	}
	l.index[reg] = seq
	l.regs = append(l.regs, reg)
	return true
}

// remove drops reg, preserving the order of the others.
func (l *HandlerList) remove(reg *Registration) bool {
	if !l.contains(reg) {
		return false
	}
	delete(l.index, reg)
	l.regs = slices.DeleteFunc(l.regs, func(r *Registration) bool { return r == reg })
	return true
}

// removeIf drops every registration matching fn and returns how many were removed.
func (l *HandlerList) removeIf(fn func(*Registration) bool) int {
	before := len(l.regs)
	l.regs = slices.DeleteFunc(l.regs, func(r *Registration) bool {
		if fn(r) {
			delete(l.index, r)
			return true
		}
		return false
	})
	return before - len(l.regs)
}

// snapshot returns a copy of the raw registrations.
func (l *HandlerList) snapshot() []*Registration {
	return slices.Clone(l.regs)
}

// cached returns the baked sequence, or nil if absent.
func (l *HandlerList) cached() ([]*Registration, bool) {
	p := l.baked.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

// publish installs a freshly baked sequence.
func (l *HandlerList) publish(seq []*Registration) {
	l.baked.Store(&seq)
}

// invalidate drops the baked sequence.
func (l *HandlerList) invalidate() {
	l.baked.Store(nil)
}
