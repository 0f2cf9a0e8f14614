package eventtype

import (
	"fmt"
	"slices"
	"sync"
)

// Level is an ancestor of a tag together with its distance from that tag.
// The tag itself is reported at depth 0.
type Level struct {
	Tag   Tag
	Depth int
}

// node is a single entry of the hierarchy.
type node struct {
	tag      Tag
	parents  []Tag
	children []Tag
	order    int
}

// Hierarchy is a closed registry of event type tags with explicit parent links.
// It is safe for concurrent use.
type Hierarchy struct {
	mu    sync.RWMutex
	nodes map[Tag]*node
}

// NewHierarchy creates an empty hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		nodes: make(map[Tag]*node),
	}
}

// Define adds a tag with the given parents.
// Every parent must already be defined. Defining an existing tag again with the
// same parents is a no-op; with different parents it fails with ErrAlreadyDefined.
func (h *Hierarchy) Define(tag Tag, parents ...Tag) error {
	if !tag.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.nodes[tag]; ok {
		if slices.Equal(existing.parents, dedupe(parents)) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrAlreadyDefined, tag)
	}

	parents = dedupe(parents)
	for _, p := range parents {
		if _, ok := h.nodes[p]; !ok {
			return fmt.Errorf("%w: parent %q of %q", ErrUnknownTag, p, tag)
		}
	}

	n := &node{
		tag:     tag,
		parents: parents,
		order:   len(h.nodes),
	}
	h.nodes[tag] = n
	for _, p := range parents {
		parent := h.nodes[p]
		parent.children = append(parent.children, tag)
	}
	return nil
}

// MustDefine is like Define but panics on error.
// Intended for package-level catalogue setup.
func (h *Hierarchy) MustDefine(tag Tag, parents ...Tag) {
	if err := h.Define(tag, parents...); err != nil {
		panic(err)
	}
}

// Has reports whether the tag is defined.
func (h *Hierarchy) Has(tag Tag) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.nodes[tag]
	return ok
}

// Parents returns the direct parents of a tag in declaration order.
func (h *Hierarchy) Parents(tag Tag) []Tag {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n, ok := h.nodes[tag]
	if !ok {
		return nil
	}
	return slices.Clone(n.parents)
}

// Ancestors returns the tag and every ancestor reachable through parent links.
// Each node appears once at its shortest distance. The result is ordered by
// depth, and within a depth by breadth-first discovery order, which follows
// parent declaration order.
func (h *Hierarchy) Ancestors(tag Tag) []Level {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.nodes[tag]; !ok {
		return nil
	}

	seen := map[Tag]bool{tag: true}
	levels := []Level{{Tag: tag, Depth: 0}}
	for i := 0; i < len(levels); i++ {
		cur := levels[i]
		for _, p := range h.nodes[cur.Tag].parents {
			if seen[p] {
				continue
			}
			seen[p] = true
			levels = append(levels, Level{Tag: p, Depth: cur.Depth + 1})
		}
	}
	return levels
}

// Descendants returns the tag and every tag that has it as an ancestor.
func (h *Hierarchy) Descendants(tag Tag) []Tag {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.nodes[tag]; !ok {
		return nil
	}

	seen := map[Tag]bool{tag: true}
	out := []Tag{tag}
	for i := 0; i < len(out); i++ {
		for _, c := range h.nodes[out[i]].children {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// IsA reports whether tag equals ancestor or descends from it.
func (h *Hierarchy) IsA(tag, ancestor Tag) bool {
	for _, l := range h.Ancestors(tag) {
		if l.Tag == ancestor {
			return true
		}
	}
	return false
}

// Tags returns all defined tags in definition order.
func (h *Hierarchy) Tags() []Tag {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Tag, len(h.nodes))
	for t, n := range h.nodes {
		out[n.order] = t
	}
	return out
}

// Len returns the number of defined tags.
func (h *Hierarchy) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

func dedupe(tags []Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
