// Package eventtype provides event type tags and the explicit type hierarchy
// the event bus resolves handlers against.
//
// # Tags
//
// A Tag names one node of the hierarchy using dot notation:
//
//	block
//	block.break
//	entity.damage.by_entity
//
// The dots are naming only. Parentage is never inferred from the name; it is
// declared when the tag is defined.
//
// # Hierarchy
//
// A node may have any number of parents, which lets a tag act both as a
// "class" (block.break is a block event) and as an "interface" (block.break is
// cancellable):
//
//	h := eventtype.NewHierarchy()
//	h.MustDefine("event")
//	h.MustDefine("cancellable")
//	h.MustDefine("block", "event")
//	h.MustDefine("block.break", "block", "cancellable")
//
//	h.Ancestors("block.break")
//	// [{block.break 0} {block 1} {cancellable 1} {event 2}]
//
// Parents must already be defined, so the graph can never contain a cycle.
package eventtype
