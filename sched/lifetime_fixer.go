package sched

// fixLifetimes flattens any remaining multi-hop parent chains, then unions
// every child's lifetime into its root's. Concat links are already
// flattened by fixConcatIndices, so every chain left here starts with a
// bitcast link; the link above it may be another bitcast or a concat
// input's link into its concat (e.g. a bitcast of a concat input).
//
// A bitcast link's begin vector is always the zero vector (a bitcast view
// never offsets into its parent), so adding it to the grandparent's begin
// leaves that begin unchanged, and addVec's zero-padding across mismatched
// ranks adds nothing even though bitcast can change rank.
func fixLifetimes(ctx *context) *Error {
	// A well-formed parent chain has at most len(ctx.bufferList) distinct
	// links; visiting more roots than that while climbing means the chain
	// loops back on itself instead of terminating at a root buffer.
	maxClimbs := len(ctx.bufferList)

	for _, b := range ctx.bufferList {
		if b.Parent == nil {
			continue
		}
		seen := map[*LogicalBuffer]bool{b: true}
		for climbs := 0; b.Parent.Parent.Parent != nil; climbs++ {
			if climbs >= maxClimbs || seen[b.Parent.Parent] {
				return invariantViolation("cyclic alias chain rooted near buffer %d (node %d)", b.ID, b.NodeID)
			}
			seen[b.Parent.Parent] = true
			grandparent := b.Parent.Parent.Parent
			ctx.setParent(b, grandparent.Parent, addVec(b.Parent.Begin, grandparent.Begin))
		}
	}

	for _, b := range ctx.bufferList {
		if b.Parent == nil {
			continue
		}
		root := b.Parent.Parent
		if b.Lifetime.Birth < root.Lifetime.Birth {
			root.Lifetime.Age += root.Lifetime.Birth - b.Lifetime.Birth
			root.Lifetime.Birth = b.Lifetime.Birth
		}
		if end := b.Lifetime.End(); end > root.Lifetime.End() {
			root.Lifetime.Age = end - root.Lifetime.Birth
		}
	}
	return nil
}
