package sched

import "github.com/sbl8/nnsched/opcode"

// buildPhysicalBuffers gives every root logical buffer a fresh physical
// buffer inheriting its lifetime and location; every buffer, root or
// child, gets a back-pointer to that root's physical buffer.
func buildPhysicalBuffers(ctx *context) *Error {
	for _, b := range ctx.bufferList {
		if b.Parent != nil {
			continue
		}
		phys := &PhysicalBuffer{
			ID:       len(ctx.physical),
			Owner:    b,
			Location: b.Location,
			Lifetime: b.Lifetime,
			Size:     opcode.Bytes(b.DType, b.Shape),
		}
		ctx.physical = append(ctx.physical, phys)
		b.Physical = phys
	}

	for _, b := range ctx.bufferList {
		root := b.Root()
		if root.Physical == nil {
			return invariantViolation("logical buffer %d has no physical root", b.ID)
		}
		b.Physical = root.Physical
	}
	return nil
}
