package sched

import (
	"github.com/sbl8/nnsched/ir"
	"github.com/sbl8/nnsched/opcode"
)

// assignAllocations is the final per-output-port pass that writes shape,
// row-major strides, and a concrete start byte for every value in the
// graph, using the parent's shape for strides except for bitcast (which
// deliberately reinterprets with its own shape).
func assignAllocations(ctx *context) *Error {
	for _, n := range ctx.graph.Nodes {
		for portIdx := 0; portIdx < n.NumOutputs(); portIdx++ {
			port := ir.Port{Node: n.ID, Index: portIdx}
			b := ctx.buffer(port)
			if b == nil {
				continue
			}
			if b.Physical == nil {
				return invariantViolation("logical buffer %d (node %q) has no physical buffer assigned", b.ID, n.Name)
			}

			alloc := BufferAllocation{
				Location: b.Physical.Location,
				DType:    b.DType,
				Shape:    b.Shape,
				Size:     opcode.Bytes(b.DType, b.Shape),
			}

			hasParent := b.Parent != nil
			if hasParent && n.Op != opcode.OpBitcast {
				alloc.ParentShape = b.Root().Shape
			} else {
				alloc.ParentShape = b.Shape
			}
			alloc.Strides = opcode.Strides(alloc.ParentShape)

			start := b.Physical.Start
			if hasParent {
				start += b.DType.Size() * dot(alloc.Strides, b.Parent.Begin)
			}
			alloc.Start = start

			ctx.allocations[port] = alloc
		}
	}
	return nil
}

func dot(strides, begin []int) int {
	n := len(strides)
	if len(begin) < n {
		n = len(begin)
	}
	sum := 0
	for i := 0; i < n; i++ {
		sum += strides[i] * begin[i]
	}
	return sum
}
