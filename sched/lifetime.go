package sched

import (
	"github.com/sbl8/nnsched/ir"
	"github.com/sbl8/nnsched/opcode"
)

// recordLifetimes runs a post-order walk that creates one logical buffer
// per output port on first sight, then ages every still-alive buffer by
// one tick per node visited, releasing buffers whose fanout has been
// fully consumed.
func recordLifetimes(ctx *context) *Error {
	var failure *Error
	ir.Visit(ctx.graph, ctx.outputs, func(n *ir.Node) {
		if failure != nil {
			return
		}
		for portIdx := 0; portIdx < n.NumOutputs(); portIdx++ {
			port := ir.Port{Node: n.ID, Index: portIdx}
			if _, exists := ctx.buffers[port]; exists {
				continue
			}
			buf := &LogicalBuffer{
				ID:        len(ctx.bufferList),
				NodeID:    int(n.ID),
				PortIndex: portIdx,
				DType:     n.DTypes[portIdx],
				Shape:     n.Shapes[portIdx],
				Location:  determineLocation(ctx, n, portIdx),
				Lifetime:  Lifetime{Birth: ctx.age, Age: 0},
				UsedCount: len(ctx.consumers[port]),
			}
			ctx.buffers[port] = buf
			ctx.bufferList = append(ctx.bufferList, buf)
		}

		ctx.age++
		for _, buf := range ctx.bufferList {
			if buf.UsedCount > 0 {
				buf.Lifetime.Age++
			}
		}

		for _, in := range n.Inputs {
			producer := ctx.buffers[in]
			if producer == nil {
				continue // constant/input ports with no prior producer buffer never occurs; defensive only
			}
			if producer.UsedCount <= 0 {
				failure = invariantViolation("release of already-dead buffer %d (node %q port %d)", producer.ID, n.Name, in.Index)
				return
			}
			producer.UsedCount--
		}
	})
	return failure
}

// determineLocation picks the memory location a freshly created buffer
// starts in: input and constant nodes are pinned to their source
// location, a buffer feeding an output node is promoted to output memory,
// and everything else keeps the node's declared preferred location.
func determineLocation(ctx *context, n *ir.Node, portIdx int) Location {
	switch n.Op {
	case opcode.OpInput:
		return ir.Input
	case opcode.OpConstant:
		return ir.RData
	}
	port := ir.Port{Node: n.ID, Index: portIdx}
	for _, consumer := range ctx.consumers[port] {
		if ctx.graph.Node(consumer.Node).Op == opcode.OpOutput {
			return ir.Output
		}
	}
	return n.Locations[portIdx]
}
