package sched

import (
	"github.com/sbl8/nnsched/ir"
	"github.com/sbl8/nnsched/opcode"
)

// analyzeAliases rewrites bitcast and concat nodes into views where the
// rule fires, clearing their action flag and (for bitcast) assigning a
// parent directly. Concat's own parent assignment is deferred to
// fixConcatIndices; this pass only decides whether a concat qualifies as
// a view at all.
func analyzeAliases(ctx *context) *Error {
	var failure *Error
	ir.Visit(ctx.graph, ctx.outputs, func(n *ir.Node) {
		if failure != nil {
			return
		}
		switch n.Op {
		case opcode.OpBitcast:
			failure = aliasBitcast(ctx, n)
		case opcode.OpConcat:
			failure = aliasConcat(ctx, n)
		}
	})
	return failure
}

// aliasBitcast turns a bitcast node into a zero-copy view of its input
// buffer when doing so is safe, including the input/rdata → output
// copy-safety guard: a bitcast that would otherwise need to expose an
// input or read-only-data buffer directly as an output must stay a real
// copy rather than an alias. Promotion targets the chain's current
// structural root (trueRoot), not the immediate input buffer, since a
// chained bitcast's immediate input is itself already a view — the
// physical buffer that will eventually exist is the root's, so that's
// what must end up in `output` memory so a chain of bitcasts collapses
// onto a single output-location buffer.
func aliasBitcast(ctx *context, n *ir.Node) *Error {
	if len(n.Inputs) != 1 {
		return invariantViolation("bitcast node %q must have exactly one input, has %d", n.Name, len(n.Inputs))
	}
	in := ctx.buffer(n.Inputs[0])
	out := ctx.buffer(ir.Port{Node: n.ID, Index: 0})
	if in == nil || out == nil {
		return invariantViolation("bitcast node %q missing logical buffers", n.Name)
	}

	if out.Location == ir.Output && in.Location == ir.Data {
		trueRoot(in).Location = ir.Output
	}

	if (in.Location == ir.Input || in.Location == ir.RData) && out.Location == ir.Output {
		// Must remain an explicit copy; the node stays an action node.
		return nil
	}

	ctx.setParent(out, in, make([]int, len(in.Shape)))
	ctx.action[n.ID] = false
	return nil
}

// trueRoot walks a possibly-unflattened parent chain to its end. Used only
// during alias analysis, before fixLifetimes has flattened every chain to
// one hop — LogicalBuffer.Root() assumes that invariant already holds and
// is only valid for stages that run after it.
func trueRoot(b *LogicalBuffer) *LogicalBuffer {
	for b.Parent != nil {
		b = b.Parent.Parent
	}
	return b
}

// aliasConcat decides whether a concat node can be rewritten into views
// over its output buffer instead of a real copy. When it fires, the node
// is marked non-executing; its parent descriptors are assigned later by
// fixConcatIndices.
func aliasConcat(ctx *context, n *ir.Node) *Error {
	attrs, err := concatAttrs(n)
	if err != nil {
		return unsupportedConfig("concat node %q: %v", n.Name, err)
	}

	if len(n.Inputs) == 0 {
		return invariantViolation("concat node %q has no inputs", n.Name)
	}
	first := ctx.buffer(n.Inputs[0])
	if first == nil {
		return invariantViolation("concat node %q missing input buffer", n.Name)
	}

	// Condition 1: axis 0, or every leading dimension is 1 (contiguous
	// in row-major layout).
	contiguous := attrs.Axis == 0
	if !contiguous {
		contiguous = true
		for d := 0; d < attrs.Axis && d < len(first.Shape); d++ {
			if first.Shape[d] != 1 {
				contiguous = false
				break
			}
		}
	}
	if !contiguous {
		return nil
	}

	// Condition 2: no input's producer is a slice, and no input buffer
	// lives in input/rdata memory.
	for _, in := range n.Inputs {
		producer := ctx.graph.Node(in.Node)
		if producer.Op == opcode.OpSlice {
			return nil
		}
		buf := ctx.buffer(in)
		if buf == nil {
			return invariantViolation("concat node %q missing input buffer for port %d", n.Name, in.Index)
		}
		if buf.Location == ir.Input || buf.Location == ir.RData {
			return nil
		}
	}

	// Condition 3: strictly fewer than two of the output's consumers are
	// themselves concat nodes.
	out := ir.Port{Node: n.ID, Index: 0}
	concatConsumers := 0
	for _, c := range ctx.consumers[out] {
		if ctx.graph.Node(c.Node).Op == opcode.OpConcat {
			concatConsumers++
		}
	}
	if concatConsumers >= 2 {
		return nil
	}

	ctx.action[n.ID] = false
	return nil
}
