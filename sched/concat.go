package sched

import (
	"github.com/sbl8/nnsched/ir"
	"github.com/sbl8/nnsched/opcode"
)

// fixConcatIndices assigns parent descriptors to every non-executing
// concat's inputs: first each input gets a descriptor pointing at its own
// concat (step 1), then the whole chain climbs to the outermost concat in
// its cluster, retargeting every already-recorded descendant along the
// way (step 2), so the end result is a one-hop parent chain rooted at the
// cluster's outermost output.
func fixConcatIndices(ctx *context) *Error {
	var concatNodes []*ir.Node
	for _, n := range ctx.graph.Nodes {
		if n.Op == opcode.OpConcat && !ctx.action[n.ID] {
			concatNodes = append(concatNodes, n)
		}
	}

	for _, c := range concatNodes {
		if err := initConcatOffsets(ctx, c); err != nil {
			return err
		}
	}
	for _, c := range concatNodes {
		if err := climbConcatChain(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// initConcatOffsets computes the running offset along C's axis and assigns
// each input a parent descriptor pointing directly at C's own output
// buffer, recording per-input begin offsets in ctx.concatOffset for later
// use by an ancestor concat's climb step.
func initConcatOffsets(ctx *context, c *ir.Node) *Error {
	attrs, err := concatAttrs(c)
	if err != nil {
		return unsupportedConfig("concat node %q: %v", c.Name, err)
	}
	out := ctx.buffer(ir.Port{Node: c.ID, Index: 0})
	if out == nil {
		return invariantViolation("concat node %q missing output buffer", c.Name)
	}

	offsets := make([]int, len(c.Inputs))
	running := 0
	for i, in := range c.Inputs {
		buf := ctx.buffer(in)
		if buf == nil {
			return invariantViolation("concat node %q missing input buffer for port %d", c.Name, in.Index)
		}
		offsets[i] = running
		begin := make([]int, len(out.Shape))
		if attrs.Axis >= len(begin) {
			return invariantViolation("concat node %q axis %d out of range for rank %d", c.Name, attrs.Axis, len(begin))
		}
		begin[attrs.Axis] = running
		if len(buf.Shape) != len(out.Shape) {
			return invariantViolation("concat node %q input %d has rank %d, output has rank %d", c.Name, i, len(buf.Shape), len(out.Shape))
		}
		for d := range out.Shape {
			if d == attrs.Axis {
				if begin[d]+buf.Shape[d] > out.Shape[d] {
					return invariantViolation("concat node %q input %d exceeds output extent along axis %d", c.Name, i, attrs.Axis)
				}
				continue
			}
			if buf.Shape[d] != out.Shape[d] {
				return invariantViolation("concat node %q input %d has extent %d on dimension %d, output has %d", c.Name, i, buf.Shape[d], d, out.Shape[d])
			}
		}
		ctx.setParent(buf, out, begin)
		running += buf.Shape[attrs.Axis]
	}
	ctx.concatOffset[c.ID] = offsets
	return nil
}

// climbConcatChain implements step 2: while C's output feeds a direct
// consumer that is also a non-executing concat, retarget C's own buffer
// (and every buffer already recorded against it) to point at that
// consumer's output instead, translating begin vectors along the way.
func climbConcatChain(ctx *context, c *ir.Node) *Error {
	for {
		cOut := ir.Port{Node: c.ID, Index: 0}
		cBuf := ctx.buffer(cOut)
		parent := findConcatConsumer(ctx, cOut)
		if parent == nil {
			return nil
		}
		k := indexOfInput(parent, cOut)
		if k < 0 {
			return invariantViolation("concat node %q not found among consumer %q's inputs", c.Name, parent.Name)
		}
		attrs, err := concatAttrs(parent)
		if err != nil {
			return unsupportedConfig("concat node %q: %v", parent.Name, err)
		}
		pBuf := ctx.buffer(ir.Port{Node: parent.ID, Index: 0})
		if pBuf == nil {
			return invariantViolation("concat node %q missing output buffer", parent.Name)
		}
		childBegin := make([]int, len(pBuf.Shape))
		childBegin[attrs.Axis] = ctx.concatOffset[parent.ID][k]

		retarget(ctx, cBuf, pBuf, childBegin)

		c = parent
	}
}

// retarget points buf and every buffer already recorded as a descendant of
// buf directly at newParent, translating each descendant's begin vector by
// childBegin so the chain stays exactly one hop deep.
func retarget(ctx *context, buf *LogicalBuffer, newParent *LogicalBuffer, childBegin []int) {
	descendants := ctx.childrenOf[buf]
	delete(ctx.childrenOf, buf)
	for _, child := range descendants {
		ctx.setParent(child, newParent, addVec(child.Parent.Begin, childBegin))
	}
	ctx.setParent(buf, newParent, childBegin)
}

func findConcatConsumer(ctx *context, out ir.Port) *ir.Node {
	for _, c := range ctx.consumers[out] {
		consumer := ctx.graph.Node(c.Node)
		if consumer.Op == opcode.OpConcat && !ctx.action[consumer.ID] {
			return consumer
		}
	}
	return nil
}

func indexOfInput(n *ir.Node, port ir.Port) int {
	for i, in := range n.Inputs {
		if in == port {
			return i
		}
	}
	return -1
}

func addVec(a, b []int) []int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		if i < len(a) {
			out[i] += a[i]
		}
		if i < len(b) {
			out[i] += b[i]
		}
	}
	return out
}
