package sched

import (
	"github.com/sbl8/nnsched/ir"
	"github.com/sbl8/nnsched/opcode"
)

// context holds the per-module scheduling state threaded through every
// scheduling pass. A fresh context is built for the main graph and for
// each subgraph; none of its state survives past one module, mirroring
// scheduler.cpp's schedule_context being stack-allocated per module.
type context struct {
	graph   *ir.Graph
	outputs []ir.NodeID

	buffers    map[ir.Port]*LogicalBuffer
	bufferList []*LogicalBuffer
	action     map[ir.NodeID]bool
	consumers  map[ir.Port][]ir.Port

	// childrenOf tracks, per buffer, the logical buffers that name it as
	// their parent. The concat index fixer and lifetime fixer both need to
	// retarget every descendant of a buffer when its own parent changes,
	// which the one-way Parent pointer alone can't answer.
	childrenOf map[*LogicalBuffer][]*LogicalBuffer

	// concatOffset[nodeID] holds, per input index, the begin offset along
	// the concat's axis computed while assigning that concat's own
	// parent descriptors — reused when a descendant concat climbs into
	// this node as its parent.
	concatOffset map[ir.NodeID][]int

	age int

	physical []*PhysicalBuffer

	sequence    []ir.NodeID
	allocations map[ir.Port]BufferAllocation
}

func newContext(g *ir.Graph) *context {
	ctx := &context{
		graph:        g,
		outputs:      g.Outputs,
		buffers:      make(map[ir.Port]*LogicalBuffer),
		action:       make(map[ir.NodeID]bool, len(g.Nodes)),
		consumers:    ir.Consumers(g),
		childrenOf:   make(map[*LogicalBuffer][]*LogicalBuffer),
		concatOffset: make(map[ir.NodeID][]int),
		allocations:  make(map[ir.Port]BufferAllocation),
	}
	for _, n := range g.Nodes {
		ctx.action[n.ID] = !isNonAction(n)
	}
	return ctx
}

func isNonAction(n *ir.Node) bool {
	switch n.Op {
	case opcode.OpInput, opcode.OpOutput, opcode.OpConstant:
		return true
	default:
		return false
	}
}

func (c *context) buffer(p ir.Port) *LogicalBuffer {
	return c.buffers[p]
}

// setParent records b's parent descriptor and keeps childrenOf in sync so
// later stages can enumerate b's descendants from either side of the link.
func (c *context) setParent(b *LogicalBuffer, parent *LogicalBuffer, begin []int) {
	if b.Parent != nil {
		old := b.Parent.Parent
		children := c.childrenOf[old]
		for i, ch := range children {
			if ch == b {
				c.childrenOf[old] = append(children[:i], children[i+1:]...)
				break
			}
		}
	}
	b.Parent = &ParentDescriptor{Parent: parent, Begin: begin}
	c.childrenOf[parent] = append(c.childrenOf[parent], b)
}
