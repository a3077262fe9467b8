package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/nnsched/opcode"
)

func chainGraph() *Graph {
	g := &Graph{ModuleType: "main"}
	x := g.AddNode(&Node{Name: "x", Op: opcode.OpInput,
		Shapes: [][]int{{4}}, DTypes: []opcode.DType{opcode.Float32}, Locations: []MemoryLocation{Input}})
	y := g.AddNode(&Node{Name: "y", Op: opcode.OpReLU, Inputs: []Port{{Node: x, Index: 0}},
		Shapes: [][]int{{4}}, DTypes: []opcode.DType{opcode.Float32}, Locations: []MemoryLocation{Data}})
	out := g.AddNode(&Node{Name: "out", Op: opcode.OpOutput, Inputs: []Port{{Node: y, Index: 0}}})
	g.Outputs = []NodeID{out}
	return g
}

func TestGraphValidateAcceptsWellFormedGraph(t *testing.T) {
	g := chainGraph()
	require.NoError(t, g.Validate())
}

func TestGraphValidateRejectsDanglingInput(t *testing.T) {
	g := &Graph{ModuleType: "main"}
	n := g.AddNode(&Node{Name: "bad", Op: opcode.OpReLU, Inputs: []Port{{Node: 99, Index: 0}},
		Shapes: [][]int{{1}}, DTypes: []opcode.DType{opcode.Float32}, Locations: []MemoryLocation{Data}})
	g.Outputs = []NodeID{n}
	assert.Error(t, g.Validate())
}

func TestGraphValidateRejectsMismatchedLocationCount(t *testing.T) {
	g := &Graph{ModuleType: "main"}
	n := g.AddNode(&Node{Name: "bad", Op: opcode.OpInput,
		Shapes: [][]int{{1}}, DTypes: []opcode.DType{opcode.Float32}, Locations: nil})
	g.Outputs = []NodeID{n}
	assert.Error(t, g.Validate())
}

func TestGraphValidateRejectsCycle(t *testing.T) {
	g := &Graph{ModuleType: "main"}
	// a and b feed each other: a's real input port is patched after both
	// nodes exist, since AddNode doesn't allow forward references.
	a := g.AddNode(&Node{Name: "a", Op: opcode.OpReLU,
		Shapes: [][]int{{1}}, DTypes: []opcode.DType{opcode.Float32}, Locations: []MemoryLocation{Data}})
	b := g.AddNode(&Node{Name: "b", Op: opcode.OpReLU, Inputs: []Port{{Node: a, Index: 0}},
		Shapes: [][]int{{1}}, DTypes: []opcode.DType{opcode.Float32}, Locations: []MemoryLocation{Data}})
	g.Nodes[a].Inputs = []Port{{Node: b, Index: 0}}
	out := g.AddNode(&Node{Name: "out", Op: opcode.OpOutput, Inputs: []Port{{Node: b, Index: 0}}})
	g.Outputs = []NodeID{out}

	assert.Error(t, g.Validate())
}

func TestGraphValidateRejectsNoOutputs(t *testing.T) {
	g := &Graph{ModuleType: "main"}
	g.AddNode(&Node{Name: "x", Op: opcode.OpInput,
		Shapes: [][]int{{1}}, DTypes: []opcode.DType{opcode.Float32}, Locations: []MemoryLocation{Input}})
	assert.Error(t, g.Validate())
}

func TestVisitOrdersProducersBeforeConsumers(t *testing.T) {
	g := chainGraph()
	var order []string
	Visit(g, g.Outputs, func(n *Node) {
		order = append(order, n.Name)
	})
	assert.Equal(t, []string{"x", "y", "out"}, order)
}

func TestVisitVisitsEachNodeOnce(t *testing.T) {
	g := &Graph{ModuleType: "main"}
	x := g.AddNode(&Node{Name: "x", Op: opcode.OpInput,
		Shapes: [][]int{{1}}, DTypes: []opcode.DType{opcode.Float32}, Locations: []MemoryLocation{Input}})
	a := g.AddNode(&Node{Name: "a", Op: opcode.OpReLU, Inputs: []Port{{Node: x, Index: 0}},
		Shapes: [][]int{{1}}, DTypes: []opcode.DType{opcode.Float32}, Locations: []MemoryLocation{Data}})
	b := g.AddNode(&Node{Name: "b", Op: opcode.OpReLU, Inputs: []Port{{Node: x, Index: 0}},
		Shapes: [][]int{{1}}, DTypes: []opcode.DType{opcode.Float32}, Locations: []MemoryLocation{Data}})
	c := g.AddNode(&Node{Name: "c", Op: opcode.OpAdd, Inputs: []Port{{Node: a, Index: 0}, {Node: b, Index: 0}},
		Shapes: [][]int{{1}}, DTypes: []opcode.DType{opcode.Float32}, Locations: []MemoryLocation{Data}})
	out := g.AddNode(&Node{Name: "out", Op: opcode.OpOutput, Inputs: []Port{{Node: c, Index: 0}}})
	g.Outputs = []NodeID{out}

	visits := map[string]int{}
	Visit(g, g.Outputs, func(n *Node) { visits[n.Name]++ })

	for name, count := range visits {
		assert.Equalf(t, 1, count, "node %q visited %d times", name, count)
	}
	assert.Len(t, visits, 5)
}

func TestConsumersBuildsReverseEdgeMap(t *testing.T) {
	g := chainGraph()
	consumers := Consumers(g)
	xPort := Port{Node: 0, Index: 0}
	require.Contains(t, consumers, xPort)
	assert.Equal(t, []Port{{Node: 1, Index: 0}}, consumers[xPort])
}

func TestGraphSerializeRoundTrips(t *testing.T) {
	g := chainGraph()
	data, err := g.Serialize()
	require.NoError(t, err)

	decoded, err := Deserialize(data)
	require.NoError(t, err)
	require.Len(t, decoded.Nodes, len(g.Nodes))
	for i, n := range g.Nodes {
		assert.Equal(t, n.Name, decoded.Nodes[i].Name)
		assert.Equal(t, n.Op, decoded.Nodes[i].Op)
		assert.Equal(t, n.Shapes, decoded.Nodes[i].Shapes)
	}
}
