// Package ir defines the lowered computation graph the scheduler operates
// on: nodes with fixed-order input ports, a closed opcode, and a set of
// output ports each carrying a shape and datatype. It is the scheduler's
// analogue of sublation's model.Graph, generalized from a flat payload-
// offset node list into a proper producer/consumer port graph.
package ir

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/sbl8/nnsched/opcode"
)

// ModuleRef identifies the main graph or one of its subgraphs by position,
// used by sched.Result to report traversal order as an ordered list of
// module references.
type ModuleRef int

// NodeID is a stable index into Graph.Nodes. Node storage never reshuffles
// once a graph is built, so a NodeID remains valid for the graph's lifetime.
type NodeID int

// Port references one output port of a producer node.
type Port struct {
	Node  NodeID
	Index int
}

// Node is a single operation in the graph. Inputs lists producer ports in
// the node's fixed argument order; Shapes/DTypes describe each of the
// node's own output ports.
type Node struct {
	ID     NodeID
	Name   string
	Op     opcode.OpCode
	Inputs []Port
	Shapes [][]int
	DTypes []opcode.DType
	// Locations holds each output port's preferred memory location.
	// Callers building a Node must size this to len(Shapes); there is no
	// implicit default, since MemoryLocation's zero value is Input, not
	// the "data" default the scheduler falls back to.
	Locations []MemoryLocation
	Attrs     map[string]any
}

// NumOutputs returns how many output ports Node exposes.
func (n *Node) NumOutputs() int { return len(n.Shapes) }

// Subgraph is a nested graph reachable from a control-flow node (e.g. an
// RNN body), scheduled independently from its owner.
type Subgraph struct {
	Owner NodeID
	Graph *Graph
}

// Graph is an immutable, arena-stored computation graph: nodes are held in
// a slice indexed by NodeID, and edges are Port references rather than
// pointers, so the graph can be serialized and walked without chasing
// pointer chains.
type Graph struct {
	ModuleType string
	Nodes      []*Node
	Outputs    []NodeID // sink nodes the scheduler traverses from
	Subgraphs  []Subgraph
}

// Node looks up a node by id. Panics on an out-of-range id, since a Port
// referencing a nonexistent node is an invariant violation the caller
// should never construct.
func (g *Graph) Node(id NodeID) *Node {
	return g.Nodes[id]
}

// AddNode appends n to the graph, assigning it the next NodeID.
func (g *Graph) AddNode(n *Node) NodeID {
	n.ID = NodeID(len(g.Nodes))
	g.Nodes = append(g.Nodes, n)
	return n.ID
}

// Validate checks structural consistency: no duplicate ids, every input
// port refers to an existing node and one of its actual output ports, and
// the outputs list is non-empty and refers to existing nodes.
func (g *Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return fmt.Errorf("ir: graph has no nodes")
	}
	for i, n := range g.Nodes {
		if n == nil {
			return fmt.Errorf("ir: nil node at index %d", i)
		}
		if int(n.ID) != i {
			return fmt.Errorf("ir: node %q has id %d at index %d", n.Name, n.ID, i)
		}
		for _, in := range n.Inputs {
			if int(in.Node) < 0 || int(in.Node) >= len(g.Nodes) {
				return fmt.Errorf("ir: node %q references nonexistent node %d", n.Name, in.Node)
			}
			producer := g.Nodes[in.Node]
			if in.Index < 0 || in.Index >= producer.NumOutputs() {
				return fmt.Errorf("ir: node %q references out-of-range port %d of node %q", n.Name, in.Index, producer.Name)
			}
		}
		if len(n.Locations) != len(n.Shapes) {
			return fmt.Errorf("ir: node %q has %d output shapes but %d declared locations", n.Name, len(n.Shapes), len(n.Locations))
		}
		if len(n.DTypes) != len(n.Shapes) {
			return fmt.Errorf("ir: node %q has %d output shapes but %d dtypes", n.Name, len(n.Shapes), len(n.DTypes))
		}
	}
	if len(g.Outputs) == 0 {
		return fmt.Errorf("ir: graph has no output nodes")
	}
	for _, id := range g.Outputs {
		if int(id) < 0 || int(id) >= len(g.Nodes) {
			return fmt.Errorf("ir: output references nonexistent node %d", id)
		}
	}
	return detectCycles(g)
}

// detectCycles runs Kahn's algorithm over the producer/consumer port edges
// to confirm the graph is acyclic, grounded on compiler.detectCycles.
func detectCycles(g *Graph) error {
	adj := make(map[NodeID][]NodeID, len(g.Nodes))
	inDegree := make(map[NodeID]int, len(g.Nodes))
	for _, n := range g.Nodes {
		inDegree[n.ID] = 0
	}
	for _, n := range g.Nodes {
		for _, in := range n.Inputs {
			adj[in.Node] = append(adj[in.Node], n.ID)
			inDegree[n.ID]++
		}
	}

	queue := make([]NodeID, 0, len(g.Nodes))
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		processed++

		for _, next := range adj[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if processed != len(g.Nodes) {
		return fmt.Errorf("ir: cycle detected in graph")
	}
	return nil
}

// Serialize encodes the graph with gob, the same fallback format
// model.Graph offers alongside its fixed binary layout; ir.Graph carries
// variable-length shapes and a generic attribute map per node, which do not
// fit a fixed-size binary record as cleanly, so gob is the graph's only
// wire format here.
func (g *Graph) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(g); err != nil {
		return nil, fmt.Errorf("ir: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a graph previously written by Serialize.
func Deserialize(data []byte) (*Graph, error) {
	var g Graph
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return nil, fmt.Errorf("ir: deserialize: %w", err)
	}
	return &g, nil
}
