package ir

// Visit performs a deterministic post-order traversal of the graph starting
// from outputs, visiting each producer before any of its consumers and
// visiting a node's own inputs in fixed port order. Each node is visited
// exactly once. visit must not mutate the graph's structure; doing so
// during traversal is undefined.
func Visit(g *Graph, outputs []NodeID, visit func(*Node)) {
	visited := make([]bool, len(g.Nodes))
	var walk func(id NodeID)
	walk = func(id NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		n := g.Nodes[id]
		for _, in := range n.Inputs {
			walk(in.Node)
		}
		visit(n)
	}
	for _, id := range outputs {
		walk(id)
	}
}

// Consumers builds the reverse edge map from every output Port to the
// input Ports that consume it, materialized once per schedule rather
// than kept live on the port itself, since ir.Graph edges are plain Port
// values, not pointers.
func Consumers(g *Graph) map[Port][]Port {
	consumers := make(map[Port][]Port)
	for _, n := range g.Nodes {
		for portIdx, producer := range n.Inputs {
			consumer := Port{Node: n.ID, Index: portIdx}
			consumers[producer] = append(consumers[producer], consumer)
		}
	}
	return consumers
}
