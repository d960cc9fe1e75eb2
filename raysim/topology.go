package raysim

// The initial spanning tree is heap-shaped: node i hangs under node i/2,
// so nodes 2 and 3 are children of the root, 4 and 5 of node 2, and so
// on. Node 1 starts as the token holder. The tree is never stored
// explicitly; it is encoded by the initial holder pointers.

// parentOf returns the tree parent of id, or id itself for the root.
func parentOf(id NodeID) NodeID {
	if id <= 1 {
		return 1
	}
	return id / 2
}

// Edge is an unordered pair of node ids, normalized low-high.
type Edge [2]NodeID

// NewEdge builds a normalized edge between x and y.
func NewEdge(x, y NodeID) Edge {
	if x > y {
		x, y = y, x
	}
	return Edge{x, y}
}

// newTree creates n nodes with their initial holder pointers assigned.
func newTree(n int) map[NodeID]*Node {
	nodes := make(map[NodeID]*Node, n)
	for i := 1; i <= n; i++ {
		id := NodeID(i)
		node := newNode(id)
		node.holder = parentOf(id)
		nodes[id] = node
	}
	return nodes
}

// TreeEdges returns the undirected edge set of the initial spanning tree
// over n nodes. The token migrates across these edges; the set itself
// never changes for the duration of a run.
func TreeEdges(n int) map[Edge]struct{} {
	edges := make(map[Edge]struct{}, n-1)
	for i := 2; i <= n; i++ {
		id := NodeID(i)
		edges[NewEdge(id, parentOf(id))] = struct{}{}
	}
	return edges
}
