package bus

import (
	"errors"
	"fmt"
)

// ErrCycle is returned by TopologicalOrder when the graph is not acyclic.
var ErrCycle = errors.New("graph contains a cycle")

// Graph is a directed graph of component ids, kept as an adjacency list. Node
// insertion order is remembered so that every traversal is deterministic.
type Graph struct {
	order         []string
	adjacencyList map[string][]string
}

func NewGraph() Graph {
	return Graph{adjacencyList: make(map[string][]string)}
}

// FromConnections builds the component graph of a topology. Connections whose
// endpoints are not among ids are left out.
func FromConnections(ids []string, conns []Connection) Graph {
	g := NewGraph()
	for _, id := range ids {
		_ = g.AddNode(id)
	}
	for _, c := range conns {
		_ = g.AddDirectedEdge(c.FromComponentID, c.ToComponentID)
	}
	return g
}

func (g *Graph) AddNode(id string) error {
	if _, exists := g.adjacencyList[id]; exists {
		return fmt.Errorf("node %s already exists in graph", id)
	}
	g.adjacencyList[id] = make([]string, 0)
	g.order = append(g.order, id)
	return nil
}

func (g *Graph) AddDirectedEdge(from, to string) error {
	edges, exists := g.adjacencyList[from]
	if !exists {
		return fmt.Errorf("start node %s does not exist in graph", from)
	}
	if _, exists := g.adjacencyList[to]; !exists {
		return fmt.Errorf("end node %s does not exist in graph", to)
	}
	g.adjacencyList[from] = append(edges, to)
	return nil
}

func (g Graph) Edges(id string) []string {
	if edges, exists := g.adjacencyList[id]; exists {
		return edges
	}
	return make([]string, 0)
}

// TopologicalOrder returns every node after all of its predecessors. Ties are
// broken by insertion order.
func (g Graph) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		for _, to := range g.adjacencyList[id] {
			indegree[to]++
		}
	}

	queue := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(g.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)
		for _, to := range g.adjacencyList[id] {
			indegree[to]--
			if indegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	if len(sorted) != len(g.order) {
		return nil, ErrCycle
	}
	return sorted, nil
}

// OrderConnections sorts conns so that every connection out of a component
// comes after the connections into it. Connections keep their stored order
// within the same source component. On a cycle conns is returned unchanged
// together with ErrCycle.
func OrderConnections(ids []string, conns []Connection) ([]Connection, error) {
	order, err := FromConnections(ids, conns).TopologicalOrder()
	if err != nil {
		return conns, err
	}
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}

	sorted := make([]Connection, 0, len(conns))
	for _, id := range order {
		for _, c := range conns {
			if c.FromComponentID == id {
				sorted = append(sorted, c)
			}
		}
	}
	// dangling sources keep their place at the end
	for _, c := range conns {
		if _, ok := rank[c.FromComponentID]; !ok {
			sorted = append(sorted, c)
		}
	}
	return sorted, nil
}
