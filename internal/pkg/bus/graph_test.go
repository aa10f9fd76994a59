package bus

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
)

func TestAddNode(t *testing.T) {
	g := NewGraph()
	assert.NilError(t, g.AddNode("a"))
	assert.ErrorContains(t, g.AddNode("a"), "already exists")
	assert.Equal(t, len(g.Edges("a")), 0)
}

func TestAddDirectedEdge(t *testing.T) {
	g := NewGraph()
	assert.NilError(t, g.AddNode("a"))
	assert.NilError(t, g.AddNode("b"))

	assert.NilError(t, g.AddDirectedEdge("a", "b"))
	assert.DeepEqual(t, g.Edges("a"), []string{"b"})
	assert.Equal(t, len(g.Edges("b")), 0)

	assert.ErrorContains(t, g.AddDirectedEdge("x", "b"), "start node")
	assert.ErrorContains(t, g.AddDirectedEdge("a", "x"), "end node")
}

func TestTopologicalOrder(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"rack", "sts", "ups", "feed"} {
		assert.NilError(t, g.AddNode(id))
	}
	assert.NilError(t, g.AddDirectedEdge("feed", "ups"))
	assert.NilError(t, g.AddDirectedEdge("ups", "sts"))
	assert.NilError(t, g.AddDirectedEdge("sts", "rack"))

	order, err := g.TopologicalOrder()
	assert.NilError(t, err)
	assert.DeepEqual(t, order, []string{"feed", "ups", "sts", "rack"})
}

func TestTopologicalOrderCycle(t *testing.T) {
	g := NewGraph()
	assert.NilError(t, g.AddNode("a"))
	assert.NilError(t, g.AddNode("b"))
	assert.NilError(t, g.AddDirectedEdge("a", "b"))
	assert.NilError(t, g.AddDirectedEdge("b", "a"))

	_, err := g.TopologicalOrder()
	assert.Assert(t, errors.Is(err, ErrCycle))
}

func TestOrderConnections(t *testing.T) {
	ids := []string{"rack", "sw", "feed"}
	conns := []Connection{
		NewConnection("c1", "sw", "out-1", "rack", "in-1"),
		NewConnection("c2", "feed", "out-1", "sw", "in-1"),
		NewConnection("c3", "ghost", "out-1", "sw", "in-2"),
	}

	sorted, err := OrderConnections(ids, conns)
	assert.NilError(t, err)
	got := make([]string, 0, len(sorted))
	for _, c := range sorted {
		got = append(got, c.ID)
	}
	assert.DeepEqual(t, got, []string{"c2", "c1", "c3"})
}

func TestOrderConnectionsCycleKeepsStoredOrder(t *testing.T) {
	ids := []string{"a", "b"}
	conns := []Connection{
		NewConnection("c1", "a", "out-1", "b", "in-1"),
		NewConnection("c2", "b", "out-1", "a", "in-1"),
	}

	sorted, err := OrderConnections(ids, conns)
	assert.Assert(t, errors.Is(err, ErrCycle))
	assert.DeepEqual(t, sorted, conns)
}
