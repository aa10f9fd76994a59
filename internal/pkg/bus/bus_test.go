package bus

import (
	"errors"
	"testing"

	"github.com/ohowland/powersim/internal/pkg/asset"
	"gotest.tools/v3/assert"
)

func lookupOf(t *testing.T, cs ...asset.Component) Lookup {
	t.Helper()
	m := make(map[string]asset.Component)
	for _, c := range cs {
		m[c.ID] = c
	}
	return func(id string) (asset.Component, bool) {
		c, ok := m[id]
		return c, ok
	}
}

func mustNew(t *testing.T, kind asset.Kind, variant asset.Variant, id string) asset.Component {
	t.Helper()
	c, err := asset.New(kind, variant, id, "")
	assert.NilError(t, err)
	return c
}

func TestNewConnection(t *testing.T) {
	c := NewConnection("", "a", asset.PortOut, "b", asset.PortIn1)
	assert.Assert(t, c.ID != "")
	assert.Assert(t, !c.Active)
	assert.Assert(t, !c.Damaged)
	assert.Equal(t, c.From(), Endpoint{"a", asset.PortOut})
	assert.Equal(t, c.To(), Endpoint{"b", asset.PortIn1})
}

func TestValidateConnection(t *testing.T) {
	feed := mustNew(t, asset.GridFeed, asset.NoVariant, "tp1")
	rack := mustNew(t, asset.Rack, asset.Single, "rack1")
	lookup := lookupOf(t, feed, rack)

	ok := NewConnection("c1", "tp1", asset.PortOut, "rack1", asset.PortIn1)
	assert.NilError(t, ok.Validate(lookup))

	cases := []Connection{
		NewConnection("c2", "tp9", asset.PortOut, "rack1", asset.PortIn1),
		NewConnection("c3", "tp1", asset.PortIn1, "rack1", asset.PortIn1),
		NewConnection("c4", "tp1", asset.PortOut, "rack1", asset.PortIn2),
		NewConnection("c5", "rack1", asset.PortIn1, "tp1", asset.PortOut),
	}
	for _, c := range cases {
		err := c.Validate(lookup)
		assert.Assert(t, errors.Is(err, ErrInvalidReference), "connection %s", c.ID)
	}
}

func TestReferences(t *testing.T) {
	c := NewConnection("c1", "a", asset.PortOut, "b", asset.PortIn1)
	assert.Assert(t, c.References("a"))
	assert.Assert(t, c.References("b"))
	assert.Assert(t, !c.References("c"))
}
