// Package bus holds the directed connections that carry power between
// component ports, and the component graph they form.
package bus

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/powersim/internal/pkg/asset"
)

// ErrInvalidReference reports a connection whose endpoint does not resolve to
// a port of the expected direction.
var ErrInvalidReference = errors.New("invalid reference")

// Connection is a directed edge from an OUTPUT port to an INPUT port. Active
// is derived each tick; Damaged is set by the operator and forces the edge
// non-conductive.
type Connection struct {
	ID              string `json:"id"`
	FromComponentID string `json:"fromComponentId"`
	FromPortID      string `json:"fromPortId"`
	ToComponentID   string `json:"toComponentId"`
	ToPortID        string `json:"toPortId"`
	Active          bool   `json:"active"`
	Damaged         bool   `json:"damaged"`
}

// NewConnection builds an inactive, undamaged connection. An empty id is
// replaced with a generated one.
func NewConnection(id, fromComponent, fromPort, toComponent, toPort string) Connection {
	if id == "" {
		id = uuid.NewString()
	}
	return Connection{
		ID:              id,
		FromComponentID: fromComponent,
		FromPortID:      fromPort,
		ToComponentID:   toComponent,
		ToPortID:        toPort,
	}
}

// Lookup resolves a component by id.
type Lookup func(id string) (asset.Component, bool)

// Validate checks that both endpoints exist with the right direction.
func (c Connection) Validate(lookup Lookup) error {
	if c.ID == "" {
		return fmt.Errorf("%w: connection with empty id", ErrInvalidReference)
	}
	from, ok := lookup(c.FromComponentID)
	if !ok {
		return fmt.Errorf("%w: connection %s: unknown source component %q", ErrInvalidReference, c.ID, c.FromComponentID)
	}
	if !from.HasPort(c.FromPortID, asset.Output) {
		return fmt.Errorf("%w: connection %s: %s has no output port %q", ErrInvalidReference, c.ID, from.ID, c.FromPortID)
	}
	to, ok := lookup(c.ToComponentID)
	if !ok {
		return fmt.Errorf("%w: connection %s: unknown destination component %q", ErrInvalidReference, c.ID, c.ToComponentID)
	}
	if !to.HasPort(c.ToPortID, asset.Input) {
		return fmt.Errorf("%w: connection %s: %s has no input port %q", ErrInvalidReference, c.ID, to.ID, c.ToPortID)
	}
	return nil
}

// References reports whether the connection touches the component.
func (c Connection) References(componentID string) bool {
	return c.FromComponentID == componentID || c.ToComponentID == componentID
}

// Endpoint identifies a single port in the network.
type Endpoint struct {
	ComponentID string
	PortID      string
}

// From returns the source endpoint.
func (c Connection) From() Endpoint { return Endpoint{c.FromComponentID, c.FromPortID} }

// To returns the destination endpoint.
func (c Connection) To() Endpoint { return Endpoint{c.ToComponentID, c.ToPortID} }
