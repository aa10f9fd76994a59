// Package snapshot serializes the whole simulation state, timers included,
// so that a reloaded state continues exactly where the original left off.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ohowland/powersim/internal/pkg/asset"
	"github.com/ohowland/powersim/internal/pkg/bus"
)

// Version is written into every document.
const Version = 1

// ErrMalformedSnapshot reports a document that fails structural validation.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// Document is the serialized simulation state. Components keep their
// evaluation order.
type Document struct {
	Version     int               `json:"version"`
	Tick        uint64            `json:"tick"`
	ClockMs     int64             `json:"clockMs"`
	GridDown    bool              `json:"gridDown"`
	Components  []asset.Component `json:"components"`
	Connections []bus.Connection  `json:"connections"`
}

// Encode writes d as indented JSON.
func Encode(d Document) ([]byte, error) {
	d.Version = Version
	return json.MarshalIndent(d, "", "  ")
}

// Decode parses and validates a document. Unknown fields are rejected.
func Decode(data []byte) (Document, error) {
	var d Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if err := d.Validate(); err != nil {
		return Document{}, err
	}
	return d, nil
}

// Validate checks the document is self-consistent: a known version, unique
// ids, valid components and connections that resolve.
func (d Document) Validate() error {
	if d.Version != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrMalformedSnapshot, d.Version)
	}
	if d.ClockMs < 0 {
		return fmt.Errorf("%w: negative clock", ErrMalformedSnapshot)
	}

	byID := make(map[string]asset.Component, len(d.Components))
	for _, c := range d.Components {
		if _, dup := byID[c.ID]; dup {
			return fmt.Errorf("%w: duplicate component %q", ErrMalformedSnapshot, c.ID)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
		}
		byID[c.ID] = c
	}

	lookup := func(id string) (asset.Component, bool) {
		c, ok := byID[id]
		return c, ok
	}
	seen := make(map[string]bool, len(d.Connections))
	for _, conn := range d.Connections {
		if seen[conn.ID] {
			return fmt.Errorf("%w: duplicate connection %q", ErrMalformedSnapshot, conn.ID)
		}
		seen[conn.ID] = true
		if err := conn.Validate(lookup); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
		}
	}
	return nil
}
