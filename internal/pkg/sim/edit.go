package sim

import (
	"fmt"

	"github.com/ohowland/powersim/internal/pkg/asset"
	"github.com/ohowland/powersim/internal/pkg/bus"
	"github.com/ohowland/powersim/internal/pkg/metrics"
)

// editComponent applies fn to a copy of the component and commits the copy
// only if fn succeeds.
func (e *Engine) editComponent(id string, fn func(c *asset.Component) error) (asset.Component, error) {
	e.mux.Lock()
	defer e.mux.Unlock()
	c, ok := e.components[id]
	if !ok {
		return asset.Component{}, fmt.Errorf("component %q: %w", id, ErrNotFound)
	}
	c = c.Clone()
	if err := fn(&c); err != nil {
		return asset.Component{}, fmt.Errorf("component %q: %w", id, err)
	}
	e.components[id] = c
	return c.Clone(), nil
}

// SetFault sets or clears the user fault of a component.
func (e *Engine) SetFault(id string, faulty bool) (asset.Component, error) {
	return e.editComponent(id, func(c *asset.Component) error {
		c.Faulty = faulty
		return nil
	})
}

// ClearAlarm acknowledges a rack alarm.
func (e *Engine) ClearAlarm(id string) (asset.Component, error) {
	return e.editComponent(id, func(c *asset.Component) error {
		c.AlarmActive = false
		return nil
	})
}

// SetParameter edits one of the numeric parameters. Invalid values are
// rejected with asset.ErrInvalidParameter and the previous value retained.
func (e *Engine) SetParameter(id, field string, value float64) (asset.Component, error) {
	c, err := e.editComponent(id, func(c *asset.Component) error {
		return c.SetParameter(field, value)
	})
	if err == nil {
		e.log.Info().Str("id", id).Str("field", field).Float64("value", value).Msg("parameter set")
	}
	return c, err
}

// SetLabel renames a component.
func (e *Engine) SetLabel(id, label string) (asset.Component, error) {
	return e.editComponent(id, func(c *asset.Component) error {
		c.Label = label
		return nil
	})
}

// SetDamaged marks a connection damaged, which forces it non-conductive from
// the next tick on.
func (e *Engine) SetDamaged(id string, damaged bool) (bus.Connection, error) {
	e.mux.Lock()
	defer e.mux.Unlock()
	for i := range e.connections {
		if e.connections[i].ID != id {
			continue
		}
		e.connections[i].Damaged = damaged
		if damaged {
			e.connections[i].Active = false
		}
		return e.connections[i], nil
	}
	return bus.Connection{}, fmt.Errorf("connection %q: %w", id, ErrNotFound)
}

// SetGridDown fails or restores the utility grid.
func (e *Engine) SetGridDown(down bool) {
	e.mux.Lock()
	defer e.mux.Unlock()
	if e.gridDown != down {
		e.log.Info().Bool("gridDown", down).Msg("grid state changed")
	}
	e.gridDown = down
}

// GridDown reports the grid failure flag.
func (e *Engine) GridDown() bool {
	e.mux.Lock()
	defer e.mux.Unlock()
	return e.gridDown
}

// AddComponent creates a component from its archetype with a generated id.
func (e *Engine) AddComponent(kind asset.Kind, variant asset.Variant, label string) (asset.Component, error) {
	c, err := asset.New(kind, variant, "", label)
	if err != nil {
		return asset.Component{}, err
	}

	e.mux.Lock()
	defer e.mux.Unlock()
	e.order = append(e.order, c.ID)
	e.components[c.ID] = c
	e.metrics = metrics.Aggregate(e.orderedComponents(), e.gridDown)
	return c.Clone(), nil
}

// RemoveComponent deletes a component and every connection touching it.
func (e *Engine) RemoveComponent(id string) error {
	e.mux.Lock()
	defer e.mux.Unlock()
	if _, ok := e.components[id]; !ok {
		return fmt.Errorf("component %q: %w", id, ErrNotFound)
	}
	delete(e.components, id)
	for i, oid := range e.order {
		if oid == id {
			e.order = append(e.order[:i:i], e.order[i+1:]...)
			break
		}
	}
	kept := e.connections[:0:0]
	for _, c := range e.connections {
		if !c.References(id) {
			kept = append(kept, c)
		}
	}
	e.connections = kept
	e.reindex()
	e.metrics = metrics.Aggregate(e.orderedComponents(), e.gridDown)
	return nil
}

// AddConnection wires an output port to an input port. Both endpoints must
// exist with the right direction.
func (e *Engine) AddConnection(fromComponent, fromPort, toComponent, toPort string) (bus.Connection, error) {
	c := bus.NewConnection("", fromComponent, fromPort, toComponent, toPort)

	e.mux.Lock()
	defer e.mux.Unlock()
	if err := c.Validate(e.lookup); err != nil {
		return bus.Connection{}, err
	}
	e.connections = append(e.connections, c)
	e.reindex()
	return c, nil
}

// RemoveConnection deletes a connection.
func (e *Engine) RemoveConnection(id string) error {
	e.mux.Lock()
	defer e.mux.Unlock()
	for i, c := range e.connections {
		if c.ID == id {
			e.connections = append(e.connections[:i:i], e.connections[i+1:]...)
			e.reindex()
			return nil
		}
	}
	return fmt.Errorf("connection %q: %w", id, ErrNotFound)
}
