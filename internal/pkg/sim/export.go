package sim

import (
	"github.com/ohowland/powersim/internal/pkg/asset"
	"github.com/ohowland/powersim/internal/pkg/bus"
	"github.com/ohowland/powersim/internal/pkg/metrics"
	"github.com/ohowland/powersim/internal/pkg/snapshot"
)

// Export serializes the committed state, timers included.
func (e *Engine) Export() snapshot.Document {
	s := e.Snapshot()
	return snapshot.Document{
		Version:     snapshot.Version,
		Tick:        s.Tick,
		ClockMs:     s.ClockMs,
		GridDown:    s.GridDown,
		Components:  s.Components,
		Connections: s.Connections,
	}
}

// Import replaces the state with a snapshot. A document that fails
// validation leaves the engine untouched.
func (e *Engine) Import(d snapshot.Document) error {
	if err := d.Validate(); err != nil {
		return err
	}

	order := make([]string, 0, len(d.Components))
	byID := make(map[string]asset.Component, len(d.Components))
	for _, c := range d.Components {
		order = append(order, c.ID)
		byID[c.ID] = c.Clone()
	}
	conns := make([]bus.Connection, len(d.Connections))
	copy(conns, d.Connections)

	e.mux.Lock()
	defer e.mux.Unlock()
	e.tick = d.Tick
	e.clockMs = d.ClockMs
	e.gridDown = d.GridDown
	e.order = order
	e.components = byID
	e.connections = conns
	e.reindex()
	e.metrics = metrics.Aggregate(e.orderedComponents(), e.gridDown)
	e.log.Info().Uint64("tick", d.Tick).Int("components", len(order)).Msg("snapshot imported")
	return nil
}
