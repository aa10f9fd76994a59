// Package sim runs the tick-based propagation of power through the
// component graph and owns the simulation state.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ohowland/powersim/internal/pkg/asset"
	"github.com/ohowland/powersim/internal/pkg/bus"
	"github.com/ohowland/powersim/internal/pkg/metrics"
	"github.com/rs/zerolog"
)

// DefaultPasses is the number of relaxation sweeps per tick. Chains deeper
// than this lag by one tick per extra hop.
const DefaultPasses = 5

// DefaultTickMs is the nominal tick period.
const DefaultTickMs int64 = 20

// Ordering selects the sweep order of the connection list.
type Ordering string

const (
	// Stored sweeps connections in the order they were loaded or added.
	Stored Ordering = "stored"
	// Topological sweeps connections downstream of their sources when the
	// component graph is acyclic, and falls back to Stored otherwise.
	Topological Ordering = "topological"
)

var (
	// ErrNotFound is returned by edits that name an unknown component or
	// connection.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTopology is returned by LoadTopology for graphs that cannot
	// be simulated at all.
	ErrInvalidTopology = errors.New("invalid topology")
)

// Options configures an Engine.
type Options struct {
	Passes   int
	Ordering Ordering
	Logger   zerolog.Logger
}

// State is a committed simulation state. It never aliases engine memory.
type State struct {
	Tick        uint64            `json:"tick"`
	ClockMs     int64             `json:"clockMs"`
	GridDown    bool              `json:"gridDown"`
	Components  []asset.Component `json:"components"`
	Connections []bus.Connection  `json:"connections"`
	Metrics     metrics.Metrics   `json:"metrics"`
}

// Component returns the component with the given id.
func (s State) Component(id string) (asset.Component, bool) {
	for _, c := range s.Components {
		if c.ID == id {
			return c, true
		}
	}
	return asset.Component{}, false
}

// Connection returns the connection with the given id.
func (s State) Connection(id string) (bus.Connection, bool) {
	for _, c := range s.Connections {
		if c.ID == id {
			return c, true
		}
	}
	return bus.Connection{}, false
}

// Result is what a tick produced.
type Result struct {
	State  State
	Events []Event
}

// Engine is the single writer of the simulation state. Ticks and edits are
// serialized on one lock, so an edit always lands between two ticks.
type Engine struct {
	mux  sync.Mutex
	opts Options
	log  zerolog.Logger

	tick        uint64
	clockMs     int64
	gridDown    bool
	order       []string
	components  map[string]asset.Component
	connections []bus.Connection
	metrics     metrics.Metrics

	// derived from the topology by reindex
	valid    []bool
	incoming map[bus.Endpoint][]int
	sweep    []int
}

func New(opts Options) *Engine {
	if opts.Passes <= 0 {
		opts.Passes = DefaultPasses
	}
	if opts.Ordering == "" {
		opts.Ordering = Stored
	}
	e := &Engine{
		opts:       opts,
		log:        opts.Logger.With().Str("component", "engine").Logger(),
		components: make(map[string]asset.Component),
	}
	e.metrics = metrics.Aggregate(nil, false)
	return e
}

// LoadTopology replaces the whole graph and resets the clock. Connections
// that do not resolve are logged and stay inactive. A switch whose active
// input is not one of its input ports is logged and treated as having none.
func (e *Engine) LoadTopology(components []asset.Component, connections []bus.Connection, gridDown bool) error {
	order := make([]string, 0, len(components))
	byID := make(map[string]asset.Component, len(components))
	for _, c := range components {
		c = c.Clone()
		if _, dup := byID[c.ID]; dup {
			return fmt.Errorf("%w: duplicate component %q", ErrInvalidTopology, c.ID)
		}
		if c.ActiveInputID != "" && !c.HasPort(c.ActiveInputID, asset.Input) {
			e.log.Warn().Str("id", c.ID).Str("port", c.ActiveInputID).
				Err(bus.ErrInvalidReference).Msg("active input is not an input port")
			c.ActiveInputID = ""
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTopology, err)
		}
		order = append(order, c.ID)
		byID[c.ID] = c
	}

	conns := make([]bus.Connection, 0, len(connections))
	seen := make(map[string]bool, len(connections))
	for _, c := range connections {
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate connection %q", ErrInvalidTopology, c.ID)
		}
		seen[c.ID] = true
		conns = append(conns, c)
	}

	e.mux.Lock()
	defer e.mux.Unlock()
	e.tick = 0
	e.clockMs = 0
	e.gridDown = gridDown
	e.order = order
	e.components = byID
	e.connections = conns
	e.reindex()
	e.metrics = metrics.Aggregate(e.orderedComponents(), e.gridDown)
	e.log.Info().Int("components", len(order)).Int("connections", len(conns)).Msg("topology loaded")
	return nil
}

// reindex rebuilds the derived connection tables. Callers hold mux.
func (e *Engine) reindex() {
	e.valid = make([]bool, len(e.connections))
	e.incoming = make(map[bus.Endpoint][]int)
	for i, c := range e.connections {
		if err := c.Validate(e.lookup); err != nil {
			e.log.Warn().Err(err).Str("connection", c.ID).Msg("connection skipped")
			e.connections[i].Active = false
			continue
		}
		e.valid[i] = true
		e.incoming[c.To()] = append(e.incoming[c.To()], i)
	}

	e.sweep = make([]int, len(e.connections))
	for i := range e.sweep {
		e.sweep[i] = i
	}
	if e.opts.Ordering != Topological {
		return
	}
	sorted, err := bus.OrderConnections(e.order, e.connections)
	if err != nil {
		e.log.Debug().Err(err).Msg("falling back to stored connection order")
		return
	}
	index := make(map[string]int, len(e.connections))
	for i, c := range e.connections {
		index[c.ID] = i
	}
	for i, c := range sorted {
		e.sweep[i] = index[c.ID]
	}
}

func (e *Engine) lookup(id string) (asset.Component, bool) {
	c, ok := e.components[id]
	return c, ok
}

func (e *Engine) orderedComponents() []asset.Component {
	out := make([]asset.Component, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.components[id])
	}
	return out
}

// Tick advances the simulation by deltaMs and commits the result.
func (e *Engine) Tick(deltaMs int64) Result {
	e.mux.Lock()
	defer e.mux.Unlock()

	e.tick++
	e.clockMs += deltaMs
	env := asset.Env{TickMs: deltaMs, ClockMs: e.clockMs, GridDown: e.gridDown}

	prev := e.components
	cur := make(map[string]asset.Component, len(prev))
	for _, id := range e.order {
		c := prev[id].Clone()
		c.ResetPorts()
		cur[id] = c
	}

	// Sources first, then everything else once with dead inputs so that a
	// component no live connection reaches still registers the loss.
	for _, id := range e.order {
		if prev[id].IsSource() {
			cur[id] = asset.Evaluate(prev[id], cur[id].Ports, env)
		}
	}
	for _, id := range e.order {
		if !prev[id].IsSource() {
			cur[id] = asset.Evaluate(prev[id], cur[id].Ports, env)
		}
	}

	conns := make([]bus.Connection, len(e.connections))
	copy(conns, e.connections)
	for pass := 0; pass < e.opts.Passes; pass++ {
		for _, i := range e.sweep {
			conn := &conns[i]
			if !e.valid[i] || conn.Damaged {
				conn.Active = false
				continue
			}
			conn.Active = cur[conn.FromComponentID].Energized(conn.FromPortID)

			dst := cur[conn.ToComponentID]
			ports := make([]asset.Port, len(dst.Ports))
			copy(ports, dst.Ports)
			for p := range ports {
				if ports[p].ID == conn.ToPortID {
					ports[p].Energized = e.fed(conn.To(), conns, cur)
				}
			}
			cur[dst.ID] = asset.Evaluate(prev[dst.ID], ports, env)
		}
	}

	events := e.diff(prev, cur)
	e.components = cur
	e.connections = conns
	e.metrics = metrics.Aggregate(e.orderedComponents(), e.gridDown)
	for _, ev := range events {
		ev.log(e.log)
	}
	return Result{State: e.stateLocked(), Events: events}
}

// fed reports whether any undamaged connection into ep carries power.
func (e *Engine) fed(ep bus.Endpoint, conns []bus.Connection, cur map[string]asset.Component) bool {
	for _, i := range e.incoming[ep] {
		c := conns[i]
		if c.Damaged {
			continue
		}
		if cur[c.FromComponentID].Energized(c.FromPortID) {
			return true
		}
	}
	return false
}

// Snapshot returns a deep copy of the committed state.
func (e *Engine) Snapshot() State {
	e.mux.Lock()
	defer e.mux.Unlock()
	return e.stateLocked()
}

// Metrics returns the metrics of the last committed tick.
func (e *Engine) Metrics() metrics.Metrics {
	e.mux.Lock()
	defer e.mux.Unlock()
	return e.metrics
}

func (e *Engine) stateLocked() State {
	s := State{
		Tick:        e.tick,
		ClockMs:     e.clockMs,
		GridDown:    e.gridDown,
		Components:  make([]asset.Component, 0, len(e.order)),
		Connections: make([]bus.Connection, len(e.connections)),
		Metrics:     e.metrics,
	}
	for _, id := range e.order {
		s.Components = append(s.Components, e.components[id].Clone())
	}
	copy(s.Connections, e.connections)
	return s
}
