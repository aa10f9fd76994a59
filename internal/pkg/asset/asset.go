// Package asset models the electrical components of the distribution network
// and the per-tick state machine each kind of component runs.
package asset

import (
	"errors"
	"fmt"
)

// Kind is the closed set of component types the engine knows how to evaluate.
type Kind string

// Component kinds.
const (
	GridFeed            Kind = "GRID_FEED"
	Generator           Kind = "GENERATOR"
	GeneratorController Kind = "GENERATOR_CONTROLLER"
	VoltageSwitch       Kind = "VOLTAGE_SWITCH"
	UPS                 Kind = "UPS"
	Rack                Kind = "RACK"
)

// Variant parameterizes a kind. VoltageSwitch variants differ only in their
// default transfer delay, Rack variants in their number of PSU inputs.
type Variant string

// Component variants.
const (
	NoVariant Variant = ""
	AVR       Variant = "AVR"
	ATS       Variant = "ATS"
	STS       Variant = "STS"
	Single    Variant = "SINGLE"
	Dual      Variant = "DUAL"
)

// State is the derived display state of a component.
type State string

// Display states.
const (
	Normal    State = "NORMAL"
	Warning   State = "WARNING"
	Fault     State = "FAULT"
	Off       State = "OFF"
	Starting  State = "STARTING"
	Running   State = "RUNNING"
	Rebooting State = "REBOOTING"
)

// Direction of a port.
type Direction string

// Port directions.
const (
	Input  Direction = "INPUT"
	Output Direction = "OUTPUT"
)

// Port ids used by the archetypes.
const (
	PortOut    = "out-1"
	PortIn1    = "in-1"
	PortIn2    = "in-2"
	PortStart  = "in-start"
	PortBypass = "in-bypass"
	PortPower  = "out-power"
)

var (
	// ErrInvalidParameter is returned when an edit would put a component into
	// an invalid configuration. The previous value is retained.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnknownKind is returned for kinds or variants without an archetype.
	ErrUnknownKind = errors.New("unknown component kind")

	// ErrInvalidComponent is returned by Validate.
	ErrInvalidComponent = errors.New("invalid component")
)

// Port is an electrical terminal owned by a component.
type Port struct {
	ID        string    `json:"id"`
	Direction Direction `json:"direction"`
	Label     string    `json:"label"`
	Energized bool      `json:"energized"`
}

// Component is a node of the power graph. Fields below Ports are only
// meaningful for the kinds that use them.
type Component struct {
	ID      string  `json:"id"`
	Kind    Kind    `json:"kind"`
	Variant Variant `json:"variant,omitempty"`
	Label   string  `json:"label"`
	Faulty  bool    `json:"faulty"`
	State   State   `json:"state"`
	Ports   []Port  `json:"ports"`

	CapacityKW         float64 `json:"capacityKw,omitempty"`
	LoadKW             float64 `json:"loadKw,omitempty"`
	BatteryPct         float64 `json:"batteryPct,omitempty"`
	TransferDelayMs    int64   `json:"transferDelayMs,omitempty"`
	SwitchingElapsedMs int64   `json:"switchingElapsedMs,omitempty"`
	ActiveInputID      string  `json:"activeInputId,omitempty"`
	MonitorElapsedMs   int64   `json:"monitorElapsedMs,omitempty"`
	StartElapsedMs     int64   `json:"startElapsedMs,omitempty"`
	GeneratorOn        bool    `json:"generatorOn,omitempty"`
	LastOutageAt       *int64  `json:"lastOutageAt,omitempty"`
	RebootElapsedMs    int64   `json:"rebootElapsedMs,omitempty"`
	RebootProgressPct  float64 `json:"rebootProgressPct,omitempty"`
	AlarmActive        bool    `json:"alarmActive,omitempty"`
}

// Clone returns a deep copy of the component.
func (c Component) Clone() Component {
	out := c
	out.Ports = make([]Port, len(c.Ports))
	copy(out.Ports, c.Ports)
	if c.LastOutageAt != nil {
		at := *c.LastOutageAt
		out.LastOutageAt = &at
	}
	return out
}

// Port returns a pointer to the port with the given id.
func (c *Component) Port(id string) (*Port, bool) {
	for i := range c.Ports {
		if c.Ports[i].ID == id {
			return &c.Ports[i], true
		}
	}
	return nil, false
}

// HasPort reports whether the component owns a port with the given id and direction.
func (c Component) HasPort(id string, dir Direction) bool {
	for _, p := range c.Ports {
		if p.ID == id {
			return p.Direction == dir
		}
	}
	return false
}

// Energized reports whether the port is energized. Missing ports read as dead.
func (c Component) Energized(id string) bool {
	for _, p := range c.Ports {
		if p.ID == id {
			return p.Energized
		}
	}
	return false
}

// AnyInputEnergized reports whether at least one INPUT port carries power.
func (c Component) AnyInputEnergized() bool {
	for _, p := range c.Ports {
		if p.Direction == Input && p.Energized {
			return true
		}
	}
	return false
}

// ResetPorts de-energizes every port.
func (c *Component) ResetPorts() {
	for i := range c.Ports {
		c.Ports[i].Energized = false
	}
}

func (c *Component) setOutput(id string, on bool) {
	if p, ok := c.Port(id); ok && p.Direction == Output {
		p.Energized = on
	}
}

func (c *Component) setAllOutputs(on bool) {
	for i := range c.Ports {
		if c.Ports[i].Direction == Output {
			c.Ports[i].Energized = on
		}
	}
}

// IsSource reports whether the component has no inputs and seeds propagation.
func (c Component) IsSource() bool {
	return c.Kind == GridFeed
}

// IsRack reports whether the component is a terminal load.
func (c Component) IsRack() bool {
	return c.Kind == Rack
}

// Validate checks the structural invariants of a component.
func (c Component) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidComponent)
	}
	if _, ok := archetypes[archetypeKey{c.Kind, c.Variant}]; !ok {
		return fmt.Errorf("%w: %s: %w %q/%q", ErrInvalidComponent, c.ID, ErrUnknownKind, c.Kind, c.Variant)
	}
	seen := make(map[string]bool, len(c.Ports))
	for _, p := range c.Ports {
		if p.ID == "" {
			return fmt.Errorf("%w: %s: port with empty id", ErrInvalidComponent, c.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: %s: duplicate port %q", ErrInvalidComponent, c.ID, p.ID)
		}
		if p.Direction != Input && p.Direction != Output {
			return fmt.Errorf("%w: %s: port %q has direction %q", ErrInvalidComponent, c.ID, p.ID, p.Direction)
		}
		seen[p.ID] = true
	}
	if c.ActiveInputID != "" && !c.HasPort(c.ActiveInputID, Input) {
		return fmt.Errorf("%w: %s: active input %q is not an input port", ErrInvalidComponent, c.ID, c.ActiveInputID)
	}
	if c.BatteryPct < 0 || c.BatteryPct > 100 {
		return fmt.Errorf("%w: %s: battery %v out of range", ErrInvalidComponent, c.ID, c.BatteryPct)
	}
	if c.RebootProgressPct < 0 || c.RebootProgressPct > 100 {
		return fmt.Errorf("%w: %s: reboot progress %v out of range", ErrInvalidComponent, c.ID, c.RebootProgressPct)
	}
	if c.CapacityKW < 0 || c.LoadKW < 0 || c.TransferDelayMs < 0 {
		return fmt.Errorf("%w: %s: negative parameter", ErrInvalidComponent, c.ID)
	}
	if c.SwitchingElapsedMs < 0 || c.MonitorElapsedMs < 0 || c.StartElapsedMs < 0 || c.RebootElapsedMs < 0 {
		return fmt.Errorf("%w: %s: negative timer", ErrInvalidComponent, c.ID)
	}
	switch c.State {
	case Normal, Warning, Fault, Off, Starting, Running, Rebooting:
	default:
		return fmt.Errorf("%w: %s: state %q", ErrInvalidComponent, c.ID, c.State)
	}
	return nil
}
