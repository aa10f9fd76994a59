package sim

import (
	"github.com/ohowland/powersim/internal/pkg/asset"
	"github.com/rs/zerolog"
)

// EventKind classifies a notable transition within a tick.
type EventKind string

const (
	RackReboot         EventKind = "RACK_REBOOT"
	RackRecovered      EventKind = "RACK_RECOVERED"
	GeneratorTriggered EventKind = "GENERATOR_TRIGGERED"
	GeneratorLatched   EventKind = "GENERATOR_LATCHED"
	SwitchTransfer     EventKind = "SWITCH_TRANSFER"
	BatteryDepleted    EventKind = "BATTERY_DEPLETED"
)

// Event is a transition observed between two committed ticks.
type Event struct {
	Tick        uint64    `json:"tick"`
	ClockMs     int64     `json:"clockMs"`
	Kind        EventKind `json:"kind"`
	ComponentID string    `json:"componentId"`
	Label       string    `json:"label"`
	Detail      string    `json:"detail,omitempty"`
}

// IsAlarm reports whether an operator should be told about the event.
func (ev Event) IsAlarm() bool {
	return ev.Kind == RackReboot || ev.Kind == BatteryDepleted
}

func (ev Event) log(l zerolog.Logger) {
	lvl := zerolog.DebugLevel
	if ev.IsAlarm() {
		lvl = zerolog.WarnLevel
	}
	l.WithLevel(lvl).
		Uint64("tick", ev.Tick).
		Str("id", ev.ComponentID).
		Str("detail", ev.Detail).
		Msg(string(ev.Kind))
}

// diff lists the transitions from prev to cur in component order. Callers
// hold mux.
func (e *Engine) diff(prev, cur map[string]asset.Component) []Event {
	var events []Event
	add := func(c asset.Component, kind EventKind, detail string) {
		events = append(events, Event{
			Tick:        e.tick,
			ClockMs:     e.clockMs,
			Kind:        kind,
			ComponentID: c.ID,
			Label:       c.Label,
			Detail:      detail,
		})
	}

	for _, id := range e.order {
		p, c := prev[id], cur[id]
		switch c.Kind {
		case asset.Rack:
			if c.State == asset.Rebooting && p.State != asset.Rebooting {
				add(c, RackReboot, "")
			}
			if p.State == asset.Rebooting && c.State == asset.Normal {
				add(c, RackRecovered, "")
			}
		case asset.GeneratorController:
			if c.Energized(asset.PortOut) && !p.Energized(asset.PortOut) {
				add(c, GeneratorTriggered, "")
			}
		case asset.Generator:
			if c.GeneratorOn && !p.GeneratorOn {
				add(c, GeneratorLatched, "")
			}
		case asset.VoltageSwitch:
			if c.ActiveInputID != "" && c.ActiveInputID != p.ActiveInputID {
				add(c, SwitchTransfer, c.ActiveInputID)
			}
		case asset.UPS:
			if p.BatteryPct > 0 && c.BatteryPct == 0 {
				add(c, BatteryDepleted, "")
			}
		}
	}
	return events
}
