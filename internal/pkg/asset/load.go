package asset

import "math"

// ups passes its input through while charging and rides through input loss
// on battery until the battery is empty.
type ups struct{}

func (ups) step(c *Component, env Env) {
	if c.Energized(PortIn1) {
		c.BatteryPct = math.Min(100, c.BatteryPct+float64(env.TickMs)*chargePctPerMs)
		c.setOutput(PortOut, true)
		c.State = Normal
		return
	}

	c.BatteryPct = math.Max(0, c.BatteryPct-float64(env.TickMs)*dischargePctPerMs)
	if c.BatteryPct > 0 {
		c.setOutput(PortOut, true)
		c.State = Warning
		return
	}
	c.setOutput(PortOut, false)
	c.State = Off
}

// rack is a terminal load. An outage longer than RackInertiaMs forces a
// reboot cycle of RebootDurationMs once power returns.
type rack struct{}

func (rack) step(c *Component, env Env) {
	if !c.AnyInputEnergized() {
		if c.LastOutageAt == nil {
			at := env.ClockMs
			c.LastOutageAt = &at
		}
		c.State = Fault
		return
	}

	if c.LastOutageAt != nil {
		if env.ClockMs-*c.LastOutageAt > RackInertiaMs {
			c.AlarmActive = true
			c.State = Rebooting
			c.RebootElapsedMs = 0
			c.RebootProgressPct = 0
		}
		c.LastOutageAt = nil
	}

	if c.State != Rebooting {
		c.State = Normal
		return
	}
	c.RebootElapsedMs += env.TickMs
	if c.RebootElapsedMs >= RebootDurationMs {
		c.RebootElapsedMs = RebootDurationMs
		c.RebootProgressPct = 100
		c.State = Normal
		return
	}
	c.RebootProgressPct = float64(c.RebootElapsedMs) * 100 / float64(RebootDurationMs)
}
