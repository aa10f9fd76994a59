package asset

// gridFeed is a utility transformer. It has no inputs and follows the
// network-wide grid flag.
type gridFeed struct{}

func (gridFeed) step(c *Component, env Env) {
	c.setAllOutputs(!env.GridDown)
	if env.GridDown {
		c.State = Off
		return
	}
	c.State = Normal
}

// generatorController watches a feed and raises the generator start signal
// once the feed has been dead for MonitorThresholdMs.
type generatorController struct{}

func (generatorController) step(c *Component, env Env) {
	if c.Energized(PortIn1) {
		c.MonitorElapsedMs = 0
		c.setOutput(PortOut, false)
		c.State = Normal
		return
	}

	c.MonitorElapsedMs += env.TickMs
	if c.MonitorElapsedMs >= MonitorThresholdMs {
		c.setOutput(PortOut, true)
		c.State = Running
		return
	}
	c.State = Warning
}

// generator is a diesel backup set with a start latch.
type generator struct{}

func (generator) step(c *Component, env Env) {
	if c.Energized(PortStart) {
		if !c.GeneratorOn {
			c.StartElapsedMs += env.TickMs
			if c.StartElapsedMs >= c.TransferDelayMs {
				c.GeneratorOn = true
			}
		}
	} else {
		c.GeneratorOn = false
		c.StartElapsedMs = 0
	}

	switch {
	case c.Energized(PortBypass):
		c.setOutput(PortPower, true)
		c.State = Normal
	case c.GeneratorOn:
		c.setOutput(PortPower, true)
		c.State = Running
	case c.StartElapsedMs > 0:
		c.setOutput(PortPower, false)
		c.State = Starting
	default:
		c.setOutput(PortPower, false)
		c.State = Off
	}
}
