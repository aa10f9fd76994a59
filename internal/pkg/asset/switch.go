package asset

// voltageSwitch covers AVR, ATS and STS. in-1 is the preferred source, in-2
// the backup. A transfer to a newly live input only commits after the input
// has been continuously selected for TransferDelayMs; the output is held dead
// while a transfer is pending.
type voltageSwitch struct{}

func (voltageSwitch) step(c *Component, env Env) {
	switch {
	case c.Energized(PortIn1):
		c.selectInput(PortIn1, env.TickMs)
	case c.Energized(PortIn2):
		c.selectInput(PortIn2, env.TickMs)
	default:
		c.ActiveInputID = ""
		c.SwitchingElapsedMs = 0
	}

	live := c.ActiveInputID != "" && c.Energized(c.ActiveInputID) && c.SwitchingElapsedMs == 0
	c.setOutput(PortOut, live)
	switch {
	case !live:
		c.State = Off
	case c.ActiveInputID == PortIn1:
		c.State = Normal
	default:
		c.State = Warning
	}
}

func (c *Component) selectInput(id string, tickMs int64) {
	if c.ActiveInputID == id {
		c.SwitchingElapsedMs = 0
		return
	}
	c.SwitchingElapsedMs += tickMs
	if c.SwitchingElapsedMs >= c.TransferDelayMs {
		c.ActiveInputID = id
		c.SwitchingElapsedMs = 0
	}
}
