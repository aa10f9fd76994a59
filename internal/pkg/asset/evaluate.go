package asset

// Timing constants of the component state machines, in milliseconds.
const (
	DefaultGeneratorStartMs int64 = 30000
	MonitorThresholdMs      int64 = 3000
	RackInertiaMs           int64 = 20
	RebootDurationMs        int64 = 5000
)

// Battery rates in percent per millisecond.
const (
	chargePctPerMs    = 1.0 / 100
	dischargePctPerMs = 1.0 / 500
)

// Env is the tick-wide input shared by every evaluation.
type Env struct {
	TickMs   int64
	ClockMs  int64
	GridDown bool
}

// behavior is the per-kind state machine. step mutates c, which already
// carries the previous tick's timers and the current port energization.
type behavior interface {
	step(c *Component, env Env)
}

func behaviorOf(k Kind) behavior {
	switch k {
	case GridFeed:
		return gridFeed{}
	case Generator:
		return generator{}
	case GeneratorController:
		return generatorController{}
	case VoltageSwitch:
		return voltageSwitch{}
	case UPS:
		return ups{}
	case Rack:
		return rack{}
	}
	return nil
}

// Evaluate computes the component's next state from its state at the end of
// the previous tick and the port energization observed now. prev is not
// modified; ports supplies the energization of every port by id, so outputs
// a behavior leaves alone keep the value they already have this tick.
//
// Evaluating the same prev with the same ports always yields the same result,
// which keeps timers advancing once per tick however often the relaxation
// revisits a component.
func Evaluate(prev Component, ports []Port, env Env) Component {
	next := prev.Clone()
	for i := range next.Ports {
		next.Ports[i].Energized = false
		for _, p := range ports {
			if p.ID == next.Ports[i].ID {
				next.Ports[i].Energized = p.Energized
				break
			}
		}
	}

	if next.Faulty {
		next.State = Fault
		next.setAllOutputs(false)
		return next
	}

	b := behaviorOf(next.Kind)
	if b == nil {
		next.State = Off
		next.setAllOutputs(false)
		return next
	}
	b.step(&next, env)
	return next
}
