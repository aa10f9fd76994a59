package sim

import "github.com/ohowland/powersim/internal/pkg/metrics"

// Summary is the compact form of a State sent to external streams.
type Summary struct {
	Tick     uint64          `json:"tick"`
	ClockMs  int64           `json:"clockMs"`
	GridDown bool            `json:"gridDown"`
	Metrics  metrics.Metrics `json:"metrics"`
}

func (s State) Summary() Summary {
	return Summary{
		Tick:     s.Tick,
		ClockMs:  s.ClockMs,
		GridDown: s.GridDown,
		Metrics:  s.Metrics,
	}
}
