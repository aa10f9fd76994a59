package sim

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ohowland/powersim/internal/pkg/metrics"
	"github.com/ohowland/powersim/internal/pkg/msg"
	"github.com/rs/zerolog"
)

// Runner drives an Engine from a fixed-period ticker and publishes every
// committed tick: the State on msg.Status and each alarm Event on msg.Alarm.
type Runner struct {
	engine   *Engine
	period   time.Duration
	pub      *msg.PubSub
	exporter *metrics.Exporter
	paused   atomic.Bool
	log      zerolog.Logger
}

// NewRunner builds a Runner. pub and exporter may be nil.
func NewRunner(e *Engine, period time.Duration, pub *msg.PubSub, exporter *metrics.Exporter, logger zerolog.Logger) *Runner {
	if period <= 0 {
		period = time.Duration(DefaultTickMs) * time.Millisecond
	}
	return &Runner{
		engine:   e,
		period:   period,
		pub:      pub,
		exporter: exporter,
		log:      logger.With().Str("component", "runner").Logger(),
	}
}

// Run ticks until ctx is cancelled. Ticks that fire while paused are
// skipped.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	r.log.Info().Dur("period", r.period).Msg("simulation started")
loop:
	for {
		select {
		case <-ticker.C:
			if r.paused.Load() {
				continue
			}
			r.Step()
		case <-ctx.Done():
			break loop
		}
	}
	r.log.Info().Msg("simulation stopped")
	return ctx.Err()
}

// Step runs one tick of the configured period and publishes it.
func (r *Runner) Step() Result {
	res := r.engine.Tick(r.period.Milliseconds())
	if r.exporter != nil {
		r.exporter.Observe(res.State.Metrics, res.State.GridDown, res.State.Components)
	}
	if r.pub != nil {
		r.pub.Publish(msg.Status, res.State)
		for _, ev := range res.Events {
			if ev.IsAlarm() {
				r.pub.Publish(msg.Alarm, ev)
			}
		}
	}
	return res
}

func (r *Runner) Pause()  { r.paused.Store(true) }
func (r *Runner) Resume() { r.paused.Store(false) }

func (r *Runner) Paused() bool { return r.paused.Load() }
