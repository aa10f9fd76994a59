// Package gridmonitor drives the simulated utility feed from a live Modbus
// register: the grid is down while the register reads below a threshold.
package gridmonitor

import (
	"context"
	"time"

	"github.com/ohowland/powersim/internal/pkg/comm/modbuscomm"
	"github.com/rs/zerolog"
)

// Reader is satisfied by *modbuscomm.Poller.
type Reader interface {
	Read([]modbuscomm.Register) (map[string]float64, error)
}

// Grid is satisfied by *sim.Engine.
type Grid interface {
	SetGridDown(bool)
	GridDown() bool
}

type Monitor struct {
	reader    Reader
	grid      Grid
	register  modbuscomm.Register
	threshold float64
	rate      time.Duration
	log       zerolog.Logger
}

func New(reader Reader, grid Grid, register modbuscomm.Register, threshold float64, rate time.Duration, logger zerolog.Logger) (*Monitor, error) {
	if err := register.Validate(); err != nil {
		return nil, err
	}
	if rate <= 0 {
		rate = time.Second
	}
	return &Monitor{
		reader:    reader,
		grid:      grid,
		register:  register,
		threshold: threshold,
		rate:      rate,
		log:       logger.With().Str("component", "gridmonitor").Logger(),
	}, nil
}

// Poll reads the register once and updates the grid on a change. A failed
// read leaves the grid as it is.
func (m *Monitor) Poll() error {
	values, err := m.reader.Read([]modbuscomm.Register{m.register})
	if err != nil {
		return err
	}
	v, ok := values[m.register.Name]
	if !ok {
		return nil
	}
	down := v < m.threshold
	if down != m.grid.GridDown() {
		m.log.Info().Float64("value", v).Bool("gridDown", down).Msg("grid state changed")
		m.grid.SetGridDown(down)
	}
	return nil
}

func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.rate)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.Poll(); err != nil {
				m.log.Warn().Err(err).Msg("poll failed")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
