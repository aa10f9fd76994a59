package hmi

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell"
	"github.com/ohowland/powersim/internal/pkg/asset"
	"github.com/ohowland/powersim/internal/pkg/sim"
	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"
)

func TestRows(t *testing.T) {
	e := sim.New(sim.Options{Logger: zerolog.Nop()})
	assert.NilError(t, e.LoadSeed())
	s := e.Tick(sim.DefaultTickMs).State

	got := rows(s.Components)
	assert.Equal(t, len(got), len(s.Components))
	for _, r := range got {
		assert.Equal(t, len(r), len(header))
	}
	assert.Equal(t, got[0][0], "tp1")
}

func TestDetail(t *testing.T) {
	ups, err := asset.New(asset.UPS, asset.NoVariant, "u", "")
	assert.NilError(t, err)
	ups.BatteryPct = 12.5
	ups.AlarmActive = true
	assert.Equal(t, detail(ups), "battery 12.5%, ALARM")

	sw, err := asset.New(asset.VoltageSwitch, asset.STS, "s", "")
	assert.NilError(t, err)
	sw.ActiveInputID = asset.PortIn2
	assert.Equal(t, kindName(sw), "VOLTAGE_SWITCH/STS")
	assert.Equal(t, detail(sw), "on in-2")
}

func TestSummaryText(t *testing.T) {
	s := sim.State{Tick: 12, GridDown: true}
	assert.Assert(t, strings.Contains(summaryText(s), "CRITICAL"))
	assert.Equal(t, stateColor(asset.Fault), tcell.ColorRed)
}
