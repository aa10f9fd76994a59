// Package metrics derives site-wide figures from a committed tick.
package metrics

import (
	"math"

	"github.com/ohowland/powersim/internal/pkg/asset"
)

// Grid status labels.
const (
	GridOptimal  = "OPTIMAL"
	GridCritical = "CRITICAL"
)

// Metrics is the dashboard summary of one tick.
type Metrics struct {
	ActiveRacks int     `json:"activeRacks"`
	TotalRacks  int     `json:"totalRacks"`
	HealthPct   int     `json:"healthPct"`
	TotalLoadKW float64 `json:"totalLoadKw"`
	GridStatus  string  `json:"gridStatus"`
}

// Aggregate counts racks in NORMAL as active and sums their load. It does
// not modify components.
func Aggregate(components []asset.Component, gridDown bool) Metrics {
	var m Metrics
	for _, c := range components {
		if !c.IsRack() {
			continue
		}
		m.TotalRacks++
		if c.State == asset.Normal {
			m.ActiveRacks++
			m.TotalLoadKW += c.LoadKW
		}
	}

	m.HealthPct = 100
	if m.TotalRacks > 0 {
		m.HealthPct = int(math.Round(float64(m.ActiveRacks) * 100 / float64(m.TotalRacks)))
	}

	m.GridStatus = GridOptimal
	if gridDown {
		m.GridStatus = GridCritical
	}
	return m
}
