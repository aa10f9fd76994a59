package metrics

import (
	"net/http"

	"github.com/ohowland/powersim/internal/pkg/asset"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var allStates = []asset.State{
	asset.Normal, asset.Warning, asset.Fault, asset.Off,
	asset.Starting, asset.Running, asset.Rebooting,
}

// Exporter publishes the latest tick on its own Prometheus registry.
type Exporter struct {
	registry    *prometheus.Registry
	ticks       prometheus.Counter
	loadKW      prometheus.Gauge
	racks       *prometheus.GaugeVec
	health      prometheus.Gauge
	gridDown    prometheus.Gauge
	state       *prometheus.GaugeVec
	batteryPct  *prometheus.GaugeVec
	activeAlarm *prometheus.GaugeVec
}

func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powersim_ticks_total",
			Help: "Total simulation ticks committed.",
		}),
		loadKW: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powersim_load_kw",
			Help: "Load of racks in NORMAL state.",
		}),
		racks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "powersim_racks",
			Help: "Rack count by status (active, total).",
		}, []string{"status"}),
		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powersim_health_percent",
			Help: "Share of racks in NORMAL state.",
		}),
		gridDown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powersim_grid_down",
			Help: "1 while the utility grid is failed.",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "powersim_component_state",
			Help: "1 for the current state of each component, 0 for the others.",
		}, []string{"component", "kind", "state"}),
		batteryPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "powersim_ups_battery_percent",
			Help: "UPS battery charge.",
		}, []string{"component"}),
		activeAlarm: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "powersim_alarm_active",
			Help: "1 while a rack alarm is waiting to be cleared.",
		}, []string{"component"}),
	}

	e.registry.MustRegister(
		e.ticks,
		e.loadKW,
		e.racks,
		e.health,
		e.gridDown,
		e.state,
		e.batteryPct,
		e.activeAlarm,
	)
	return e
}

// Observe records a committed tick.
func (e *Exporter) Observe(m Metrics, gridDown bool, components []asset.Component) {
	if e == nil {
		return
	}
	e.ticks.Inc()
	e.loadKW.Set(m.TotalLoadKW)
	e.racks.WithLabelValues("active").Set(float64(m.ActiveRacks))
	e.racks.WithLabelValues("total").Set(float64(m.TotalRacks))
	e.health.Set(float64(m.HealthPct))
	e.gridDown.Set(boolGauge(gridDown))

	// components come and go with topology edits
	e.state.Reset()
	e.batteryPct.Reset()
	e.activeAlarm.Reset()
	for _, c := range components {
		for _, s := range allStates {
			e.state.WithLabelValues(c.ID, string(c.Kind), string(s)).Set(boolGauge(c.State == s))
		}
		switch c.Kind {
		case asset.UPS:
			e.batteryPct.WithLabelValues(c.ID).Set(c.BatteryPct)
		case asset.Rack:
			e.activeAlarm.WithLabelValues(c.ID).Set(boolGauge(c.AlarmActive))
		}
	}
}

// Registry exposes the exporter's registry, mostly for tests.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
