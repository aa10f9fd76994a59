package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ohowland/powersim/internal/pkg/asset"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gotest.tools/v3/assert"
)

func rack(t *testing.T, id string, state asset.State, load float64) asset.Component {
	t.Helper()
	c, err := asset.New(asset.Rack, asset.Single, id, "")
	assert.NilError(t, err)
	c.State = state
	c.LoadKW = load
	return c
}

func TestAggregate(t *testing.T) {
	ups, err := asset.New(asset.UPS, asset.NoVariant, "ups1", "")
	assert.NilError(t, err)
	cs := []asset.Component{
		rack(t, "r1", asset.Normal, 5),
		rack(t, "r2", asset.Rebooting, 7),
		rack(t, "r3", asset.Normal, 2.5),
		ups,
	}

	m := Aggregate(cs, false)
	assert.Equal(t, m.ActiveRacks, 2)
	assert.Equal(t, m.TotalRacks, 3)
	assert.Equal(t, m.HealthPct, 67)
	assert.Equal(t, m.TotalLoadKW, 7.5)
	assert.Equal(t, m.GridStatus, GridOptimal)
}

func TestAggregateNoRacks(t *testing.T) {
	m := Aggregate(nil, true)
	assert.Equal(t, m.HealthPct, 100)
	assert.Equal(t, m.TotalLoadKW, 0.0)
	assert.Equal(t, m.GridStatus, GridCritical)
}

func TestAggregateDoesNotMutate(t *testing.T) {
	cs := []asset.Component{rack(t, "r1", asset.Fault, 5)}
	_ = Aggregate(cs, false)
	assert.Equal(t, cs[0].State, asset.Fault)
}

func TestExporter(t *testing.T) {
	e := NewExporter()
	cs := []asset.Component{rack(t, "r1", asset.Normal, 5), rack(t, "r2", asset.Fault, 5)}
	m := Aggregate(cs, true)

	e.Observe(m, true, cs)

	assert.Equal(t, testutil.ToFloat64(e.loadKW), 5.0)
	assert.Equal(t, testutil.ToFloat64(e.health), 50.0)
	assert.Equal(t, testutil.ToFloat64(e.gridDown), 1.0)
	assert.Equal(t, testutil.ToFloat64(e.racks.WithLabelValues("total")), 2.0)
	assert.Equal(t, testutil.ToFloat64(e.state.WithLabelValues("r2", "RACK", "FAULT")), 1.0)
	assert.Equal(t, testutil.ToFloat64(e.state.WithLabelValues("r2", "RACK", "NORMAL")), 0.0)

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(body), "powersim_ticks_total 1"))
}

func TestNilExporterIgnoresObserve(t *testing.T) {
	var e *Exporter
	e.Observe(Metrics{}, false, nil)
}
