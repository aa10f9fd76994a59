package webservice

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/ohowland/powersim/internal/pkg/asset"
	"github.com/ohowland/powersim/internal/pkg/bus"
	"github.com/ohowland/powersim/internal/pkg/metrics"
	"github.com/ohowland/powersim/internal/pkg/msg"
	"github.com/ohowland/powersim/internal/pkg/sim"
	"github.com/ohowland/powersim/internal/pkg/snapshot"
	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"
)

func newApp(t *testing.T) *App {
	t.Helper()
	e := sim.New(sim.Options{Logger: zerolog.Nop()})
	assert.NilError(t, e.LoadSeed())
	pub := msg.NewPublisher(uuid.New())
	exp := metrics.NewExporter()
	return &App{
		Engine:    e,
		Runner:    sim.NewRunner(e, 20*time.Millisecond, pub, exp, zerolog.Nop()),
		Exporter:  exp,
		Store:     snapshot.FileStore{Dir: t.TempDir()},
		Publisher: pub,
		Logger:    zerolog.Nop(),
	}
}

func do(t *testing.T, router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, "http://example.com"+path, nil)
	} else {
		r = httptest.NewRequest(method, "http://example.com"+path, strings.NewReader(body))
	}
	router.ServeHTTP(w, r)
	return w
}

func TestGetState(t *testing.T) {
	a := newApp(t)
	a.Runner.Step()

	w := do(t, a.Router(), "GET", "/state", "")
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Equal(t, w.Header().Get("Content-Type"), "application/json; charset=UTF-8")

	var s sim.State
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, s.Tick, uint64(1))
	assert.Equal(t, len(s.Components), 9)
	assert.Equal(t, len(s.Connections), 10)
}

func TestSummaryAndPrometheus(t *testing.T) {
	a := newApp(t)
	a.Runner.Step()
	router := a.Router()

	w := do(t, router, "GET", "/metrics/summary", "")
	assert.Equal(t, w.Code, http.StatusOK)
	var m metrics.Metrics
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, m.TotalRacks, 1)
	assert.Equal(t, m.GridStatus, "OPTIMAL")

	w = do(t, router, "GET", "/metrics", "")
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Assert(t, strings.Contains(w.Body.String(), "powersim_racks"))
}

func TestPutGrid(t *testing.T) {
	a := newApp(t)
	router := a.Router()

	w := do(t, router, "PUT", "/grid", `{"down": true}`)
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Assert(t, a.Engine.GridDown())

	w = do(t, router, "PUT", "/grid", `{}`)
	assert.Equal(t, w.Code, http.StatusBadRequest)
	w = do(t, router, "PUT", "/grid", `not json`)
	assert.Equal(t, w.Code, http.StatusBadRequest)
}

func TestComponentEdits(t *testing.T) {
	a := newApp(t)
	router := a.Router()

	w := do(t, router, "PUT", "/components/rack1/fault", `{"faulty": true}`)
	assert.Equal(t, w.Code, http.StatusOK)
	var c asset.Component
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &c))
	assert.Assert(t, c.Faulty)

	w = do(t, router, "PUT", "/components/nope/fault", `{"faulty": true}`)
	assert.Equal(t, w.Code, http.StatusNotFound)

	w = do(t, router, "PUT", "/components/avr1/parameters/transferDelayMs", `{"value": 250}`)
	assert.Equal(t, w.Code, http.StatusOK)
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &c))
	assert.Equal(t, c.TransferDelayMs, int64(250))

	w = do(t, router, "PUT", "/components/avr1/parameters/transferDelayMs", `{"value": -5}`)
	assert.Equal(t, w.Code, http.StatusBadRequest)
	w = do(t, router, "PUT", "/components/avr1/parameters/batteryPct", `{"value": 5}`)
	assert.Equal(t, w.Code, http.StatusBadRequest)

	w = do(t, router, "PUT", "/components/avr1/label", `{"label": "Gen AVR"}`)
	assert.Equal(t, w.Code, http.StatusOK)

	w = do(t, router, "POST", "/components/rack1/alarm/clear", "")
	assert.Equal(t, w.Code, http.StatusOK)
}

func TestTopologyEdits(t *testing.T) {
	a := newApp(t)
	router := a.Router()

	w := do(t, router, "POST", "/components", `{"kind": "RACK", "variant": "SINGLE", "label": "Edge"}`)
	assert.Equal(t, w.Code, http.StatusOK)
	var c asset.Component
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &c))
	assert.Equal(t, c.Label, "Edge")

	w = do(t, router, "POST", "/components", `{"kind": "TOASTER"}`)
	assert.Equal(t, w.Code, http.StatusBadRequest)

	body := `{"fromComponentId": "sts1", "fromPortId": "out-1", "toComponentId": "` + c.ID + `", "toPortId": "in-1"}`
	w = do(t, router, "POST", "/connections", body)
	assert.Equal(t, w.Code, http.StatusOK)
	var conn bus.Connection
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &conn))

	w = do(t, router, "POST", "/connections", `{"fromComponentId": "sts1", "fromPortId": "in-1", "toComponentId": "rack1", "toPortId": "in-2"}`)
	assert.Equal(t, w.Code, http.StatusBadRequest)

	w = do(t, router, "PUT", "/connections/"+conn.ID+"/damaged", `{"damaged": true}`)
	assert.Equal(t, w.Code, http.StatusOK)

	w = do(t, router, "DELETE", "/connections/"+conn.ID, "")
	assert.Equal(t, w.Code, http.StatusOK)
	w = do(t, router, "DELETE", "/connections/"+conn.ID, "")
	assert.Equal(t, w.Code, http.StatusNotFound)

	w = do(t, router, "DELETE", "/components/"+c.ID, "")
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Equal(t, len(a.Engine.Snapshot().Components), 9)
}

func TestSnapshotExportImport(t *testing.T) {
	a := newApp(t)
	for i := 0; i < 5; i++ {
		a.Runner.Step()
	}
	router := a.Router()

	w := do(t, router, "GET", "/snapshot", "")
	assert.Equal(t, w.Code, http.StatusOK)
	exported := w.Body.String()

	for i := 0; i < 5; i++ {
		a.Runner.Step()
	}
	w = do(t, router, "PUT", "/snapshot", exported)
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Equal(t, a.Engine.Snapshot().Tick, uint64(5))

	w = do(t, router, "PUT", "/snapshot", `{"version": 1, "components": [{"id": "x", "kind": "TOASTER"}]}`)
	assert.Equal(t, w.Code, http.StatusBadRequest)
	assert.Equal(t, a.Engine.Snapshot().Tick, uint64(5))
}

func TestNamedSnapshots(t *testing.T) {
	a := newApp(t)
	a.Runner.Step()
	router := a.Router()

	w := do(t, router, "PUT", "/snapshots/before-drill", "")
	assert.Equal(t, w.Code, http.StatusOK)

	a.Runner.Step()
	a.Runner.Step()
	w = do(t, router, "POST", "/snapshots/before-drill/restore", "")
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Equal(t, a.Engine.Snapshot().Tick, uint64(1))

	w = do(t, router, "POST", "/snapshots/never-saved/restore", "")
	assert.Equal(t, w.Code, http.StatusNotFound)
}

func TestPause(t *testing.T) {
	a := newApp(t)
	w := do(t, a.Router(), "PUT", "/sim/paused", `{"paused": true}`)
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Assert(t, a.Runner.Paused())
}

func TestStream(t *testing.T) {
	a := newApp(t)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NilError(t, err)
	defer conn.Close()

	var first frame
	assert.NilError(t, conn.ReadJSON(&first))
	assert.Equal(t, first.Type, "state")

	// the subscription is registered before the first frame is written
	a.Runner.Step()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var next struct {
		Type string    `json:"type"`
		Data sim.State `json:"data"`
	}
	assert.NilError(t, conn.ReadJSON(&next))
	assert.Equal(t, next.Type, "state")
	assert.Equal(t, next.Data.Tick, uint64(1))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, statusOf(bytes.ErrTooLarge), http.StatusInternalServerError)
	assert.Equal(t, statusOf(snapshot.ErrMalformedSnapshot), http.StatusBadRequest)
}
