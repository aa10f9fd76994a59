// Package webservice exposes the simulation over HTTP: state and metrics
// reads, operator edits, snapshot import/export and a websocket stream of
// committed ticks.
package webservice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ohowland/powersim/internal/pkg/asset"
	"github.com/ohowland/powersim/internal/pkg/bus"
	"github.com/ohowland/powersim/internal/pkg/metrics"
	"github.com/ohowland/powersim/internal/pkg/msg"
	"github.com/ohowland/powersim/internal/pkg/sim"
	"github.com/ohowland/powersim/internal/pkg/snapshot"
	"github.com/rs/zerolog"
)

// maxBody bounds request bodies, snapshots included.
const maxBody = 8 << 20

// App holds the collaborators the handlers use. Engine is required; the
// rest are optional and their routes answer 404 when missing.
type App struct {
	Engine    *sim.Engine
	Runner    *sim.Runner
	Exporter  *metrics.Exporter
	Store     snapshot.Store
	Publisher *msg.PubSub
	Logger    zerolog.Logger
}

func (a *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/state", a.getState).Methods("GET")
	r.HandleFunc("/metrics/summary", a.getSummary).Methods("GET")
	if a.Exporter != nil {
		r.Handle("/metrics", a.Exporter.Handler()).Methods("GET")
	}
	if a.Publisher != nil {
		r.HandleFunc("/stream", a.stream).Methods("GET")
	}

	r.HandleFunc("/grid", a.putGrid).Methods("PUT")
	r.HandleFunc("/components", a.postComponent).Methods("POST")
	r.HandleFunc("/components/{id}", a.deleteComponent).Methods("DELETE")
	r.HandleFunc("/components/{id}/label", a.putLabel).Methods("PUT")
	r.HandleFunc("/components/{id}/fault", a.putFault).Methods("PUT")
	r.HandleFunc("/components/{id}/alarm/clear", a.postClearAlarm).Methods("POST")
	r.HandleFunc("/components/{id}/parameters/{field}", a.putParameter).Methods("PUT")
	r.HandleFunc("/connections", a.postConnection).Methods("POST")
	r.HandleFunc("/connections/{id}", a.deleteConnection).Methods("DELETE")
	r.HandleFunc("/connections/{id}/damaged", a.putDamaged).Methods("PUT")

	r.HandleFunc("/snapshot", a.getSnapshot).Methods("GET")
	r.HandleFunc("/snapshot", a.putSnapshot).Methods("PUT")
	if a.Store != nil {
		r.HandleFunc("/snapshots/{name}", a.saveSnapshot).Methods("PUT")
		r.HandleFunc("/snapshots/{name}/restore", a.restoreSnapshot).Methods("POST")
	}
	if a.Runner != nil {
		r.HandleFunc("/sim/paused", a.putPaused).Methods("PUT")
	}
	return r
}

func (a *App) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Engine.Snapshot())
}

func (a *App) getSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Engine.Metrics())
}

func (a *App) putGrid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Down *bool `json:"down"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if req.Down == nil {
		a.fail(w, fmt.Errorf("%w: missing field down", errBadRequest))
		return
	}
	a.Engine.SetGridDown(*req.Down)
	writeJSON(w, http.StatusOK, map[string]bool{"down": *req.Down})
}

func (a *App) postComponent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind    asset.Kind    `json:"kind"`
		Variant asset.Variant `json:"variant"`
		Label   string        `json:"label"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	c, err := a.Engine.AddComponent(req.Kind, req.Variant, req.Label)
	a.respond(w, c, err)
}

func (a *App) deleteComponent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a.respond(w, map[string]string{"deleted": id}, a.Engine.RemoveComponent(id))
}

func (a *App) putLabel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	c, err := a.Engine.SetLabel(mux.Vars(r)["id"], req.Label)
	a.respond(w, c, err)
}

func (a *App) putFault(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Faulty bool `json:"faulty"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	c, err := a.Engine.SetFault(mux.Vars(r)["id"], req.Faulty)
	a.respond(w, c, err)
}

func (a *App) postClearAlarm(w http.ResponseWriter, r *http.Request) {
	c, err := a.Engine.ClearAlarm(mux.Vars(r)["id"])
	a.respond(w, c, err)
}

func (a *App) putParameter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value *float64 `json:"value"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if req.Value == nil {
		a.fail(w, fmt.Errorf("%w: missing field value", errBadRequest))
		return
	}
	vars := mux.Vars(r)
	c, err := a.Engine.SetParameter(vars["id"], vars["field"], *req.Value)
	a.respond(w, c, err)
}

func (a *App) postConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromComponentID string `json:"fromComponentId"`
		FromPortID      string `json:"fromPortId"`
		ToComponentID   string `json:"toComponentId"`
		ToPortID        string `json:"toPortId"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	c, err := a.Engine.AddConnection(req.FromComponentID, req.FromPortID, req.ToComponentID, req.ToPortID)
	a.respond(w, c, err)
}

func (a *App) deleteConnection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a.respond(w, map[string]string{"deleted": id}, a.Engine.RemoveConnection(id))
}

func (a *App) putDamaged(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Damaged bool `json:"damaged"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	c, err := a.Engine.SetDamaged(mux.Vars(r)["id"], req.Damaged)
	a.respond(w, c, err)
}

func (a *App) getSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := snapshot.Encode(a.Engine.Export())
	if err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *App) putSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		a.fail(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	d, err := snapshot.Decode(data)
	if err == nil {
		err = a.Engine.Import(d)
	}
	a.respond(w, a.Engine.Metrics(), err)
}

func (a *App) saveSnapshot(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	d := a.Engine.Export()
	err := a.Store.Save(r.Context(), name, d)
	a.respond(w, map[string]interface{}{"name": name, "tick": d.Tick}, err)
}

func (a *App) restoreSnapshot(w http.ResponseWriter, r *http.Request) {
	d, err := a.Store.Load(r.Context(), mux.Vars(r)["name"])
	if err == nil {
		err = a.Engine.Import(d)
	}
	a.respond(w, a.Engine.Metrics(), err)
}

func (a *App) putPaused(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paused bool `json:"paused"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if req.Paused {
		a.Runner.Pause()
	} else {
		a.Runner.Resume()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": a.Runner.Paused()})
}

var errBadRequest = errors.New("bad request")

func (a *App) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		a.fail(w, fmt.Errorf("%w: malformed JSON: %v", errBadRequest, err))
		return false
	}
	return true
}

func (a *App) respond(w http.ResponseWriter, v interface{}, err error) {
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *App) fail(w http.ResponseWriter, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		a.Logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, sim.ErrNotFound), errors.Is(err, snapshot.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, asset.ErrInvalidParameter),
		errors.Is(err, asset.ErrUnknownKind),
		errors.Is(err, bus.ErrInvalidReference),
		errors.Is(err, snapshot.ErrMalformedSnapshot):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
