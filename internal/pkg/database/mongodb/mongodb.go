// Package mongodb mirrors the latest state of every component into MongoDB
// and appends alarms to a capped history collection.
package mongodb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/powersim/internal/pkg/asset"
	"github.com/ohowland/powersim/internal/pkg/msg"
	"github.com/ohowland/powersim/internal/pkg/sim"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	statusCollection = "componentStatus"
	alarmCollection  = "alarms"
)

// Handler subscribes to status and alarm messages and writes them through.
type Handler struct {
	pid      uuid.UUID
	uri      string
	database string
	status   <-chan msg.Msg
	alarms   <-chan msg.Msg
	log      zerolog.Logger
}

func New(uri, database string, system msg.Publisher, logger zerolog.Logger) (*Handler, error) {
	pid := uuid.New()
	status, err := system.Subscribe(pid, msg.Status)
	if err != nil {
		return nil, err
	}
	alarms, err := system.Subscribe(pid, msg.Alarm)
	if err != nil {
		system.Unsubscribe(pid)
		return nil, err
	}
	return &Handler{
		pid:      pid,
		uri:      uri,
		database: database,
		status:   status,
		alarms:   alarms,
		log:      logger.With().Str("component", "mongodb").Logger(),
	}, nil
}

func (h *Handler) PID() uuid.UUID {
	return h.pid
}

// componentDoc is the stored form of a component's status.
func componentDoc(c asset.Component, tick uint64) bson.M {
	doc := bson.M{
		"kind":        string(c.Kind),
		"label":       c.Label,
		"state":       string(c.State),
		"faulty":      c.Faulty,
		"tick":        int64(tick),
		"alarmActive": c.AlarmActive,
	}
	switch c.Kind {
	case asset.UPS:
		doc["batteryPct"] = c.BatteryPct
	case asset.Rack:
		doc["loadKw"] = c.LoadKW
		doc["rebootProgressPct"] = c.RebootProgressPct
	case asset.VoltageSwitch:
		doc["activeInputId"] = c.ActiveInputID
	case asset.Generator:
		doc["generatorOn"] = c.GeneratorOn
	}
	return doc
}

// statusModels builds one upsert per component, keyed by component id.
func statusModels(s sim.State) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(s.Components))
	for _, c := range s.Components {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": c.ID}).
			SetUpdate(bson.M{"$set": componentDoc(c, s.Tick)}).
			SetUpsert(true))
	}
	return models
}

func alarmDoc(ev sim.Event) bson.M {
	return bson.M{
		"tick":        int64(ev.Tick),
		"clockMs":     ev.ClockMs,
		"kind":        string(ev.Kind),
		"componentId": ev.ComponentID,
		"label":       ev.Label,
		"detail":      ev.Detail,
	}
}

// Process writes until ctx is done.
func (h *Handler) Process(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(h.uri))
	cancel()
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	db := client.Database(h.database)
	// status is a live mirror; history lives in alarms
	if err := db.Collection(statusCollection).Drop(ctx); err != nil {
		h.log.Warn().Err(err).Msg("drop status collection")
	}
	h.log.Info().Str("database", h.database).Msg("process started")

loop:
	for {
		select {
		case m, ok := <-h.status:
			if !ok {
				break loop
			}
			s, ok := m.Payload().(sim.State)
			if !ok || len(s.Components) == 0 {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, time.Second)
			_, err := db.Collection(statusCollection).BulkWrite(wctx, statusModels(s), options.BulkWrite().SetOrdered(false))
			cancel()
			if err != nil {
				h.log.Error().Err(err).Msg("status upsert failed")
			}
		case m, ok := <-h.alarms:
			if !ok {
				break loop
			}
			ev, ok := m.Payload().(sim.Event)
			if !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, time.Second)
			_, err := db.Collection(alarmCollection).InsertOne(wctx, alarmDoc(ev))
			cancel()
			if err != nil {
				h.log.Error().Err(err).Msg("alarm insert failed")
			}
		case <-ctx.Done():
			break loop
		}
	}
	h.log.Info().Msg("process shutdown")
	return nil
}
