package sqldb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/ohowland/powersim/internal/pkg/msg"
	"github.com/ohowland/powersim/internal/pkg/sim"
	"github.com/rs/zerolog"
)

// Handler appends every published alarm to the alarms table.
type Handler struct {
	db    *sqlx.DB
	pid   uuid.UUID
	inbox <-chan msg.Msg
	log   zerolog.Logger
}

func New(db *sqlx.DB, system msg.Publisher, logger zerolog.Logger) (*Handler, error) {
	pid := uuid.New()
	inbox, err := system.Subscribe(pid, msg.Alarm)
	if err != nil {
		return nil, err
	}
	return &Handler{
		db:    db,
		pid:   pid,
		inbox: inbox,
		log:   logger.With().Str("component", "sqldb").Logger(),
	}, nil
}

type alarmRow struct {
	Tick        int64  `db:"tick"`
	ClockMs     int64  `db:"clock_ms"`
	Kind        string `db:"kind"`
	ComponentID string `db:"component_id"`
	Label       string `db:"label"`
	Detail      string `db:"detail"`
}

const insertAlarm = `INSERT INTO alarms (tick, clock_ms, kind, component_id, label, detail)
	VALUES (:tick, :clock_ms, :kind, :component_id, :label, :detail)`

// Process writes alarms until ctx is done or the subscription closes.
func (h *Handler) Process(ctx context.Context) {
loop:
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				break loop
			}
			ev, ok := m.Payload().(sim.Event)
			if !ok {
				continue
			}
			row := alarmRow{
				Tick:        int64(ev.Tick),
				ClockMs:     ev.ClockMs,
				Kind:        string(ev.Kind),
				ComponentID: ev.ComponentID,
				Label:       ev.Label,
				Detail:      ev.Detail,
			}
			wctx, cancel := context.WithTimeout(ctx, time.Second)
			if _, err := h.db.NamedExecContext(wctx, insertAlarm, row); err != nil {
				h.log.Error().Err(err).Msg("alarm insert failed")
			}
			cancel()
		case <-ctx.Done():
			break loop
		}
	}
	h.log.Info().Msg("process shutdown")
}

// Alarms returns the most recent alarms for a component, newest first.
func Alarms(ctx context.Context, db *sqlx.DB, componentID string, limit int) ([]sim.Event, error) {
	var rows []alarmRow
	q := db.Rebind(`SELECT tick, clock_ms, kind, component_id, label, detail FROM alarms
		WHERE component_id = ? ORDER BY tick DESC LIMIT ?`)
	if err := db.SelectContext(ctx, &rows, q, componentID, limit); err != nil {
		return nil, err
	}
	out := make([]sim.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, sim.Event{
			Tick:        uint64(r.Tick),
			ClockMs:     r.ClockMs,
			Kind:        sim.EventKind(r.Kind),
			ComponentID: r.ComponentID,
			Label:       r.Label,
			Detail:      r.Detail,
		})
	}
	return out, nil
}
