// Package natshandler republishes simulation status and alarms on NATS
// subjects.
package natshandler

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/ohowland/powersim/internal/pkg/msg"
	"github.com/ohowland/powersim/internal/pkg/sim"
	"github.com/rs/zerolog"

	nats "github.com/nats-io/nats.go"
)

const (
	SummarySubject = "powersim.status"
	AlarmSubject   = "powersim.alarm"
	// componentPrefix is followed by the component id.
	componentPrefix = "powersim.component."
)

// publisher is the subset of *nats.Conn the handler needs.
type publisher interface {
	Publish(subj string, data []byte) error
}

type Handler struct {
	pid    uuid.UUID
	url    string
	status <-chan msg.Msg
	alarms <-chan msg.Msg
	log    zerolog.Logger
}

func New(url string, system msg.Publisher, logger zerolog.Logger) (*Handler, error) {
	if url == "" {
		url = nats.DefaultURL
	}
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
		pid:    pid,
		url:    url,
		status: status,
		alarms: alarms,
		log:    logger.With().Str("component", "nats").Logger(),
	}, nil
}

func (h *Handler) PID() uuid.UUID {
	return h.pid
}

func ComponentSubject(id string) string {
	return componentPrefix + id
}

// publishState sends the summary followed by one message per component.
func publishState(p publisher, s sim.State) error {
	data, err := json.Marshal(s.Summary())
	if err != nil {
		return err
	}
	if err := p.Publish(SummarySubject, data); err != nil {
		return err
	}
	for _, c := range s.Components {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := p.Publish(ComponentSubject(c.ID), data); err != nil {
			return err
		}
	}
	return nil
}

func publishAlarm(p publisher, ev sim.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.Publish(AlarmSubject, data)
}

func (h *Handler) Process(ctx context.Context) error {
	nc, err := nats.Connect(h.url, nats.Name("powersim"))
	if err != nil {
		return err
	}
	defer nc.Close()
	h.log.Info().Str("url", h.url).Msg("process started")
	h.forward(ctx, nc)
	h.log.Info().Msg("process shutdown")
	return nil
}

func (h *Handler) forward(ctx context.Context, p publisher) {
	for {
		select {
		case m, ok := <-h.status:
			if !ok {
				return
			}
			if s, ok := m.Payload().(sim.State); ok {
				if err := publishState(p, s); err != nil {
					h.log.Error().Err(err).Msg("unable to publish status")
				}
			}
		case m, ok := <-h.alarms:
			if !ok {
				return
			}
			if ev, ok := m.Payload().(sim.Event); ok {
				if err := publishAlarm(p, ev); err != nil {
					h.log.Error().Err(err).Msg("unable to publish alarm")
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
