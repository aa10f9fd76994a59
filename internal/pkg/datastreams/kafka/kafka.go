// Package kafka appends tick summaries and alarms to a Kafka topic, one
// record per message, keyed so that all records of a component share a
// partition.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/powersim/internal/pkg/msg"
	"github.com/ohowland/powersim/internal/pkg/sim"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	summaryKey = "summary"
	typeHeader = "type"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Handler struct {
	pid     uuid.UUID
	brokers []string
	topic   string
	status  <-chan msg.Msg
	alarms  <-chan msg.Msg
	log     zerolog.Logger
}

func New(brokers []string, topic string, system msg.Publisher, logger zerolog.Logger) (*Handler, error) {
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
		pid:     pid,
		brokers: brokers,
		topic:   topic,
		status:  status,
		alarms:  alarms,
		log:     logger.With().Str("component", "kafka").Logger(),
	}, nil
}

func (h *Handler) PID() uuid.UUID {
	return h.pid
}

func summaryMessage(s sim.State) (kafka.Message, error) {
	data, err := json.Marshal(s.Summary())
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:     []byte(summaryKey),
		Value:   data,
		Headers: []kafka.Header{{Key: typeHeader, Value: []byte(msg.Status.String())}},
	}, nil
}

func alarmMessage(ev sim.Event) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:     []byte(ev.ComponentID),
		Value:   data,
		Headers: []kafka.Header{{Key: typeHeader, Value: []byte(msg.Alarm.String())}},
	}, nil
}

func (h *Handler) Process(ctx context.Context) error {
	w := &kafka.Writer{
		Addr:         kafka.TCP(h.brokers...),
		Topic:        h.topic,
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	defer w.Close()
	h.log.Info().Strs("brokers", h.brokers).Str("topic", h.topic).Msg("process started")
	h.forward(ctx, w)
	h.log.Info().Msg("process shutdown")
	return nil
}

func (h *Handler) forward(ctx context.Context, w messageWriter) {
	for {
		var (
			m   kafka.Message
			err error
		)
		select {
		case in, ok := <-h.status:
			if !ok {
				return
			}
			s, ok := in.Payload().(sim.State)
			if !ok {
				continue
			}
			m, err = summaryMessage(s)
		case in, ok := <-h.alarms:
			if !ok {
				return
			}
			ev, ok := in.Payload().(sim.Event)
			if !ok {
				continue
			}
			m, err = alarmMessage(ev)
		case <-ctx.Done():
			return
		}
		if err == nil {
			err = w.WriteMessages(ctx, m)
		}
		if err != nil && ctx.Err() == nil {
			h.log.Error().Err(err).Msg("unable to write record")
		}
	}
}
