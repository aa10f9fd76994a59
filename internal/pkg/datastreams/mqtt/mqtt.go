// Package mqtt publishes tick summaries and alarms to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/ohowland/powersim/internal/pkg/msg"
	"github.com/ohowland/powersim/internal/pkg/sim"
	"github.com/rs/zerolog"
)

const (
	summaryQoS byte = 0
	alarmQoS   byte = 1
)

// sendFunc delivers one payload. It is a paho client in production.
type sendFunc func(topic string, qos byte, payload []byte) error

func clientSender(c mqtt.Client) sendFunc {
	return func(topic string, qos byte, payload []byte) error {
		token := c.Publish(topic, qos, false, payload)
		if !token.WaitTimeout(5 * time.Second) {
			return fmt.Errorf("publish %s: timed out", topic)
		}
		return token.Error()
	}
}

type Handler struct {
	pid    uuid.UUID
	broker string
	topic  string
	status <-chan msg.Msg
	alarms <-chan msg.Msg
	log    zerolog.Logger
}

// New subscribes to the system. Messages are published below topic, as
// <topic>/summary and <topic>/alarm.
func New(broker, topic string, system msg.Publisher, logger zerolog.Logger) (*Handler, error) {
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
		broker: broker,
		topic:  topic,
		status: status,
		alarms: alarms,
		log:    logger.With().Str("component", "mqtt").Logger(),
	}, nil
}

func (h *Handler) PID() uuid.UUID {
	return h.pid
}

func (h *Handler) SummaryTopic() string { return h.topic + "/summary" }
func (h *Handler) AlarmTopic() string   { return h.topic + "/alarm" }

func (h *Handler) Process(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(h.broker).
		SetClientID("powersim-" + h.pid.String()).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			h.log.Warn().Err(err).Msg("connection lost")
		})
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)

	h.log.Info().Str("broker", h.broker).Msg("process started")
	h.forward(ctx, clientSender(client))
	h.log.Info().Msg("process shutdown")
	return nil
}

func (h *Handler) forward(ctx context.Context, send sendFunc) {
	for {
		select {
		case m, ok := <-h.status:
			if !ok {
				return
			}
			s, ok := m.Payload().(sim.State)
			if !ok {
				continue
			}
			data, err := json.Marshal(s.Summary())
			if err == nil {
				err = send(h.SummaryTopic(), summaryQoS, data)
			}
			if err != nil {
				h.log.Error().Err(err).Msg("unable to publish summary")
			}
		case m, ok := <-h.alarms:
			if !ok {
				return
			}
			ev, ok := m.Payload().(sim.Event)
			if !ok {
				continue
			}
			data, err := json.Marshal(ev)
			if err == nil {
				err = send(h.AlarmTopic(), alarmQoS, data)
			}
			if err != nil {
				h.log.Error().Err(err).Msg("unable to publish alarm")
			}
		case <-ctx.Done():
			return
		}
	}
}
