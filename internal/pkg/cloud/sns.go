package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/ohowland/powersim/internal/pkg/msg"
	"github.com/ohowland/powersim/internal/pkg/sim"
	"github.com/rs/zerolog"
)

type publishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier sends every alarm to an SNS topic.
type Notifier struct {
	pid      uuid.UUID
	svc      publishAPI
	topicArn string
	inbox    <-chan msg.Msg
	log      zerolog.Logger
}

func NewNotifier(ctx context.Context, region, topicArn string, system msg.Publisher, logger zerolog.Logger) (*Notifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return newNotifier(sns.NewFromConfig(cfg), topicArn, system, logger)
}

func newNotifier(svc publishAPI, topicArn string, system msg.Publisher, logger zerolog.Logger) (*Notifier, error) {
	pid := uuid.New()
	inbox, err := system.Subscribe(pid, msg.Alarm)
	if err != nil {
		return nil, err
	}
	return &Notifier{
		pid:      pid,
		svc:      svc,
		topicArn: topicArn,
		inbox:    inbox,
		log:      logger.With().Str("component", "sns").Logger(),
	}, nil
}

func alarmSubject(ev sim.Event) string {
	switch ev.Kind {
	case sim.RackReboot:
		return fmt.Sprintf("Power Alert: %s rebooting", ev.Label)
	case sim.BatteryDepleted:
		return fmt.Sprintf("Power Alert: %s battery depleted", ev.Label)
	}
	return fmt.Sprintf("Power Alert: %s", ev.Kind)
}

func alarmMessage(ev sim.Event) string {
	return fmt.Sprintf(
		"Component: %s (%s)\n"+
			"Event: %s\n"+
			"Tick: %d\n"+
			"Simulation time: %s\n",
		ev.Label, ev.ComponentID,
		ev.Kind,
		ev.Tick,
		time.Duration(ev.ClockMs)*time.Millisecond,
	)
}

func (n *Notifier) Process(ctx context.Context) error {
	n.log.Info().Str("topic", n.topicArn).Msg("process started")
	for {
		select {
		case m, ok := <-n.inbox:
			if !ok {
				return nil
			}
			ev, ok := m.Payload().(sim.Event)
			if !ok {
				continue
			}
			out, err := n.svc.Publish(ctx, &sns.PublishInput{
				TopicArn: aws.String(n.topicArn),
				Subject:  aws.String(alarmSubject(ev)),
				Message:  aws.String(alarmMessage(ev)),
			})
			if err != nil {
				n.log.Error().Err(err).Str("id", ev.ComponentID).Msg("failed to publish alarm")
				continue
			}
			n.log.Debug().Str("messageId", aws.ToString(out.MessageId)).Msg("alarm sent")
		case <-ctx.Done():
			n.log.Info().Msg("process shutdown")
			return nil
		}
	}
}
