// Package msg is the in-process publish/subscribe network that carries tick
// summaries and alarms from the simulation to its observers.
package msg

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Topic names a class of messages.
type Topic int

const (
	// Status carries one summary per committed tick.
	Status Topic = iota
	// Alarm carries rack reboot alarms and other operator-facing events.
	Alarm
)

func (t Topic) String() string {
	switch t {
	case Status:
		return "status"
	case Alarm:
		return "alarm"
	}
	return fmt.Sprintf("topic(%d)", int(t))
}

// Publisher is implemented by anything observers can subscribe to.
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg is a payload tagged with its sender and topic.
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the message topic
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}

// subscriberBuffer is the depth of each subscriber channel. A subscriber
// that falls this far behind loses messages rather than stalling the
// publisher.
const subscriberBuffer = 16

// PubSub fans messages out to subscribers by topic.
type PubSub struct {
	mux         sync.RWMutex
	pid         uuid.UUID
	subscribers map[Topic]map[uuid.UUID]chan Msg
	closed      bool
}

// NewPublisher returns a PubSub whose messages carry pid as the sender.
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{
		pid:         pid,
		subscribers: make(map[Topic]map[uuid.UUID]chan Msg),
	}
}

// PID returns the publisher's PID
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a channel on which the specified topic is broadcast
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return nil, fmt.Errorf("subscribe %v to %v: publisher closed", pid, topic)
	}
	subs, ok := p.subscribers[topic]
	if !ok {
		subs = make(map[uuid.UUID]chan Msg)
		p.subscribers[topic] = subs
	}
	if _, exists := subs[pid]; exists {
		return nil, fmt.Errorf("subscribe %v to %v: already subscribed", pid, topic)
	}
	ch := make(chan Msg, subscriberBuffer)
	subs[pid] = ch
	return ch, nil
}

// Unsubscribe pid from all topic broadcasts and close its channels
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subscribers {
		if ch, ok := subs[pid]; ok {
			close(ch)
			delete(subs, pid)
		}
	}
}

// Publish sends payload to every subscriber of topic. It never blocks.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	p.Forward(New(p.pid, topic, payload))
}

// Forward broadcasts an existing message, keeping its original sender.
func (p *PubSub) Forward(m Msg) {
	p.mux.RLock()
	defer p.mux.RUnlock()
	for _, ch := range p.subscribers[m.topic] {
		select {
		case ch <- m:
		default:
		}
	}
}

// Close unsubscribes everybody. Further subscriptions fail.
func (p *PubSub) Close() {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subscribers {
		for pid, ch := range subs {
			close(ch)
			delete(subs, pid)
		}
	}
	p.closed = true
}
