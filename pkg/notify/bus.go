// Package notify is the in-process fan-out of lifecycle, presence and chat
// events. Every chat subscription and every chat delivery is checked against
// the live participants of the request.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vecinotech/vecinotech/pkg/logger"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/telemetry"
)

var tracer = otel.Tracer("vecinotech/pkg/notify")

const DefaultBufferSize = 64

var (
	ErrForbidden = errors.New("subscriber is not allowed on this topic")
	ErrClosed    = errors.New("bus is closed")
)

// ParticipantLookup returns the current participants of a request.
type ParticipantLookup interface {
	ParticipantsOf(ctx context.Context, requestID string) (storage.Participants, error)
}

// Subscription receives the events of one topic for one subscriber until it
// is unsubscribed or the bus closes, after which Events is closed.
type Subscription struct {
	Topic        Topic
	SubscriberID string

	mu      sync.Mutex
	events  chan Event
	closed  bool
	dropped int
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Dropped returns how many events did not fit in the buffer.
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// deliver never blocks.
func (s *Subscription) deliver(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.events <- ev:
		return true
	default:
		s.dropped++
		return false
	}
}

func (s *Subscription) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.closed = true
	close(s.events)
	return true
}

type BusOption func(*Bus)

func WithBufferSize(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

func WithLogger(l logger.Logger) BusOption {
	return func(b *Bus) {
		b.logger = l
	}
}

// Bus is a process local registry of topic subscriptions.
type Bus struct {
	lookup     ParticipantLookup
	logger     logger.Logger
	bufferSize int

	mu     sync.RWMutex
	topics map[Topic]map[*Subscription]struct{}
	closed bool
}

func NewBus(lookup ParticipantLookup, opts ...BusOption) *Bus {
	b := &Bus{
		lookup:     lookup,
		logger:     logger.NewNoopLogger(),
		bufferSize: DefaultBufferSize,
		topics:     make(map[Topic]map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// authorize checks subscriberID against topic. For chat topics the request
// participants are read through the lookup on every call.
func (b *Bus) authorize(ctx context.Context, topic Topic, subscriberID string) error {
	if subscriberID == "" {
		return ErrForbidden
	}

	switch topic.Family {
	case FamilyUser:
		if topic.ID != subscriberID {
			return ErrForbidden
		}
		return nil
	case FamilyChat:
		participants, err := b.lookup.ParticipantsOf(ctx, topic.ID)
		if err != nil {
			return err
		}
		if !participants.Contains(subscriberID) {
			return ErrForbidden
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
}

// Subscribe registers subscriberID on topic once authorized.
func (b *Bus) Subscribe(ctx context.Context, topic Topic, subscriberID string) (*Subscription, error) {
	ctx, span := tracer.Start(ctx, "notify.Subscribe")
	defer span.End()
	span.SetAttributes(attribute.String("topic", topic.String()))

	if err := b.authorize(ctx, topic, subscriberID); err != nil {
		if errors.Is(err, ErrForbidden) {
			rejectedCounter.WithLabelValues(string(topic.Family), "subscribe").Inc()
		}
		telemetry.TraceError(span, err)
		return nil, err
	}

	sub := &Subscription{
		Topic:        topic,
		SubscriberID: subscriberID,
		events:       make(chan Event, b.bufferSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	subscriptionsGauge.WithLabelValues(string(topic.Family)).Inc()

	return sub, nil
}

// Unsubscribe removes sub and closes its channel. It is safe to call more
// than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	if subs, ok := b.topics[sub.Topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, sub.Topic)
		}
	}
	b.mu.Unlock()

	if sub.close() {
		subscriptionsGauge.WithLabelValues(string(sub.Topic.Family)).Dec()
	}
}

// Publish fans ev out to the current subscribers of topic and returns how
// many received it. Chat subscribers are checked against the participants read
// once for this publish; the ones no longer allowed are skipped. A full
// subscriber buffer drops the event for that subscriber only.
func (b *Bus) Publish(ctx context.Context, topic Topic, ev Event) (int, error) {
	ctx, span := tracer.Start(ctx, "notify.Publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("topic", topic.String()),
		attribute.String("kind", string(ev.Kind)),
	)

	ev.Topic = topic
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return 0, ErrClosed
	}
	subs := make([]*Subscription, 0, len(b.topics[topic]))
	for sub := range b.topics[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	publishedCounter.WithLabelValues(string(topic.Family), string(ev.Kind)).Inc()
	if len(subs) == 0 {
		return 0, nil
	}

	var participants *storage.Participants
	if topic.Family == FamilyChat {
		p, err := b.lookup.ParticipantsOf(ctx, topic.ID)
		if err != nil {
			telemetry.TraceError(span, err)
			return 0, fmt.Errorf("participants of %s: %w", topic.ID, err)
		}
		participants = &p
	}

	family := string(topic.Family)
	var delivered int
	for _, sub := range subs {
		if participants != nil && !participants.Contains(sub.SubscriberID) {
			rejectedCounter.WithLabelValues(family, "publish").Inc()
			b.logger.DebugWithContext(ctx, "skipping subscriber no longer participant",
				zap.String("topic", topic.String()),
				zap.String("subscriber_id", sub.SubscriberID))
			continue
		}

		if sub.deliver(ev) {
			delivered++
			deliveredCounter.WithLabelValues(family).Inc()
			continue
		}
		droppedCounter.WithLabelValues(family).Inc()
		b.logger.WarnWithContext(ctx, "subscriber buffer full, event dropped",
			zap.String("topic", topic.String()),
			zap.String("subscriber_id", sub.SubscriberID),
			zap.String("kind", string(ev.Kind)))
	}

	span.SetAttributes(attribute.Int("delivered", delivered))
	return delivered, nil
}

// Subscribers returns the ids currently subscribed to topic.
func (b *Bus) Subscribers(topic Topic) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.topics[topic]))
	for sub := range b.topics[topic] {
		ids = append(ids, sub.SubscriberID)
	}
	return ids
}

// Close ends every subscription. Later calls to Subscribe and Publish return
// ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	topics := b.topics
	b.topics = make(map[Topic]map[*Subscription]struct{})
	b.mu.Unlock()

	for _, subs := range topics {
		for sub := range subs {
			if sub.close() {
				subscriptionsGauge.WithLabelValues(string(sub.Topic.Family)).Dec()
			}
		}
	}
}
