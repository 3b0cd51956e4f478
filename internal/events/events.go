package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/kairos100/swissluca-backend/pkg/logger"
)

// Type names a domain event.
type Type string

const (
	TypeActivationCompleted Type = "activation.completed"
	TypePaymentSucceeded    Type = "payment.succeeded"
	TypePaymentFailed       Type = "payment.failed"
)

// Envelope is the JSON body published for every event.
type Envelope struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// NewEnvelope stamps data with a fresh id and the given time.
func NewEnvelope(eventType Type, at time.Time, data any) Envelope {
	return Envelope{ID: uuid.New(), Type: eventType, OccurredAt: at.UTC(), Data: data}
}

// Publisher emits domain events. Implementations must not block the caller
// past ctx.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

type topicPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// PubSubPublisher publishes envelopes to a Pub/Sub topic.
type PubSubPublisher struct {
	topic topicPublisher
}

func NewPubSubPublisher(topic *pubsub.Publisher) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub publisher required")
	}
	return &PubSubPublisher{topic: topic}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", env.Type, err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_id":   env.ID.String(),
			"event_type": string(env.Type),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish event %s: %w", env.Type, err)
	}
	return nil
}

// LogPublisher writes events to the structured log when no broker is configured.
type LogPublisher struct {
	logg *logger.Logger
}

func NewLogPublisher(logg *logger.Logger) *LogPublisher {
	return &LogPublisher{logg: logg}
}

func (p *LogPublisher) Publish(ctx context.Context, env Envelope) error {
	if p.logg == nil {
		return nil
	}
	ctx = p.logg.WithFields(ctx, map[string]any{
		"event_id":   env.ID.String(),
		"event_type": string(env.Type),
		"event_data": env.Data,
	})
	p.logg.Info(ctx, "domain event")
	return nil
}

// Recorder collects envelopes in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Publish(_ context.Context, env Envelope) error {
	r.mu.Lock()
	r.events = append(r.events, env)
	r.mu.Unlock()
	return nil
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, 0, len(r.events))
	for _, env := range r.events {
		out = append(out, env.Type)
	}
	return out
}
