package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType names an outcome event published after dispatch decisions.
type EventType string

const (
	EventNudgeSent               EventType = "nudge.sent"
	EventSubscriptionDeactivated EventType = "subscription.deactivated"
	EventDispatchCompleted       EventType = "dispatch.completed"
)

// Event is the envelope for all outcome events.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	RunID     string          `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NudgeSentData describes one successful delivery.
type NudgeSentData struct {
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	PersonaID      string `json:"persona_id,omitempty"`
	Kind           Kind   `json:"nudge_type"`
	Style          Style  `json:"style"`
	Generated      bool   `json:"generated"`
	ContentHash    string `json:"content_hash"`
}

// SubscriptionDeactivatedData describes an endpoint reported gone.
type SubscriptionDeactivatedData struct {
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	Reason         string `json:"reason"`
}

// DispatchCompletedData carries the run counters without per-item results.
type DispatchCompletedData struct {
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Total      int    `json:"total"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// NewEvent creates a new event with the given type and data.
func NewEvent(runID string, eventType EventType, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        "evt_" + uuid.New().String(),
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Data:      dataBytes,
	}, nil
}

// Publisher is satisfied by messaging.KafkaProducer.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// EventEmitter publishes outcome events on a best-effort basis. Failures are
// logged and never change the outcome of a subscription.
type EventEmitter struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewEventEmitter(publisher Publisher, logger *slog.Logger) *EventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventEmitter{publisher: publisher, logger: logger}
}

// Emit publishes one event keyed by key. A nil emitter or publisher is a no-op.
func (e *EventEmitter) Emit(ctx context.Context, runID, key string, eventType EventType, data interface{}) {
	if e == nil || e.publisher == nil {
		return
	}

	event, err := NewEvent(runID, eventType, data)
	if err != nil {
		e.logger.ErrorContext(ctx, "encode event data", "type", eventType, "error", err)
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		e.logger.ErrorContext(ctx, "encode event", "type", eventType, "error", err)
		return
	}
	if err := e.publisher.Publish(ctx, key, body); err != nil {
		e.logger.WarnContext(ctx, "publish event", "type", eventType, "key", key, "error", err)
	}
}
