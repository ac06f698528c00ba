// Package events publishes practice activity to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/ashureev/parley/internal/observability/metrics"
)

// Event types.
const (
	TypeTurnGenerated     = "turn_generated"
	TypeFeedbackEvaluated = "feedback_evaluated"
	TypeAnswerTranscribed = "answer_transcribed"
)

// DefaultTopic receives every practice event.
const DefaultTopic = "practice.events"

// DefaultMaxInFlight bounds concurrent background emits.
const DefaultMaxInFlight = 256

// Event is the JSON envelope written to the topic.
type Event struct {
	ID        string    `json:"id"`
	EventType string    `json:"eventType"`
	LearnerID string    `json:"learnerId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(eventType, learnerID, sessionID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		EventType: eventType,
		LearnerID: learnerID,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers []string
	Topic   string
	Enabled bool
	// EmitTimeout bounds each fire-and-forget publish.
	EmitTimeout time.Duration
	// MaxInFlight caps background emits; extra events are dropped.
	MaxInFlight int
}

// Publisher writes events to one Kafka topic. When disabled it only logs.
type Publisher struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger

	slots  chan struct{}
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a publisher. A nil or disabled config yields log-only mode.
func New(cfg *Config, m *metrics.Metrics, logger *slog.Logger) *Publisher {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		topic:   DefaultTopic,
		timeout: 5 * time.Second,
		metrics: m,
		logger:  logger,
		slots:   make(chan struct{}, DefaultMaxInFlight),
	}
	if cfg == nil {
		logger.Info("Kafka disabled (nil config), using log-only mode")
		return p
	}
	if cfg.Topic != "" {
		p.topic = cfg.Topic
	}
	if cfg.EmitTimeout > 0 {
		p.timeout = cfg.EmitTimeout
	}
	if cfg.MaxInFlight > 0 {
		p.slots = make(chan struct{}, cfg.MaxInFlight)
	}
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logger.Info("Kafka disabled, using log-only mode", "topic", p.topic)
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        p.topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
	p.enabled = true
	logger.Info("Kafka publisher initialized", "brokers", cfg.Brokers, "topic", p.topic)
	return p
}

// Enabled reports whether events reach Kafka.
func (p *Publisher) Enabled() bool { return p.enabled }

// Publish writes one event, keyed by session so a session's events stay ordered.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", "event_type", event.EventType, "error", err)
		return fmt.Errorf("marshal event: %w", err)
	}

	p.logger.Debug("Publishing event",
		"topic", p.topic,
		"event_type", event.EventType,
		"event_id", event.ID,
		"session_id", event.SessionID,
	)

	if !p.enabled || p.writer == nil {
		p.metrics.RecordPublish(event.EventType, nil, time.Since(start).Seconds())
		return nil
	}

	key := event.SessionID
	if key == "" {
		key = event.LearnerID
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(event.EventType)},
			{Key: "eventId", Value: []byte(event.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to write to Kafka", "topic", p.topic, "event_type", event.EventType, "error", err)
		p.metrics.RecordPublish(event.EventType, err, time.Since(start).Seconds())
		return fmt.Errorf("write event: %w", err)
	}

	p.metrics.RecordPublish(event.EventType, nil, time.Since(start).Seconds())
	return nil
}

// Emit publishes in the background. Failures are logged and counted, never
// returned. Events are dropped after Close or when MaxInFlight emits are
// already pending.
func (p *Publisher) Emit(event Event) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("Event emitted after close, dropping", "event_type", event.EventType)
		p.metrics.RecordPublishDropped(event.EventType)
		return
	}
	select {
	case p.slots <- struct{}{}:
	default:
		p.mu.Unlock()
		p.logger.Warn("Too many pending events, dropping", "event_type", event.EventType)
		p.metrics.RecordPublishDropped(event.EventType)
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer func() {
			<-p.slots
			p.wg.Done()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		_ = p.Publish(ctx, event)
	}()
}

// Close stops accepting emits, waits for in-flight ones and closes the
// writer. Calling it again is a no-op.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			p.logger.Error("Error closing Kafka writer", "error", err)
			return err
		}
	}
	return nil
}
