// Package audit publishes processed executions to an external feed.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher closed")

// Event is one processed request as seen by downstream consumers.
type Event struct {
	TraceID    string    `json:"traceId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Input      string    `json:"input"`
	ActionType string    `json:"actionType"`
	Reasoning  string    `json:"reasoning,omitempty"`
	Result     string    `json:"result"`
	Success    bool      `json:"success"`
	DurationMs int64     `json:"durationMs"`
}

// Publisher delivers events. Publish failures are reported to the caller,
// which decides whether they matter.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a Kafka topic, keyed by action type.
type KafkaPublisher struct {
	topic  string
	writer messageWriter
}

// NewKafkaPublisher creates a synchronous producer for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	var addrs []string
	for _, b := range brokers {
		for _, part := range strings.Split(b, ",") {
			if part = strings.TrimSpace(part); part != "" {
				addrs = append(addrs, part)
			}
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("audit: no kafka brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("audit: topic is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{topic: topic, writer: w}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("audit: encode event: %w", err)
	}
	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.ActionType),
		Value: value,
		Time:  ts,
		Headers: []kafka.Header{
			{Key: "trace_id", Value: []byte(evt.TraceID)},
		},
	})
	if err != nil {
		return fmt.Errorf("audit: publish to %s: %w", p.topic, err)
	}
	slog.DebugContext(ctx, "Audit event published", "topic", p.topic, "action", evt.ActionType)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ChannelPublisher is an in-process Publisher backed by a Go channel.
type ChannelPublisher struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

// NewChannelPublisher creates a publisher with the given buffer size.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	return &ChannelPublisher{ch: make(chan Event, buffer)}
}

// Publish queues evt, or fails if ctx is done before there is room or the
// publisher is closed.
func (c *ChannelPublisher) Publish(ctx context.Context, evt Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the event channel. It is closed by Close.
func (c *ChannelPublisher) Events() <-chan Event { return c.ch }

// Close closes the event channel. Further calls are no-ops.
func (c *ChannelPublisher) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
	return nil
}
