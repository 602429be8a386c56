// Package events publishes domain events to Kafka. Publishing is best-effort:
// callers log failures and carry on, the database stays the source of truth.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicOrders   = "order_events"
	TopicGallery  = "gallery_events"
	TopicMessages = "message_events"
	TopicInvoices = "invoice_events"
)

const (
	OrderRecorded      = "order_recorded"
	DisplayIDsAssigned = "display_ids_assigned"
	GallerySaved       = "gallery_saved"
	MessageReceived    = "message_received"
	InvoiceSent        = "invoice_sent"
	InvoicePaid        = "invoice_paid"
)

type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

func New(typ string, data any) Event {
	return Event{Type: typ, At: time.Now().UTC(), Data: data}
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event Event) error
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
		BatchTimeout:           10 * time.Millisecond,
	}}
}

func message(topic, key string, event Event) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}

func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event Event) error {
	msg, err := message(topic, key, event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write to %s failed: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Discard drops every event. Used when no brokers are configured.
type Discard struct{}

func (Discard) PublishEvent(context.Context, string, string, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

type Recorded struct {
	Topic string
	Key   string
	Event Event
}

func (r *Recorder) PublishEvent(_ context.Context, topic, key string, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Recorded{Topic: topic, Key: key, Event: event})
	return nil
}

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Event.Type
	}
	return out
}
