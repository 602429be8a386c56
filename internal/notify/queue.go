package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EmailJob is one message for the mail worker. Text is always set; the
// worker owns templates and provider details.
type EmailJob struct {
	Kind    string            `json:"kind"`
	To      string            `json:"to"`
	ReplyTo string            `json:"reply_to,omitempty"`
	Subject string            `json:"subject"`
	Text    string            `json:"text"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type Mailer interface {
	Enqueue(ctx context.Context, job EmailJob) error
}

// Queue publishes jobs to the durable mail queue.
type Queue struct {
	pool      *ChannelPool
	queueName string
}

func NewQueue(pool *ChannelPool, queueName string) *Queue {
	return &Queue{pool: pool, queueName: queueName}
}

func (q *Queue) Enqueue(ctx context.Context, job EmailJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal email job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ch, err := q.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get channel from pool: %w", err)
	}
	defer q.pool.Put(ch)

	err = ch.PublishWithContext(ctx,
		"",          // default exchange
		q.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         job.Kind,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish email job: %w", err)
	}
	return nil
}
