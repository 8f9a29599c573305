package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueSender publishes messages to a RabbitMQ queue for the mail worker to deliver.
type QueueSender struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewQueueSender dials RabbitMQ and declares a durable queue.
func NewQueueSender(url, queue string) (*QueueSender, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("amqp url is required")
	}
	if strings.TrimSpace(queue) == "" {
		return nil, errors.New("mail queue name is required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", queue, err)
	}
	return &QueueSender{conn: conn, channel: ch, queue: queue}, nil
}

// Send publishes msg. Delivery itself happens later in the worker.
func (q *QueueSender) Send(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}
	err = q.channel.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish mail: %w", err)
	}
	return nil
}

// Subscribe consumes queued messages until ctx is done. A handler error requeues the message.
func (q *QueueSender) Subscribe(ctx context.Context, prefetch int, handle func(context.Context, Message) error) error {
	if prefetch > 0 {
		if err := q.channel.Qos(prefetch, 0, false); err != nil {
			return fmt.Errorf("amqp qos: %w", err)
		}
	}

	tag := "mail-worker-" + uuid.NewString()
	deliveries, err := q.channel.Consume(q.queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}
	defer func() { _ = q.channel.Cancel(tag, false) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			var msg Message
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				// Poison message, requeueing would loop forever.
				_ = d.Nack(false, false)
				continue
			}
			if err := handle(ctx, msg); err != nil {
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (q *QueueSender) Close() error {
	if q.channel != nil {
		_ = q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
