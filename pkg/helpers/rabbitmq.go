package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitQueue wraps an AMQP connection bound to one durable queue. The API
// publishes to it and the email worker consumes from it.
type RabbitQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	Queue string
}

func NewRabbitQueue(url, queue string) (*RabbitQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &RabbitQueue{conn: conn, ch: ch, Queue: queue}, nil
}

func (q *RabbitQueue) Close() {
	if q == nil {
		return
	}
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		_ = q.conn.Close()
	}
}

// PublishJSON publishes a persistent JSON message to the queue.
func (q *RabbitQueue) PublishJSON(ctx context.Context, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return q.ch.PublishWithContext(ctx,
		"",      // default exchange
		q.Queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         b,
		},
	)
}

// Ack decides what happens to a delivery after handling.
type Ack int

const (
	AckDone Ack = iota
	AckDrop     // nack without requeue
	AckRetry    // nack with requeue
)

// Consume delivers messages to handle until ctx is cancelled or the channel
// closes. prefetch bounds unacked deliveries.
func (q *RabbitQueue) Consume(ctx context.Context, prefetch int, handle func(context.Context, []byte) Ack) error {
	if err := q.ch.Qos(prefetch, 0, false); err != nil {
		return err
	}
	msgs, err := q.ch.Consume(q.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("rabbitmq: delivery channel closed")
			}
			switch handle(ctx, msg.Body) {
			case AckDone:
				_ = msg.Ack(false)
			case AckDrop:
				_ = msg.Nack(false, false)
			default:
				_ = msg.Nack(false, true)
			}
		}
	}
}
