package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"github.com/pralapin/school-service/internal/config"
	"github.com/pralapin/school-service/internal/core/ports"
)

// RabbitMQBroker queues push messages for the notifier process. As a
// ports.PushSender it reports a queued batch as a success for every token.
type RabbitMQBroker struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	queueName string
	cb        *gobreaker.CircuitBreaker
}

var _ ports.PushSender = (*RabbitMQBroker)(nil)

func NewRabbitMQBroker(amqpURL, queueName string) (*RabbitMQBroker, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	// Declare the queue (idempotent)
	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitMQBroker{
		conn:      conn,
		ch:        ch,
		queueName: queueName,
		cb:        config.NewCircuitBreaker("RabbitMQ-Publisher"),
	}, nil
}

func (rmq *RabbitMQBroker) Send(ctx context.Context, msg ports.PushMessage) (ports.BatchResult, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return ports.BatchResult{}, err
	}

	// Respect context deadline
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= 0 {
		return ports.BatchResult{}, ctx.Err()
	}

	_, err = rmq.cb.Execute(func() (interface{}, error) {
		return nil, rmq.ch.PublishWithContext(
			ctx,
			"",            // exchange (default)
			rmq.queueName, // routing key == queue name
			false,         // mandatory
			false,         // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
			},
		)
	})
	if err != nil {
		return ports.BatchResult{FailureCount: len(msg.Tokens)}, fmt.Errorf("queue push batch: %w", err)
	}
	return ports.BatchResult{SuccessCount: len(msg.Tokens)}, nil
}

// Consume delivers queued messages to handle until ctx is cancelled or the
// channel closes. Messages are acked after handling; undecodable ones are
// dropped.
func (rmq *RabbitMQBroker) Consume(ctx context.Context, handle func(context.Context, ports.PushMessage) error) error {
	deliveries, err := rmq.ch.Consume(
		rmq.queueName,
		"",    // consumer tag
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("rabbitmq: delivery channel closed")
			}
			var msg ports.PushMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				_ = d.Nack(false, false)
				continue
			}
			// Delivery is never retried.
			_ = handle(ctx, msg)
			_ = d.Ack(false)
		}
	}
}

func (rmq *RabbitMQBroker) Close() error {
	if rmq.ch != nil {
		if err := rmq.ch.Close(); err != nil {
			return err
		}
	}
	if rmq.conn != nil {
		return rmq.conn.Close()
	}
	return nil
}

// IsOpen reports whether the underlying connection is still usable.
func (rmq *RabbitMQBroker) IsOpen() bool {
	return rmq.conn != nil && !rmq.conn.IsClosed()
}
