package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/jwalitptl/dispensing-api/pkg/circuitbreaker"
	"github.com/jwalitptl/dispensing-api/pkg/messaging"
)

type Config struct {
	URL   string
	Queue string
}

// RabbitMQBroker publishes to durable queues named after the channel.
type RabbitMQBroker struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	cb     *gobreaker.CircuitBreaker
	logger *zerolog.Logger

	mu       sync.Mutex
	declared map[string]bool
}

func NewRabbitMQBroker(config Config, logger *zerolog.Logger) (messaging.Broker, error) {
	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	b := &RabbitMQBroker{
		conn:     conn,
		ch:       ch,
		cb:       circuitbreaker.New(circuitbreaker.DefaultSettings("rabbitmq")),
		logger:   logger,
		declared: make(map[string]bool),
	}

	if config.Queue != "" {
		if err := b.declare(config.Queue); err != nil {
			b.Close()
			return nil, err
		}
	}
	return b, nil
}

func (b *RabbitMQBroker) declare(queue string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.declared[queue] {
		return nil
	}
	_, err := b.ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	b.declared[queue] = true
	return nil
}

func (b *RabbitMQBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= 0 {
		return ctx.Err()
	}

	if err := b.declare(channel); err != nil {
		return err
	}

	_, err = b.cb.Execute(func() (interface{}, error) {
		return nil, b.ch.PublishWithContext(
			ctx,
			"",      // default exchange
			channel, // routing key == queue name
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now().UTC(),
				Body:         body,
			},
		)
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

func (b *RabbitMQBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if err := b.declare(channel); err != nil {
		return nil, err
	}

	deliveries, err := b.ch.ConsumeWithContext(ctx, channel, "", true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", channel, err)
	}

	out := make(chan []byte, 100)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- d.Body:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RabbitMQBroker) Close() error {
	if b.ch != nil {
		if err := b.ch.Close(); err != nil {
			return err
		}
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
