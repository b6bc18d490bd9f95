// Package queue moves ingest jobs through RabbitMQ.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kiwi-insure/internal/config"
	"github.com/OFFIS-RIT/kiwi-insure/internal/util"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// IngestQueue carries IngestMsg bodies.
const IngestQueue = "ingest_queue"

// RetryDelay is how long a failed message waits in the _retry queue.
const RetryDelay = 10 * time.Second

// Publisher is the publishing side of an amqp091 channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Declarer is the queue declaring side of an amqp091 channel.
type Declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
}

const dialAttempts = 5

// Init dials RabbitMQ, retrying with backoff while the broker starts up.
func Init(ctx context.Context, cfg config.QueueConfig) (*amqp091.Connection, error) {
	conn, err := util.RetryWithBackoff(ctx, dialAttempts, util.Backoff{Initial: time.Second, Max: 8 * time.Second},
		func(context.Context) (*amqp091.Connection, error) {
			conn, err := amqp091.Dial(cfg.URL())
			if err != nil {
				logger.Debug("[Queue] Dial failed", "host", cfg.Host, "err", err)
			}
			return conn, err
		})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares every queue with its _dlq and a _retry queue that
// dead-letters back into the queue after RetryDelay.
func SetupQueues(ch Declarer, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("QueueDeclare %s failed: %w", name, err)
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("QueueDeclare %s failed: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(RetryDelay / time.Millisecond),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("QueueDeclare %s failed: %w", retryName, err)
		}
		logger.Debug("[Queue] Declared queue", "queue", name)
	}
	return nil
}

// PublishFIFO publishes data persistently to the default exchange.
func PublishFIFO(ctx context.Context, ch Publisher, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}
	return ch.PublishWithContext(ctx, "", queueName, false, false, publishing)
}
