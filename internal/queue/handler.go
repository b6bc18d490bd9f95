package queue

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// MaxRetries is the number of redeliveries before a message is dead-lettered.
const MaxRetries = 10

const retriesHeader = "x-retries"

// Retries reads the redelivery counter of a message.
func Retries(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// RetryTarget names the queue a failed message of queueName goes to next.
func RetryTarget(queueName string, headers amqp091.Table, err error) string {
	if errors.Is(err, ErrInvalidMessage) || Retries(headers) >= MaxRetries {
		return queueName + "_dlq"
	}
	return queueName + "_retry"
}

// HandleProcessingError republishes msg to the retry or dead letter queue
// and acks it. If republishing fails the message is requeued.
func HandleProcessingError(ctx context.Context, ch Publisher, msg amqp091.Delivery, queueName string, procErr error) {
	target := RetryTarget(queueName, msg.Headers, procErr)

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if target == queueName+"_retry" {
		headers[retriesHeader] = int32(Retries(msg.Headers) + 1)
		logger.Warn("[Queue] Sending message to retry queue", "queue", target, "retries", headers[retriesHeader], "err", procErr)
	} else {
		logger.Error("[Queue] Sending message to DLQ", "dlq", target, "err", procErr)
	}

	pubErr := ch.PublishWithContext(ctx, "", target, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if pubErr != nil {
		logger.Error("[Queue] Failed to republish message", "queue", target, "err", pubErr)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
