package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/medflow/medpredict-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Consumer handles consuming events from RabbitMQ
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger
}

// NewConsumer creates a new consumer for the given queue
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	// Declare the queue
	_, err := rmq.DeclareQueue(queueName)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log,
	}, nil
}

// Subscribe subscribes to an exchange with a routing key pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	// Declare the exchange first
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Bind the queue to the exchange
	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")

	return nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start starts consuming messages from the queue. When the broker closes
// the delivery channel the consumer reconnects and resumes until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.consume()
	if err != nil {
		return err
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go func() {
		for {
			if !c.drain(ctx, msgs) {
				c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
				return
			}

			c.logger.Warn().Str("queue", c.queueName).Msg("message channel closed, reconnecting")
			if err := c.rmq.Reconnect(ctx); err != nil {
				c.logger.Error().Err(err).Str("queue", c.queueName).Msg("consumer gave up reconnecting")
				return
			}
			if msgs, err = c.consume(); err != nil {
				c.logger.Error().Err(err).Str("queue", c.queueName).Msg("failed to resume consuming")
				return
			}
		}
	}()

	return nil
}

func (c *Consumer) consume() (<-chan amqp.Delivery, error) {
	msgs, err := c.rmq.Channel().Consume(
		c.queueName, // queue
		"",          // consumer tag (auto-generated)
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	return msgs, nil
}

// drain handles deliveries until ctx is done (false) or the channel closes
// (true).
func (c *Consumer) drain(ctx context.Context, msgs <-chan amqp.Delivery) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-msgs:
			if !ok {
				return ctx.Err() == nil
			}
			c.handleMessage(ctx, msg)
		}
	}
}

// ack outcomes for a delivery
type ackAction int

const (
	actionAck ackAction = iota
	actionRequeue
	actionReject
)

// maxDeaths is how many times an event may pass through the dead letter
// exchange (e.g. replayed from the DLQ) before failures stop being retried.
const maxDeaths = 3

// permanentError marks a handler failure that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the consumer dead-letters the event instead of
// requeueing it, e.g. for a payload that does not decode.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var err error
	switch c.dispatch(ctx, msg.Body, msg.Redelivered, getRetryCount(msg)) {
	case actionAck:
		err = msg.Ack(false)
	case actionRequeue:
		err = msg.Nack(false, true)
	case actionReject:
		err = msg.Reject(false)
	}
	if err != nil {
		c.logger.Error().Err(err).Str("queue", c.queueName).Msg("failed to settle delivery")
	}
}

// dispatch decodes one delivery, runs its handler and decides how to settle
// it. Events without a handler are acknowledged and dropped. A failing event
// is requeued once; a redelivery that fails again is dead-lettered.
func (c *Consumer) dispatch(ctx context.Context, body []byte, redelivered bool, deaths int) ackAction {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error().Err(err).Str("queue", c.queueName).Msg("failed to unmarshal event")
		return actionReject
	}

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().
			Str("event_type", event.Type).
			Msg("no handler registered for event type")
		return actionAck
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)
	log := c.logger.WithCorrelationID(event.CorrelationID)

	log.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Msg("processing event")

	err := handler(ctx, &event)
	if err == nil {
		return actionAck
	}

	var perm *permanentError
	switch {
	case errors.As(err, &perm):
		log.Warn().Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Msg("event cannot be processed, sending to DLQ")
		return actionReject
	case redelivered || deaths >= maxDeaths:
		log.Warn().Err(err).
			Str("event_id", event.ID).
			Bool("redelivered", redelivered).
			Int("death_count", deaths).
			Msg("retry exhausted, sending to DLQ")
		return actionReject
	default:
		log.Error().Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Msg("failed to process event, requeueing")
		return actionRequeue
	}
}

// getRetryCount sums the x-death counts the broker attached to msg.
func getRetryCount(msg amqp.Delivery) int {
	deaths, ok := msg.Headers["x-death"].([]interface{})
	if !ok {
		return 0
	}

	total := 0
	for _, death := range deaths {
		if d, ok := death.(amqp.Table); ok {
			if count, ok := d["count"].(int64); ok {
				total += int(count)
			}
		}
	}
	return total
}
