package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lifelink-api/internal/observability/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MessageHandler processes one delivery body. A returned error requeues the
// message unless it is permanent.
type MessageHandler func(ctx context.Context, body json.RawMessage) error

// PermanentError marks a message that must be dropped rather than requeued.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// ConsumerOptions bounds how deliveries are processed.
type ConsumerOptions struct {
	Workers    int           // concurrent handlers, also the prefetch count
	RunTimeout time.Duration // per-delivery handler deadline, 0 = none
}

type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	keys    []string
	workers int
	timeout time.Duration
	handler MessageHandler
	logger  *zap.Logger

	deadMu sync.Mutex
	dead   amqpChannel
}

// NewConsumer declares queueName and its dead letter queue, binds both to
// every routing key and sets the prefetch to opts.Workers.
func NewConsumer(url, queueName string, routingKeys []string, opts ConsumerOptions, logger *zap.Logger) (*Consumer, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	closeAll := func() {
		ch.Close()
		conn.Close()
	}
	if err := DeclareExchange(ch); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	if _, err := DeclareDLQ(ch, queueName, routingKeys); err != nil {
		closeAll()
		return nil, err
	}
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	for _, key := range routingKeys {
		if err := ch.QueueBind(q.Name, key, ExchangeName, false, nil); err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
	}
	if err := ch.Qos(opts.Workers, 0, false); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	logger.Info("consumer initialized",
		zap.String("queue", queueName),
		zap.Strings("routing_keys", routingKeys),
		zap.String("exchange", ExchangeName),
		zap.Int("workers", opts.Workers),
	)
	return &Consumer{
		conn:    conn,
		channel: ch,
		queue:   q,
		keys:    routingKeys,
		workers: opts.Workers,
		timeout: opts.RunTimeout,
		logger:  logger,
		dead:    ch,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Start consumes until ctx is done or the delivery channel closes. Every
// message is acked or nacked exactly once.
func (c *Consumer) Start(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}
	c.logger.Info("consumer started", zap.String("queue", c.queue.Name))
	return c.consume(ctx, deliveries)
}

// consume hands deliveries to at most c.workers handlers at a time and waits
// for in-flight handlers before returning.
func (c *Consumer) consume(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	var g errgroup.Group
	g.SetLimit(max(c.workers, 1))
	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			g.Go(func() error {
				c.handle(ctx, msg)
				return nil
			})
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panic recovered", zap.String("routing_key", msg.RoutingKey), zap.Any("panic", r))
			if err := msg.Nack(false, false); err != nil {
				c.logger.Error("failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := c.handler(runCtx, msg.Body)
	if err == nil {
		if aerr := msg.Ack(false); aerr != nil {
			c.logger.Error("failed to ack message", zap.String("routing_key", msg.RoutingKey), zap.Error(aerr))
		}
		return
	}

	var perm *PermanentError
	switch {
	case errors.As(err, &perm):
		c.logger.Info("message dropped", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
		c.nack(msg, false)
	case ctx.Err() != nil, !msg.Redelivered:
		// Shutdown or first failure: give it back to the queue.
		c.logger.Warn("handler error, requeueing", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
		c.nack(msg, true)
	default:
		c.deadLetter(ctx, msg, err)
	}
}

// deadLetter moves a delivery that failed again after redelivery to the DLQ.
// If the DLQ publish fails the message is requeued instead of lost.
func (c *Consumer) deadLetter(ctx context.Context, msg amqp.Delivery, cause error) {
	c.deadMu.Lock()
	err := c.dead.PublishWithContext(context.WithoutCancel(ctx),
		DLQExchangeName,
		msg.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         msg.Body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers: amqp.Table{
				"x-original-error": cause.Error(),
				"x-original-queue": c.queue.Name,
			},
		},
	)
	c.deadMu.Unlock()
	if err != nil {
		c.logger.Error("failed to dead-letter message", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
		c.nack(msg, true)
		return
	}

	metrics.MessagesDeadLettered.WithLabelValues(msg.RoutingKey).Inc()
	c.logger.Error("message dead-lettered",
		zap.String("routing_key", msg.RoutingKey),
		zap.String("dlq", c.queue.Name+".dlq"),
		zap.Error(cause),
	)
	if aerr := msg.Ack(false); aerr != nil {
		c.logger.Error("failed to ack dead-lettered message", zap.String("routing_key", msg.RoutingKey), zap.Error(aerr))
	}
}

func (c *Consumer) nack(msg amqp.Delivery, requeue bool) {
	if err := msg.Nack(false, requeue); err != nil {
		c.logger.Error("failed to nack message", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
	}
}
