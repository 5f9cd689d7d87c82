package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lifelink-api/internal/domain"
	"github.com/lifelink-api/internal/observability/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes JSON events to the events exchange. amqp channels are
// not safe for concurrent publishes, so calls are serialised.
type Publisher struct {
	conn    *amqp.Connection
	channel amqpChannel
	mu      sync.Mutex
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &Publisher{conn: conn, channel: ch}, nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// IsConnected reports whether the broker connection is still open.
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

// Publish publishes payload as JSON under routingKey.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	err = p.channel.PublishWithContext(ctx,
		ExchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
		},
	)
	p.mu.Unlock()

	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.EventsPublished.WithLabelValues(routingKey, result).Inc()
	return err
}

type eventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// DispatchTrigger hands dispatch runs to the worker by publishing the
// trigger event the dispatch queue is bound to.
type DispatchTrigger struct {
	pub eventPublisher
}

func NewDispatchTrigger(pub eventPublisher) *DispatchTrigger {
	return &DispatchTrigger{pub: pub}
}

func (t *DispatchTrigger) Enqueue(ctx context.Context, requestID, trigger string) error {
	return t.pub.Publish(ctx, trigger, domain.RequestEvent{
		RequestID:  requestID,
		Status:     domain.RequestOpen,
		OccurredAt: time.Now().UTC(),
	})
}
