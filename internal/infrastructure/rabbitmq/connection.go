package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the topic exchange every domain event is published on.
const ExchangeName = "events"

// DispatchQueue is the durable queue the worker consumes dispatch triggers from.
const DispatchQueue = "dispatch"

// NewConnection dials the broker.
func NewConnection(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareExchange declares the events exchange.
func DeclareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// DLQExchangeName receives deliveries that kept failing after a redelivery.
const DLQExchangeName = "events.dlq"

// DeclareDLQ declares the dead letter exchange and a durable "<queue>.dlq"
// queue bound to the same routing keys as queue.
func DeclareDLQ(ch *amqp.Channel, queue string, routingKeys []string) (amqp.Queue, error) {
	if err := ch.ExchangeDeclare(
		DLQExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queue+".dlq", true, false, false, false, nil)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}
	for _, key := range routingKeys {
		if err := ch.QueueBind(q.Name, key, DLQExchangeName, false, nil); err != nil {
			return amqp.Queue{}, fmt.Errorf("failed to bind DLQ queue to %s: %w", key, err)
		}
	}
	return q, nil
}
