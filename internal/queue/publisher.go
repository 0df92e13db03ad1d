package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const dialTimeout = 3 * time.Second

// AMQPPublisher publishes domain events to RabbitMQ. It opens a connection
// per publish, which is plenty for an event emitted once per sign-up and
// keeps the service usable while the broker is down.
type AMQPPublisher struct {
	url string
	now func() time.Time
}

// NewAMQPPublisher returns a publisher for url. An empty url yields a
// publisher that silently drops events.
func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{url: url, now: time.Now}
}

// Enabled reports whether events are actually sent anywhere.
func (p *AMQPPublisher) Enabled() bool { return p.url != "" }

// PublishUserRegistered sends event to the user.registered queue as a
// persistent JSON message.
func (p *AMQPPublisher) PublishUserRegistered(ctx context.Context, event UserRegisteredEvent) error {
	if !p.Enabled() {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", UserRegisteredQueue, err)
	}
	return p.publish(ctx, UserRegisteredQueue, body)
}

func (p *AMQPPublisher) publish(ctx context.Context, queue string, body []byte) error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}
