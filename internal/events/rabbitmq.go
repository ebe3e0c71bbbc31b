package events

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

var errNotConnected = errors.New("not connected to a server")

// RabbitMQPublisher publishes events to a durable queue through the default
// exchange. A dropped connection is re-dialled on the next publish.
type RabbitMQPublisher struct {
	addr      string
	queueName string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQPublisher dials the broker and declares the queue.
func NewRabbitMQPublisher(addr, queueName string) (*RabbitMQPublisher, error) {
	p := &RabbitMQPublisher{addr: addr, queueName: queueName}
	if err := p.connect(); err != nil {
		return nil, err
	}
	log.Printf("INFO: Connected to RabbitMQ, publishing to queue %q", queueName)
	return p, nil
}

// connect must be called with mu held (or before the publisher is shared).
func (p *RabbitMQPublisher) connect() error {
	conn, err := amqp.Dial(p.addr)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	_, err = ch.QueueDeclare(
		p.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn = conn
	p.channel = ch
	return nil
}

func (p *RabbitMQPublisher) ready() bool {
	return p.conn != nil && !p.conn.IsClosed() && p.channel != nil && !p.channel.IsClosed()
}

// Publish encodes e as JSON and sends it as a persistent message.
func (p *RabbitMQPublisher) Publish(ctx context.Context, e Event) error {
	body, err := e.Encode()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready() {
		log.Printf("WARN: RabbitMQ connection lost, reconnecting to publish %s", e.Name)
		if err := p.connect(); err != nil {
			return errors.Join(errNotConnected, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.channel.PublishWithContext(
		ctx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         e.Name,
			Timestamp:    e.OccurredAt,
			Body:         body,
		},
	)
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
