package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "booking.events"

// dialTimeout bounds the TCP connect of a (re)dial.
const dialTimeout = 5 * time.Second

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("amqp publisher closed")

// AMQPPublisher writes events as persistent JSON messages to a durable queue.
// A dropped connection or channel is redialed on the next Publish.
type AMQPPublisher struct {
	mu     sync.Mutex
	url    string
	queue  string
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

// DialAMQP connects to the broker and declares the durable queue.
func DialAMQP(url, queue string) (*AMQPPublisher, error) {
	p := newAMQPPublisher(url, queue)
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func newAMQPPublisher(url, queue string) *AMQPPublisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPPublisher{url: url, queue: queue}
}

// connect dials, opens a channel and declares the queue. Callers hold p.mu
// or own p exclusively.
func (p *AMQPPublisher) connect() error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Locale: "en_US",
		Dial:   amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		p.queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare queue %s: %w", p.queue, err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// drop releases a broken connection so the next Publish redials.
func (p *AMQPPublisher) drop() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Publish sends event to the queue through the default exchange.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}
	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	if p.ch == nil || p.ch.IsClosed() || p.conn.IsClosed() {
		p.drop()
		if err := p.connect(); err != nil {
			return fmt.Errorf("publish %s: %w", event.Type, err)
		}
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			p.drop()
		}
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close closes the channel and the connection. Later publishes fail with
// ErrPublisherClosed.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var chErr, connErr error
	if p.ch != nil {
		chErr = p.ch.Close()
	}
	if p.conn != nil {
		connErr = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
	if chErr != nil {
		return chErr
	}
	return connErr
}

func newPublishing(event Event) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Body:         body,
	}, nil
}
