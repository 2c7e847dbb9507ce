package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher delivers booking events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event BookingEvent) error
	Close() error
}

// NopPublisher drops every event. Used when the broker is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, BookingEvent) error { return nil }
func (NopPublisher) Close() error                                { return nil }

// amqpChannel is the part of *amqp.Channel the publisher uses
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a channel with the event queue declared
type dialFunc func() (amqpChannel, func() error, error)

// AMQPPublisher publishes persistent JSON messages to a durable queue.
// The connection is opened lazily and re-dialled after a failed publish.
type AMQPPublisher struct {
	queue  string
	dial   dialFunc
	logger *logrus.Logger

	mu        sync.Mutex
	ch        amqpChannel
	closeConn func() error
}

// NewAMQPPublisher creates a publisher for queue on the broker at url
func NewAMQPPublisher(url, queue string, logger *logrus.Logger) *AMQPPublisher {
	p := &AMQPPublisher{queue: queue, logger: logger}
	p.dial = func() (amqpChannel, func() error, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq dial failed: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("rabbitmq channel open failed: %w", err)
		}
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, nil, fmt.Errorf("rabbitmq queue declare failed: %w", err)
		}
		return ch, conn.Close, nil
	}
	return p
}

// Publish sends event as a persistent message routed to the queue
func (p *AMQPPublisher) Publish(ctx context.Context, event BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		ch, closeConn, err := p.dial()
		if err != nil {
			return err
		}
		p.ch, p.closeConn = ch, closeConn
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(event.Type),
		MessageId:    event.BookingID.String() + ":" + string(event.Type),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.resetLocked()
		return fmt.Errorf("rabbitmq publish failed: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"event":      event.Type,
		"booking_id": event.BookingID,
	}).Debug("Booking event published")
	return nil
}

func (p *AMQPPublisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.closeConn != nil {
		_ = p.closeConn()
	}
	p.ch, p.closeConn = nil, nil
}

// Close releases the broker connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}
