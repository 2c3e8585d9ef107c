package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const eventQueue = "booking.events"

// Publisher emits booking lifecycle events to RabbitMQ. A nil *Publisher is
// safe to publish on and does nothing, so event delivery stays optional.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher dials the broker and declares the durable event queue.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		eventQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}

	return &Publisher{conn: conn, ch: ch}, nil
}

// Publish emits an event. Failures are logged and returned; callers treat
// event delivery as fire-and-forget and never fail a request over it.
func (p *Publisher) Publish(ctx context.Context, event BookingEvent) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("[QUEUE] marshal event type=%s booking=%s err=%v", event.Type, event.BookingID, err)
		return err
	}

	err = p.ch.PublishWithContext(ctx,
		"",         // default exchange
		eventQueue, // routing key = queue name
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		log.Printf("[QUEUE] publish type=%s booking=%s err=%v", event.Type, event.BookingID, err)
		return err
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	_ = p.ch.Close()
	_ = p.conn.Close()
}
