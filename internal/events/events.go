// Package events announces analysis progress to other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Event is a status update for one analysis run.
type Event struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	TargetRole string    `json:"target_role,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP publishes events to a durable topic exchange with routing key "analysis.<status>".
type AMQP struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
}

// DialAMQP connects to url and declares exchange.
func DialAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %q: %w", exchange, err)
	}

	return &AMQP{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *AMQP) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.Publish(p.exchange, "analysis."+e.Status, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.At,
		MessageId:    e.RunID,
		Body:         body,
	})
}

func (p *AMQP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
