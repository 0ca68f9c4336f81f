package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const confirmTimeout = 5 * time.Second

// AMQPTransport hands rendered messages to an external mail worker by
// publishing them to a durable topic exchange with publisher confirms.
type AMQPTransport struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPTransport(url, exchange string) (*AMQPTransport, error) {
	t := &AMQPTransport{url: url, exchange: exchange}
	if err := t.connect(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *AMQPTransport) Send(ctx context.Context, msg Message) error {
	pub, err := encodeJob(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureConnected(); err != nil {
		return err
	}

	confirm, err := t.ch.PublishWithDeferredConfirmWithContext(ctx, t.exchange, routingKey(msg), true, false, pub)
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()
	acked, err := confirm.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("amqp confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("amqp publish nacked by broker")
	}
	return nil
}

func (t *AMQPTransport) Name() string { return "amqp" }

// Close releases the channel and connection.
func (t *AMQPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ch != nil {
		_ = t.ch.Close()
		t.ch = nil
	}
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	return nil
}

func (t *AMQPTransport) connect() error {
	conn, err := amqp.Dial(t.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(t.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("amqp exchange declare: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("amqp confirm mode: %w", err)
	}
	t.conn, t.ch = conn, ch
	return nil
}

// ensureConnected must be called with t.mu held.
func (t *AMQPTransport) ensureConnected() error {
	if t.conn != nil && !t.conn.IsClosed() && t.ch != nil && !t.ch.IsClosed() {
		return nil
	}
	return t.connect()
}

func routingKey(msg Message) string {
	if msg.Kind == "" {
		return "mail.generic"
	}
	return "mail." + msg.Kind
}

func encodeJob(msg Message) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode mail job: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         routingKey(msg),
		Body:         body,
	}, nil
}
