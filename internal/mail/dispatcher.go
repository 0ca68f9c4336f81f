package mail

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hongminglow/lms-be/internal/metrics"
)

const defaultSendTimeout = 30 * time.Second

// Dispatcher delivers messages on a fixed pool of workers so request
// handlers never wait on the mail relay.
type Dispatcher struct {
	transport   Transport
	log         zerolog.Logger
	queue       chan Message
	sendTimeout time.Duration

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewDispatcher(transport Transport, queueSize, workers int, log zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		transport:   transport,
		log:         log.With().Str("component", "mail.dispatcher").Str("transport", transport.Name()).Logger(),
		queue:       make(chan Message, queueSize),
		sendTimeout: defaultSendTimeout,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Enqueue schedules msg for delivery. It never blocks: when the queue is
// full or the dispatcher is closed the message is dropped and false returned.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(msg, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.drop(msg, "queue full")
		return false
	}
}

// Close stops accepting messages and waits for queued ones to be sent or for
// ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.send(msg)
	}
}

func (d *Dispatcher) send(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	if err := d.transport.Send(ctx, msg); err != nil {
		metrics.MailDispatch.WithLabelValues(msg.Kind, "failed").Inc()
		d.log.Error().Err(err).Str("kind", msg.Kind).Strs("to", msg.To).Msg("mail delivery failed")
		return
	}
	metrics.MailDispatch.WithLabelValues(msg.Kind, "sent").Inc()
	d.log.Debug().Str("kind", msg.Kind).Strs("to", msg.To).Msg("mail sent")
}

func (d *Dispatcher) drop(msg Message, reason string) {
	metrics.MailDispatch.WithLabelValues(msg.Kind, "dropped").Inc()
	d.log.Warn().Str("kind", msg.Kind).Strs("to", msg.To).Str("reason", reason).Msg("mail dropped")
}
