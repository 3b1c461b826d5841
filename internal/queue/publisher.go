package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/seat-reservation-engine/internal/logger"
	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

const (
	// DefaultBuffer is the number of messages queued for the broker before
	// publishes start failing.
	DefaultBuffer = 1024

	dialTimeout  = 2 * time.Second
	sendTimeout  = 5 * time.Second
	closeTimeout = 10 * time.Second
)

var (
	// ErrBufferFull is returned when the broker falls behind and the
	// outgoing buffer is full.  The event is dropped.
	ErrBufferFull = errors.New("publisher buffer full")
	// ErrClosed is returned by publishes after Close.
	ErrClosed = errors.New("publisher closed")
)

type message struct {
	queue string
	pub   amqp.Publishing
}

type sendFunc func(ctx context.Context, queue string, pub amqp.Publishing) error

// Publisher publishes domain events to RabbitMQ.  Publishes only enqueue
// the message; one goroutine delivers them in order, dialing lazily and
// redialing once when a publish fails on a dead connection.  Messages are
// persistent.
type Publisher struct {
	url  string
	log  *logger.Logger
	send sendFunc
	out  chan message
	done chan struct{}

	mu     sync.RWMutex // guards closed
	closed bool

	// Owned by the delivery goroutine.
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

// NewPublisher returns a publisher for the broker at url and starts its
// delivery goroutine.  Call Close to flush and stop it.
func NewPublisher(url string, log *logger.Logger) *Publisher {
	return newPublisher(url, log, DefaultBuffer, nil)
}

func newPublisher(url string, log *logger.Logger, buffer int, send sendFunc) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	p := &Publisher{
		url:      url,
		log:      log,
		out:      make(chan message, buffer),
		done:     make(chan struct{}),
		declared: map[string]bool{},
	}
	p.send = send
	if p.send == nil {
		p.send = p.deliver
	}
	go p.run()
	return p
}

// PublishBookingConfirmed queues a BookingConfirmedEvent for the
// booking.confirmed queue.
func (p *Publisher) PublishBookingConfirmed(_ context.Context, b model.Booking) error {
	return p.publish(BookingConfirmedQueue, NewBookingConfirmed(b))
}

// PublishHoldReleased queues a HoldReleasedEvent for the hold.released
// queue.
func (p *Publisher) PublishHoldReleased(_ context.Context, h model.Hold, reason string) error {
	return p.publish(HoldReleasedQueue, NewHoldReleased(h, reason, time.Now()))
}

// publish never blocks on the broker.
func (p *Publisher) publish(queue string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", queue, err)
	}
	m := message{queue: queue, pub: amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("publish %s: %w", queue, ErrClosed)
	}
	select {
	case p.out <- m:
		return nil
	default:
		return fmt.Errorf("publish %s: %w", queue, ErrBufferFull)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for m := range p.out {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := p.send(ctx, m.queue, m.pub); err != nil {
			p.log.WithError(err).Warn("rabbitmq: event dropped", "queue", m.queue)
		}
		cancel()
	}
	p.reset()
}

// deliver publishes one message, redialing once on failure.
func (p *Publisher) deliver(ctx context.Context, queue string, pub amqp.Publishing) error {
	for attempt := 0; attempt < 2; attempt++ {
		ch, err := p.channel(queue)
		if err != nil {
			return err
		}
		// default exchange, routing key = queue name
		err = ch.PublishWithContext(ctx, "", queue, false, false, pub)
		if err == nil {
			return nil
		}
		p.log.WithError(err).Warn("rabbitmq: publish failed", "queue", queue, "attempt", attempt+1)
		p.reset()
		if ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("publish %s: broker unavailable", queue)
}

// channel returns an open channel on which queue has been declared.
func (p *Publisher) channel(queue string) (*amqp.Channel, error) {
	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		p.reset()
		conn, err := amqp.DialConfig(p.url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(dialTimeout),
		})
		if err != nil {
			return nil, fmt.Errorf("rabbitmq dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("rabbitmq channel: %w", err)
		}
		p.conn, p.ch = conn, ch
	}
	if !p.declared[queue] {
		// Durable so messages survive broker restarts.
		if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			p.reset()
			return nil, fmt.Errorf("queue declare %s: %w", queue, err)
		}
		p.declared[queue] = true
	}
	return p.ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
	p.declared = map[string]bool{}
}

// Close stops accepting events, waits for the queued ones to be delivered
// and closes the broker connection.  It gives up after a bounded wait.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.out)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-time.After(closeTimeout):
		return fmt.Errorf("rabbitmq: %d events not delivered", len(p.out))
	}
}
