package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/seat-reservation-engine/internal/logger"
)

// BookingLog consumes booking.confirmed and hold.released and appends one
// line per event to a log file.
type BookingLog struct {
	url  string
	path string
	log  *logger.Logger
}

// NewBookingLog returns a consumer writing to path.
func NewBookingLog(url, path string, log *logger.Logger) *BookingLog {
	if log == nil {
		log = logger.Nop()
	}
	if path == "" {
		path = filepath.Join("logs", "booking.log")
	}
	return &BookingLog{url: url, path: path, log: log}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  It runs a
// reconnect loop with exponential backoff, so a broker outage never stops
// the server; it only returns once ctx is done.
func (b *BookingLog) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(b.url)
		if err != nil {
			b.log.WithError(err).Warn("booking-consumer: failed to dial broker", "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = b.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.log.WithError(err).Warn("booking-consumer: consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (b *BookingLog) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		b.log.WithError(err).Warn("booking-consumer: set QoS failed")
	}

	type source struct {
		queue string
		msgs  <-chan amqp.Delivery
	}
	var sources []source
	for _, q := range []string{BookingConfirmedQueue, HoldReleasedQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", q, err)
		}
		sources = append(sources, source{queue: q, msgs: msgs})
	}

	confirmed, released := sources[0].msgs, sources[1].msgs
	for {
		var (
			d     amqp.Delivery
			ok    bool
			queue string
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-confirmed:
			queue = BookingConfirmedQueue
		case d, ok = <-released:
			queue = HoldReleasedQueue
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := b.handle(queue, d.Body); err != nil {
			b.log.WithError(err).Error("booking-consumer: handle message failed", "queue", queue)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
}

func (b *BookingLog) handle(queue string, body []byte) error {
	line, err := formatLine(queue, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// formatLine renders one event as a single human-friendly log line.
func formatLine(queue string, body []byte) (string, error) {
	switch queue {
	case BookingConfirmedQueue:
		var ev BookingConfirmedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Booking confirmed | booking_id=%s | hold_id=%s | event_id=%s | requester=%q | total=%d cents | payment_ref=%s | seats=[%s]\n",
			ev.ConfirmedAt, ev.BookingID, ev.HoldID, ev.EventID, ev.RequesterRef, ev.TotalCents, ev.PaymentRef, strings.Join(ev.SeatLabels, ",")), nil
	case HoldReleasedQueue:
		var ev HoldReleasedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Hold released | hold_id=%s | event_id=%s | reason=%s | seats=[%s]\n",
			ev.ReleasedAt, ev.HoldID, ev.EventID, ev.Reason, strings.Join(ev.SeatLabels, ",")), nil
	}
	return "", fmt.Errorf("unknown queue %q", queue)
}
