package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

func TestNewBookingConfirmed(t *testing.T) {
	t.Parallel()

	ev := NewBookingConfirmed(model.Booking{
		ID: "bk-1", HoldID: "h1", EventID: "evt-1", RequesterRef: "alice",
		SeatIDs:    []model.SeatID{{Row: "A", Number: 1}, {Row: "A", Number: 2}},
		TotalCents: 50000, PaymentRef: "pay-1", TransactionID: "tx-1",
		ConfirmedAt: time.Date(2026, 3, 1, 19, 5, 0, 0, time.UTC),
	})
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"seats":["A1","A2"]`, `"total_cents":50000`, `"confirmed_at":"2026-03-01T19:05:00Z"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("payload %s missing %s", body, want)
		}
	}
}

func TestFormatLine(t *testing.T) {
	t.Parallel()

	released, _ := json.Marshal(NewHoldReleased(model.Hold{
		ID: "h2", EventID: "evt-1", SeatIDs: []model.SeatID{{Row: "B", Number: 1}},
	}, "expired", time.Date(2026, 3, 1, 19, 10, 0, 0, time.UTC)))

	tests := []struct {
		name    string
		queue   string
		body    []byte
		want    string
		wantErr bool
	}{
		{name: "released", queue: HoldReleasedQueue, body: released, want: "Hold released | hold_id=h2 | event_id=evt-1 | reason=expired | seats=[B1]"},
		{name: "bad json", queue: BookingConfirmedQueue, body: []byte("{"), wantErr: true},
		{name: "unknown queue", queue: "other", body: []byte("{}"), wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			line, err := formatLine(tt.queue, tt.body)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil || !strings.Contains(line, tt.want) {
				t.Fatalf("got %q, %v", line, err)
			}
		})
	}
}

func TestBookingLogAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "booking.log")
	bl := NewBookingLog("", path, nil)
	body, _ := json.Marshal(NewBookingConfirmed(model.Booking{ID: "bk-1", HoldID: "h1", SeatIDs: []model.SeatID{{Row: "C", Number: 3}}}))
	for i := 0; i < 2; i++ {
		if err := bl.handle(BookingConfirmedQueue, body); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n := strings.Count(string(raw), "booking_id=bk-1"); n != 2 {
		t.Fatalf("expected two lines, got %d:\n%s", n, raw)
	}
}

func TestPublisherDoesNotWaitForBroker(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 8)
	unblock := make(chan struct{})
	var sent atomic.Int32
	p := newPublisher("", nil, 1, func(ctx context.Context, queue string, _ amqp.Publishing) error {
		started <- struct{}{}
		<-unblock
		sent.Add(1)
		return nil
	})
	h := model.Hold{ID: "h1", EventID: "evt-1"}

	begin := time.Now()
	if err := p.PublishHoldReleased(context.Background(), h, "expired"); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	<-started
	// The delivery goroutine is stuck on the broker; one more fits the
	// buffer and the next is refused.
	if err := p.PublishHoldReleased(context.Background(), h, "expired"); err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if err := p.PublishBookingConfirmed(context.Background(), model.Booking{ID: "bk-1"}); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("expected ErrBufferFull, got %v", err)
	}
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Fatalf("publishes waited on the broker for %s", elapsed)
	}

	close(unblock)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if sent.Load() != 2 {
		t.Fatalf("expected queued events to be flushed, sent %d", sent.Load())
	}
	if err := p.PublishHoldReleased(context.Background(), h, "expired"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
