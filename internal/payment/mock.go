package payment

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mock is an in-process gateway.  A reference starting with DeclinePrefix
// is declined, every other charge succeeds after Delay.
type Mock struct {
	DeclinePrefix string
	Delay         time.Duration

	mu    sync.Mutex
	calls []ChargeRequest
}

// NewMock returns a Mock that declines references beginning with
// declinePrefix.  An empty prefix never declines.
func NewMock(declinePrefix string, delay time.Duration) *Mock {
	return &Mock{DeclinePrefix: declinePrefix, Delay: delay}
}

// Charge implements Gateway.
func (m *Mock) Charge(ctx context.Context, req ChargeRequest) (Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if m.DeclinePrefix != "" && strings.HasPrefix(req.Reference, m.DeclinePrefix) {
		return Result{Reason: "card declined"}, nil
	}
	return Result{Success: true, TransactionID: "mock_" + uuid.NewString()}, nil
}

// Calls returns the number of charges received.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Requests returns a copy of the charges received, oldest first.
func (m *Mock) Requests() []ChargeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChargeRequest, len(m.calls))
	copy(out, m.calls)
	return out
}
