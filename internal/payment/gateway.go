// Package payment defines the charge capability the booking flow consumes
// and a mock provider for development and tests.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// ChargeRequest asks the provider to charge AmountCents for Reference.
type ChargeRequest struct {
	AmountCents model.Cents
	Reference   string
	Metadata    map[string]string
}

// Result is the provider's answer.  Reason is set when Success is false.
type Result struct {
	Success       bool
	TransactionID string
	Reason        string
}

// Gateway is the external payment capability.  Implementations may be slow
// and may never return on their own; callers bound the wait through ctx.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Result, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, req ChargeRequest) (Result, error)

// Charge calls f.
func (f GatewayFunc) Charge(ctx context.Context, req ChargeRequest) (Result, error) {
	return f(ctx, req)
}

// Attempt calls g with a deadline of timeout and folds every way the call
// can go wrong into a failed Result: a returned error, an expired deadline
// and a panic inside the provider client.  A zero timeout means no extra
// deadline beyond ctx.
func Attempt(ctx context.Context, g Gateway, req ChargeRequest, timeout time.Duration) Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		res Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("gateway panic: %v", r)}
			}
		}()
		res, err := g.Charge(ctx, req)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case o := <-ch:
		switch {
		case o.err != nil && errors.Is(o.err, context.DeadlineExceeded):
			return Result{Reason: "payment timed out"}
		case o.err != nil:
			return Result{Reason: o.err.Error()}
		case !o.res.Success && o.res.Reason == "":
			o.res.Reason = "declined"
		}
		return o.res
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{Reason: "payment timed out"}
		}
		return Result{Reason: "payment aborted: " + ctx.Err().Error()}
	}
}
