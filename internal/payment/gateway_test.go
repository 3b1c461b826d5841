package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAttempt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		gateway     Gateway
		reference   string
		timeout     time.Duration
		wantSuccess bool
		wantReason  string
	}{
		{
			name:        "success",
			gateway:     NewMock("", 0),
			wantSuccess: true,
		},
		{
			name:       "declined by prefix",
			gateway:    NewMock("fail_", 0),
			reference:  "fail_card",
			wantReason: "card declined",
		},
		{
			name:       "slow provider times out",
			gateway:    NewMock("", time.Second),
			timeout:    20 * time.Millisecond,
			wantReason: "payment timed out",
		},
		{
			name: "provider ignoring the deadline times out",
			gateway: GatewayFunc(func(ctx context.Context, req ChargeRequest) (Result, error) {
				time.Sleep(200 * time.Millisecond)
				return Result{Success: true}, nil
			}),
			timeout:    20 * time.Millisecond,
			wantReason: "payment timed out",
		},
		{
			name: "error is a failure",
			gateway: GatewayFunc(func(ctx context.Context, req ChargeRequest) (Result, error) {
				return Result{Success: true}, errors.New("upstream 502")
			}),
			wantReason: "upstream 502",
		},
		{
			name: "panic is a failure",
			gateway: GatewayFunc(func(ctx context.Context, req ChargeRequest) (Result, error) {
				panic("nil client")
			}),
			wantReason: "gateway panic: nil client",
		},
		{
			name: "failure without reason",
			gateway: GatewayFunc(func(ctx context.Context, req ChargeRequest) (Result, error) {
				return Result{}, nil
			}),
			wantReason: "declined",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ref := tt.reference
			if ref == "" {
				ref = "ref-1"
			}
			res := Attempt(context.Background(), tt.gateway, ChargeRequest{AmountCents: 15000, Reference: ref}, tt.timeout)
			if res.Success != tt.wantSuccess {
				t.Fatalf("expected success=%v, got %+v", tt.wantSuccess, res)
			}
			if res.Reason != tt.wantReason {
				t.Fatalf("expected reason %q, got %q", tt.wantReason, res.Reason)
			}
		})
	}
}

func TestMockRecordsCalls(t *testing.T) {
	t.Parallel()

	m := NewMock("", 0)
	res, err := m.Charge(context.Background(), ChargeRequest{AmountCents: 500, Reference: "r1"})
	if err != nil || !res.Success || !strings.HasPrefix(res.TransactionID, "mock_") {
		t.Fatalf("unexpected result %+v, %v", res, err)
	}
	if m.Calls() != 1 || m.Requests()[0].AmountCents != 500 {
		t.Fatalf("expected one recorded call, got %+v", m.Requests())
	}
}
