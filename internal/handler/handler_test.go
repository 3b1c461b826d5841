package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-engine/internal/booking"
	"github.com/iliyamo/seat-reservation-engine/internal/logger"
	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

func TestWriteError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"bad request", errBadRequest("nope"), http.StatusBadRequest, "invalid_request"},
		{"unavailable", &model.SeatUnavailableError{Seats: []model.SeatID{{Row: "A", Number: 1}}}, http.StatusConflict, "seat_unavailable"},
		{"unknown seat wrapped", fmt.Errorf("%w: %w", model.ErrInvalidSelection, &model.UnknownSeatError{Seats: []model.SeatID{{Row: "Z", Number: 9}}}), http.StatusBadRequest, "unknown_seat"},
		{"invalid selection", &model.InvalidSelectionError{Reason: "x"}, http.StatusBadRequest, "invalid_selection"},
		{"payment", &model.PaymentFailedError{Reason: "card declined"}, http.StatusPaymentRequired, "payment_failed"},
		{"event missing", fmt.Errorf("get: %w", model.ErrEventNotFound), http.StatusNotFound, "event_not_found"},
		{"hold missing", model.ErrHoldNotFound, http.StatusNotFound, "hold_not_found"},
		{"event exists", model.ErrEventExists, http.StatusConflict, "event_exists"},
		{"expired", fmt.Errorf("hold h: %w", model.ErrHoldExpired), http.StatusGone, "hold_expired"},
		{"not active", model.ErrHoldNotActive, http.StatusConflict, "hold_not_active"},
		{"commit pending", fmt.Errorf("hold h: %w: %w", model.ErrCommitPending, errors.New("write failed")), http.StatusServiceUnavailable, "commit_pending"},
		{"internal", booking.ErrInternal, http.StatusInternalServerError, "internal"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var logs bytes.Buffer
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			if err := writeError(c, logger.NewWithWriter(&logs, "error", "json"), tt.err); err != nil {
				t.Fatalf("writeError: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["code"] != tt.wantCode {
				t.Fatalf("code = %v, want %s", body["code"], tt.wantCode)
			}
			if tt.wantStatus == http.StatusInternalServerError && strings.Contains(rec.Body.String(), "disk") {
				t.Fatalf("internal detail leaked: %s", rec.Body.String())
			}
			if tt.name == "unexpected" && !strings.Contains(logs.String(), "disk on fire") {
				t.Fatalf("unexpected error not logged: %q", logs.String())
			}
		})
	}
}

func TestValidatorMessages(t *testing.T) {
	t.Parallel()
	v := NewValidator()

	err := v.Validate(&registerEventRequest{Rows: []rowRequest{{Seats: 0, Tier: "VIP"}}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"event_id is required", "seats must be at least 1", "prices is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("message %q lacks %q", err.Error(), want)
		}
	}

	if err := v.Validate(&confirmRequest{PaymentRef: "card"}); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}
