package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestGetLogLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := getLogLevel(in); got != want {
			t.Errorf("getLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", "json").WithEvent("evt-1")
	l.LogInvariantViolation(context.Background(), "release", errors.New("boom"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not json: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "Invariant Violation" || rec["event_id"] != "evt-1" || rec["op"] != "release" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestLevelFilters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn", "text")
	l.LogHoldFinalized(context.Background(), "h1", "evt-1", "EXPIRED")
	if buf.Len() != 0 {
		t.Fatalf("info record should be filtered, got %q", buf.String())
	}
	l.LogPaymentFailed(context.Background(), "h1", "evt-1", "declined")
	if !strings.Contains(buf.String(), "reason=declined") {
		t.Fatalf("expected warn record, got %q", buf.String())
	}
}
