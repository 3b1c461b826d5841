// Package logger wraps slog.Logger with the fields and helpers the seat
// engine logs with.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to stdout.  level is one of debug, info,
// warn or error; format "text" selects the human readable handler and
// anything else JSON.
func New(level, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string) *Logger {
	lvl := getLogLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Nop returns a logger that discards everything.  Components fall back to
// it when no logger is injected.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithEvent adds the event id to the logger context.
func (l *Logger) WithEvent(eventID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("event_id", eventID))}
}

// WithRequester adds the requester reference to the logger context.
func (l *Logger) WithRequester(ref string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("requester", ref))}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

// LogHTTPRequest logs one served request.
func (l *Logger) LogHTTPRequest(ctx context.Context, method, uri string, status int, latency time.Duration, ip string) {
	l.Logger.InfoContext(ctx,
		"HTTP Request",
		slog.String("method", method),
		slog.String("uri", uri),
		slog.Int("status", status),
		slog.Duration("latency", latency),
		slog.String("ip", ip),
	)
}

// LogHoldCreated logs a new Active hold.
func (l *Logger) LogHoldCreated(ctx context.Context, holdID, eventID string, seats []string, expiresAt time.Time) {
	l.Logger.InfoContext(ctx,
		"Hold Created",
		slog.String("hold_id", holdID),
		slog.String("event_id", eventID),
		slog.Any("seats", seats),
		slog.Time("expires_at", expiresAt),
	)
}

// LogHoldFinalized logs the terminal transition of a hold.
func (l *Logger) LogHoldFinalized(ctx context.Context, holdID, eventID, status string) {
	l.Logger.InfoContext(ctx,
		"Hold Finalized",
		slog.String("hold_id", holdID),
		slog.String("event_id", eventID),
		slog.String("status", status),
	)
}

// LogBookingConfirmed logs a completed sale.
func (l *Logger) LogBookingConfirmed(ctx context.Context, bookingID, holdID, eventID string, totalCents int64) {
	l.Logger.InfoContext(ctx,
		"Booking Confirmed",
		slog.String("booking_id", bookingID),
		slog.String("hold_id", holdID),
		slog.String("event_id", eventID),
		slog.Int64("total_cents", totalCents),
	)
}

// LogPaymentFailed logs a declined, failed or timed out charge.
func (l *Logger) LogPaymentFailed(ctx context.Context, holdID, eventID, reason string) {
	l.Logger.WarnContext(ctx,
		"Payment Failed",
		slog.String("hold_id", holdID),
		slog.String("event_id", eventID),
		slog.String("reason", reason),
	)
}

// LogInvariantViolation logs an internal error that indicates a bug.
func (l *Logger) LogInvariantViolation(ctx context.Context, op string, err error) {
	l.Logger.ErrorContext(ctx,
		"Invariant Violation",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
