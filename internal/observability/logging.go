// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// CorrelationID is the context key carrying a ledger operation's correlation id.
const CorrelationID LogContextKey = "correlation_id"

// LoggingConfig defines which types of automated logging are enabled.
type LoggingConfig struct {
	EnableCorrelationID bool
	EnableLedgerLogging bool
}

var (
	// Config holds the current logging configuration.
	Config = LoggingConfig{
		EnableCorrelationID: true,
		EnableLedgerLogging: true,
	}
)

// GenerateCorrelationID creates a new unique correlation ID.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// EnsureCorrelationID returns ctx unchanged if it already carries a
// correlation id, otherwise a child context with a fresh one.
func EnsureCorrelationID(ctx context.Context) context.Context {
	if !Config.EnableCorrelationID || ExtractCorrelationID(ctx) != "" {
		return ctx
	}
	return WithCorrelationID(ctx, GenerateCorrelationID())
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// LedgerLogger provides structured logging for ledger operations.
type LedgerLogger struct {
	logger *slog.Logger
}

// NewLedgerLogger creates a LedgerLogger writing through logger, or through
// slog.Default when logger is nil.
func NewLedgerLogger(logger *slog.Logger) *LedgerLogger {
	return &LedgerLogger{logger: logger}
}

func (l *LedgerLogger) slog() *slog.Logger {
	if l == nil || l.logger == nil {
		return slog.Default()
	}
	return l.logger
}

// LogCommit logs a committed ledger operation.
func (l *LedgerLogger) LogCommit(ctx context.Context, operation string, attempts int, elapsed time.Duration, fields map[string]interface{}) {
	if !Config.EnableLedgerLogging {
		return
	}
	attrs := []any{
		slog.String("operation", operation),
		slog.Int("attempts", attempts),
		slog.Duration("elapsed", elapsed),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.slog().InfoContext(ctx, "ledger commit", attrs...)
}

// LogRetry logs a commit conflict that is about to be retried.
func (l *LedgerLogger) LogRetry(ctx context.Context, operation string, attempt int, wait time.Duration, err error) {
	if !Config.EnableLedgerLogging {
		return
	}
	l.slog().WarnContext(ctx, "ledger conflict, retrying",
		slog.String("operation", operation),
		slog.Int("attempt", attempt),
		slog.Duration("wait", wait),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
		slog.String("error", err.Error()),
	)
}

// LogError logs a ledger operation that failed.
func (l *LedgerLogger) LogError(ctx context.Context, operation string, attempts int, err error) {
	if !Config.EnableLedgerLogging {
		return
	}
	l.slog().ErrorContext(ctx, "ledger error",
		slog.String("operation", operation),
		slog.Int("attempts", attempts),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
		slog.String("error", err.Error()),
	)
}

// LogWarn logs a non-fatal anomaly noticed inside a ledger scope.
func (l *LedgerLogger) LogWarn(ctx context.Context, operation, msg string, fields map[string]interface{}) {
	if !Config.EnableLedgerLogging {
		return
	}
	attrs := []any{
		slog.String("operation", operation),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.slog().WarnContext(ctx, msg, attrs...)
}
