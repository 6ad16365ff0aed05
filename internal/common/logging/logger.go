package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	vo "cardgate/internal/common/value_objects"
)

// Context keys for logging attributes
type contextKey string

const (
	correlationIDKey         contextKey = "correlation_id"
	merchantAccountIDKey     contextKey = "merchant_account_id"
	merchantTransactionIDKey contextKey = "merchant_transaction_id"
)

// Config holds logging configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// Setup initializes the global logger with the given configuration.
func Setup(cfg Config) {
	slog.SetDefault(New(os.Stdout, cfg))
}

// New builds a logger writing to w. Card numbers and verification codes must
// never be passed as attributes; callers log only references and codes.
func New(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id vo.CorrelationID) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// WithMerchantAccountID adds the merchant account to the context.
func WithMerchantAccountID(ctx context.Context, id vo.MerchantAccountID) context.Context {
	return context.WithValue(ctx, merchantAccountIDKey, id)
}

// WithMerchantTransactionID adds the merchant transaction id of the payment in flight.
func WithMerchantTransactionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, merchantTransactionIDKey, id)
}

// CorrelationIDFromContext extracts the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) vo.CorrelationID {
	if id, ok := ctx.Value(correlationIDKey).(vo.CorrelationID); ok {
		return id
	}
	return vo.CorrelationID{}
}

// MerchantAccountIDFromContext extracts the merchant account from context.
func MerchantAccountIDFromContext(ctx context.Context) vo.MerchantAccountID {
	if id, ok := ctx.Value(merchantAccountIDKey).(vo.MerchantAccountID); ok {
		return id
	}
	return vo.MerchantAccountID{}
}

// MerchantTransactionIDFromContext extracts the merchant transaction id from context.
func MerchantTransactionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(merchantTransactionIDKey).(string)
	return id
}

// FromContext returns a logger with context attributes
// (correlation_id, merchant_account_id, merchant_transaction_id).
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if corrID := CorrelationIDFromContext(ctx); !corrID.IsEmpty() {
		logger = logger.With("correlation_id", corrID.String())
	}

	if accountID := MerchantAccountIDFromContext(ctx); !accountID.IsEmpty() {
		logger = logger.With("merchant_account_id", accountID.String())
	}

	if txnID := MerchantTransactionIDFromContext(ctx); txnID != "" {
		logger = logger.With("merchant_transaction_id", txnID)
	}

	return logger
}

// Info logs at info level.
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// InfoContext logs at info level with context attributes.
func InfoContext(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Info(msg, args...)
}

// DebugContext logs at debug level with context attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Debug(msg, args...)
}

// WarnContext logs at warn level with context attributes.
func WarnContext(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Warn(msg, args...)
}

// ErrorContext logs at error level with context attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Error(msg, args...)
}
