package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Structured field names shared by every detector component.
const (
	FieldAccountID       = "account_id"
	FieldDepositID       = "deposit_id"
	FieldDepositUpdateID = "deposit_update_id"
	FieldOperationID     = "operation_id"
)

// NewLogger creates a JSON logger on stdout tagged with component.
// The level comes from DD_LOG_LEVEL and defaults to info.
func NewLogger(component string) zerolog.Logger {
	return NewLoggerTo(os.Stdout, component, ParseLogLevel(os.Getenv("DD_LOG_LEVEL")))
}

// NewLoggerTo creates a component logger writing to w at level.
func NewLoggerTo(w io.Writer, component string, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// WithAccount scopes logger to a broker account.
func WithAccount(logger zerolog.Logger, brokerAccountID int64) zerolog.Logger {
	return logger.With().Int64(FieldAccountID, brokerAccountID).Logger()
}

// ParseLogLevel maps a DD_LOG_LEVEL value onto a zerolog level. Unknown
// values fall back to info.
func ParseLogLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
