package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide root logger. Components do not log
// through it directly; they derive a child via one of the With*
// helpers so every line carries the field identifying its origin.
var Logger zerolog.Logger

// Level names the accepted OMG_LOG_LEVEL values. Anything else falls
// back to info.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config selects the root logger's level and output. JSONOutput emits
// machine-readable JSON lines; otherwise a human-oriented console
// writer is used. Output defaults to stdout.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init builds the root logger. The last call wins, so cmd/omgd calls
// it once with defaults before configuration is resolved and again
// with the resolved level/format once it is.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(cfg.Level.zerolog())

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if !cfg.JSONOutput {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	Logger = zerolog.New(out).With().Timestamp().Logger()
}

// WithComponent derives the logger a long-lived component (pkv, cache,
// index, status, daemon, handler) logs through.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithConnID derives a per-connection logger keyed by the connection's
// uuid.
func WithConnID(connID string) zerolog.Logger {
	return Logger.With().Str("conn_id", connID).Logger()
}

// WithRequestID derives a per-request logger, for the few places a
// line must be pinned to one request on a busy connection (panic
// recovery).
func WithRequestID(requestID uint64) zerolog.Logger {
	return Logger.With().Uint64("request_id", requestID).Logger()
}

// WithBackend derives the logger a backend adapter logs through,
// keyed by its tag.
func WithBackend(tag string) zerolog.Logger {
	return Logger.With().Str("backend", tag).Logger()
}
