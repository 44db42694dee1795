package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel orders log severities from most to least verbose.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a string log level, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// redactedKeys are the field names the PCI-sanitizing logger replaces with
// "[REDACTED]" before writing an entry (headers/body may carry
// Authorization tokens or payment data).
var redactedKeys = map[string]bool{
	"body":          true,
	"headers":       true,
	"authorization": true,
	"password":      true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"card_number":   true,
	"cvv":           true,
}

func isRedactedField(key string) bool {
	return redactedKeys[key]
}

// LoggingEmitter writes every event as one JSON line, redacting body and
// header fields that commonly carry credentials or payment data.
type LoggingEmitter struct {
	level  LogLevel
	writer io.Writer
	mu     sync.Mutex
}

// NewLoggingEmitter writes to os.Stderr at the given level ("debug", "info",
// "warn", "error").
func NewLoggingEmitter(level string) *LoggingEmitter {
	return NewLoggingEmitterWithWriter(level, os.Stderr)
}

// NewLoggingEmitterWithWriter is NewLoggingEmitter with a custom sink,
// primarily for tests.
func NewLoggingEmitterWithWriter(level string, w io.Writer) *LoggingEmitter {
	return &LoggingEmitter{level: ParseLogLevel(level), writer: w}
}

func (l *LoggingEmitter) write(level LogLevel, msg string, fields ...Field) {
	if level < l.level {
		return
	}
	entry := make(map[string]any, len(fields)+3)
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = levelString(level)
	entry["msg"] = msg
	for _, f := range fields {
		if isRedactedField(f.Key) {
			entry[f.Key] = "[REDACTED]"
		} else {
			entry[f.Key] = f.Value
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.Write(data)
	l.writer.Write([]byte("\n"))
}

func levelString(l LogLevel) string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

func (l *LoggingEmitter) RequestStart(ctx context.Context, ev RequestStart) context.Context {
	l.write(LevelDebug, "request.start", F("correlation_id", ev.CorrelationID), F("method", ev.Method),
		F("url", ev.URLSanitized), F("headers", ev.Headers), F("body", ev.Body))
	return ctx
}

func (l *LoggingEmitter) RequestStop(ctx context.Context, ev RequestStop) {
	level := LevelInfo
	if ev.ErrorType != "" {
		level = LevelWarn
	}
	l.write(level, "request.stop", F("correlation_id", ev.CorrelationID), F("duration_ms", ev.Duration.Milliseconds()),
		F("status", ev.Status), F("error_type", ev.ErrorType), F("headers", ev.Headers), F("body", ev.Body),
		F("retry_count", ev.RetryCount))
}

func (l *LoggingEmitter) RequestException(ctx context.Context, ev RequestException) {
	l.write(LevelError, "request.exception", F("correlation_id", ev.CorrelationID),
		F("duration_ms", ev.Duration.Milliseconds()), F("kind", ev.Kind), F("reason", ev.Reason))
}

func (l *LoggingEmitter) RetryAttempt(ctx context.Context, ev RetryAttempt) {
	l.write(LevelWarn, "retry.attempt", F("correlation_id", ev.CorrelationID), F("attempt_number", ev.AttemptNumber),
		F("delay_ms", ev.DelayMS), F("method", ev.Method), F("url", ev.URL), F("reason", ev.Reason))
}

func (l *LoggingEmitter) CircuitStateChange(ctx context.Context, ev CircuitStateChange) {
	l.write(LevelWarn, "circuit_breaker.state_change", F("key", ev.Key), F("from", ev.From), F("to", ev.To),
		F("failure_count", ev.FailureCount))
}

func (l *LoggingEmitter) CircuitOpenReject(ctx context.Context, ev CircuitOpenReject) {
	l.write(LevelWarn, "circuit_breaker.open", F("key", ev.Key))
}

func (l *LoggingEmitter) RateLimit(ctx context.Context, ev RateLimitEvent) {
	level := LevelDebug
	if ev.Outcome == RateLimitExceeded || ev.Outcome == RateLimitWait {
		level = LevelWarn
	}
	l.write(level, string(ev.Outcome), F("correlation_id", ev.CorrelationID), F("key", ev.Key),
		F("strategy", ev.Strategy), F("tokens_remaining", ev.TokensRemaining), F("wait_time_ms", ev.WaitTimeMS),
		F("original_rate", ev.OriginalRate), F("adjusted_rate", ev.AdjustedRate),
		F("reduction_factor", ev.ReductionFactor), F("circuit_state", ev.CircuitState))
}

func (l *LoggingEmitter) Dedup(ctx context.Context, ev DedupEvent) {
	l.write(LevelDebug, string(ev.Outcome), F("correlation_id", ev.CorrelationID), F("key", ev.Key),
		F("wait_time_ms", ev.WaitTimeMS), F("bypassed_rate_limit", ev.BypassedRateLimit))
}

var _ Emitter = (*LoggingEmitter)(nil)
