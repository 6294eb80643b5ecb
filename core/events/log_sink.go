package events

import (
	"log/slog"
)

// LogSink exports events as structured log records.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// RecordAttempt implements Sink.
func (s *LogSink) RecordAttempt(rec AttemptRecord) {
	s.logger.Info("provider attempt",
		"request_id", rec.RequestID,
		"agent_kind", rec.AgentKind,
		"provider", rec.Provider,
		"outcome", string(rec.Outcome),
		"latency", rec.Latency,
		"error", rec.Err,
	)
}

// RecordBreakerTransition implements Sink.
func (s *LogSink) RecordBreakerTransition(tr BreakerTransition) {
	s.logger.Warn("circuit breaker transition",
		"provider", tr.Provider,
		"from", tr.From,
		"to", tr.To,
	)
}

// RecordThrottleDelay implements Sink.
func (s *LogSink) RecordThrottleDelay(td ThrottleDelay) {
	s.logger.Debug("auto-throttle delay",
		"provider", td.Provider,
		"usage", td.UsageFraction,
		"delay", td.Delay,
	)
}
