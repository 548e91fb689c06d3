package imagebroker

import "log/slog"

// progressScope wraps one logical operation with ordered progress reporting.
// Callers must supply non-decreasing percentages and must call End on every
// exit path; End is a no-op after the first call.
type progressScope struct {
	operation string
	logger    *slog.Logger
	sink      ProgressSink
	last      int
	done      bool
}

func newProgressScope(logger *slog.Logger, sink ProgressSink, operation, message string, fields map[string]any) *progressScope {
	attrs := make([]any, 0, 2+2*len(fields))
	attrs = append(attrs, "operation", operation)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	logger.Debug("operation started", attrs...)

	s := &progressScope{
		operation: operation,
		logger:    logger,
		sink:      sink,
	}
	s.Update(0, message)
	return s
}

// Update emits a progress report at percent with message.
func (s *progressScope) Update(percent int, message string) {
	if s.done {
		return
	}
	s.last = percent
	if s.sink != nil {
		s.sink.Report(s.operation, percent, message)
	}
	s.logger.Debug("progress",
		"operation", s.operation,
		"percent", percent,
		"message", message,
	)
}

// End finalizes the scope. Safe to call multiple times; only the first call
// has effect.
func (s *progressScope) End() {
	if s.done {
		return
	}
	s.done = true
	s.logger.Info("operation finished",
		"operation", s.operation,
		"final_percent", s.last,
	)
}
