package orchestrator

import "log/slog"

// Event reports one observable step of a component's documentation session.
// Events for a single component are published in order; the terminal event
// (done, forced_done, skipped) is always last.
type Event struct {
	Component string
	File      string
	Phase     string
	Message   string
}

// EventSink receives progress events.
type EventSink interface {
	Publish(Event)
}

// LogSink publishes events through the structured logger.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "progress")}
}

func (s *LogSink) Publish(e Event) {
	s.logger.Info("progress",
		"id", e.Component,
		"file", e.File,
		"phase", e.Phase,
		"message", e.Message)
}
