// Package diagnostics collects signals that are worth looking at but are not
// errors, and exposes live pipeline internals for debugging.
package diagnostics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Report kinds.
const (
	KindImprobableBattleResult = "improbable_battle_result"
	KindParserFailure          = "parser_failure"
)

// Report is one diagnostic signal.
type Report struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	CreatedAt time.Time      `json:"createdAt"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewReport creates a report with a fresh id.
func NewReport(kind, message string, data map[string]any) Report {
	return Report{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now().UTC(),
		Data:      data,
	}
}

// Sink receives reports. Capture must not block the caller for long and
// never fails from the caller's point of view.
type Sink interface {
	Capture(ctx context.Context, report Report)
}

// ReportStore persists reports.
type ReportStore interface {
	SaveReport(ctx context.Context, report Report) error
}

// LogSink writes reports to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink logging at warn level.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Capture logs the report.
func (s *LogSink) Capture(ctx context.Context, report Report) {
	s.logger.Warn(report.Message,
		zap.String("report_id", report.ID),
		zap.String("kind", report.Kind),
		zap.Any("data", report.Data),
	)
}

// StoreSink persists reports, logging failures.
type StoreSink struct {
	store  ReportStore
	logger *zap.Logger
}

// NewStoreSink wraps a report store.
func NewStoreSink(store ReportStore, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{store: store, logger: logger}
}

// Capture saves the report.
func (s *StoreSink) Capture(ctx context.Context, report Report) {
	if err := s.store.SaveReport(ctx, report); err != nil {
		s.logger.Error("failed to persist diagnostic report",
			zap.String("report_id", report.ID),
			zap.String("kind", report.Kind),
			zap.Error(err),
		)
	}
}

// MultiSink fans a report out to several sinks in order.
type MultiSink []Sink

// Capture forwards the report to every sink.
func (m MultiSink) Capture(ctx context.Context, report Report) {
	for _, s := range m {
		s.Capture(ctx, report)
	}
}
