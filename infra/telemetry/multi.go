package telemetry

import (
	"context"
	"errors"
	"io"

	coretelemetry "github.com/kilianp07/batsim/core/telemetry"
)

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coretelemetry.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coretelemetry.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordStep forwards rec to every sink. A failing sink does not prevent
// delivery to the others; all errors are returned joined.
func (m *MultiSink) RecordStep(rec coretelemetry.Record) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordStep(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordDiagnostic forwards d to sinks that record diagnostics.
func (m *MultiSink) RecordDiagnostic(d coretelemetry.Diagnostic) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(coretelemetry.DiagnosticRecorder); ok {
			if err := rec.RecordDiagnostic(d); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Query delegates to the first sink able to read records back.
func (m *MultiSink) Query(ctx context.Context, q coretelemetry.Query) ([]coretelemetry.Record, error) {
	for _, s := range m.Sinks {
		if qr, ok := s.(coretelemetry.Querier); ok {
			return qr.Query(ctx, q)
		}
	}
	return nil, ErrNoQuerier
}

// Queryable reports whether any sink supports Query.
func (m *MultiSink) Queryable() bool {
	for _, s := range m.Sinks {
		if _, ok := s.(coretelemetry.Querier); ok {
			return true
		}
	}
	return false
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// ErrNoQuerier is returned by MultiSink.Query when no sink stores records.
var ErrNoQuerier = errors.New("no queryable telemetry sink configured")
