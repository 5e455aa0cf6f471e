package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	coretelemetry "github.com/kilianp07/batsim/core/telemetry"
)

// CSVSink writes one row per record in the column order of
// coretelemetry.Header. The header row is written once, on creation.
type CSVSink struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
}

// NewCSVSink writes to w. If w is an io.Closer it is closed by Close.
func NewCSVSink(w io.Writer) (*CSVSink, error) {
	s := &CSVSink{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	if err := s.write(coretelemetry.Header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return s, nil
}

// FileConfig configures a file backed sink.
type FileConfig struct {
	Path string `json:"path"`
	// MaxSizeMB enables size based rotation when positive.
	MaxSizeMB  int `json:"max_size_mb"`
	MaxBackups int `json:"max_backups"`
	MaxAgeDays int `json:"max_age_days"`
}

// NewCSVFileSink creates or truncates cfg.Path. With rotation enabled only
// the first file carries the header.
func NewCSVFileSink(cfg FileConfig) (*CSVSink, error) {
	if cfg.Path == "" {
		cfg.Path = "batsim.csv"
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if cfg.MaxSizeMB > 0 {
		return NewCSVSink(&lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	}
	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, err
	}
	s, err := NewCSVSink(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// RecordStep appends rec and flushes.
func (s *CSVSink) RecordStep(rec coretelemetry.Record) error {
	return s.write(rec.Values())
}

func (s *CSVSink) write(row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes and closes the underlying writer.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	if s.closer != nil {
		return s.closer.Close()
	}
	return s.w.Error()
}
