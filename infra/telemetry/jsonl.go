package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	coretelemetry "github.com/kilianp07/batsim/core/telemetry"
)

// JSONLStore stores records in a JSONL file.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

var _ coretelemetry.Store = (*JSONLStore)(nil)

func NewJSONLStore(path string) (*JSONLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

func (s *JSONLStore) RecordStep(rec coretelemetry.Record) error {
	return s.Append(context.Background(), rec)
}

func (s *JSONLStore) Append(ctx context.Context, rec coretelemetry.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(rec)
}

func (s *JSONLStore) Query(ctx context.Context, q coretelemetry.Query) ([]coretelemetry.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	res, err := scanRecords(f, q)
	if err != nil {
		return nil, err
	}
	return q.Apply(res), nil
}

func (s *JSONLStore) Close() error { return nil }

// scanRecords decodes matching lines, skipping ones that do not parse.
func scanRecords(r io.Reader, q coretelemetry.Query) ([]coretelemetry.Record, error) {
	var res []coretelemetry.Record
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var rec coretelemetry.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if q.Match(rec) {
			res = append(res, rec)
		}
	}
	return res, scanner.Err()
}
