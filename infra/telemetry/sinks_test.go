package telemetry

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/batsim/core/factory"
	coretelemetry "github.com/kilianp07/batsim/core/telemetry"
	infmqtt "github.com/kilianp07/batsim/infra/mqtt"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func sampleRecord(i int, session string) coretelemetry.Record {
	return coretelemetry.Record{
		Timestamp:            t0.Add(time.Duration(i) * time.Second),
		OCVMV:                4100,
		TerminalVoltageMV:    4000 - float64(i),
		CurrentMA:            500,
		VAfterSeriesMV:       4075,
		RC1VoltageMV:         40,
		RC2VoltageMV:         35,
		RemainingCapacityMAh: 1999.5,
		StateOfChargePct:     99.975,
		Session:              session,
		ElapsedS:             1,
	}
}

func TestCSVSinkWritesHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewCSVSink(&buf)
	require.NoError(t, err)
	require.NoError(t, s.RecordStep(sampleRecord(0, "a")))
	require.NoError(t, s.RecordStep(sampleRecord(1, "a")))
	require.NoError(t, s.Close())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, coretelemetry.Header, rows[0])
	assert.Equal(t, "1709287200.000000", rows[1][0])
	assert.Equal(t, "4000", rows[1][2])
	assert.Equal(t, "3999", rows[2][2])
	assert.Len(t, rows[1], len(coretelemetry.Header))
}

func TestCSVFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "batsim.csv")
	s, err := NewCSVFileSink(FileConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.RecordStep(sampleRecord(0, "")))
	require.NoError(t, s.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(coretelemetry.Header, ","), lines[0])
}

func TestCSVFileSinkRotating(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rot.csv")
	s, err := NewCSVFileSink(FileConfig{Path: path, MaxSizeMB: 1})
	require.NoError(t, err)
	require.NoError(t, s.RecordStep(sampleRecord(0, "")))
	require.NoError(t, s.Close())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "timestamp,ocv_mv"))
}

func TestJSONLStoreQuery(t *testing.T) {
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "steps.jsonl"))
	require.NoError(t, err)
	defer s.Close()
	for i := 0; i < 5; i++ {
		session := "a"
		if i%2 == 1 {
			session = "b"
		}
		require.NoError(t, s.RecordStep(sampleRecord(i, session)))
	}
	ctx := context.Background()

	all, err := s.Query(ctx, coretelemetry.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	onlyA, err := s.Query(ctx, coretelemetry.Query{Session: "a"})
	require.NoError(t, err)
	assert.Len(t, onlyA, 3)

	window, err := s.Query(ctx, coretelemetry.Query{Start: t0.Add(time.Second), End: t0.Add(3 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, window, 3)

	last, err := s.Query(ctx, coretelemetry.Query{Limit: 2})
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.True(t, last[1].Timestamp.Equal(t0.Add(4*time.Second)))
}

func TestRotatingJSONLStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "steps.jsonl")
	s, err := NewRotatingJSONLStore(path, 1, 2, 1)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordStep(sampleRecord(i, "x")))
	}
	recs, err := s.Query(context.Background(), coretelemetry.Query{Session: "x"})
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	require.NoError(t, s.Close())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "batsim.db"))
	require.NoError(t, err)
	defer s.Close()
	for i := 0; i < 4; i++ {
		require.NoError(t, s.RecordStep(sampleRecord(i, "s1")))
	}
	require.NoError(t, s.RecordStep(sampleRecord(10, "s2")))
	ctx := context.Background()

	recs, err := s.Query(ctx, coretelemetry.Query{Session: "s1"})
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.InDelta(t, 4000, recs[0].TerminalVoltageMV, 1e-9)

	recs, err = s.Query(ctx, coretelemetry.Query{Start: t0.Add(2 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	recs, err = s.Query(ctx, coretelemetry.Query{Session: "s1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.InDelta(t, 3998, recs[0].TerminalVoltageMV, 1e-9)
	assert.InDelta(t, 3997, recs[1].TerminalVoltageMV, 1e-9)

	require.NoError(t, s.RecordDiagnostic(coretelemetry.Diagnostic{
		Timestamp: t0, Session: "s1", Kind: coretelemetry.DiagnosticHardwareRead, Message: "timeout",
	}))
	diags, err := s.Diagnostics(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, coretelemetry.DiagnosticHardwareRead, diags[0].Kind)
	assert.True(t, diags[0].Timestamp.Equal(t0))
}

func TestMQTTSinkPublishes(t *testing.T) {
	cli := infmqtt.NewMockClient("bench")
	s := NewMQTTSink(cli)
	require.NoError(t, s.RecordStep(sampleRecord(0, "s")))
	require.NoError(t, s.RecordDiagnostic(coretelemetry.Diagnostic{Kind: coretelemetry.DiagnosticSink, Message: "x"}))

	msgs := cli.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "bench/telemetry", msgs[0].Topic)
	assert.Equal(t, "bench/diagnostic", msgs[1].Topic)
	var rec coretelemetry.Record
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &rec))
	assert.Equal(t, "s", rec.Session)
	assert.InDelta(t, 4000, rec.TerminalVoltageMV, 1e-9)

	cli.FailErr = errors.New("offline")
	assert.Error(t, s.RecordStep(sampleRecord(1, "s")))
}

type countingSink struct {
	steps, diags int
	err          error
	closed       bool
}

func (c *countingSink) RecordStep(coretelemetry.Record) error { c.steps++; return c.err }
func (c *countingSink) RecordDiagnostic(coretelemetry.Diagnostic) error {
	c.diags++
	return nil
}
func (c *countingSink) Close() error { c.closed = true; return nil }

func TestMultiSink(t *testing.T) {
	failing := &countingSink{err: errors.New("disk full")}
	ok := &countingSink{}
	m := NewMultiSink(failing, ok, coretelemetry.NopSink{})

	err := m.RecordStep(sampleRecord(0, ""))
	require.Error(t, err)
	assert.Equal(t, 1, ok.steps)
	require.NoError(t, m.RecordDiagnostic(coretelemetry.Diagnostic{}))
	assert.Equal(t, 1, failing.diags)
	assert.Equal(t, 1, ok.diags)

	assert.False(t, m.Queryable())
	_, err = m.Query(context.Background(), coretelemetry.Query{})
	require.ErrorIs(t, err, ErrNoQuerier)

	require.NoError(t, m.Close())
	assert.True(t, failing.closed)
	assert.True(t, ok.closed)
}

func TestBuildFromConfig(t *testing.T) {
	dir := t.TempDir()
	m, err := Build([]factory.ModuleConfig{
		{Type: "csv", Conf: map[string]any{"path": filepath.Join(dir, "a.csv")}},
		{Type: "jsonl", Conf: map[string]any{"path": filepath.Join(dir, "a.jsonl")}},
		{Type: "nop"},
	})
	require.NoError(t, err)
	require.Len(t, m.Sinks, 3)
	assert.True(t, m.Queryable())

	require.NoError(t, m.RecordStep(sampleRecord(0, "z")))
	recs, err := m.Query(context.Background(), coretelemetry.Query{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	require.NoError(t, m.Close())
}

func TestBuildUnknownType(t *testing.T) {
	_, err := Build([]factory.ModuleConfig{{Type: "nop"}, {Type: "kafka"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"kafka"`)
}

func TestRegisteredSinkTypes(t *testing.T) {
	assert.Subset(t, coretelemetry.SinkTypes(),
		[]string{"csv", "influx", "jsonl", "jsonl_rotating", "mqtt", "nop", "prometheus", "sqlite"})
}

func TestBuildJSONLRequiresPath(t *testing.T) {
	_, err := Build([]factory.ModuleConfig{{Type: "jsonl"}})
	require.Error(t, err)
}
