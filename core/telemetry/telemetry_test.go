package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/batsim/core/factory"
)

func TestRecordValuesOrder(t *testing.T) {
	r := Record{
		Timestamp:            time.Unix(1700000000, 250000000),
		OCVMV:                1,
		TerminalVoltageMV:    2,
		CurrentMA:            3,
		VAfterSeriesMV:       4,
		RC1VoltageMV:         5,
		RC2VoltageMV:         6,
		RemainingCapacityMAh: 7,
		StateOfChargePct:     8.5,
	}
	assert.Equal(t, []string{"1700000000.250000", "1", "2", "3", "4", "5", "6", "7", "8.5"}, r.Values())
	assert.Len(t, Header, len(r.Values()))
}

func TestQueryApply(t *testing.T) {
	base := time.Unix(1000, 0)
	var recs []Record
	for i := 0; i < 6; i++ {
		s := "a"
		if i >= 3 {
			s = "b"
		}
		recs = append(recs, Record{Timestamp: base.Add(time.Duration(i) * time.Second), Session: s, OCVMV: float64(i)})
	}

	assert.Len(t, Query{}.Apply(recs), 6)
	assert.Len(t, Query{Session: "b"}.Apply(recs), 3)
	got := Query{Start: base.Add(time.Second), End: base.Add(2 * time.Second)}.Apply(recs)
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].OCVMV)

	got = Query{Session: "a", Limit: 2}.Apply(recs)
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].OCVMV)
	assert.Equal(t, 2.0, got[1].OCVMV)
}

type testSink struct{ name string }

func (testSink) RecordStep(Record) error { return nil }

func TestNewSinks(t *testing.T) {
	require.NoError(t, RegisterSink("test-sink", func(conf map[string]any) (Sink, error) {
		var c struct {
			Name string `json:"name"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Name == "" {
			return nil, errors.New("name required")
		}
		return testSink{name: c.Name}, nil
	}))
	assert.Error(t, RegisterSink("test-sink", func(map[string]any) (Sink, error) { return NopSink{}, nil }))
	assert.Contains(t, SinkTypes(), "test-sink")

	sinks, err := NewSinks([]factory.ModuleConfig{
		{Type: "test-sink", Conf: map[string]any{"name": "one"}},
		{Type: "test-sink", Conf: map[string]any{}},
	})
	require.Error(t, err)
	require.Len(t, sinks, 1)
	assert.Equal(t, "one", sinks[0].(testSink).name)
}
