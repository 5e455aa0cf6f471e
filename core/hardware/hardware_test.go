package hardware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/batsim/core/factory"
)

func TestSimulatedLoad(t *testing.T) {
	s := NewSimulated(DefaultSimulatedLoadMA)
	ctx := context.Background()
	got, err := s.MeasureCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got)

	require.NoError(t, s.SetLoad(ctx, 750))
	got, err = s.MeasureCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 750.0, got)
}

func TestSimulatedOutput(t *testing.T) {
	s := NewSimulated(0)
	_, ok := s.OutputVoltage()
	assert.False(t, ok)
	require.NoError(t, s.SetOutputVoltage(context.Background(), 3712.5))
	v, ok := s.OutputVoltage()
	assert.True(t, ok)
	assert.Equal(t, 3712.5, v)
}

func TestSimulatedHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimulated(1).MeasureCurrent(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewAdapterDefaultsToSimulated(t *testing.T) {
	a, err := NewAdapter(factory.ModuleConfig{})
	require.NoError(t, err)
	got, err := a.MeasureCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(DefaultSimulatedLoadMA), got)

	a, err = NewAdapter(factory.ModuleConfig{Type: "simulated", Conf: map[string]any{"load_ma": "250"}})
	require.NoError(t, err)
	got, err = a.MeasureCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250.0, got)

	_, err = NewAdapter(factory.ModuleConfig{Type: "gpib"})
	assert.Error(t, err)
	assert.Contains(t, AdapterTypes(), "simulated")
}
