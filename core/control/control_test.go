package control

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/batsim/core/battery"
	"github.com/kilianp07/batsim/core/engine"
	"github.com/kilianp07/batsim/core/hardware"
	"github.com/kilianp07/batsim/core/scheduler"
)

func newController(t *testing.T, p battery.Parameters) (*Controller, *hardware.Simulated) {
	t.Helper()
	hw := hardware.NewSimulated(hardware.DefaultSimulatedLoadMA)
	eng, err := engine.New(p, hw, nil, engine.WithSessionID("s1"))
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	sched := scheduler.New(eng, scheduler.Config{IntervalMS: 1000, FixedStep: true}, nil)
	return New(eng, sched, nil), hw
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("x: %w", battery.ErrInvalidTable), CodeInvalidTable},
		{battery.ErrInvalidParameter, CodeInvalidParameter},
		{engine.ErrInvalidCapacity, CodeInvalidCapacity},
		{engine.ErrCannotStart, CodeCannotStart},
		{fmt.Errorf("%w: timeout", hardware.ErrHardwareRead), CodeHardwareError},
		{hardware.ErrHardwareWrite, CodeHardwareError},
		{errors.New("boom"), CodeInternal},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, ErrorCode(c.err), c.err.Error())
	}
}

func TestControllerLifecycle(t *testing.T) {
	c, _ := newController(t, battery.DefaultParameters())
	require.NoError(t, c.Start())
	st := c.Status()
	assert.Equal(t, engine.Running, st.RunState)
	assert.True(t, st.Ticking)
	assert.Equal(t, "s1", st.Session)
	assert.InDelta(t, 100, st.StateOfChargePct, 1e-9)
	assert.Nil(t, st.Latest)
	assert.True(t, st.OCVMonotonic)

	c.Stop()
	st = c.Status()
	assert.Equal(t, engine.Stopped, st.RunState)
	assert.False(t, st.Ticking)
}

func TestControllerStartErrors(t *testing.T) {
	p := battery.DefaultParameters()
	p.CapacityMAh = 0
	c, _ := newController(t, p)
	require.ErrorIs(t, c.Start(), engine.ErrInvalidCapacity)
}

func TestControllerUpdateParameters(t *testing.T) {
	c, _ := newController(t, battery.DefaultParameters())
	p := battery.DefaultParameters()
	p.InitialCapacityPct = 25
	require.NoError(t, c.UpdateParameters(p))
	assert.Equal(t, 25.0, c.Parameters().InitialCapacityPct)
	assert.InDelta(t, 25, c.Status().StateOfChargePct, 1e-9)

	p.OCVTable = p.OCVTable[:100]
	require.ErrorIs(t, c.UpdateParameters(p), battery.ErrInvalidTable)
	assert.Equal(t, 25.0, c.Parameters().InitialCapacityPct)
}

func TestControllerSetLoad(t *testing.T) {
	c, hw := newController(t, battery.DefaultParameters())
	require.NoError(t, c.SetLoad(context.Background(), 420))
	cur, err := hw.MeasureCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 420.0, cur)
}
