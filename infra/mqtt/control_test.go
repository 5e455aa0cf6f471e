package mqtt

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/batsim/core/battery"
	"github.com/kilianp07/batsim/core/control"
	"github.com/kilianp07/batsim/core/engine"
	"github.com/kilianp07/batsim/core/hardware"
	"github.com/kilianp07/batsim/core/scheduler"
)

func newControl(t *testing.T) (*Control, *MockClient, *hardware.Simulated) {
	t.Helper()
	hw := hardware.NewSimulated(hardware.DefaultSimulatedLoadMA)
	eng, err := engine.New(battery.DefaultParameters(), hw, nil)
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	svc := control.New(eng, scheduler.New(eng, scheduler.Config{}, nil), nil)
	cli := NewMockClient("lab")
	c := NewControl(cli, svc, nil)
	require.NoError(t, c.Start(context.Background()))
	return c, cli, hw
}

func lastReply(t *testing.T, cli *MockClient) controlReply {
	t.Helper()
	msgs := cli.Messages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.Equal(t, "lab/status", last.Topic)
	var r controlReply
	require.NoError(t, json.Unmarshal(last.Payload, &r))
	return r
}

func TestControlStartStop(t *testing.T) {
	_, cli, _ := newControl(t)
	require.True(t, cli.Deliver("lab/cmd/start", nil))
	r := lastReply(t, cli)
	assert.True(t, r.OK)
	require.NotNil(t, r.Status)
	assert.True(t, r.Status.Ticking)

	require.True(t, cli.Deliver("lab/cmd/stop", nil))
	r = lastReply(t, cli)
	assert.True(t, r.OK)
	assert.False(t, r.Status.Ticking)
}

func TestControlSetLoad(t *testing.T) {
	_, cli, hw := newControl(t)
	cli.Deliver("lab/cmd/load", []byte(`{"current_ma":1500}`))
	assert.True(t, lastReply(t, cli).OK)
	cur, err := hw.MeasureCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1500.0, cur)

	cli.Deliver("lab/cmd/load", []byte(`{}`))
	r := lastReply(t, cli)
	assert.False(t, r.OK)
	assert.Equal(t, control.CodeBadRequest, r.Error.Code)
}

func TestControlParametersPartialUpdate(t *testing.T) {
	_, cli, _ := newControl(t)
	cli.Deliver("lab/cmd/parameters", []byte(`{"capacity_mah":500,"initial_capacity_percent":50}`))
	r := lastReply(t, cli)
	require.True(t, r.OK, "%+v", r.Error)
	assert.InDelta(t, 250, r.Status.RemainingCapacityMAh, 1e-9)
}

func TestControlParametersInvalidTable(t *testing.T) {
	_, cli, _ := newControl(t)
	cli.Deliver("lab/cmd/parameters", []byte(`{"ocv_table":[3000,3100]}`))
	r := lastReply(t, cli)
	assert.False(t, r.OK)
	assert.Equal(t, control.CodeInvalidTable, r.Error.Code)
}

func TestControlCannotStart(t *testing.T) {
	_, cli, _ := newControl(t)
	cli.Deliver("lab/cmd/parameters", []byte(`{"initial_capacity_percent":0}`))
	require.True(t, lastReply(t, cli).OK)
	cli.Deliver("lab/cmd/start", nil)
	r := lastReply(t, cli)
	assert.False(t, r.OK)
	assert.Equal(t, control.CodeCannotStart, r.Error.Code)
}

func TestControlUnknownCommand(t *testing.T) {
	_, cli, _ := newControl(t)
	cli.Deliver("lab/cmd/reboot", nil)
	r := lastReply(t, cli)
	assert.Equal(t, "reboot", r.Command)
	assert.Equal(t, control.CodeBadRequest, r.Error.Code)
}
