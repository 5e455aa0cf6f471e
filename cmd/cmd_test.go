package cmd

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func linearTable(lo, hi float64) string {
	vals := make([]string, 0, 101)
	for i := 0; i <= 100; i++ {
		vals = append(vals, strconv.FormatFloat(lo+(hi-lo)*float64(i)/100, 'f', -1, 64))
	}
	return strings.Join(vals, ",")
}

func TestOCVLookupDefaultCell(t *testing.T) {
	out, _, err := execute(t, "ocv", "lookup", "50")
	require.NoError(t, err)
	assert.Equal(t, "3710\n", out)
}

func TestOCVLookupInterpolates(t *testing.T) {
	out, _, err := execute(t, "ocv", "lookup", "--table", linearTable(3000, 4000), "50.5")
	require.NoError(t, err)
	assert.Equal(t, "3505\n", out)

	out, _, err = execute(t, "ocv", "lookup", "--table", linearTable(3000, 4000), "150")
	require.NoError(t, err)
	assert.Equal(t, "4000\n", out)

	_, _, err = execute(t, "ocv", "lookup", "half")
	assert.Error(t, err)
}

func TestOCVCheck(t *testing.T) {
	out, stderr, err := execute(t, "ocv", "check", "--table", linearTable(3000, 4000))
	require.NoError(t, err)
	assert.Contains(t, out, "entries: 101")
	assert.Contains(t, out, "monotonic: true")
	assert.Empty(t, stderr)

	bumpy := strings.Replace(linearTable(3000, 4000), "3500", "3600", 1)
	out, stderr, err = execute(t, "ocv", "check", "--table", bumpy)
	require.NoError(t, err)
	assert.Contains(t, out, "monotonic: false")
	assert.Contains(t, stderr, "not monotonic")

	_, _, err = execute(t, "ocv", "check", "--strict", "--table", bumpy)
	assert.Error(t, err)

	_, _, err = execute(t, "ocv", "check", "--table", "3000,3100")
	assert.Error(t, err)
}

func TestOCVCheckProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cell.json")
	body := `{"capacity_mah":1000,"initial_capacity_percent":100,"ocv_table":[` + linearTable(3200, 4100) + `]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	out, _, err := execute(t, "ocv", "check", "--profile", path)
	require.NoError(t, err)
	assert.Contains(t, out, "range: 3200..4100 mV")
}

func TestSimulateUntilDepleted(t *testing.T) {
	// 2000 mAh at 720 A empties in exactly ten one-second steps.
	out, stderr, err := execute(t, "simulate", "--load-ma", "720000")
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 11)
	assert.Equal(t, "timestamp", rows[0][0])
	assert.Equal(t, "0", rows[10][7])
	assert.Contains(t, stderr, "10 steps")
	assert.Contains(t, stderr, "depleted")
}

func TestSimulateDurationToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	_, stderr, err := execute(t, "simulate", "--load-ma", "1000", "--step", "500ms", "--duration", "5s", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "10 steps")
	assert.Contains(t, stderr, "running")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 11)
}

func TestSimulateRejectsEndlessRun(t *testing.T) {
	_, _, err := execute(t, "simulate", "--load-ma", "0")
	assert.Error(t, err)
	_, _, err = execute(t, "simulate", "--step", "0s", "--duration", "1s")
	assert.Error(t, err)
}
