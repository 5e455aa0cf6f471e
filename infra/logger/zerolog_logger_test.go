package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	assert.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer func() { assert.NoError(t, os.Unsetenv("APP_ENV")) }()
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("engine", &buf)
	l.Warnf("soc %.1f", 12.5)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "soc 12.5", line["message"])
	assert.Equal(t, "warn", line["level"])
}

func TestSetLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	require.NoError(t, SetLevel("warn"))
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("x", &buf)
	l.Infof("hidden")
	assert.Zero(t, buf.Len())

	assert.NoError(t, SetLevel(""))
	assert.Error(t, SetLevel("loud"))
}
