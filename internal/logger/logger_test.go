package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, charmlog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, charmlog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, charmlog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, charmlog.InfoLevel, ParseLevel("bogus"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: charmlog.InfoLevel, Output: &buf, JSON: true})

	l.Info("gathered", "records", 3)
	l.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "gathered", entry["msg"])
	assert.EqualValues(t, 3, entry["records"])
}

func TestInit_ReplacesDefault(t *testing.T) {
	prev := Default()
	defer func() { defaultLogger = prev }()

	var buf bytes.Buffer
	Init(&Config{Level: charmlog.DebugLevel, Output: &buf})
	Debug("visible now")

	assert.Contains(t, buf.String(), "visible now")
}
