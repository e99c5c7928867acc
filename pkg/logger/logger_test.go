package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.InfoLevel)

	l.Info("series built",
		String("key", "fng"),
		Int("rows", 3),
		Float64("last", 42.5),
		Duration("duration_ms", 1500*time.Millisecond),
		Date("from", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
		Bool("persisted", true),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "series built", got["message"])
	assert.Equal(t, "fng", got["key"])
	assert.EqualValues(t, 3, got["rows"])
	assert.EqualValues(t, 42.5, got["last"])
	assert.EqualValues(t, 1500, got["duration_ms"])
	assert.Equal(t, "2024-01-02", got["from"])
	assert.Equal(t, true, got["persisted"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.WarnLevel)

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Error("shown", Error(errors.New("boom")))
	assert.Contains(t, buf.String(), "boom")
}

func TestWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.InfoLevel).With(String("component", "builder"))

	l.Info("hello")
	assert.Contains(t, buf.String(), `"component":"builder"`)
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "chatty"})
	assert.Error(t, err)
}
