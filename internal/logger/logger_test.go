package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Format: "json", Output: &buf})

	l.With("run", "abc").WithGroup("kmeans").Info("fit done", "k", 5, "inertia", 12.5, "converged", true)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "fit done", entry["message"])
	assert.Equal(t, "abc", entry["run"])
	assert.Equal(t, float64(5), entry["kmeans.k"])
	assert.Equal(t, 12.5, entry["kmeans.inertia"])
	assert.Equal(t, true, entry["kmeans.converged"])
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "warn", Output: &buf})

	l.Info("hidden")
	l.Debug("hidden")
	assert.Zero(t, buf.Len(), "info and debug should be filtered at warn level")

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestErrorAppendsErrorField(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "info", Output: &buf})
	t.Cleanup(func() { Configure(Options{Level: "info"}) })

	Error("load failed", assertErr("boom"), "path", "data.csv")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "data.csv", entry["path"])
	assert.Equal(t, "error", entry["level"])
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
