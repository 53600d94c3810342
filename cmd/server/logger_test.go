package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("warn", "json", &buf)
	log.Info("hidden")
	log.Warn("shown", "node", "a")

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "a", rec["node"])

	buf.Reset()
	newLogger("nonsense", "text", &buf).Debug("dropped")
	assert.Empty(t, buf.String(), "unknown level falls back to info")
}
