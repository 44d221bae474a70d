package gateway_test

import (
	"bytes"
	"encoding/json"
	"testing"

	gateway "github.com/goliatone/go-auth-gateway"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal(line, &entry), string(line))
		out = append(out, entry)
	}
	return out
}

func TestNewLoggerJSONFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := gateway.NewLogger(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "field", "value")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["msg"])
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "value", entries[0]["field"])
}

func TestNewLoggerAddsRichErrorAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := gateway.NewLogger(&buf, glog.Debug, "json")

	err := gateway.NewBackendError(goerrors.New("store unavailable", goerrors.CategoryExternal).
		WithTextCode(gateway.TextCodeBackend), "test")
	logger.Error("lookup failed", "error", err)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "error", entries[0]["level"])
	assert.Equal(t, gateway.TextCodeBackend, entries[0]["text_code"])
	assert.Equal(t, "external", entries[0]["category"])
	assert.Contains(t, entries[0], "error")
	assert.Contains(t, entries[0], "stack")
}

func TestNewLoggerNamedChild(t *testing.T) {
	var buf bytes.Buffer
	logger := gateway.NewLogger(&buf, "info", "json")

	logger.GetLogger("router").Info("mounted")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "mounted", entries[0]["msg"])
	assert.Equal(t, "router", entries[0]["logger"])
}

func TestNewLoggerSatisfiesLogger(t *testing.T) {
	var logger gateway.Logger = gateway.NewLogger(nil, "", "console")
	assert.NotNil(t, logger)

	var child gateway.Logger = gateway.NewLogger(nil, "", "console").GetLogger("auth")
	assert.NotNil(t, child)
}
