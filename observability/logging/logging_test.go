package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRenamesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("auctiond", "test", Options{Output: &buf, Level: slog.LevelDebug})
	logger.Debug("operation committed", slog.String("op", "place_bid"), MaskField("authorization", "Bearer abc"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "operation committed", line["message"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "auctiond", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "place_bid", line["op"])
	require.Equal(t, RedactedValue, line["authorization"])
	require.Contains(t, line, "timestamp")
}

func TestMaskField(t *testing.T) {
	require.Equal(t, "GET", MaskField("Method", "GET").Value.String())
	require.Equal(t, RedactedValue, MaskField("jwt", "token").Value.String())
	require.Equal(t, " ", MaskField("jwt", " ").Value.String())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
