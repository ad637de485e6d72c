package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComponentTagsJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Config{Level: "debug", Format: FormatJSON, Output: &buf}))
	t.Cleanup(Discard)

	logger := Component("engine")
	logger.Info().Str("step", "Start").Msg("step executed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "engine", line["component"])
	require.Equal(t, "Start", line["step"])
	require.Equal(t, "step executed", line["message"])
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	require.Error(t, Init(Config{Level: "loud", Output: &bytes.Buffer{}}))
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Config{Level: "warn", Format: FormatJSON, Output: &buf}))
	t.Cleanup(Discard)

	logger := Component("test")
	logger.Debug().Msg("hidden")
	logger.Info().Msg("hidden")
	require.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	require.Contains(t, buf.String(), "shown")
}
