package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"trace":   zerolog.TraceLevel,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestInitJSON(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer

	closer, err := Init(Config{Level: "warn", Format: "json", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	// The startup line is info and is filtered at warn.
	assert.Empty(t, buf.String())

	log.Warn().Str("k", "v").Msg("hello")
	assert.Contains(t, buf.String(), `"message":"hello"`)
	assert.Contains(t, buf.String(), `"k":"v"`)

	buf.Reset()
	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestInitTextWithFile(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	closer, err := Init(Config{Level: "info", Format: "text", File: path, MaxSizeMB: 1, MaxBackups: 1, Output: &buf})
	require.NoError(t, err)

	log.Info().Msg("to both sinks")
	require.NoError(t, closer.Close())

	assert.Contains(t, buf.String(), "Logging initialised")
	assert.Contains(t, buf.String(), "to both sinks")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both sinks")
	assert.NotContains(t, string(data), "\x1b[")
}

func TestInitRejectsBadConfig(t *testing.T) {
	restoreGlobals(t)

	_, err := Init(Config{Level: "nope"})
	assert.Error(t, err)

	_, err = Init(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestInitWithCaller(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer

	_, err := Init(Config{Format: "json", WithCaller: true, Output: &buf})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"caller":`)
}
