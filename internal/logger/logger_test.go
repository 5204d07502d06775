package logger

import (
	"testing"

	"icu-bed-management/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for raw, want := range cases {
		log, err := New(config.LogConfig{Level: raw, Format: "json"}, "icu-bed-management")
		require.NoError(t, err, raw)
		assert.True(t, log.Core().Enabled(want), raw)
		assert.False(t, log.Core().Enabled(want-1), raw)
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	log, err := New(config.LogConfig{Level: "info", Format: "console"}, "icu-bed-management")
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestNew_RejectsUnknownSettings(t *testing.T) {
	_, err := New(config.LogConfig{Level: "verbose"}, "icu-bed-management")
	assert.ErrorContains(t, err, "LOG_LEVEL")

	_, err = New(config.LogConfig{Level: "info", Format: "xml"}, "icu-bed-management")
	assert.ErrorContains(t, err, "LOG_FORMAT")
}
