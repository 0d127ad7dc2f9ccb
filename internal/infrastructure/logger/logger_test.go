package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kekhai/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"nonsense", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("declaration submitted")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"declaration submitted"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_TeesExtraCores(t *testing.T) {
	extra, recorded := observer.New(zapcore.WarnLevel)
	log, err := New(&Config{Level: "debug", Format: "console", Output: "stderr"}, extra, nil)
	require.NoError(t, err)

	log.Info("not forwarded")
	log.Warn("forwarded")

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "forwarded", entries[0].Message)
}

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(config.LogConfig{Level: "warn", Format: "json", Output: "stdout"})
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, defaultTimeFormat, cfg.TimeFormat)

	log, err := New(nil)
	require.NoError(t, err)
	assert.NotNil(t, log)
}
