package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewHonoursLevelAndFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	logger, err := New(Config{Level: "warn", Format: "json", OutputPaths: []string{path}})
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger.Info("hidden")
	logger.Warn("steady state not reached", zap.String("experiment", "knockouts"))
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	require.NotContains(t, out, "hidden")
	require.True(t, strings.Contains(out, `"experiment":"knockouts"`), out)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	_, err = New(Config{Level: "info", Format: "xml"})
	require.Error(t, err)

	logger, err := New(Config{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
