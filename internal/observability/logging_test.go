package observability

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/autohtn/internal/config"
)

// logLines builds a logger writing to a temp file, runs emit, and returns the
// decoded JSON entries.
func logLines(t *testing.T, cfg config.LoggingConfig, emit func(*zap.Logger)) []map[string]any {
	t.Helper()
	cfg.Output = filepath.Join(t.TempDir(), "search.log")
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	emit(logger)
	_ = logger.Sync()

	f, err := os.Open(cfg.Output)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		out = append(out, entry)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestNewLogger_JSON(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_Console(t *testing.T) {
	cfg := config.LoggingConfig{Level: "debug", Format: "console"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel), "debug level should be enabled")
}

func TestNewLogger_InvalidSettings(t *testing.T) {
	cases := map[string]config.LoggingConfig{
		"level":        {Level: "trace", Format: "json"},
		"format":       {Level: "info", Format: "xml"},
		"trace sample": {Level: "info", Format: "json", TraceSample: -1},
		"output":       {Level: "info", Format: "json", Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewLogger(cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewLogger_AllLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := config.LoggingConfig{Level: level, Format: "json"}
		logger, err := NewLogger(cfg)
		require.NoError(t, err, "level %q should be valid", level)
		assert.NotNil(t, logger)
	}
}

func TestNewLogger_FullTraceByDefault(t *testing.T) {
	entries := logLines(t, config.LoggingConfig{Level: "debug", Format: "json"}, func(l *zap.Logger) {
		for i := 0; i < 500; i++ {
			l.Debug("expanding", zap.Int("depth", i))
		}
	})
	require.Len(t, entries, 500)
	assert.Equal(t, "autohtn", entries[0]["logger"])
	assert.Equal(t, "expanding", entries[0]["msg"])
}

func TestNewLogger_TraceSampleThinsRepeats(t *testing.T) {
	entries := logLines(t, config.LoggingConfig{Level: "debug", Format: "json", TraceSample: 10}, func(l *zap.Logger) {
		for i := 0; i < 500; i++ {
			l.Debug("expanding", zap.Int("depth", i))
		}
		l.Info("search finished")
	})
	assert.GreaterOrEqual(t, len(entries), 11)
	assert.Less(t, len(entries), 100)
	assert.Equal(t, "search finished", entries[len(entries)-1]["msg"])
}
