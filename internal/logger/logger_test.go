package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagemap.log")
	log, err := New(Config{Level: "warn", Format: "json", OutputFile: path})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("evict page failed")
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1, "info is below the configured level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "evict page failed", entry["msg"])
	assert.Equal(t, "pagemap", entry["service"])
	assert.Contains(t, entry, "caller")
}

func TestNewConsoleDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagemap.log")
	log, err := New(Config{OutputFile: path})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("mapping manager closed")
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "INFO")
	assert.Contains(t, string(raw), "mapping manager closed")
	assert.NotContains(t, string(raw), "hidden", "default level is info")
}

func TestNewErrors(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{OutputFile: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}
