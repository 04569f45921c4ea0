package applog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSONLines(t *testing.T) {
	home := t.TempDir()
	logger, closeFn, err := New(home, "info")
	require.NoError(t, err)

	logger.Named("engine").Info("answered", zap.String("source", "structured"))
	logger.Debug("hidden")
	closeFn()

	data, err := os.ReadFile(filepath.Join(home, "logs", FileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "answered", entry["msg"])
	assert.Equal(t, "engine", entry["logger"])
	assert.Equal(t, "structured", entry["source"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, _, err := New(t.TempDir(), "loud")
	assert.Error(t, err)
}
