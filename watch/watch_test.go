package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestReloadOnWatchedFileOnly(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "templates.json")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(watched, []byte("[]"), 0o600))

	var calls atomic.Int32
	w, err := New([]string{watched}, func() error {
		calls.Add(1)
		return nil
	}, 80*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	w.Start()
	defer w.Close()

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	// a burst of writes collapses into one reload
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(watched, []byte("[ ]"), 0o600))
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}
