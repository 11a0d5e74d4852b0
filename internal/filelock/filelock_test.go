package filelock

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockUnlock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "nested", "history.db.lock")
	lock := NewFileLock(lockPath)

	require.NoError(t, lock.Lock(context.Background()))
	_, err := os.Stat(lockPath)
	assert.NoError(t, err, "lock file should exist")
	require.NoError(t, lock.Unlock())
}

func TestTryLockHeld(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "x.lock")
	first := NewFileLock(lockPath)
	second := NewFileLock(lockPath)

	require.NoError(t, first.Lock(context.Background()))

	acquired, err := second.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired, "second lock must not be acquired while first holds it")

	require.NoError(t, first.Unlock())

	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, second.Unlock())
}

func TestLockHonorsContext(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "x.lock")
	holder := NewFileLock(lockPath)
	require.NoError(t, holder.Lock(context.Background()))
	defer holder.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	err := NewFileLock(lockPath).Lock(ctx)
	assert.Error(t, err)
}

func TestAtomicWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "report.json")

	require.NoError(t, AtomicWrite(path, []byte("first\n")))
	require.NoError(t, AtomicWrite(path, []byte("second\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLockAndWriteConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, LockAndWrite(context.Background(), path, []byte("complete report\n")))
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "complete report\n", string(data))
}

func TestWithLockPropagatesError(t *testing.T) {
	target := filepath.Join(t.TempDir(), "history.db")
	want := os.ErrPermission
	err := WithLock(context.Background(), target, func() error { return want })
	assert.ErrorIs(t, err, want)
}
