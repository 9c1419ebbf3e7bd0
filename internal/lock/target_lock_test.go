package lock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lockNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func newTestLock(t *testing.T, alive bool) TargetLock {
	t.Helper()
	return TargetLock{
		StateDir:   filepath.Join(t.TempDir(), ".stencil"),
		StaleAfter: 2 * time.Hour,
		Now:        func() time.Time { return lockNow },
		IsPIDAlive: func(int) bool { return alive },
	}
}

func writeLockFile(t *testing.T, l TargetLock, info LockInfo) {
	t.Helper()
	require.NoError(t, os.MkdirAll(l.StateDir, 0755))
	data, err := json.Marshal(info)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(l.Path(), data, 0600))
}

func TestTargetLock_WritesLockFile(t *testing.T) {
	l := newTestLock(t, true)

	unlock, err := l.Lock("apply")
	require.NoError(t, err)
	defer unlock()

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	var info LockInfo
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, os.Getpid(), info.PID)
	assert.True(t, info.CreatedAt.Equal(lockNow))
	assert.Equal(t, "apply", info.Cmd)

	stat, err := os.Stat(l.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), stat.Mode().Perm())
}

func TestTargetLock_ErrLockedOnContention(t *testing.T) {
	l := newTestLock(t, true)

	unlock, err := l.Lock("apply")
	require.NoError(t, err)
	defer unlock()

	_, err = l.Lock("rollback")
	var locked *ErrLocked
	require.ErrorAs(t, err, &locked)
	require.NotNil(t, locked.Info)
	assert.Equal(t, "apply", locked.Info.Cmd)
	assert.Contains(t, err.Error(), "target is locked by pid")
}

func TestTargetLock_UnlockReleases(t *testing.T) {
	l := newTestLock(t, true)

	unlock, err := l.Lock("apply")
	require.NoError(t, err)
	require.NoError(t, unlock())
	require.NoError(t, unlock(), "second unlock is a no-op")

	unlock, err = l.Lock("apply")
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestTargetLock_StaleByDeadPIDSteals(t *testing.T) {
	l := newTestLock(t, false)
	writeLockFile(t, l, LockInfo{PID: 999999, CreatedAt: lockNow, Cmd: "apply"})

	unlock, err := l.Lock("rollback")
	require.NoError(t, err)
	defer unlock()
}

func TestTargetLock_StaleByAgeSteals(t *testing.T) {
	l := newTestLock(t, true)
	writeLockFile(t, l, LockInfo{PID: os.Getpid(), CreatedAt: lockNow.Add(-3 * time.Hour)})

	unlock, err := l.Lock("apply")
	require.NoError(t, err)
	defer unlock()
}

func TestTargetLock_UnreadableFreshLockIsHeld(t *testing.T) {
	l := newTestLock(t, true)
	l.Now = time.Now
	require.NoError(t, os.MkdirAll(l.StateDir, 0755))
	require.NoError(t, os.WriteFile(l.Path(), []byte("garbage"), 0600))

	_, err := l.Lock("apply")
	var locked *ErrLocked
	require.ErrorAs(t, err, &locked)
	assert.Nil(t, locked.Info)
}

func TestIsPIDAlive(t *testing.T) {
	assert.True(t, isPIDAlive(os.Getpid()))
	assert.False(t, isPIDAlive(0))
	assert.False(t, isPIDAlive(-1))
}

func TestTargetLock_Held(t *testing.T) {
	l := newTestLock(t, true)
	assert.False(t, l.Held(), "no lock file")

	writeLockFile(t, l, LockInfo{PID: os.Getpid(), CreatedAt: lockNow, Cmd: "apply"})
	assert.True(t, l.Held())

	dead := l
	dead.IsPIDAlive = func(int) bool { return false }
	assert.False(t, dead.Held(), "holder exited")
}
