package vfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/videotable/vstore/internal/base"
)

func TestMemFSWriteThenRead(t *testing.T) {
	fs := NewMem()
	w, err := fs.MakeWriteFile("tables/1/0/0.bin")
	require.NoError(t, err)
	require.NoError(t, w.Append([]byte("hello ")))
	require.NoError(t, w.Append([]byte("world")))
	require.NoError(t, w.Save())

	exists, err := fs.Exists("tables/1/0/0.bin")
	require.NoError(t, err)
	require.True(t, exists)

	r, err := fs.MakeReadFile("tables/1/0/0.bin")
	require.NoError(t, err)
	defer r.Close()

	size, err := r.Size()
	require.NoError(t, err)
	require.EqualValues(t, 11, size)

	buf := make([]byte, 5)
	n, err := r.ReadAt(buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))
}

func TestMemFSReadMissingIsTerminal(t *testing.T) {
	fs := NewMem()
	_, err := fs.MakeReadFile("nope.bin")
	require.Error(t, err)
	require.True(t, base.IsTerminal(err))
}

func TestMemFSRenameIsAtomicHandoff(t *testing.T) {
	fs := NewMem()
	w, _ := fs.MakeWriteFile("tmp.bin")
	require.NoError(t, w.Append([]byte("data")))
	require.NoError(t, w.Save())

	require.NoError(t, fs.Rename("tmp.bin", "final.bin"))
	exists, _ := fs.Exists("tmp.bin")
	require.False(t, exists)
	exists, _ = fs.Exists("final.bin")
	require.True(t, exists)
}

func TestRetryPolicyRetriesTransientThenSucceeds(t *testing.T) {
	rp := NewRetryPolicy(time.Millisecond, 10*time.Millisecond, 5)
	attempts := 0
	err := rp.Do(func() error {
		attempts++
		if attempts < 3 {
			return mustTransient()
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryPolicyPropagatesTerminalImmediately(t *testing.T) {
	rp := NewRetryPolicy(time.Millisecond, 10*time.Millisecond, 5)
	attempts := 0
	err := rp.Do(func() error {
		attempts++
		return mustTerminalErr()
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestRetryPolicyExhaustionPromotesToTerminal(t *testing.T) {
	rp := NewRetryPolicy(time.Millisecond, 2*time.Millisecond, 3)
	attempts := 0
	err := rp.Do(func() error {
		attempts++
		return mustTransient()
	})
	require.Error(t, err)
	require.True(t, base.IsTerminal(err))
	require.Equal(t, 3, attempts)
}

func mustTransient() error {
	return transientErr
}

func mustTerminalErr() error {
	return terminalErr
}

var (
	transientErr = Classify(wrapAsTransientForTest())
	terminalErr  = Classify(ErrNotExist)
)

func wrapAsTransientForTest() error {
	return errUnclassified
}

var errUnclassified = &unclassifiedErr{}

type unclassifiedErr struct{}

func (*unclassifiedErr) Error() string { return "transient-like failure" }
