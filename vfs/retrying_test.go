package vfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/videotable/vstore/internal/base"
)

// flakyFS fails every operation with a transient error until failures is
// exhausted, then delegates to an in-memory FS.
type flakyFS struct {
	*MemFS
	failures int
}

func (f *flakyFS) trip() error {
	if f.failures > 0 {
		f.failures--
		return Classify(errUnclassified)
	}
	return nil
}

func (f *flakyFS) MakeWriteFile(path string) (WriteHandle, error) {
	if err := f.trip(); err != nil {
		return nil, err
	}
	h, err := f.MemFS.MakeWriteFile(path)
	if err != nil {
		return nil, err
	}
	return &flakyWriteHandle{h: h, fs: f}, nil
}

func (f *flakyFS) MakeReadFile(path string) (RandomReadHandle, error) {
	if err := f.trip(); err != nil {
		return nil, err
	}
	return f.MemFS.MakeReadFile(path)
}

type flakyWriteHandle struct {
	h  WriteHandle
	fs *flakyFS
}

func (h *flakyWriteHandle) Append(b []byte) error {
	if err := h.fs.trip(); err != nil {
		return err
	}
	return h.h.Append(b)
}

func (h *flakyWriteHandle) Save() error {
	if err := h.fs.trip(); err != nil {
		return err
	}
	return h.h.Save()
}

func TestWithRetriesRecoversTransientFailures(t *testing.T) {
	inner := &flakyFS{MemFS: NewMem(), failures: 4}
	fs := WithRetries(inner, NewRetryPolicy(time.Millisecond, 5*time.Millisecond, 5))

	// Each op trips at most a few transient failures in a row; the
	// wrapped FS absorbs all of them.
	w, err := fs.MakeWriteFile("a.bin")
	require.NoError(t, err)
	inner.failures = 2
	require.NoError(t, w.Append([]byte("payload")))
	inner.failures = 2
	require.NoError(t, w.Save())

	inner.failures = 2
	r, err := fs.MakeReadFile("a.bin")
	require.NoError(t, err)
	defer r.Close()
	buf := make([]byte, 7)
	_, err = r.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "payload", string(buf))
}

func TestWithRetriesExhaustionPromotesToTerminal(t *testing.T) {
	inner := &flakyFS{MemFS: NewMem(), failures: 100}
	fs := WithRetries(inner, NewRetryPolicy(time.Millisecond, 2*time.Millisecond, 3))

	_, err := fs.MakeWriteFile("a.bin")
	require.Error(t, err)
	require.True(t, base.IsTerminal(err))
}
