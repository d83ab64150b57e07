package vfs

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/videotable/vstore/internal/base"
)

// MemFS is an in-memory FS, used by tests and as the minimal skeleton a
// real S3/GCS-backed FS would follow: blobs are named buffers with no
// directory structure beyond the path string itself, exactly as a real
// object store has none either.
type MemFS struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMem returns a new memory-backed FS.
func NewMem() *MemFS {
	return &MemFS{blobs: make(map[string][]byte)}
}

func (m *MemFS) MakeWriteFile(path string) (WriteHandle, error) {
	return &memWriteHandle{fs: m, path: path}, nil
}

func (m *MemFS) MakeReadFile(path string) (RandomReadHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[path]
	if !ok {
		return nil, base.MarkTerminal(errors.Mark(errors.Newf("vfs: %s not found", path), ErrNotExist))
	}
	return &memReadHandle{data: data}, nil
}

func (m *MemFS) Exists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[path]
	return ok, nil
}

func (m *MemFS) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, path)
	return nil
}

func (m *MemFS) Rename(oldpath, newpath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[oldpath]
	if !ok {
		return errors.Mark(errors.Newf("vfs: %s not found", oldpath), ErrNotExist)
	}
	m.blobs[newpath] = data
	delete(m.blobs, oldpath)
	return nil
}

func (m *MemFS) MkdirAll(dir string) error { return nil }

type memWriteHandle struct {
	fs   *MemFS
	path string
	buf  []byte
}

func (h *memWriteHandle) Append(b []byte) error {
	h.buf = append(h.buf, b...)
	return nil
}

func (h *memWriteHandle) Save() error {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()
	h.fs.blobs[h.path] = h.buf
	return nil
}

type memReadHandle struct {
	data []byte
}

func (h *memReadHandle) Close() error { return nil }

func (h *memReadHandle) Size() (int64, error) { return int64(len(h.data)), nil }

func (h *memReadHandle) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(h.data)) {
		return 0, errors.Newf("vfs: offset %d out of range [0,%d]", off, len(h.data))
	}
	n := copy(p, h.data[off:])
	if n < len(p) {
		return n, errors.New("vfs: short read")
	}
	return n, nil
}
