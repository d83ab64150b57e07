package vfs

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"

	"github.com/videotable/vstore/internal/base"
)

// PosixFS is the default blob store backend: a plain local directory tree,
// one file per blob, rooted at dir.
type PosixFS struct {
	root string
}

// NewPosix returns a PosixFS rooted at dir. dir is created if absent.
func NewPosix(dir string) (*PosixFS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, classifyOSErr(err)
	}
	return &PosixFS{root: dir}, nil
}

func (p *PosixFS) abs(path string) string {
	return filepath.Join(p.root, filepath.FromSlash(path))
}

func (p *PosixFS) MakeWriteFile(path string) (WriteHandle, error) {
	full := p.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, classifyOSErr(err)
	}
	f, err := os.OpenFile(full, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, classifyOSErr(err)
	}
	return &posixWriteHandle{f: f}, nil
}

func (p *PosixFS) MakeReadFile(path string) (RandomReadHandle, error) {
	f, err := os.Open(p.abs(path))
	if err != nil {
		return nil, classifyOSErr(err)
	}
	return &posixReadHandle{f: f}, nil
}

func (p *PosixFS) Exists(path string) (bool, error) {
	_, err := os.Stat(p.abs(path))
	if err == nil {
		return true, nil
	}
	if oserror.IsNotExist(err) {
		return false, nil
	}
	return false, classifyOSErr(err)
}

func (p *PosixFS) Remove(path string) error {
	err := os.Remove(p.abs(path))
	if err != nil && !oserror.IsNotExist(err) {
		return classifyOSErr(err)
	}
	return nil
}

func (p *PosixFS) Rename(oldpath, newpath string) error {
	full := p.abs(newpath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return classifyOSErr(err)
	}
	if err := os.Rename(p.abs(oldpath), full); err != nil {
		return classifyOSErr(err)
	}
	return nil
}

func (p *PosixFS) MkdirAll(dir string) error {
	if err := os.MkdirAll(p.abs(dir), 0o755); err != nil {
		return classifyOSErr(err)
	}
	return nil
}

// classifyOSErr maps an *os.PathError-class failure to the retryable/terminal
// split from spec.md §4.1: not-found/permission are terminal, everything
// else (disk full transient, EINTR-class) is treated as retryable so the
// caller's backoff loop gets a chance to recover.
func classifyOSErr(err error) error {
	if err == nil {
		return nil
	}
	if oserror.IsNotExist(err) || oserror.IsPermission(err) || errors.Is(err, fs.ErrInvalid) {
		return base.MarkTerminal(err)
	}
	return base.MarkTransient(err)
}

type posixWriteHandle struct {
	f *os.File
}

func (h *posixWriteHandle) Append(b []byte) error {
	if _, err := h.f.Write(b); err != nil {
		return classifyOSErr(err)
	}
	return nil
}

func (h *posixWriteHandle) Save() error {
	if err := datasync(h.f); err != nil {
		return classifyOSErr(err)
	}
	return classifyOSErr(h.f.Close())
}

type posixReadHandle struct {
	f *os.File
}

func (h *posixReadHandle) Close() error { return classifyOSErr(h.f.Close()) }

func (h *posixReadHandle) Size() (int64, error) {
	info, err := h.f.Stat()
	if err != nil {
		return 0, classifyOSErr(err)
	}
	return info.Size(), nil
}

func (h *posixReadHandle) ReadAt(p []byte, off int64) (int, error) {
	n, err := h.f.ReadAt(p, off)
	if err != nil {
		return n, classifyOSErr(err)
	}
	return n, nil
}
