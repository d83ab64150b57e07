// Package vfs is the blob store abstraction (spec.md §4.1): sequential
// write handles and random-read handles over a pluggable backend. The
// interfaces are deliberately narrow — a real S3/GCS backend is an
// external collaborator per spec.md §1, so this package only has to give
// it somewhere to plug in (see config.NewFS).
package vfs

import (
	"io"

	"github.com/cockroachdb/errors"

	"github.com/videotable/vstore/internal/base"
)

// WriteHandle is a sequential-append write handle. Append is not safe for
// concurrent use (spec.md §4.1: "no intra-handle concurrent mutation").
type WriteHandle interface {
	// Append writes b at the current end of the file.
	Append(b []byte) error
	// Save flushes and closes the handle; afterwards the bytes are
	// durably visible to subsequent reads. This is the durability point.
	Save() error
}

// RandomReadHandle supports ranged reads into caller-provided buffers.
type RandomReadHandle interface {
	io.Closer
	ReadAt(p []byte, off int64) (int, error)
	Size() (int64, error)
}

// FS is a namespace of blobs, named by path. Implementations: posix (local
// disk, default) and mem (in-memory, used by tests and as the skeleton a
// real S3/GCS backend follows).
type FS interface {
	MakeWriteFile(path string) (WriteHandle, error)
	MakeReadFile(path string) (RandomReadHandle, error)
	// Exists reports whether a blob is present, without opening it. Used
	// by the crash-recovery check (spec.md §4.5): a data file with no
	// descriptor means the item is incomplete.
	Exists(path string) (bool, error)
	Remove(path string) error
	// Rename is used for the descriptor's atomic temp-file-then-rename
	// write (spec.md §4.5).
	Rename(oldpath, newpath string) error
	MkdirAll(dir string) error
}

// Classify maps a backend error to the retryable/terminal split from
// spec.md §4.1 and §7. Backends call this when returning errors so callers
// only ever need errors.Is against base.ErrStorageTransient/ErrStorageTerminal.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if base.IsTransient(err) || base.IsTerminal(err) {
		return err
	}
	if errors.Is(err, ErrNotExist) || errors.Is(err, ErrPermission) {
		return base.MarkTerminal(err)
	}
	return base.MarkTransient(err)
}

var (
	// ErrNotExist is returned by backends when a blob does not exist.
	ErrNotExist = errors.New("vfs: blob does not exist")
	// ErrPermission is returned by backends on an access-control failure.
	ErrPermission = errors.New("vfs: permission denied")
)
