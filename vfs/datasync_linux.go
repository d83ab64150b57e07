//go:build linux

package vfs

import (
	"os"

	"golang.org/x/sys/unix"
)

// datasync flushes f's data without forcing a full metadata write-out.
// fdatasync still captures file-size changes; it only elides timestamps
// and similar metadata, so Save's durability contract holds.
func datasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
