// Package columnar implements the table/item/column file layout from
// spec.md §4.3: the generic Bytes/RAW-video column file format and
// per-table item row-range bookkeeping. The canonical paths live in
// internal/base.
package columnar

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/videotable/vstore/internal/base"
	"github.com/videotable/vstore/vfs"
)

// WriteGenericColumn writes the generic columnar layout (spec.md §4.3):
//
//	metadata file: u64 num_elements, then num_elements x u64 element_size
//	data file:     contiguous concatenation of element buffers
//
// An empty batch is a no-op beyond the zero-count header (spec.md §8).
func WriteGenericColumn(metadata, data vfs.WriteHandle, elements [][]byte) (bytesWritten int64, err error) {
	header := make([]byte, 8)
	binary.LittleEndian.PutUint64(header, uint64(len(elements)))
	if err := metadata.Append(header); err != nil {
		return 0, vfs.Classify(err)
	}
	bytesWritten += 8

	sizes := make([]byte, 8*len(elements))
	for i, e := range elements {
		binary.LittleEndian.PutUint64(sizes[i*8:], uint64(len(e)))
	}
	if len(sizes) > 0 {
		if err := metadata.Append(sizes); err != nil {
			return bytesWritten, vfs.Classify(err)
		}
		bytesWritten += int64(len(sizes))
	}

	for _, e := range elements {
		if len(e) == 0 {
			continue
		}
		if err := data.Append(e); err != nil {
			return bytesWritten, vfs.Classify(err)
		}
		bytesWritten += int64(len(e))
	}
	return bytesWritten, nil
}

// ElementSizes reads num_elements and the element_sizes[] array out of a
// metadata file, per spec.md §4.8 (load worker).
func ElementSizes(metadata vfs.RandomReadHandle) ([]uint64, error) {
	var header [8]byte
	if _, err := metadata.ReadAt(header[:], 0); err != nil {
		return nil, vfs.Classify(err)
	}
	numElements := binary.LittleEndian.Uint64(header[:])
	if numElements == 0 {
		return nil, nil
	}
	buf := make([]byte, 8*numElements)
	if _, err := metadata.ReadAt(buf, 8); err != nil {
		return nil, vfs.Classify(err)
	}
	sizes := make([]uint64, numElements)
	for i := range sizes {
		sizes[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	return sizes, nil
}

// ReadGenericColumn reads every element's bytes back from a data file given
// the sizes recovered from ElementSizes, preserving order (spec.md §8
// round-trip property).
func ReadGenericColumn(data vfs.RandomReadHandle, sizes []uint64) ([][]byte, error) {
	out := make([][]byte, len(sizes))
	var offset int64
	for i, size := range sizes {
		buf := make([]byte, size)
		if size > 0 {
			if _, err := data.ReadAt(buf, offset); err != nil {
				return nil, vfs.Classify(err)
			}
		}
		out[i] = buf
		offset += int64(size)
	}
	return out, nil
}

// ValidateGenericFile checks the invariant Σ element_size == filesize(data)
// (spec.md §3/§8).
func ValidateGenericFile(sizes []uint64, dataFileSize int64) error {
	var sum uint64
	for _, s := range sizes {
		sum += s
	}
	if int64(sum) != dataFileSize {
		return errors.Mark(errors.Newf("columnar: sum(element_size)=%d != filesize(data)=%d", sum, dataFileSize), base.ErrCorruptedItem)
	}
	return nil
}
