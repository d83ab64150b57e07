package videodescriptor

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"

	"github.com/videotable/vstore/internal/base"
	"github.com/videotable/vstore/vfs"
)

// Save writes d to path atomically: the full payload is staged under a
// temp path and then renamed into place (spec.md §4.5: "written
// atomically: temp file + save"), so a reader never observes a
// partially-written descriptor. The on-disk framing is
// u32 payload_len || payload || u64 xxhash64(payload) — the checksum
// trailer is not in spec.md itself but strengthens the CorruptedItem
// detection path the same way the teacher's record format detects a torn
// write (see DESIGN.md).
func Save(fs vfs.FS, path string, d *VideoDescriptor) error {
	payload := d.Marshal()

	framed := make([]byte, 4, 4+len(payload)+8)
	binary.LittleEndian.PutUint32(framed, uint32(len(payload)))
	framed = append(framed, payload...)
	sum := xxhash.Sum64(payload)
	var sumBuf [8]byte
	binary.LittleEndian.PutUint64(sumBuf[:], sum)
	framed = append(framed, sumBuf[:]...)

	tmpPath := path + ".tmp"
	w, err := fs.MakeWriteFile(tmpPath)
	if err != nil {
		return vfs.Classify(err)
	}
	if err := w.Append(framed); err != nil {
		return vfs.Classify(err)
	}
	if err := w.Save(); err != nil {
		return vfs.Classify(err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		return vfs.Classify(err)
	}
	return nil
}

// Load reads and verifies the descriptor at path: the u32 length prefix
// must match the payload that follows, and the trailing xxhash64 must
// match the payload's checksum. Either mismatch is a CorruptedItem
// (spec.md §4.5, §7), distinct from the blob simply not existing.
func Load(fs vfs.FS, path string) (*VideoDescriptor, error) {
	r, err := fs.MakeReadFile(path)
	if err != nil {
		return nil, vfs.Classify(err)
	}
	defer r.Close()

	size, err := r.Size()
	if err != nil {
		return nil, vfs.Classify(err)
	}
	if size < 12 {
		return nil, errors.Mark(errors.Newf("videodescriptor: descriptor file %s too short (%d bytes)", path, size), base.ErrCorruptedItem)
	}
	buf := make([]byte, size)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, vfs.Classify(err)
	}

	payloadLen := binary.LittleEndian.Uint32(buf[:4])
	if int64(4+int(payloadLen)+8) != size {
		return nil, errors.Mark(errors.Newf("videodescriptor: descriptor %s declares payload_len=%d but file is %d bytes", path, payloadLen, size), base.ErrCorruptedItem)
	}
	payload := buf[4 : 4+payloadLen]
	wantSum := binary.LittleEndian.Uint64(buf[4+payloadLen:])
	gotSum := xxhash.Sum64(payload)
	if gotSum != wantSum {
		return nil, errors.Mark(errors.Newf("videodescriptor: descriptor %s checksum mismatch (got %x want %x)", path, gotSum, wantSum), base.ErrCorruptedItem)
	}

	d, err := Unmarshal(payload)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "videodescriptor: unmarshal"), base.ErrCorruptedItem)
	}
	return d, nil
}
