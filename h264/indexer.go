// Package h264 implements the Annex-B bytestream indexer (spec.md §4.4):
// it parses a sequence of NAL units, hoists SPS/PPS into a metadata blob,
// and emits the per-access-unit offset/size index a VideoDescriptor needs
// to seek into an H.264 elementary stream without a parallel container
// format. One Indexer corresponds to one encoded video (one save-worker
// feed() call's video column payload), mirroring the original Scanner
// engine's H264ByteStreamIndexCreator, which is constructed fresh for
// every such call (see original_source save_worker.cpp).
package h264

import (
	"github.com/cockroachdb/errors"

	"github.com/videotable/vstore/internal/base"
	"github.com/videotable/vstore/vfs"
)

// NAL unit types relevant to access-unit splitting (H.264 Annex B,
// nal_unit_type is the low 5 bits of the NAL header byte).
const (
	nalTypeNonIDRSlice = 1
	nalTypeIDRSlice    = 5
	nalTypeSPS         = 7
	nalTypePPS         = 8
)

// Indexer is the per-video H.264 Annex-B bytestream indexer. It writes the
// framed elementary stream bytes (excluding SPS/PPS, which are hoisted
// into MetadataBytes) to dst as they're fed, and accumulates the index
// arrays a VideoDescriptor needs.
type Indexer struct {
	dst vfs.WriteHandle

	bytestreamPos   uint64
	frames          int64
	numNonRefFrames int32

	metadataBytes   []byte
	keyframeIndices []uint64
	sampleOffsets   []uint64
	sampleSizes     []uint64

	auOpen   bool
	auHasVCL bool
	auStart  uint64
}

// NewIndexer returns an Indexer that writes the indexed elementary stream
// bytes to dst.
func NewIndexer(dst vfs.WriteHandle) *Indexer {
	return &Indexer{dst: dst}
}

func (ix *Indexer) BytestreamPos() uint64      { return ix.bytestreamPos }
func (ix *Indexer) Frames() int64              { return ix.frames }
func (ix *Indexer) NumNonRefFrames() int32     { return ix.numNonRefFrames }
func (ix *Indexer) MetadataBytes() []byte      { return ix.metadataBytes }
func (ix *Indexer) KeyframeIndices() []uint64  { return ix.keyframeIndices }
func (ix *Indexer) SampleOffsets() []uint64    { return ix.sampleOffsets }
func (ix *Indexer) SampleSizes() []uint64      { return ix.sampleSizes }

type nalUnit struct {
	// full is the NAL's bytes including its start code, exactly as they
	// should be re-emitted (start code length varies: 3 or 4 bytes).
	full   []byte
	header byte
}

func (n nalUnit) nalType() byte     { return n.header & 0x1f }
func (n nalUnit) refIdc() byte      { return (n.header >> 5) & 0x3 }

// scanNALUs splits buf into a sequence of NAL units, each with its
// original start code prefix preserved. buf's first bytes must be a start
// code.
func scanNALUs(buf []byte) ([]nalUnit, error) {
	starts, err := findStartCodes(buf)
	if err != nil {
		return nil, err
	}
	var units []nalUnit
	for i, sc := range starts {
		unitStart := sc.pos
		var unitEnd int
		if i+1 < len(starts) {
			unitEnd = starts[i+1].pos
		} else {
			unitEnd = len(buf)
		}
		headerPos := sc.pos + sc.length
		if headerPos >= unitEnd {
			return nil, errors.Mark(errors.New("h264: truncated NAL header"), base.ErrBitstreamInvalid)
		}
		units = append(units, nalUnit{
			full:   buf[unitStart:unitEnd],
			header: buf[headerPos],
		})
	}
	return units, nil
}

type startCode struct {
	pos    int
	length int
}

// findStartCodes locates every 0x000001 (3-byte) or 0x00000001 (4-byte)
// start code in buf. The first bytes of buf must be a start code.
func findStartCodes(buf []byte) ([]startCode, error) {
	first, ok := startCodeAt(buf, 0)
	if !ok {
		return nil, errors.Mark(errors.New("h264: buffer does not begin with a start code"), base.ErrBitstreamInvalid)
	}
	var codes []startCode
	codes = append(codes, first)
	i := first.pos + first.length
	for i < len(buf) {
		if sc, ok := startCodeAt(buf, i); ok {
			codes = append(codes, sc)
			i = sc.pos + sc.length
			continue
		}
		i++
	}
	return codes, nil
}

func startCodeAt(buf []byte, pos int) (startCode, bool) {
	if pos+4 <= len(buf) && buf[pos] == 0 && buf[pos+1] == 0 && buf[pos+2] == 0 && buf[pos+3] == 1 {
		return startCode{pos: pos, length: 4}, true
	}
	if pos+3 <= len(buf) && buf[pos] == 0 && buf[pos+1] == 0 && buf[pos+2] == 1 {
		return startCode{pos: pos, length: 3}, true
	}
	return startCode{}, false
}

// FeedPacket implements the core operation from spec.md §4.4. An empty buf
// is an idempotent no-op.
func (ix *Indexer) FeedPacket(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	units, err := scanNALUs(buf)
	if err != nil {
		return err
	}
	for _, u := range units {
		if err := ix.feedUnit(u); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Indexer) feedUnit(u nalUnit) error {
	switch u.nalType() {
	case nalTypeSPS, nalTypePPS:
		ix.metadataBytes = append(ix.metadataBytes, u.full...)
		return nil
	case nalTypeIDRSlice, nalTypeNonIDRSlice:
		if u.nalType() == nalTypeNonIDRSlice && u.refIdc() == 0 {
			ix.numNonRefFrames++
		}
		// A VCL slice is the access unit boundary only when the open unit
		// already holds a coded slice; an open unit consisting solely of a
		// non-VCL prefix (SEI, AUD) belongs to this frame and is joined,
		// not closed.
		if ix.auOpen && ix.auHasVCL {
			ix.closeAccessUnit(ix.bytestreamPos)
		}
		if !ix.auOpen {
			ix.auStart = ix.bytestreamPos
			ix.auOpen = true
		}
		ix.auHasVCL = true
		if u.nalType() == nalTypeIDRSlice {
			ix.keyframeIndices = append(ix.keyframeIndices, uint64(ix.frames))
		}
		return ix.write(u.full)
	default:
		// Other NAL types (AUD, SEI, filler, ...): appended to whichever
		// access unit is currently open, per spec.md §4.4 step 2. If none
		// is open yet, these bytes are a stream-leading prefix that joins
		// the first access unit once a VCL slice opens one.
		if !ix.auOpen {
			ix.auStart = ix.bytestreamPos
			ix.auOpen = true
		}
		return ix.write(u.full)
	}
}

func (ix *Indexer) write(b []byte) error {
	if err := ix.dst.Append(b); err != nil {
		return vfs.Classify(err)
	}
	ix.bytestreamPos += uint64(len(b))
	return nil
}

func (ix *Indexer) closeAccessUnit(endOffset uint64) {
	ix.sampleOffsets = append(ix.sampleOffsets, ix.auStart)
	ix.sampleSizes = append(ix.sampleSizes, endOffset-ix.auStart)
	ix.frames++
	ix.auOpen = false
	ix.auHasVCL = false
}

// Close finalizes any pending access unit. It must be called once after
// the last FeedPacket call for this video, mirroring the original
// indexer's RAII destructor (original_source save_worker.cpp constructs
// one H264ByteStreamIndexCreator per feed() call and lets it go out of
// scope at the end of the per-column loop body).
func (ix *Indexer) Close() {
	// A trailing open unit with no coded slice (dangling SEI at end of
	// stream) is not a frame.
	if ix.auOpen && ix.auHasVCL {
		ix.closeAccessUnit(ix.bytestreamPos)
	}
}
