// Package videodescriptor implements the VideoDescriptor index record:
// the protobuf-wire record tying an encoded byte stream to its per-frame
// index (spec.md §3, §4.5). See descriptor.proto for the schema this
// package's codec reads and writes.
package videodescriptor

import "github.com/cockroachdb/errors"

// FrameType mirrors frame.Kind but is the descriptor's own wire enum so the
// two packages can evolve independently, exactly as the codec (raw u8/f32/f64)
// and the index record are independent concerns in spec.md.
type FrameType int32

const (
	FrameTypeU8 FrameType = iota
	FrameTypeF32
	FrameTypeF64
)

// Codec selects how the data file's bytes are framed.
type Codec int32

const (
	CodecRAW Codec = iota
	CodecH264
)

// ChromaFormat is currently always YUV_420 for non-RAW video, per spec.md.
type ChromaFormat int32

const (
	ChromaYUV420 ChromaFormat = iota
)

// VideoDescriptor is the per-video-column-item record described in
// spec.md §3. Field names and numbering follow descriptor.proto.
type VideoDescriptor struct {
	TableID      int32
	ColumnIndex  int32
	ItemID       int32
	FrameType    FrameType
	Width        int32
	Height       int32
	Channels     int32
	Codec        Codec
	ChromaFormat ChromaFormat

	NumEncodedVideos int32
	Frames           int64
	FramesPerVideo   []int64
	KeyframesPerVideo []int64
	SizePerVideo     []int64

	MetadataPackets []byte

	KeyframeIndices []uint64
	SampleOffsets   []uint64
	SampleSizes     []uint64

	DataPath string

	// TimeBaseNum/TimeBaseDenom default to 1/25. See DESIGN.md for the
	// open-question resolution: preserved as a default, exposed as a field
	// rather than hardcoded, per spec.md §9.
	TimeBaseNum   int32
	TimeBaseDenom int32
}

// New returns a descriptor initialized the way Save worker's new_task does:
// identity fields set, time base defaulted to 1/25, everything else zero.
func New(tableID, columnIndex, itemID int32) *VideoDescriptor {
	return &VideoDescriptor{
		TableID:       tableID,
		ColumnIndex:   columnIndex,
		ItemID:        itemID,
		TimeBaseNum:   1,
		TimeBaseDenom: 25,
	}
}

// Validate checks the quantified invariants from spec.md §3/§8 on an H264
// descriptor:
//
//	Σ frames_per_video == frames
//	len(sample_offsets) == len(sample_sizes) == frames
//	keyframe_indices strictly increasing, each < frames
//	sample_offsets strictly increasing
//	element kind U8 and channels == 3
//
// sample_offsets are not checked against size_per_video, and a RAW
// descriptor passes without any of these checks.
func (d *VideoDescriptor) Validate() error {
	var sumFramesPerVideo int64
	for _, n := range d.FramesPerVideo {
		sumFramesPerVideo += n
	}
	if d.Codec == CodecH264 {
		if sumFramesPerVideo != d.Frames {
			return errors.Newf("videodescriptor: sum(frames_per_video)=%d != frames=%d", sumFramesPerVideo, d.Frames)
		}
		if int64(len(d.SampleOffsets)) != d.Frames || int64(len(d.SampleSizes)) != d.Frames {
			return errors.Newf("videodescriptor: len(sample_offsets)=%d len(sample_sizes)=%d != frames=%d",
				len(d.SampleOffsets), len(d.SampleSizes), d.Frames)
		}
		var prevOffset uint64
		for i, off := range d.SampleOffsets {
			if i > 0 && off <= prevOffset {
				return errors.Newf("videodescriptor: sample_offsets not strictly increasing at index %d", i)
			}
			prevOffset = off
		}
		var prevKey uint64
		for i, k := range d.KeyframeIndices {
			if i > 0 && k <= prevKey {
				return errors.Newf("videodescriptor: keyframe_indices not strictly increasing at index %d", i)
			}
			if int64(k) >= d.Frames {
				return errors.Newf("videodescriptor: keyframe_indices[%d]=%d >= frames=%d", i, k, d.Frames)
			}
			prevKey = k
		}
		if d.Channels == 3 && d.FrameType != FrameTypeU8 {
			return errors.Newf("videodescriptor: H264 requires FrameTypeU8, got %v", d.FrameType)
		}
	}
	if d.Codec == CodecH264 && !(d.FrameType == FrameTypeU8 && d.Channels == 3) {
		return errors.New("videodescriptor: H264 codec requires element kind U8 and channels == 3")
	}
	return nil
}
