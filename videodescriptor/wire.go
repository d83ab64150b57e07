package videodescriptor

import (
	"github.com/cockroachdb/errors"
)

// Hand-written protobuf wire format codec.
//
// This module cannot invoke protoc, so there is no generated .pb.go
// binding. Instead these functions speak the wire format directly: a
// sequence of (tag, value) pairs where tag = fieldNum<<3 | wireType,
// varint fields use wireType 0, and bytes/string/packed-repeated fields use
// wireType 2 (length-delimited). The byte stream Marshal produces is a
// valid proto3 encoding of descriptor.proto's VideoDescriptor message —
// any protobuf library can parse it, and Unmarshal skips unknown fields
// the same way generated code would, so the format stays forward
// compatible. See DESIGN.md for the full rationale.

const (
	wireVarint = 0
	wireBytes  = 2
)

func appendTag(buf []byte, field int, wireType int) []byte {
	return appendVarint(buf, uint64(field<<3|wireType))
}

func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func appendVarintField(buf []byte, field int, v int64) []byte {
	if v == 0 {
		return buf
	}
	buf = appendTag(buf, field, wireVarint)
	return appendVarint(buf, uint64(v))
}

func appendUvarintField(buf []byte, field int, v uint64) []byte {
	if v == 0 {
		return buf
	}
	buf = appendTag(buf, field, wireVarint)
	return appendVarint(buf, v)
}

func appendBytesField(buf []byte, field int, b []byte) []byte {
	if len(b) == 0 {
		return buf
	}
	buf = appendTag(buf, field, wireBytes)
	buf = appendVarint(buf, uint64(len(b)))
	return append(buf, b...)
}

func appendPackedInt64(buf []byte, field int, vs []int64) []byte {
	if len(vs) == 0 {
		return buf
	}
	var payload []byte
	for _, v := range vs {
		payload = appendVarint(payload, uint64(v))
	}
	return appendBytesField(buf, field, payload)
}

func appendPackedUint64(buf []byte, field int, vs []uint64) []byte {
	if len(vs) == 0 {
		return buf
	}
	var payload []byte
	for _, v := range vs {
		payload = appendVarint(payload, v)
	}
	return appendBytesField(buf, field, payload)
}

// Marshal encodes d as protobuf wire bytes.
func (d *VideoDescriptor) Marshal() []byte {
	var buf []byte
	buf = appendVarintField(buf, 1, int64(d.TableID))
	buf = appendVarintField(buf, 2, int64(d.ColumnIndex))
	buf = appendVarintField(buf, 3, int64(d.ItemID))
	buf = appendVarintField(buf, 4, int64(d.FrameType))
	buf = appendVarintField(buf, 5, int64(d.Width))
	buf = appendVarintField(buf, 6, int64(d.Height))
	buf = appendVarintField(buf, 7, int64(d.Channels))
	buf = appendVarintField(buf, 8, int64(d.Codec))
	buf = appendVarintField(buf, 9, int64(d.ChromaFormat))
	buf = appendVarintField(buf, 10, int64(d.NumEncodedVideos))
	buf = appendVarintField(buf, 11, d.Frames)
	buf = appendPackedInt64(buf, 12, d.FramesPerVideo)
	buf = appendPackedInt64(buf, 13, d.KeyframesPerVideo)
	buf = appendPackedInt64(buf, 14, d.SizePerVideo)
	buf = appendBytesField(buf, 15, d.MetadataPackets)
	buf = appendPackedUint64(buf, 16, d.KeyframeIndices)
	buf = appendPackedUint64(buf, 17, d.SampleOffsets)
	buf = appendPackedUint64(buf, 18, d.SampleSizes)
	buf = appendBytesField(buf, 19, []byte(d.DataPath))
	buf = appendVarintField(buf, 20, int64(d.TimeBaseNum))
	buf = appendVarintField(buf, 21, int64(d.TimeBaseDenom))
	return buf
}

func readVarint(buf []byte, pos int) (uint64, int, error) {
	var v uint64
	var shift uint
	for {
		if pos >= len(buf) {
			return 0, pos, errors.New("videodescriptor: truncated varint")
		}
		b := buf[pos]
		pos++
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, pos, nil
		}
		shift += 7
		if shift > 63 {
			return 0, pos, errors.New("videodescriptor: varint overflow")
		}
	}
}

func unpackInt64(payload []byte) ([]int64, error) {
	var out []int64
	pos := 0
	for pos < len(payload) {
		v, next, err := readVarint(payload, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, int64(v))
		pos = next
	}
	return out, nil
}

func unpackUint64(payload []byte) ([]uint64, error) {
	var out []uint64
	pos := 0
	for pos < len(payload) {
		v, next, err := readVarint(payload, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		pos = next
	}
	return out, nil
}

// Unmarshal decodes protobuf wire bytes into a fresh VideoDescriptor.
func Unmarshal(buf []byte) (*VideoDescriptor, error) {
	d := &VideoDescriptor{}
	pos := 0
	for pos < len(buf) {
		tag, next, err := readVarint(buf, pos)
		if err != nil {
			return nil, errors.Wrap(err, "videodescriptor: reading tag")
		}
		pos = next
		field := int(tag >> 3)
		wireType := int(tag & 0x7)

		switch wireType {
		case wireVarint:
			v, next, err := readVarint(buf, pos)
			if err != nil {
				return nil, errors.Wrapf(err, "videodescriptor: reading varint field %d", field)
			}
			pos = next
			switch field {
			case 1:
				d.TableID = int32(v)
			case 2:
				d.ColumnIndex = int32(v)
			case 3:
				d.ItemID = int32(v)
			case 4:
				d.FrameType = FrameType(v)
			case 5:
				d.Width = int32(v)
			case 6:
				d.Height = int32(v)
			case 7:
				d.Channels = int32(v)
			case 8:
				d.Codec = Codec(v)
			case 9:
				d.ChromaFormat = ChromaFormat(v)
			case 10:
				d.NumEncodedVideos = int32(v)
			case 11:
				d.Frames = int64(v)
			case 20:
				d.TimeBaseNum = int32(v)
			case 21:
				d.TimeBaseDenom = int32(v)
			}
		case wireBytes:
			length, next, err := readVarint(buf, pos)
			if err != nil {
				return nil, errors.Wrapf(err, "videodescriptor: reading length for field %d", field)
			}
			pos = next
			if pos+int(length) > len(buf) {
				return nil, errors.Newf("videodescriptor: field %d length %d overruns buffer", field, length)
			}
			payload := buf[pos : pos+int(length)]
			pos += int(length)
			switch field {
			case 12:
				if d.FramesPerVideo, err = unpackInt64(payload); err != nil {
					return nil, err
				}
			case 13:
				if d.KeyframesPerVideo, err = unpackInt64(payload); err != nil {
					return nil, err
				}
			case 14:
				if d.SizePerVideo, err = unpackInt64(payload); err != nil {
					return nil, err
				}
			case 15:
				d.MetadataPackets = append([]byte(nil), payload...)
			case 16:
				if d.KeyframeIndices, err = unpackUint64(payload); err != nil {
					return nil, err
				}
			case 17:
				if d.SampleOffsets, err = unpackUint64(payload); err != nil {
					return nil, err
				}
			case 18:
				if d.SampleSizes, err = unpackUint64(payload); err != nil {
					return nil, err
				}
			case 19:
				d.DataPath = string(payload)
			}
		default:
			return nil, errors.Newf("videodescriptor: unsupported wire type %d for field %d", wireType, field)
		}
	}
	return d, nil
}
