// Package config implements the SinkConfig/SourceConfig args surface from
// spec.md §6: opaque protobuf-wire bytes carrying {storage_type, bucket,
// region, endpoint}, parsed with defaults (storage_type="posix", empty
// args permitted) and turned into a concrete vfs.FS.
package config

import (
	"github.com/cockroachdb/errors"

	"github.com/videotable/vstore/internal/base"
	"github.com/videotable/vstore/vfs"
)

// StorageArgs is the protobuf-wire message backing SinkConfig.args and
// SourceConfig.args (SPEC_FULL.md §3 [NEW]).
type StorageArgs struct {
	StorageType string
	Bucket      string
	Region      string
	Endpoint    string
}

const defaultStorageType = "posix"

// ParseStorageArgs decodes args per spec.md §6. Empty args is permitted and
// yields the all-defaults StorageArgs (storage_type="posix").
func ParseStorageArgs(args []byte) (StorageArgs, error) {
	sa := StorageArgs{StorageType: defaultStorageType}
	if len(args) == 0 {
		return sa, nil
	}
	pos := 0
	for pos < len(args) {
		tag, next, err := readVarint(args, pos)
		if err != nil {
			return StorageArgs{}, errors.Mark(errors.Wrap(err, "config: reading tag"), base.ErrConfigInvalid)
		}
		pos = next
		field := int(tag >> 3)
		wireType := int(tag & 0x7)
		if wireType != 2 {
			return StorageArgs{}, errors.Mark(errors.Newf("config: unsupported wire type %d for field %d", wireType, field), base.ErrConfigInvalid)
		}
		length, next, err := readVarint(args, pos)
		if err != nil {
			return StorageArgs{}, errors.Mark(errors.Wrap(err, "config: reading length"), base.ErrConfigInvalid)
		}
		pos = next
		if pos+int(length) > len(args) {
			return StorageArgs{}, errors.Mark(errors.Newf("config: field %d length %d overruns buffer", field, length), base.ErrConfigInvalid)
		}
		payload := string(args[pos : pos+int(length)])
		pos += int(length)
		switch field {
		case 1:
			sa.StorageType = payload
		case 2:
			sa.Bucket = payload
		case 3:
			sa.Region = payload
		case 4:
			sa.Endpoint = payload
		}
	}
	if sa.StorageType == "" {
		sa.StorageType = defaultStorageType
	}
	return sa, nil
}

// Marshal encodes sa as protobuf wire bytes.
func (sa StorageArgs) Marshal() []byte {
	var buf []byte
	buf = appendStringField(buf, 1, sa.StorageType)
	buf = appendStringField(buf, 2, sa.Bucket)
	buf = appendStringField(buf, 3, sa.Region)
	buf = appendStringField(buf, 4, sa.Endpoint)
	return buf
}

// NewFS builds the vfs.FS named by sa.StorageType: "posix" (or an empty
// type) returns a vfs.NewPosix backend rooted at posixRoot, "mem" returns
// the in-memory backend, and "s3"/"gcs" return a recognized-but-unavailable
// error — real object-store backends are external collaborators
// outside this storage/codec core (spec.md §1 Non-goals), so config only
// has to validate the type name, not implement the backend.
func NewFS(sa StorageArgs, posixRoot string) (vfs.FS, error) {
	switch sa.StorageType {
	case "posix", "":
		fs, err := vfs.NewPosix(posixRoot)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "mem":
		return vfs.NewMem(), nil
	case "s3", "gcs":
		return nil, errors.Mark(errors.Newf("config: storage_type %q recognized but not implemented in this build", sa.StorageType), base.ErrConfigInvalid)
	default:
		return nil, errors.Mark(errors.Newf("config: unknown storage_type %q", sa.StorageType), base.ErrConfigInvalid)
	}
}

func appendStringField(buf []byte, field int, s string) []byte {
	if s == "" {
		return buf
	}
	buf = appendTag(buf, field, 2)
	buf = appendVarint(buf, uint64(len(s)))
	return append(buf, s...)
}

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

func readVarint(buf []byte, pos int) (uint64, int, error) {
	var v uint64
	var shift uint
	for {
		if pos >= len(buf) {
			return 0, pos, errors.New("config: truncated varint")
		}
		b := buf[pos]
		pos++
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, pos, nil
		}
		shift += 7
		if shift > 63 {
			return 0, pos, errors.New("config: varint overflow")
		}
	}
}
