// Package decoder implements the Feed/GetFrame decode pipeline contract
// from spec.md §4.6: a backend-agnostic interface plus the
// Idle→Streaming→Resync→Errored state machine every backend shares,
// selected through a factory keyed by (DeviceType, DeviceID, DecoderType).
//
// Backend selection mirrors the teacher's wal package, which picks between
// a standaloneManager and a failoverManager behind one Manager interface;
// here the factory picks between software/nvidia/intel Decoder
// implementations behind one Decoder interface.
package decoder

import (
	"github.com/cockroachdb/errors"

	"github.com/videotable/vstore/internal/base"
)

// Type names a decode backend.
type Type int

const (
	TypeSoftware Type = iota
	TypeNVIDIA
	TypeIntel
)

func (t Type) String() string {
	switch t {
	case TypeSoftware:
		return "software"
	case TypeNVIDIA:
		return "nvidia"
	case TypeIntel:
		return "intel"
	default:
		return "unknown"
	}
}

// DeviceType distinguishes CPU-hosted from accelerator-hosted decode.
type DeviceType int

const (
	DeviceCPU DeviceType = iota
	DeviceGPU
)

// State is the decoder's lifecycle state machine (spec.md §4.6).
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateResync
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateResync:
		return "resync"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Metadata carries whatever SPS/PPS (or equivalent) configuration bytes a
// backend needs before it can decode, e.g. VideoDescriptor.MetadataPackets.
type Metadata struct {
	ConfigBytes []byte
	FrameSize   int // expected decoded frame byte size, for GetFrame buffer checks
}

// Decoder is the backend-agnostic decode pipeline contract (spec.md §4.6).
type Decoder interface {
	// Feed submits an access unit (or partial bitstream). discontinuity
	// signals a seek: the backend must flush reference-picture state and
	// expect a keyframe next.
	Feed(encoded []byte, discontinuity bool) error
	// GetFrame pops one decoded frame into out, which must be exactly
	// Metadata.FrameSize bytes. Returns false if no frame is ready yet.
	GetFrame(out []byte) (bool, error)
	// DiscardFrame pops and drops one decoded frame without copying.
	DiscardFrame() (bool, error)
	// WaitUntilFramesCopied fences on any in-flight GetFrame device copies.
	WaitUntilFramesCopied() error
	// DecodedFramesBuffered reports how many decoded frames are ready.
	DecodedFramesBuffered() int
	State() State
	Close() error
}

// SupportedTypes lists the decoder backends compiled into this build.
// Restored from original_source/scanner/video/video_decoder.h, which the
// distilled spec dropped: a factory a scheduler can't introspect is hard
// to wire into backend selection (SPEC_FULL.md §4.6).
func SupportedTypes() []Type {
	return []Type{TypeSoftware, TypeNVIDIA, TypeIntel}
}

// HasType reports whether t is among SupportedTypes.
func HasType(t Type) bool {
	for _, s := range SupportedTypes() {
		if s == t {
			return true
		}
	}
	return false
}

// MakeFromConfig is the decoder factory: (DeviceType, deviceID, Type,
// Metadata) -> Decoder, mirroring VideoDecoder::make_from_config.
func MakeFromConfig(device DeviceType, deviceID int, t Type, meta Metadata) (Decoder, error) {
	switch t {
	case TypeSoftware:
		return newSoftwareDecoder(meta), nil
	case TypeNVIDIA, TypeIntel:
		// Hardware backends require vendor SDK bindings (CUDA/NVDEC,
		// Intel QSV) that are outside a storage/codec core — see
		// SPEC_FULL.md §4.6. The stub still participates in the state
		// machine and factory contract so callers can exercise backend
		// selection and failure handling without the real hardware.
		return newUnavailableDecoder(t), nil
	default:
		return nil, errors.Mark(errors.Newf("decoder: unknown decoder type %d", t), base.ErrConfigInvalid)
	}
}
