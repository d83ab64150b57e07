package decoder

import (
	"github.com/cockroachdb/errors"

	"github.com/videotable/vstore/internal/base"
)

// unavailableDecoder represents a hardware backend selected by the
// factory but not compiled into this build (no CUDA/NVDEC or Intel QSV
// bindings — outside a storage/codec core, see SPEC_FULL.md §4.6). It
// still satisfies the Decoder interface and the state machine contract:
// every operation fails with ErrDecoderFailed and the decoder moves
// straight to Errored, so callers exercise the same failure path a real
// backend would take if its device initialization failed.
type unavailableDecoder struct {
	backend Type
}

func newUnavailableDecoder(backend Type) *unavailableDecoder {
	return &unavailableDecoder{backend: backend}
}

func (d *unavailableDecoder) failure() error {
	return errors.Mark(errors.Newf("decoder: %s backend not available in this build", d.backend), base.ErrDecoderFailed)
}

func (d *unavailableDecoder) State() State { return StateErrored }

func (d *unavailableDecoder) Feed(encoded []byte, discontinuity bool) error { return d.failure() }

func (d *unavailableDecoder) GetFrame(out []byte) (bool, error) { return false, d.failure() }

func (d *unavailableDecoder) DiscardFrame() (bool, error) { return false, d.failure() }

func (d *unavailableDecoder) WaitUntilFramesCopied() error { return d.failure() }

func (d *unavailableDecoder) DecodedFramesBuffered() int { return 0 }

func (d *unavailableDecoder) Close() error { return nil }
