package decoder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func idrNAL(payload byte) []byte {
	return []byte{0, 0, 0, 1, (3 << 5) | nalTypeIDR, payload}
}

func pNAL(payload byte) []byte {
	return []byte{0, 0, 0, 1, (2 << 5) | nalTypeNonIDR, payload}
}

func TestSupportedTypes(t *testing.T) {
	require.True(t, HasType(TypeSoftware))
	require.True(t, HasType(TypeNVIDIA))
	require.False(t, HasType(Type(99)))
}

func TestSoftwareDecoderIdleToStreaming(t *testing.T) {
	dec, err := MakeFromConfig(DeviceCPU, 0, TypeSoftware, Metadata{FrameSize: 4})
	require.NoError(t, err)
	require.Equal(t, StateIdle, dec.State())

	require.NoError(t, dec.Feed(idrNAL(1), false))
	require.Equal(t, StateStreaming, dec.State())
	require.Equal(t, 1, dec.DecodedFramesBuffered())
}

func TestSoftwareDecoderDiscontinuitySeekScenario(t *testing.T) {
	dec, err := MakeFromConfig(DeviceCPU, 0, TypeSoftware, Metadata{FrameSize: 4})
	require.NoError(t, err)

	require.NoError(t, dec.Feed(idrNAL(0), false))
	require.NoError(t, dec.Feed(pNAL(1), false))
	require.NoError(t, dec.Feed(pNAL(2), false))
	require.NoError(t, dec.Feed(pNAL(3), false))
	require.Equal(t, 4, dec.DecodedFramesBuffered())

	// Seek to frame 3: discontinuity flushes the queue, then the keyframe
	// access unit and one trailing access unit are fed.
	require.NoError(t, dec.Feed(idrNAL(9), true))
	require.NoError(t, dec.Feed(pNAL(10), false))
	require.Equal(t, StateStreaming, dec.State())
	require.Equal(t, 2, dec.DecodedFramesBuffered())

	ok, err := dec.DiscardFrame()
	require.NoError(t, err)
	require.True(t, ok)

	out := make([]byte, 4)
	ok, err = dec.GetFrame(out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, dec.DecodedFramesBuffered())
}

func TestSoftwareDecoderDropsUntilKeyframeAfterDiscontinuity(t *testing.T) {
	dec, err := MakeFromConfig(DeviceCPU, 0, TypeSoftware, Metadata{FrameSize: 4})
	require.NoError(t, err)
	require.NoError(t, dec.Feed(idrNAL(0), false))
	require.NoError(t, dec.Feed(nil, true)) // discontinuity with no payload: pure flush
	require.Equal(t, StateResync, dec.State())

	require.NoError(t, dec.Feed(pNAL(1), false))
	require.Equal(t, 0, dec.DecodedFramesBuffered(), "non-keyframe dropped while resyncing")

	require.NoError(t, dec.Feed(idrNAL(2), false))
	require.Equal(t, 1, dec.DecodedFramesBuffered())
	require.Equal(t, StateStreaming, dec.State())
}

func TestSoftwareDecoderFeedErrorEntersResync(t *testing.T) {
	dec, err := MakeFromConfig(DeviceCPU, 0, TypeSoftware, Metadata{FrameSize: 4})
	require.NoError(t, err)
	// A start code with no trailing NAL header byte is a truncated unit.
	err = dec.Feed([]byte{0, 0, 0, 1}, false)
	require.Error(t, err)
	require.Equal(t, StateResync, dec.State())
}

func TestHardwareBackendsAreStubbedUnavailable(t *testing.T) {
	dec, err := MakeFromConfig(DeviceGPU, 0, TypeNVIDIA, Metadata{FrameSize: 4})
	require.NoError(t, err)
	require.Equal(t, StateErrored, dec.State())
	require.Error(t, dec.Feed(idrNAL(0), false))
}
