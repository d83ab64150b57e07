package videodescriptor

import (
	"strings"
	"testing"

	"github.com/kr/pretty"
	"golang.org/x/exp/rand"
)

// TestWireRoundTripRandomized round-trips randomly populated descriptors
// through the wire codec. Offsets and keyframe indices are generated
// strictly increasing so every generated descriptor is also a valid one.
func TestWireRoundTripRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(uint64(0xdecafbad)))
	for iter := 0; iter < 100; iter++ {
		numFrames := 1 + rng.Int63n(200)
		d := New(rng.Int31(), rng.Int31n(16), rng.Int31())
		d.Codec = CodecH264
		d.FrameType = FrameTypeU8
		d.Channels = 3
		d.Width = 1 + rng.Int31n(4096)
		d.Height = 1 + rng.Int31n(4096)
		d.NumEncodedVideos = 1
		d.Frames = numFrames
		d.FramesPerVideo = []int64{numFrames}
		d.DataPath = "tables/1/2/3.bin"

		var offset uint64
		for i := int64(0); i < numFrames; i++ {
			size := 1 + uint64(rng.Int63n(1 << 16))
			d.SampleOffsets = append(d.SampleOffsets, offset)
			d.SampleSizes = append(d.SampleSizes, size)
			offset += size
		}
		d.SizePerVideo = []int64{int64(offset)}
		for i := int64(0); i < numFrames; i += 1 + rng.Int63n(30) {
			d.KeyframeIndices = append(d.KeyframeIndices, uint64(i))
		}
		d.KeyframesPerVideo = []int64{int64(len(d.KeyframeIndices))}
		if rng.Intn(2) == 0 {
			d.MetadataPackets = make([]byte, 1+rng.Intn(64))
			rng.Read(d.MetadataPackets)
		}

		got, err := Unmarshal(d.Marshal())
		if err != nil {
			t.Fatalf("iter %d: %v", iter, err)
		}
		if diff := pretty.Diff(d, got); diff != nil {
			t.Fatalf("iter %d: descriptor changed across the wire:\n%s", iter, strings.Join(diff, "\n"))
		}
	}
}
