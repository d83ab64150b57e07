package worker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/videotable/vstore/columnar"
	"github.com/videotable/vstore/decoder"
	"github.com/videotable/vstore/frame"
	"github.com/videotable/vstore/internal/base"
	"github.com/videotable/vstore/profiler"
	"github.com/videotable/vstore/vfs"
)

func bytesElement(b []byte) frame.Element { return frame.Element{Bytes: b} }

func frameElement(device frame.Device, info frame.Info, fill byte) frame.Element {
	f := frame.NewFrame(device, info)
	for i := range f.Data {
		f.Data[i] = fill
	}
	return frame.Element{Frame: f}
}

// TestRawSinkScenario is spec.md §8 scenario 1.
func TestRawSinkScenario(t *testing.T) {
	fs := vfs.NewMem()
	w := NewSaveWorker(fs, 7, base.DefaultLogger{}, profiler.New())

	require.NoError(t, w.NewTask(0, []frame.ColumnType{frame.ColumnBytes}))
	require.NoError(t, w.Feed([]ColumnPayload{{
		Elements: []frame.Element{
			bytesElement([]byte{0x01}),
			bytesElement([]byte{0x02, 0x03}),
			bytesElement([]byte{0x04}),
		},
		Device: frame.CPUDevice,
	}}))
	require.NoError(t, w.Close())

	mr, err := fs.MakeReadFile(base.MetadataPath(7, 0, 0))
	require.NoError(t, err)
	size, _ := mr.Size()
	meta := make([]byte, size)
	_, err = mr.ReadAt(meta, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{
		3, 0, 0, 0, 0, 0, 0, 0, // num_elements = 3
		1, 0, 0, 0, 0, 0, 0, 0, // size[0] = 1
		2, 0, 0, 0, 0, 0, 0, 0, // size[1] = 2
		1, 0, 0, 0, 0, 0, 0, 0, // size[2] = 1
	}, meta)

	dr, err := fs.MakeReadFile(base.DataPath(7, 0, 0))
	require.NoError(t, err)
	size, _ = dr.Size()
	data := make([]byte, size)
	_, err = dr.ReadAt(data, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, data)
}

// TestRawFramesScenario is spec.md §8 scenario 2.
func TestRawFramesScenario(t *testing.T) {
	fs := vfs.NewMem()
	w := NewSaveWorker(fs, 7, base.DefaultLogger{}, profiler.New())

	info, err := frame.NewInfo(2, 2, 3, frame.KindU8)
	require.NoError(t, err)

	require.NoError(t, w.NewTask(1, []frame.ColumnType{frame.ColumnVideo}))
	require.NoError(t, w.Feed([]ColumnPayload{{
		Elements: []frame.Element{
			frameElement(frame.CPUDevice, info, 0x7F),
			frameElement(frame.CPUDevice, info, 0x7F),
		},
		Device:     frame.CPUDevice,
		Compressed: false,
		FrameInfo:  info,
	}}))
	require.NoError(t, w.Close())

	lw := NewLoadWorker(fs, 7, base.DefaultLogger{}, profiler.New())
	d, err := lw.LoadDescriptor(0, 1)
	require.NoError(t, err)
	require.Equal(t, 2, int(d.Width))
	require.Equal(t, 2, int(d.Height))
	require.Equal(t, 3, int(d.Channels))
	require.EqualValues(t, 2, d.Frames)

	elements, err := lw.LoadGenericColumn(0, 1)
	require.NoError(t, err)
	require.Len(t, elements, 2)
	var data []byte
	for _, e := range elements {
		data = append(data, e...)
	}
	require.Len(t, data, 24)
	for _, b := range data {
		require.Equal(t, byte(0x7F), b)
	}
}

func fiveFrameAnnexB() []byte {
	nal := func(nalType, refIdc byte, payload ...byte) []byte {
		header := (refIdc&0x3)<<5 | (nalType & 0x1f)
		out := append([]byte{0, 0, 0, 1}, header)
		return append(out, payload...)
	}
	var buf []byte
	for _, n := range [][]byte{
		nal(7, 3, 0xAA, 0xBB), // SPS
		nal(8, 3, 0xCC),       // PPS
		nal(5, 3, 0x01),       // IDR (frame 0)
		nal(1, 2, 0x11),       // P (frame 1)
		nal(1, 2, 0x22),       // P (frame 2)
		nal(1, 2, 0x33),       // P (frame 3)
		nal(1, 2, 0x44),       // P (frame 4)
	} {
		buf = append(buf, n...)
	}
	return buf
}

// TestH264IndexScenario is spec.md §8 scenario 3, driven end to end
// through the save worker.
func TestH264IndexScenario(t *testing.T) {
	fs := vfs.NewMem()
	w := NewSaveWorker(fs, 7, base.DefaultLogger{}, profiler.New())

	info, err := frame.NewInfo(16, 16, 3, frame.KindU8)
	require.NoError(t, err)

	require.NoError(t, w.NewTask(2, []frame.ColumnType{frame.ColumnVideo}))
	require.NoError(t, w.Feed([]ColumnPayload{{
		Elements:   []frame.Element{bytesElement(fiveFrameAnnexB())},
		Device:     frame.CPUDevice,
		Compressed: true,
		FrameInfo:  info,
	}}))
	require.NoError(t, w.Close())

	lw := NewLoadWorker(fs, 7, base.DefaultLogger{}, profiler.New())
	d, err := lw.LoadDescriptor(0, 2)
	require.NoError(t, err)
	require.EqualValues(t, 5, d.Frames)
	require.Equal(t, []uint64{0}, d.KeyframeIndices)
	require.EqualValues(t, 0, d.SampleOffsets[0])

	var sum uint64
	for _, s := range d.SampleSizes {
		sum += s
	}
	require.Equal(t, sum, uint64(d.SizePerVideo[0]))

	// metadata_packets contains exactly one SPS and one PPS NAL.
	require.Equal(t, []byte{
		0, 0, 0, 1, (3 << 5) | 7, 0xAA, 0xBB, // SPS
		0, 0, 0, 1, (3 << 5) | 8, 0xCC, // PPS
	}, d.MetadataPackets)
}

// TestH264MultipleFeedsAccumulate checks that a second encoded video fed
// into the same item extends the descriptor with file-global offsets and
// keyframe indices rather than restarting from zero.
func TestH264MultipleFeedsAccumulate(t *testing.T) {
	fs := vfs.NewMem()
	w := NewSaveWorker(fs, 7, base.DefaultLogger{}, profiler.New())
	info, err := frame.NewInfo(16, 16, 3, frame.KindU8)
	require.NoError(t, err)

	require.NoError(t, w.NewTask(5, []frame.ColumnType{frame.ColumnVideo}))
	for i := 0; i < 2; i++ {
		require.NoError(t, w.Feed([]ColumnPayload{{
			Elements:   []frame.Element{bytesElement(fiveFrameAnnexB())},
			Device:     frame.CPUDevice,
			Compressed: true,
			FrameInfo:  info,
		}}))
	}
	require.NoError(t, w.Close())

	lw := NewLoadWorker(fs, 7, base.DefaultLogger{}, profiler.New())
	d, err := lw.LoadDescriptor(0, 5)
	require.NoError(t, err)
	require.NoError(t, d.Validate())

	require.EqualValues(t, 10, d.Frames)
	require.EqualValues(t, 2, d.NumEncodedVideos)
	require.Equal(t, []int64{5, 5}, d.FramesPerVideo)
	require.Equal(t, []uint64{0, 5}, d.KeyframeIndices)
	require.Len(t, d.SampleOffsets, 10)

	// The second video's first access unit starts where the first video's
	// bytestream ended.
	require.Equal(t, d.SampleOffsets[5], uint64(d.SizePerVideo[0]))
	var sum uint64
	for _, s := range d.SampleSizes {
		sum += s
	}
	require.Equal(t, sum, uint64(d.SizePerVideo[0]+d.SizePerVideo[1]))
}

// TestDiscontinuitySeekScenario is spec.md §8 scenario 4, driven through
// the load worker and a real (software) decoder.
func TestDiscontinuitySeekScenario(t *testing.T) {
	fs := vfs.NewMem()
	w := NewSaveWorker(fs, 7, base.DefaultLogger{}, profiler.New())
	info, err := frame.NewInfo(16, 16, 3, frame.KindU8)
	require.NoError(t, err)

	require.NoError(t, w.NewTask(3, []frame.ColumnType{frame.ColumnVideo}))
	require.NoError(t, w.Feed([]ColumnPayload{{
		Elements:   []frame.Element{bytesElement(fiveFrameAnnexB())},
		Device:     frame.CPUDevice,
		Compressed: true,
		FrameInfo:  info,
	}}))
	require.NoError(t, w.Close())

	lw := NewLoadWorker(fs, 7, base.DefaultLogger{}, profiler.New())
	dec, err := decoder.MakeFromConfig(decoder.DeviceCPU, 0, decoder.TypeSoftware, decoder.Metadata{FrameSize: 1})
	require.NoError(t, err)

	seek := int64(3)
	require.NoError(t, lw.LoadH264(0, 3, dec, &seek))
	require.Equal(t, decoder.StateStreaming, dec.State())

	out := make([]byte, 1)
	ok, err := dec.GetFrame(out)
	require.NoError(t, err)
	require.True(t, ok, "frame 3 must be the first frame returned after the seek")
}

// TestTrackItemsRecordsRowRanges checks that flushed items land in the
// table's row-range index with contiguous ranges, so ItemForRow resolves
// global rows across item boundaries.
func TestTrackItemsRecordsRowRanges(t *testing.T) {
	fs := vfs.NewMem()
	w := NewSaveWorker(fs, 7, base.DefaultLogger{}, profiler.New())
	tbl := columnar.NewTable()
	w.TrackItems(tbl)

	require.NoError(t, w.NewTask(10, []frame.ColumnType{frame.ColumnBytes}))
	require.NoError(t, w.Feed([]ColumnPayload{{
		Elements: []frame.Element{
			bytesElement([]byte{0x01}),
			bytesElement([]byte{0x02}),
			bytesElement([]byte{0x03}),
		},
		Device: frame.CPUDevice,
	}}))

	// NewTask is the commit point for the previous item, including its
	// row-range bookkeeping.
	require.NoError(t, w.NewTask(11, []frame.ColumnType{frame.ColumnBytes}))
	require.NoError(t, w.Feed([]ColumnPayload{{
		Elements: []frame.Element{
			bytesElement([]byte{0x04}),
			bytesElement([]byte{0x05}),
		},
		Device: frame.CPUDevice,
	}}))
	require.NoError(t, w.Close())

	r, ok := tbl.ItemForRow(0, 2)
	require.True(t, ok)
	require.Equal(t, int32(10), r.TaskID)

	r, ok = tbl.ItemForRow(0, 3)
	require.True(t, ok)
	require.Equal(t, int32(11), r.TaskID)

	_, ok = tbl.ItemForRow(0, 5)
	require.False(t, ok)
}

// TestCrashRecoveryScenario is spec.md §8 scenario 5: a data file with no
// descriptor is reported as CorruptedItem by a reader, and a fresh
// new_task for the same item overwrites it cleanly.
func TestCrashRecoveryScenario(t *testing.T) {
	fs := vfs.NewMem()
	info, err := frame.NewInfo(2, 2, 3, frame.KindU8)
	require.NoError(t, err)

	// Simulate a crash: the worker opened the item but was killed before
	// reaching the flush/descriptor commit point. Write the data file
	// directly, as if a writer had gotten that far and no further.
	dw, err := fs.MakeWriteFile(base.DataPath(7, 0, 4))
	require.NoError(t, err)
	require.NoError(t, dw.Append([]byte{0xBB}))
	require.NoError(t, dw.Save())

	lw := NewLoadWorker(fs, 7, base.DefaultLogger{}, profiler.New())
	_, err = lw.CheckItemComplete(0, 4)
	require.Error(t, err)
	require.True(t, base.IsCorrupted(err))

	// Re-running new_task for the same item overwrites it cleanly.
	w2 := NewSaveWorker(fs, 7, base.DefaultLogger{}, profiler.New())
	require.NoError(t, w2.NewTask(4, []frame.ColumnType{frame.ColumnVideo}))
	require.NoError(t, w2.Feed([]ColumnPayload{{
		Elements:   []frame.Element{frameElement(frame.CPUDevice, info, 0xCC)},
		Device:     frame.CPUDevice,
		Compressed: false,
		FrameInfo:  info,
	}}))
	require.NoError(t, w2.Close())

	ok, err := lw.CheckItemComplete(0, 4)
	require.NoError(t, err)
	require.True(t, ok)
}
