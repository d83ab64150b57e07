// Package worker implements the save and load workers (spec.md §4.7,
// §4.8): the two I/O-thread-bound pipelines that move batched columnar
// payloads between the evaluator and the blob store, routing video
// columns through the H.264 indexer or a raw-frame generic writer and
// everything else through the generic Bytes layout.
package worker

import (
	"time"

	"github.com/videotable/vstore/columnar"
	"github.com/videotable/vstore/frame"
	"github.com/videotable/vstore/h264"
	"github.com/videotable/vstore/internal/base"
	"github.com/videotable/vstore/profiler"
	"github.com/videotable/vstore/vfs"
	"github.com/videotable/vstore/videodescriptor"
)

// ColumnPayload is one output column's slice of a work_entry fed to a
// SaveWorker (spec.md §4.7 "feed"): element vectors, the device they
// currently live on, the compressed flag, and (for Video columns) the
// per-batch FrameInfo every element must share.
type ColumnPayload struct {
	Elements   []frame.Element
	Device     frame.Device
	Compressed bool
	FrameInfo  frame.Info
}

type saveColumnState struct {
	kind       frame.ColumnType
	dataWriter vfs.WriteHandle
	metaWriter vfs.WriteHandle
	descriptor *videodescriptor.VideoDescriptor // non-nil iff kind == ColumnVideo

	buffered [][]byte // Bytes columns, and RAW-video columns

	// Running totals across multiple feed() calls within the same item, so
	// sample_offsets/keyframe_indices stay file-global even though each
	// feed() call gets a fresh h264.Indexer starting at position zero.
	h264BytePos   uint64
	h264FrameBase int64
}

// SaveWorker is one I/O thread's save pipeline state (spec.md §4.7,
// §5: "each worker instance owns its own blob-store handle, writers, and
// indexer state — no shared mutable state between workers").
type SaveWorker struct {
	fs      vfs.FS
	tableID int32
	logger  base.Logger
	prof    *profiler.Profiler
	table   *columnar.Table

	taskID int32
	cols   []*saveColumnState
}

// NewSaveWorker returns a SaveWorker writing into fs, for the given
// table_id. Every storage operation the worker issues runs under the
// default transient-retry policy (spec.md §4.1/§7). prof accumulates
// byte and interval statistics; logger reports teardown failures that
// must not abort the worker (spec.md §4.7 destructor semantics).
func NewSaveWorker(fs vfs.FS, tableID int32, logger base.Logger, prof *profiler.Profiler) *SaveWorker {
	return &SaveWorker{
		fs:      vfs.WithRetries(fs, vfs.DefaultRetryPolicy()),
		tableID: tableID,
		logger:  logger,
		prof:    prof,
	}
}

// TrackItems records each flushed item's row range into tbl, so load
// paths can resolve a global row to its item via Table.ItemForRow. Video
// items contribute one row per frame, Bytes items one row per element.
func (w *SaveWorker) TrackItems(tbl *columnar.Table) { w.table = tbl }

// NewTask implements spec.md §4.7 new_task: flush and close the previous
// item's writers (the durability commit point), then open fresh writers
// for taskID's columns.
func (w *SaveWorker) NewTask(taskID int32, columnTypes []frame.ColumnType) error {
	start := time.Now()
	if err := w.flush(); err != nil {
		return err
	}
	w.prof.AddInterval("setup", time.Since(start))

	w.taskID = taskID
	w.cols = make([]*saveColumnState, len(columnTypes))
	for i, ct := range columnTypes {
		columnIndex := int32(i)
		dataPath := base.DataPath(w.tableID, columnIndex, taskID)
		metaPath := base.MetadataPath(w.tableID, columnIndex, taskID)

		dw, err := w.fs.MakeWriteFile(dataPath)
		if err != nil {
			return err
		}
		mw, err := w.fs.MakeWriteFile(metaPath)
		if err != nil {
			return err
		}
		cs := &saveColumnState{kind: ct, dataWriter: dw, metaWriter: mw}
		if ct == frame.ColumnVideo {
			cs.descriptor = videodescriptor.New(w.tableID, columnIndex, taskID)
			cs.descriptor.DataPath = dataPath
		}
		w.cols[i] = cs
	}
	return nil
}

// Feed implements spec.md §4.7 feed: per-column CPU move, Video routing
// to the H.264 indexer or the raw generic writer, Bytes generic
// buffering, per-element release, profiler accounting.
func (w *SaveWorker) Feed(columns []ColumnPayload) error {
	start := time.Now()
	for i, payload := range columns {
		cs := w.cols[i]
		frame.MoveIfDifferentAddressSpace(payload.Device, frame.CPUDevice, payload.Elements)

		switch cs.kind {
		case frame.ColumnVideo:
			if err := w.feedVideoColumn(int32(i), cs, payload); err != nil {
				return err
			}
		case frame.ColumnBytes:
			for _, el := range payload.Elements {
				cs.buffered = append(cs.buffered, append([]byte(nil), el.Data()...))
			}
		}
		for _, el := range payload.Elements {
			el.Release()
		}
	}
	w.prof.AddInterval("io", time.Since(start))
	return nil
}

func (w *SaveWorker) feedVideoColumn(columnIndex int32, cs *saveColumnState, payload ColumnPayload) error {
	d := cs.descriptor
	d.Width = int32(payload.FrameInfo.Width())
	d.Height = int32(payload.FrameInfo.Height())
	d.Channels = int32(payload.FrameInfo.Channels())
	d.FrameType = frameTypeFromKind(payload.FrameInfo.Kind)
	d.NumEncodedVideos++

	if payload.Compressed && payload.FrameInfo.Kind == frame.KindU8 && payload.FrameInfo.Channels() == 3 {
		ix := h264.NewIndexer(cs.dataWriter)
		for _, el := range payload.Elements {
			if err := ix.FeedPacket(el.Data()); err != nil {
				return err
			}
		}
		ix.Close()

		byteBase := cs.h264BytePos
		frameBase := cs.h264FrameBase
		for _, off := range ix.SampleOffsets() {
			d.SampleOffsets = append(d.SampleOffsets, off+byteBase)
		}
		d.SampleSizes = append(d.SampleSizes, ix.SampleSizes()...)
		for _, k := range ix.KeyframeIndices() {
			d.KeyframeIndices = append(d.KeyframeIndices, k+uint64(frameBase))
		}
		d.MetadataPackets = append(d.MetadataPackets, ix.MetadataBytes()...)
		d.FramesPerVideo = append(d.FramesPerVideo, ix.Frames())
		d.KeyframesPerVideo = append(d.KeyframesPerVideo, int64(len(ix.KeyframeIndices())))
		d.SizePerVideo = append(d.SizePerVideo, int64(ix.BytestreamPos()))
		d.Frames += ix.Frames()
		d.Codec = videodescriptor.CodecH264
		d.ChromaFormat = videodescriptor.ChromaYUV420

		cs.h264BytePos += ix.BytestreamPos()
		cs.h264FrameBase += ix.Frames()
		w.prof.RecordIOBytes(w.tableID, columnIndex, "write", int64(ix.BytestreamPos()))
		return nil
	}

	d.Codec = videodescriptor.CodecRAW
	for _, el := range payload.Elements {
		cs.buffered = append(cs.buffered, append([]byte(nil), el.Data()...))
	}
	d.Frames += int64(len(payload.Elements))
	return nil
}

func frameTypeFromKind(k frame.Kind) videodescriptor.FrameType {
	switch k {
	case frame.KindF32:
		return videodescriptor.FrameTypeF32
	case frame.KindF64:
		return videodescriptor.FrameTypeF64
	default:
		return videodescriptor.FrameTypeU8
	}
}

// flush is the §4.7 "new_task step 1" / destructor commit point: every
// open writer is saved, every pending descriptor persisted.
func (w *SaveWorker) flush() error {
	for i, cs := range w.cols {
		if cs == nil {
			continue
		}
		columnIndex := int32(i)
		if err := w.flushColumn(columnIndex, cs); err != nil {
			return err
		}
	}
	w.cols = nil
	return nil
}

func (w *SaveWorker) flushColumn(columnIndex int32, cs *saveColumnState) error {
	switch {
	case cs.kind == frame.ColumnBytes:
		n, err := columnar.WriteGenericColumn(cs.metaWriter, cs.dataWriter, cs.buffered)
		if err != nil {
			return err
		}
		w.prof.RecordIOBytes(w.tableID, columnIndex, "write", n)
		if err := cs.metaWriter.Save(); err != nil {
			return err
		}
	case cs.kind == frame.ColumnVideo && cs.descriptor.Codec == videodescriptor.CodecRAW:
		n, err := columnar.WriteGenericColumn(cs.metaWriter, cs.dataWriter, cs.buffered)
		if err != nil {
			return err
		}
		w.prof.RecordIOBytes(w.tableID, columnIndex, "write", n)
		if err := cs.metaWriter.Save(); err != nil {
			return err
		}
	case cs.kind == frame.ColumnVideo:
		// H264: the metadata file carries no element sizing (spec.md
		// §4.3); framing lives entirely in the descriptor. Still save()
		// it so a reader sees a well-formed, if empty, file.
		if err := cs.metaWriter.Save(); err != nil {
			return err
		}
	}
	if err := cs.dataWriter.Save(); err != nil {
		return err
	}
	if cs.kind == frame.ColumnVideo {
		// A descriptor that violates its own index invariants must fail
		// here, at the commit point, not persist and surface later as a
		// CorruptedItem on some reader.
		if err := cs.descriptor.Validate(); err != nil {
			return err
		}
		path := base.DescriptorPath(w.tableID, columnIndex, w.taskID)
		if err := videodescriptor.Save(w.fs, path, cs.descriptor); err != nil {
			return err
		}
	}
	if w.table != nil {
		numRows := int64(len(cs.buffered))
		if cs.kind == frame.ColumnVideo {
			numRows = cs.descriptor.Frames
		}
		w.table.AppendItem(columnIndex, w.taskID, numRows)
	}
	return nil
}

// Close implements the §4.7 destructor: equivalent to an implicit
// new_task flush. If flushing one column fails, the failure is logged and
// the remaining columns are still flushed — a partially-flushed item is
// simply incomplete, detected later via the descriptor-present invariant
// (spec.md §4.5), not a reason to drop the rest of the item's columns.
func (w *SaveWorker) Close() error {
	var firstErr error
	for i, cs := range w.cols {
		if cs == nil {
			continue
		}
		if err := w.flushColumn(int32(i), cs); err != nil {
			w.logger.Errorf("worker: closing column %d of task %d: %v", i, w.taskID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	w.cols = nil
	return firstErr
}
