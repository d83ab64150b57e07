// Command vstore is the operator-facing inspection tool: it loads and
// prints item descriptors out of a table root and runs the H.264 indexer
// standalone over an Annex-B file, without standing up the master/worker
// topology the engine normally runs under.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/videotable/vstore/frame"
	"github.com/videotable/vstore/h264"
	"github.com/videotable/vstore/internal/base"
	"github.com/videotable/vstore/profiler"
	"github.com/videotable/vstore/vfs"
	"github.com/videotable/vstore/videodescriptor"
	"github.com/videotable/vstore/worker"
)

func main() {
	root := &cobra.Command{
		Use:   "vstore",
		Short: "inspect video-columnar tables and H.264 indexes",
	}
	root.AddCommand(inspectCommand(), indexCommand())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func inspectCommand() *cobra.Command {
	var storeRoot string
	var showStats bool
	cmd := &cobra.Command{
		Use:   "inspect <table_id> <column_index> <task_id>",
		Short: "load an item's VideoDescriptor and print it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int32, 3)
			for i, a := range args {
				v, err := strconv.ParseInt(a, 10, 32)
				if err != nil {
					return err
				}
				ids[i] = int32(v)
			}
			tableID, columnIndex, taskID := ids[0], ids[1], ids[2]

			fs, err := vfs.NewPosix(storeRoot)
			if err != nil {
				return err
			}
			prof := profiler.New()
			lw := worker.NewLoadWorker(fs, tableID, base.DefaultLogger{}, prof)
			d, err := lw.LoadDescriptor(columnIndex, taskID)
			if err != nil {
				return err
			}
			printDescriptor(d)

			if showStats {
				fmt.Printf("\nbytes read: %.0f\n",
					prof.IOBytesTotal(tableID, columnIndex, "read"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&storeRoot, "root", ".", "table store root directory")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print profiler counters after the load")
	return cmd
}

func printDescriptor(d *videodescriptor.VideoDescriptor) {
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"field", "value"})
	rows := [][]string{
		{"table_id", itoa64(int64(d.TableID))},
		{"column_index", itoa64(int64(d.ColumnIndex))},
		{"item_id", itoa64(int64(d.ItemID))},
		{"codec", codecName(d.Codec)},
		{"frame_type", frameTypeName(d.FrameType)},
		{"width", itoa64(int64(d.Width))},
		{"height", itoa64(int64(d.Height))},
		{"channels", itoa64(int64(d.Channels))},
		{"num_encoded_videos", itoa64(int64(d.NumEncodedVideos))},
		{"frames", itoa64(d.Frames)},
		{"keyframes", itoa64(int64(len(d.KeyframeIndices)))},
		{"metadata_packets", fmt.Sprintf("%d bytes", len(d.MetadataPackets))},
		{"data_path", d.DataPath},
		{"time_base", fmt.Sprintf("%d/%d", d.TimeBaseNum, d.TimeBaseDenom)},
	}
	for _, r := range rows {
		tw.Append(r)
	}
	tw.Render()
}

func indexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <annexb-file>",
		Short: "run the H.264 indexer over an Annex-B file and summarize it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			// The indexed stream itself is discarded; only the index arrays
			// are of interest here.
			fs := vfs.NewMem()
			w, err := fs.MakeWriteFile("indexed.bin")
			if err != nil {
				return err
			}
			ix := h264.NewIndexer(w)
			if err := ix.FeedPacket(buf); err != nil {
				return err
			}
			ix.Close()

			fmt.Printf("frames: %d\n", ix.Frames())
			fmt.Printf("keyframes: %d %v\n", len(ix.KeyframeIndices()), ix.KeyframeIndices())
			fmt.Printf("non-reference frames: %d\n", ix.NumNonRefFrames())
			fmt.Printf("elementary stream: %d bytes (input %d, SPS/PPS %d)\n",
				ix.BytestreamPos(), len(buf), len(ix.MetadataBytes()))

			if sizes := ix.SampleSizes(); len(sizes) > 1 {
				series := make([]float64, len(sizes))
				for i, s := range sizes {
					series[i] = float64(s)
				}
				fmt.Println()
				fmt.Println(asciigraph.Plot(series,
					asciigraph.Height(10),
					asciigraph.Caption("access unit size (bytes) by frame")))
			}
			return nil
		},
	}
	return cmd
}

func itoa64(v int64) string { return strconv.FormatInt(v, 10) }

func codecName(c videodescriptor.Codec) string {
	if c == videodescriptor.CodecH264 {
		return "H264"
	}
	return "RAW"
}

func frameTypeName(ft videodescriptor.FrameType) string {
	switch ft {
	case videodescriptor.FrameTypeF32:
		return frame.KindF32.String()
	case videodescriptor.FrameTypeF64:
		return frame.KindF64.String()
	default:
		return frame.KindU8.String()
	}
}
