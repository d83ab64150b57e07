package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordIOBytesAccumulates(t *testing.T) {
	p := New()
	p.RecordIOBytes(7, 0, "write", 100)
	p.RecordIOBytes(7, 0, "write", 50)
	require.Equal(t, float64(150), p.IOBytesTotal(7, 0, "write"))
	require.Equal(t, float64(0), p.IOBytesTotal(7, 0, "read"))
}

func TestRecordIOBytesSeparatesColumnsAndDirections(t *testing.T) {
	p := New()
	p.RecordIOBytes(7, 0, "write", 10)
	p.RecordIOBytes(7, 1, "write", 20)
	p.RecordIOBytes(8, 0, "write", 30)
	require.Equal(t, float64(10), p.IOBytesTotal(7, 0, "write"))
	require.Equal(t, float64(20), p.IOBytesTotal(7, 1, "write"))
	require.Equal(t, float64(30), p.IOBytesTotal(8, 0, "write"))
}

func TestAddIntervalTracksCountAndMean(t *testing.T) {
	p := New()
	p.AddInterval("io", 10*time.Millisecond)
	p.AddInterval("io", 20*time.Millisecond)
	require.EqualValues(t, 2, p.IntervalCount("io"))
	require.InDelta(t, 15*time.Millisecond, p.IntervalMean("io"), float64(2*time.Millisecond))
}

func TestAddIntervalClampsOutOfRangeValues(t *testing.T) {
	p := New()
	p.AddInterval("setup", 0)
	p.AddInterval("setup", time.Hour)
	require.EqualValues(t, 2, p.IntervalCount("setup"))
}

func TestIntervalCountUnknownNameIsZero(t *testing.T) {
	p := New()
	require.EqualValues(t, 0, p.IntervalCount("nonexistent"))
}
