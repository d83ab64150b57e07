// Package profiler implements the per-worker counters and interval
// histograms the original Scanner engine's save/load workers fed through
// add_interval/increment calls (see original_source save_worker.cpp).
// Mirrors the teacher's wal package, which accepts a prometheus.Histogram
// from its caller rather than owning a registry (wal.Options.FsyncLatency):
// a Profiler owns its own CounterVec and named histograms but is never
// itself registered against a global registry or scrape endpoint — /metrics
// exposition is cluster-level metric collection, out of scope for this core
// (spec.md §1 Non-goals).
package profiler

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	minIntervalNanos = int64(time.Microsecond)
	maxIntervalNanos = int64(10 * time.Second)
)

// Profiler is one save- or load-worker's private counters: no shared
// mutable state between workers (spec.md §5), so each worker constructs
// its own.
type Profiler struct {
	ioBytes *prometheus.CounterVec

	mu struct {
		sync.Mutex
		intervals map[string]*hdrhistogram.Histogram
	}
}

// New returns a Profiler with an io_bytes counter labeled by
// (table_id, column_index, direction) where direction is "write" or
// "read", matching the per-column byte accounting spec.md §4.7 step 5
// requires ("accumulate bytes-written into a profiler counter").
func New() *Profiler {
	p := &Profiler{
		ioBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vstore_io_bytes_total",
			Help: "Bytes written or read by save/load workers, by table, column, and direction.",
		}, []string{"table_id", "column_index", "direction"}),
	}
	p.mu.intervals = make(map[string]*hdrhistogram.Histogram)
	return p
}

// RecordIOBytes increments the write or read counter for (tableID,
// columnIndex) by n bytes.
func (p *Profiler) RecordIOBytes(tableID, columnIndex int32, direction string, n int64) {
	p.ioBytes.WithLabelValues(itoa(tableID), itoa(columnIndex), direction).Add(float64(n))
}

// AddInterval records elapsed against the named interval histogram
// ("setup", "io", "decode" per SPEC_FULL.md §4.10), clamping into range
// the same way the teacher's namedHistogram.Record clamps latency into
// [minLatency, maxLatency] before RecordValue, since RecordValue silently
// drops out-of-range samples otherwise.
func (p *Profiler) AddInterval(name string, elapsed time.Duration) {
	nanos := elapsed.Nanoseconds()
	if nanos < minIntervalNanos {
		nanos = minIntervalNanos
	} else if nanos > maxIntervalNanos {
		nanos = maxIntervalNanos
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.mu.intervals[name]
	if !ok {
		h = hdrhistogram.New(minIntervalNanos, maxIntervalNanos, 1)
		p.mu.intervals[name] = h
	}
	_ = h.RecordValue(nanos)
}

// IntervalCount reports how many samples have been recorded for name.
func (p *Profiler) IntervalCount(name string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.mu.intervals[name]
	if !ok {
		return 0
	}
	return h.TotalCount()
}

// IntervalMean reports the mean elapsed time recorded for name.
func (p *Profiler) IntervalMean(name string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.mu.intervals[name]
	if !ok {
		return 0
	}
	return time.Duration(h.Mean())
}

// IOBytesTotal reports the cumulative write/read byte count for
// (tableID, columnIndex, direction), for cmd/vstore's stats dump.
func (p *Profiler) IOBytesTotal(tableID, columnIndex int32, direction string) float64 {
	c, err := p.ioBytes.GetMetricWithLabelValues(itoa(tableID), itoa(columnIndex), direction)
	if err != nil {
		return 0
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// itoa avoids pulling in strconv at call sites scattered across the
// package; kept trivial on purpose.
func itoa(v int32) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [12]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
