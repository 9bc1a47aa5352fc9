// Package telemetry collects process-wide counters and histograms for the
// firmware's subsystems and exposes a lock-free snapshot reader.
//
// Counters are atomic word-sized adds, matching the concurrency model of
// the rest of the firmware: many tasks increment without coordination, and
// a reader takes an independent snapshot of each counter. There is no
// multi-counter atomicity guarantee across a single Snapshot call.
package telemetry

import "sync/atomic"

// Counter identifies one monotonically increasing value.
type Counter int

const (
	SDInitAttempts Counter = iota
	SDInitFailures
	SDReadErrors
	SDWriteErrors
	FATOpErrors
	UploadsBegun
	UploadsCommitted
	UploadsAborted
	TouchDowns
	TouchUps
	TouchTaps
	TouchLongPresses
	TouchSwipes
	TouchCancels
	TripleTapTriggers
	TripleTapRejections
	FullRefreshes
	PartialRefreshes
	WaveformFailures
	SerialCommands
	SerialErrors
	HTTPRequests
	HTTPErrors

	numCounters
)

// Histogram identifies a latency/size distribution tracked as
// count/sum/max, which is enough for the firmware's own METRICS command
// (last/max redraw timings) without pulling in a metrics library.
type Histogram int

const (
	RedrawDuration Histogram = iota
	PartialRedrawDuration

	numHistograms
)

// Registry holds the counters and histograms for one running firmware
// image. The zero value is ready to use.
type Registry struct {
	counters   [numCounters]atomic.Uint64
	histograms [numHistograms]histogramState
}

type histogramState struct {
	count atomic.Uint64
	sum   atomic.Uint64
	max   atomic.Uint64
	last  atomic.Uint64
}

// Add increments a counter by delta.
func (r *Registry) Add(c Counter, delta uint64) {
	r.counters[c].Add(delta)
}

// Inc increments a counter by one.
func (r *Registry) Inc(c Counter) {
	r.Add(c, 1)
}

// Observe records one sample into a histogram.
func (r *Registry) Observe(h Histogram, value uint64) {
	hs := &r.histograms[h]
	hs.count.Add(1)
	hs.sum.Add(value)
	hs.last.Store(value)
	for {
		cur := hs.max.Load()
		if value <= cur {
			break
		}
		if hs.max.CompareAndSwap(cur, value) {
			break
		}
	}
}

// Snapshot is a point-in-time, per-counter-consistent (not cross-counter
// atomic) read of the registry.
type Snapshot struct {
	Counters   [numCounters]uint64
	Histograms [numHistograms]HistogramSnapshot
}

// HistogramSnapshot reports count/sum/max/last for one histogram.
type HistogramSnapshot struct {
	Count, Sum, Max, Last uint64
}

// Mean returns Sum/Count, or 0 if no samples were observed.
func (h HistogramSnapshot) Mean() uint64 {
	if h.Count == 0 {
		return 0
	}
	return h.Sum / h.Count
}

// Read takes a lock-free snapshot of every counter and histogram.
func (r *Registry) Read() Snapshot {
	var s Snapshot
	for i := range r.counters {
		s.Counters[i] = r.counters[i].Load()
	}
	for i := range r.histograms {
		hs := &r.histograms[i]
		s.Histograms[i] = HistogramSnapshot{
			Count: hs.count.Load(),
			Sum:   hs.sum.Load(),
			Max:   hs.max.Load(),
			Last:  hs.last.Load(),
		}
	}
	return s
}
