package ymodem

import (
	"time"
)

// ProgressStats is a snapshot of a running transfer.
type ProgressStats struct {
	Name        string
	Transferred int64
	Total       int64
	Elapsed     time.Duration

	// Rate is the average rate since the start, in bytes per second.
	Rate float64
}

// ProgressTracker rate limits progress reports for one file at a time.
// It is driven from the goroutine running the transfer.
type ProgressTracker struct {
	report   func(name string, transferred, total int64, rate float64)
	interval time.Duration

	name        string
	total       int64
	transferred int64
	started     time.Time
	lastReport  time.Time
	lastBytes   int64
}

// NewProgressTracker creates a tracker that calls report at most once per
// interval.
func NewProgressTracker(report func(string, int64, int64, float64), interval time.Duration) *ProgressTracker {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &ProgressTracker{report: report, interval: interval}
}

// Start resets the tracker for a new file.
func (pt *ProgressTracker) Start(info FileInfo) {
	pt.name = info.Name
	pt.total = info.Length
	pt.transferred = 0
	pt.started = time.Now()
	pt.lastReport = pt.started
	pt.lastBytes = 0
}

// Update records the byte count and reports when the interval has passed.
// The reported rate covers the bytes since the previous report.
func (pt *ProgressTracker) Update(transferred int64) {
	pt.transferred = transferred

	now := time.Now()
	elapsed := now.Sub(pt.lastReport)
	if elapsed < pt.interval {
		return
	}
	if pt.report != nil {
		pt.report(pt.name, transferred, pt.total, float64(transferred-pt.lastBytes)/elapsed.Seconds())
	}
	pt.lastReport = now
	pt.lastBytes = transferred
}

// Complete sends a final report and returns how long the file took.
func (pt *ProgressTracker) Complete() time.Duration {
	if pt.report != nil {
		pt.report(pt.name, pt.transferred, pt.total, 0)
	}
	return time.Since(pt.started)
}

// Stats returns the current snapshot.
func (pt *ProgressTracker) Stats() ProgressStats {
	st := ProgressStats{
		Name:        pt.name,
		Transferred: pt.transferred,
		Total:       pt.total,
		Elapsed:     time.Since(pt.started),
	}
	if secs := st.Elapsed.Seconds(); secs > 0 {
		st.Rate = float64(st.Transferred) / secs
	}
	return st
}
