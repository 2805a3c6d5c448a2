// Package profiler tracks frame timing and memory statistics for the renderer.
package profiler

import (
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-rtx/common"
)

const (
	// InitialFrameTime seeds the rolling average with a 60 FPS frame, in milliseconds.
	InitialFrameTime = 16.67

	// HistoryWeight is the weight of the previous average in each update.
	HistoryWeight = 0.9

	// DefaultReportInterval is the number of frames between reports.
	DefaultReportInterval = 60
)

// Profiler keeps an exponentially weighted rolling average of frame times and periodically logs
// frame rate, heap usage and GC activity.
type Profiler struct {
	logger         *slog.Logger
	reportInterval int

	averageMs   float64
	lastFrame   time.Duration
	frameCount  uint64
	memStats    runtime.MemStats
	lastGCCount uint32
}

// New creates a Profiler seeded with InitialFrameTime.
//
// Parameters:
//   - options: variadic list of ProfilerBuilderOption functions to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func New(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		reportInterval: DefaultReportInterval,
		averageMs:      InitialFrameTime,
	}
	for _, option := range options {
		option(p)
	}
	p.logger = common.LoggerOrNop(p.logger)
	return p
}

// Record adds one frame time sample. Every reportInterval frames a report is logged at debug level.
// Negative durations are ignored.
//
// Parameters:
//   - d: wall clock time spent rendering the frame
//
// Returns:
//   - bool: true if a report was logged for this sample
func (p *Profiler) Record(d time.Duration) bool {
	if d < 0 {
		return false
	}
	sample := float64(d) / float64(time.Millisecond)
	p.averageMs = p.averageMs*HistoryWeight + sample*(1-HistoryWeight)
	p.lastFrame = d
	p.frameCount++

	if p.reportInterval <= 0 || p.frameCount%uint64(p.reportInterval) != 0 {
		return false
	}
	p.report()
	return true
}

func (p *Profiler) report() {
	runtime.ReadMemStats(&p.memStats)
	// Alloc is live heap, Sys is the process footprint obtained from the OS.
	heapMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	gcCount := p.memStats.NumGC
	var lastPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses.
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
	}

	p.logger.Debug("performance report",
		"frames", p.frameCount,
		"fps", p.FPS(),
		"avg_frame_ms", p.averageMs,
		"heap_mb", heapMB,
		"sys_mb", sysMB,
		"gc", gcCount,
		"gc_since_last", gcCount-p.lastGCCount,
		"gc_last_pause_us", lastPauseUs,
	)
	p.lastGCCount = gcCount
}

// AverageFrameTime returns the rolling average frame time in milliseconds.
func (p *Profiler) AverageFrameTime() float64 {
	return p.averageMs
}

// FPS returns the frame rate implied by the rolling average, 0 when the average is not positive.
func (p *Profiler) FPS() float64 {
	if p.averageMs <= 0 || math.IsNaN(p.averageMs) {
		return 0
	}
	return 1000 / p.averageMs
}

// FrameCount returns the number of recorded frames.
func (p *Profiler) FrameCount() uint64 {
	return p.frameCount
}

// LastFrameTime returns the most recent sample.
func (p *Profiler) LastFrameTime() time.Duration {
	return p.lastFrame
}

// Reset restores the seeded average and clears the frame count.
func (p *Profiler) Reset() {
	p.averageMs = InitialFrameTime
	p.lastFrame = 0
	p.frameCount = 0
}
