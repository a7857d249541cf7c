// Package perfmonitor measures how long command handlers take.
package perfmonitor

import "time"

// PerformanceMonitor is a stopwatch. It is not safe for concurrent use.
type PerformanceMonitor struct {
	now       func() time.Time
	startTime time.Time
	endTime   time.Time
}

// NewPerformanceMonitor returns a stopped monitor using the wall clock.
func NewPerformanceMonitor() *PerformanceMonitor {
	return NewPerformanceMonitorWithClock(time.Now)
}

// NewPerformanceMonitorWithClock returns a stopped monitor reading time from
// now.
func NewPerformanceMonitorWithClock(now func() time.Time) *PerformanceMonitor {
	return &PerformanceMonitor{now: now}
}

// Start records the start time and clears any previous end time.
func (pm *PerformanceMonitor) Start() {
	pm.startTime = pm.now()
	pm.endTime = time.Time{}
}

// Stop records the end time. It has no effect before Start. Calling Stop
// again extends the measurement.
func (pm *PerformanceMonitor) Stop() {
	if pm.startTime.IsZero() {
		return
	}

	pm.endTime = pm.now()
}

// Reset clears both times.
func (pm *PerformanceMonitor) Reset() {
	pm.startTime = time.Time{}
	pm.endTime = time.Time{}
}

// Elapsed returns the time between Start and the last Stop, or 0 when the
// measurement is incomplete.
func (pm *PerformanceMonitor) Elapsed() time.Duration {
	if pm.startTime.IsZero() || pm.endTime.IsZero() {
		return 0
	}

	return pm.endTime.Sub(pm.startTime)
}

// ElapsedMilliseconds returns Elapsed in fractional milliseconds.
func (pm *PerformanceMonitor) ElapsedMilliseconds() float64 {
	return float64(pm.Elapsed()) / float64(time.Millisecond)
}

// Measure runs fn between Start and Stop and returns the elapsed time.
func (pm *PerformanceMonitor) Measure(fn func()) time.Duration {
	pm.Start()
	fn()
	pm.Stop()

	return pm.Elapsed()
}
