// Package scheduler implements the one-shot timer service driven by the event
// loop. Timers are kept on a min-heap ordered by deadline; the loop asks for
// the time until the next deadline to bound its poll and then runs whatever
// has expired.
package scheduler

import (
	"container/heap"
	"time"
)

// Handle is a scheduled one-shot callback.
type Handle interface {
	// Stop cancels the callback. It reports false if the callback already
	// ran or was stopped before.
	Stop() bool
}

// Timer is the Handle returned by Scheduler.Schedule.
type Timer struct {
	s        *Scheduler
	deadline time.Time
	seq      uint64
	fn       func()
	index    int
}

// Stop implements Handle.
func (t *Timer) Stop() bool {
	if t.index < 0 {
		return false
	}

	heap.Remove(&t.s.timers, t.index)
	return true
}

// Scheduler owns a set of pending one-shot timers. It is not safe for
// concurrent use; every call must come from the goroutine that runs the
// event loop.
type Scheduler struct {
	now    func() time.Time
	timers timerHeap
	seq    uint64
}

// New creates an empty Scheduler.
//
// Parameters:
//   - now: Clock used for deadlines; nil selects time.Now
//
// Returns:
//   - A new *Scheduler
func New(now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}

	return &Scheduler{now: now}
}

// Schedule arranges for fn to run once, delay from now, on the next
// RunExpired call at or after the deadline.
//
// Parameters:
//   - delay: How long to wait; negative values are treated as zero
//   - fn: The callback
//
// Returns:
//   - A Handle that cancels the callback
func (s *Scheduler) Schedule(delay time.Duration, fn func()) Handle {
	if delay < 0 {
		delay = 0
	}

	s.seq++
	t := &Timer{
		s:        s,
		deadline: s.now().Add(delay),
		seq:      s.seq,
		fn:       fn,
	}
	heap.Push(&s.timers, t)

	return t
}

// Len returns the number of pending timers.
func (s *Scheduler) Len() int {
	return len(s.timers)
}

// Next returns the earliest pending deadline.
//
// Returns:
//   - The deadline and true, or the zero time and false when nothing is pending
func (s *Scheduler) Next() (time.Time, bool) {
	if len(s.timers) == 0 {
		return time.Time{}, false
	}

	return s.timers[0].deadline, true
}

// Until returns how long the loop may sleep before the next deadline: -1 when
// no timer is pending, 0 when one is already due.
func (s *Scheduler) Until() time.Duration {
	next, ok := s.Next()
	if !ok {
		return -1
	}

	d := next.Sub(s.now())
	if d < 0 {
		return 0
	}

	return d
}

// RunExpired runs every timer whose deadline is not after the current time,
// earliest first. Timers with equal deadlines run in scheduling order.
// Callbacks may schedule or stop other timers.
//
// Returns:
//   - The number of callbacks run
func (s *Scheduler) RunExpired() int {
	now := s.now()
	ran := 0

	for len(s.timers) > 0 {
		t := s.timers[0]
		if t.deadline.After(now) {
			break
		}

		heap.Pop(&s.timers)
		t.fn()
		ran++
	}

	return ran
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}

	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
