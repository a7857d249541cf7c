package reactor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/cyberinferno/telnetd/scheduler"
)

// poller is the OS readiness primitive behind a Loop.
type poller interface {
	add(fd int, interest Interest) error
	modify(fd int, interest Interest) error
	remove(fd int) error
	// wait blocks for at most timeout (forever when negative) and calls fn
	// for every ready fd. Wake-ups requested with wake are consumed silently.
	wait(timeout time.Duration, fn func(fd int, events Interest)) error
	wake() error
	close() error
}

type registration struct {
	handler  Handler
	interest Interest
}

// Loop is a level-triggered readiness loop. Register, Unregister, Enable and
// Disable must be called from the loop goroutine (or before Run starts);
// Post is the only method safe to call from other goroutines.
type Loop struct {
	p        poller
	timers   *scheduler.Scheduler
	handlers map[int]*registration

	mu    sync.Mutex
	tasks *queue.Queue

	running atomic.Bool
}

// NewLoop creates a Loop backed by the platform poller.
//
// Parameters:
//   - timers: Scheduler whose expired timers run between polls; may be nil
//
// Returns:
//   - The new *Loop, or ErrUnsupported / a poller creation error
func NewLoop(timers *scheduler.Scheduler) (*Loop, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}

	return newLoop(p, timers), nil
}

func newLoop(p poller, timers *scheduler.Scheduler) *Loop {
	return &Loop{
		p:        p,
		timers:   timers,
		handlers: make(map[int]*registration),
		tasks:    queue.New(),
	}
}

// Register implements Reactor.
func (l *Loop) Register(fd int, h Handler, interest Interest) error {
	if _, ok := l.handlers[fd]; ok {
		return fmt.Errorf("register fd %d: %w", fd, ErrAlreadyRegistered)
	}

	if err := l.p.add(fd, interest); err != nil {
		return fmt.Errorf("register fd %d: %w", fd, err)
	}

	l.handlers[fd] = &registration{handler: h, interest: interest}
	return nil
}

// Unregister implements Reactor.
func (l *Loop) Unregister(fd int) error {
	if _, ok := l.handlers[fd]; !ok {
		return fmt.Errorf("unregister fd %d: %w", fd, ErrNotRegistered)
	}

	delete(l.handlers, fd)
	if err := l.p.remove(fd); err != nil {
		return fmt.Errorf("unregister fd %d: %w", fd, err)
	}

	return nil
}

// Enable implements Reactor.
func (l *Loop) Enable(fd int, interest Interest) error {
	return l.update(fd, func(cur Interest) Interest { return cur | interest })
}

// Disable implements Reactor.
func (l *Loop) Disable(fd int, interest Interest) error {
	return l.update(fd, func(cur Interest) Interest { return cur &^ interest })
}

func (l *Loop) update(fd int, change func(Interest) Interest) error {
	reg, ok := l.handlers[fd]
	if !ok {
		return fmt.Errorf("modify fd %d: %w", fd, ErrNotRegistered)
	}

	next := change(reg.interest)
	if next == reg.interest {
		return nil
	}

	if err := l.p.modify(fd, next); err != nil {
		return fmt.Errorf("modify fd %d: %w", fd, err)
	}

	reg.interest = next
	return nil
}

// Post queues fn to run on the loop goroutine before the next poll and wakes
// the loop. Safe for concurrent use.
//
// Parameters:
//   - fn: The function to run
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.tasks.Add(fn)
	l.mu.Unlock()

	_ = l.p.wake()
}

// Run polls and dispatches events until ctx is cancelled. Each iteration runs
// posted tasks, waits no longer than the next timer deadline, calls the
// handlers of ready fds and then runs expired timers.
//
// Parameters:
//   - ctx: Cancelling ctx makes Run return nil after the current iteration
//
// Returns:
//   - nil on cancellation, ErrRunning, or a poll error
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.running.Store(false)

	stop := context.AfterFunc(ctx, func() { _ = l.p.wake() })
	defer stop()

	for ctx.Err() == nil {
		pending := l.runTasks()

		timeout := time.Duration(-1)
		if l.timers != nil {
			timeout = l.timers.Until()
		}

		if pending || ctx.Err() != nil {
			timeout = 0
		}

		if err := l.p.wait(timeout, l.dispatch); err != nil {
			return fmt.Errorf("reactor: poll: %w", err)
		}

		if l.timers != nil {
			l.timers.RunExpired()
		}
	}

	return nil
}

// runTasks runs the tasks queued before the call and reports whether more
// were posted while they ran.
func (l *Loop) runTasks() bool {
	l.mu.Lock()
	n := l.tasks.Length()
	l.mu.Unlock()

	for i := 0; i < n; i++ {
		l.mu.Lock()
		fn := l.tasks.Remove().(func())
		l.mu.Unlock()

		fn()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.tasks.Length() > 0
}

func (l *Loop) dispatch(fd int, events Interest) {
	reg, ok := l.handlers[fd]
	if !ok {
		return
	}

	reg.handler.HandleEvent(fd, events)
}

// Close releases the poller. Registered fds are not closed.
func (l *Loop) Close() error {
	return l.p.close()
}
