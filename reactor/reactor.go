// Package reactor provides the readiness-notification loop that drives every
// socket in the daemon from a single goroutine. Handlers register a file
// descriptor with an interest set and are called back with the interests that
// fired; timers from a scheduler.Scheduler run on the same goroutine between
// polls.
package reactor

import "errors"

var (
	// ErrUnsupported is returned by NewLoop on platforms without a poller.
	ErrUnsupported = errors.New("reactor: unsupported platform")

	// ErrNotRegistered is returned when an fd has no registered handler.
	ErrNotRegistered = errors.New("reactor: fd not registered")

	// ErrAlreadyRegistered is returned when an fd is registered twice.
	ErrAlreadyRegistered = errors.New("reactor: fd already registered")

	// ErrRunning is returned when Run is called on a loop that is already running.
	ErrRunning = errors.New("reactor: loop already running")
)

// Interest is a set of readiness conditions.
type Interest uint8

const (
	// Read fires when the fd is readable, has hung up or has a pending error.
	Read Interest = 1 << iota
	// Write fires when the fd is writable.
	Write
)

// String returns a short form such as "read|write".
func (i Interest) String() string {
	switch i {
	case 0:
		return "none"
	case Read:
		return "read"
	case Write:
		return "write"
	case Read | Write:
		return "read|write"
	default:
		return "unknown"
	}
}

// Handler receives readiness notifications for a registered fd.
type Handler interface {
	// HandleEvent is called on the loop goroutine with the interests that
	// fired for fd.
	HandleEvent(fd int, events Interest)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(fd int, events Interest)

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(fd int, events Interest) {
	f(fd, events)
}

// Reactor is the registration side of the loop.
type Reactor interface {
	// Register starts watching fd for the given interests.
	Register(fd int, h Handler, interest Interest) error

	// Unregister stops watching fd. No callback for fd runs afterwards.
	Unregister(fd int) error

	// Enable adds interests to a registered fd.
	Enable(fd int, interest Interest) error

	// Disable removes interests from a registered fd.
	Disable(fd int, interest Interest) error
}
