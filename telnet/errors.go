package telnet

import (
	"errors"

	"golang.org/x/sys/unix"
)

var (
	// ErrServerRunning is returned by Start when the server already listens.
	ErrServerRunning = errors.New("telnet: server already running")

	// ErrSessionClosed is returned when writing to a session whose write side
	// is half-closed or that has been destroyed.
	ErrSessionClosed = errors.New("telnet: session closed")

	// ErrDuplicateSocket is returned when a socket is already registered.
	ErrDuplicateSocket = errors.New("telnet: socket already registered")

	// ErrDuplicateSession is returned when a session ID is already registered.
	ErrDuplicateSession = errors.New("telnet: session already registered")
)

// IsTransient reports whether err is a would-block or interrupted condition
// after which the operation should simply be retried on the next readiness
// event.
func IsTransient(err error) bool {
	return errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EINTR)
}
