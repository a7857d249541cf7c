package telnet

import (
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// Conn is the non-blocking socket behind a session.
type Conn interface {
	// Fd returns the descriptor registered with the reactor, or -1 once closed.
	Fd() int
	// Read performs one receive. It returns io.EOF on orderly peer close.
	Read(p []byte) (int, error)
	// Write performs one send and may write fewer bytes than len(p).
	Write(p []byte) (int, error)
	// CloseWrite half-closes the write direction.
	CloseWrite() error
	// Close releases the descriptor. Later calls are no-ops.
	Close() error
	// RemoteAddr returns the peer address in host:port form.
	RemoteAddr() string
}

// fdConn is a Conn over a raw non-blocking socket descriptor.
type fdConn struct {
	fd     int
	remote string
}

func newFdConn(fd int, remote string) *fdConn {
	return &fdConn{fd: fd, remote: remote}
}

func (c *fdConn) Fd() int {
	return c.fd
}

func (c *fdConn) Read(p []byte) (int, error) {
	if c.fd < 0 {
		return 0, net.ErrClosed
	}

	n, err := unix.Read(c.fd, p)
	if err != nil {
		return 0, err
	}

	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}

	return n, nil
}

func (c *fdConn) Write(p []byte) (int, error) {
	if c.fd < 0 {
		return 0, net.ErrClosed
	}

	n, err := unix.Write(c.fd, p)
	if err != nil {
		return 0, err
	}

	return n, nil
}

func (c *fdConn) CloseWrite() error {
	if c.fd < 0 {
		return net.ErrClosed
	}

	return unix.Shutdown(c.fd, unix.SHUT_WR)
}

func (c *fdConn) Close() error {
	if c.fd < 0 {
		return nil
	}

	err := unix.Close(c.fd)
	c.fd = -1
	return err
}

func (c *fdConn) RemoteAddr() string {
	return c.remote
}
