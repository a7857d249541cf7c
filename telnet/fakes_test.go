package telnet

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/cyberinferno/telnetd/logger"
	"github.com/cyberinferno/telnetd/reactor"
	"github.com/cyberinferno/telnetd/scheduler"
)

// fakeConn scripts the socket side of a session. Reads return queued chunks
// one per call, then EAGAIN, or io.EOF once eof is set.
type fakeConn struct {
	fd      int
	remote  string
	reads   [][]byte
	eof     bool
	readErr error

	written    bytes.Buffer
	writeLimit int
	writeErr   error
	writeCalls int

	closeWrites int
	closes      int
}

func newFakeConn(fd int) *fakeConn {
	return &fakeConn{fd: fd, remote: "192.0.2.1:4000"}
}

func (c *fakeConn) Fd() int {
	return c.fd
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if c.closes > 0 {
		return 0, net.ErrClosed
	}

	if c.readErr != nil {
		return 0, c.readErr
	}

	if len(c.reads) == 0 {
		if c.eof {
			return 0, io.EOF
		}

		return 0, unix.EAGAIN
	}

	chunk := c.reads[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		c.reads[0] = chunk[n:]
	} else {
		c.reads = c.reads[1:]
	}

	return n, nil
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.writeCalls++
	if c.writeErr != nil {
		return 0, c.writeErr
	}

	n := len(p)
	if c.writeLimit > 0 && n > c.writeLimit {
		n = c.writeLimit
	}

	c.written.Write(p[:n])
	return n, nil
}

func (c *fakeConn) CloseWrite() error {
	c.closeWrites++
	return nil
}

func (c *fakeConn) Close() error {
	c.closes++
	return nil
}

func (c *fakeConn) RemoteAddr() string {
	return c.remote
}

// fakeReactor records registrations and interest changes.
type fakeReactor struct {
	handlers    map[int]reactor.Handler
	interest    map[int]reactor.Interest
	enables     int
	disables    int
	unregisters int
	registerErr error
	enableErr   error
}

func newFakeReactor() *fakeReactor {
	return &fakeReactor{
		handlers: make(map[int]reactor.Handler),
		interest: make(map[int]reactor.Interest),
	}
}

func (r *fakeReactor) Register(fd int, h reactor.Handler, interest reactor.Interest) error {
	if r.registerErr != nil {
		return r.registerErr
	}

	if _, ok := r.handlers[fd]; ok {
		return reactor.ErrAlreadyRegistered
	}

	r.handlers[fd] = h
	r.interest[fd] = interest
	return nil
}

func (r *fakeReactor) Unregister(fd int) error {
	if _, ok := r.handlers[fd]; !ok {
		return reactor.ErrNotRegistered
	}

	r.unregisters++
	delete(r.handlers, fd)
	delete(r.interest, fd)
	return nil
}

func (r *fakeReactor) Enable(fd int, interest reactor.Interest) error {
	if r.enableErr != nil {
		return r.enableErr
	}

	if _, ok := r.handlers[fd]; !ok {
		return reactor.ErrNotRegistered
	}

	r.enables++
	r.interest[fd] |= interest
	return nil
}

func (r *fakeReactor) Disable(fd int, interest reactor.Interest) error {
	if _, ok := r.handlers[fd]; !ok {
		return reactor.ErrNotRegistered
	}

	r.disables++
	r.interest[fd] &^= interest
	return nil
}

func (r *fakeReactor) wantsWrite(fd int) bool {
	return r.interest[fd]&reactor.Write != 0
}

// fire delivers a readiness event the way the loop would.
func (r *fakeReactor) fire(fd int, events reactor.Interest) {
	if h, ok := r.handlers[fd]; ok {
		h.HandleEvent(fd, events)
	}
}

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time {
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// recorder collects dispatched lines and optionally reacts to them.
type recorder struct {
	lines []string
	react func(s *Session, cmd string)
}

func (r *recorder) Dispatch(s *Session, cmd string) {
	r.lines = append(r.lines, cmd)
	if r.react != nil {
		r.react(s, cmd)
	}
}

type harness struct {
	srv     *Server
	reactor *fakeReactor
	timers  *scheduler.Scheduler
	clock   *manualClock
	nextFd  int
}

func newHarness(t *testing.T, d Dispatcher) *harness {
	t.Helper()

	cfg := DefaultConfig()
	cfg.BufferSize = 16
	cfg.ReadChunkSize = 8

	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	timers := scheduler.New(clock.Now)
	fr := newFakeReactor()

	srv, err := NewServer(cfg, fr, timers, d, logger.NewNop())
	require.NoError(t, err)

	return &harness{srv: srv, reactor: fr, timers: timers, clock: clock, nextFd: 10}
}

func (h *harness) connect(t *testing.T) (*Session, *fakeConn) {
	t.Helper()

	conn := newFakeConn(h.nextFd)
	h.nextFd++

	s, err := h.srv.AddConn(conn)
	require.NoError(t, err)

	return s, conn
}

// feed queues each chunk and delivers read events until it is consumed, as
// a level-triggered loop would.
func (h *harness) feed(s *Session, conn *fakeConn, chunks ...string) {
	for _, c := range chunks {
		conn.reads = append(conn.reads, []byte(c))
		for len(conn.reads) > 0 && h.reactor.handlers[s.fd] != nil {
			h.reactor.fire(s.fd, reactor.Read)
		}
	}
}

// drain delivers write events while the session wants them.
func (h *harness) drain(s *Session) int {
	events := 0
	for h.reactor.wantsWrite(s.fd) && events < 1000 {
		h.reactor.fire(s.fd, reactor.Write)
		events++
	}

	return events
}
