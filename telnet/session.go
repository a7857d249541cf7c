package telnet

import (
	"github.com/cyberinferno/telnetd/buffer"
	"github.com/cyberinferno/telnetd/logger"
	"github.com/cyberinferno/telnetd/reactor"
	"github.com/cyberinferno/telnetd/scheduler"
)

// Session is the server-side state of one accepted connection. All methods
// must be called on the event loop goroutine; other goroutines go through
// the loop (for example reactor.Loop.Post).
type Session struct {
	id   uint32
	fd   int
	conn Conn
	srv  *Server // not owned; the server owns the session
	log  logger.Logger

	state  State
	in     *buffer.Buffer
	out    *buffer.Buffer
	linger scheduler.Handle

	registered bool
	writeArmed bool
	inEvent    bool
	released   bool
}

func newSession(srv *Server, id uint32, conn Conn) *Session {
	return &Session{
		id:    id,
		fd:    conn.Fd(),
		conn:  conn,
		srv:   srv,
		log:   srv.log.With(logger.Field{Key: "session", Value: id}, logger.Field{Key: "remote", Value: conn.RemoteAddr()}),
		state: StateActive,
		in:    buffer.New(srv.cfg.BufferSize),
		out:   buffer.New(srv.cfg.BufferSize),
	}
}

// ID returns the session identifier assigned at accept time.
func (s *Session) ID() uint32 {
	return s.id
}

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Closing reports whether termination has been requested or has happened.
func (s *Session) Closing() bool {
	return s.state != StateActive
}

// Pending returns the number of queued output bytes.
func (s *Session) Pending() int {
	return s.out.Len()
}

// Write queues p for sending. Output is coalesced in the session buffer and
// flushed when the socket reports writability.
//
// Returns:
//   - len(p) and nil, or ErrSessionClosed once the write side is half-closed
//     or the session is destroyed
func (s *Session) Write(p []byte) (int, error) {
	if err := s.queue(func(b *buffer.Buffer) { b.Append(p) }); err != nil {
		return 0, err
	}

	return len(p), nil
}

// WriteString is like Write but takes a string.
func (s *Session) WriteString(str string) (int, error) {
	if err := s.queue(func(b *buffer.Buffer) { b.AppendString(str) }); err != nil {
		return 0, err
	}

	return len(str), nil
}

// Printf formats according to a format specifier and queues the result.
// Output to a closed session is dropped.
func (s *Session) Printf(format string, args ...any) {
	_ = s.queue(func(b *buffer.Buffer) { b.Appendf(format, args...) })
}

// queue appends to the output buffer through add and enables write
// readiness when the buffer goes from empty to non-empty.
func (s *Session) queue(add func(b *buffer.Buffer)) error {
	if s.released || s.state == StateLinger || s.state == StateDestroy {
		return ErrSessionClosed
	}

	wasEmpty := s.out.Len() == 0
	add(s.out)
	if wasEmpty && s.out.Len() > 0 && !s.armWrite() {
		return ErrSessionClosed
	}

	return nil
}

// Quit requests termination: immediately when now is true, otherwise after
// queued output has been flushed. A graceful request only affects an active
// session. Called outside a readiness callback, the shutdown sequence runs
// right away.
//
// Parameters:
//   - now: true to destroy the session, false to drain and half-close first
func (s *Session) Quit(now bool) {
	switch {
	case s.state == StateDestroy:
		return
	case now:
		s.setState(StateDestroy)
	case s.state == StateActive:
		s.setState(StatePending)
	default:
		return
	}

	if !s.inEvent {
		s.settle()
	}
}

// HandleEvent implements reactor.Handler. Write readiness is serviced
// before read readiness, then the shutdown sequence runs once.
func (s *Session) HandleEvent(_ int, events reactor.Interest) {
	if s.released {
		return
	}

	s.inEvent = true
	if events&reactor.Write != 0 {
		s.handleWrite()
	}

	if events&reactor.Read != 0 {
		s.handleRead()
	}
	s.inEvent = false

	s.settle()
}

func (s *Session) setState(next State) {
	if s.state == StateDestroy || s.state == next {
		return
	}

	s.log.Debug("session state change", logger.Field{Key: "from", Value: s.state.String()}, logger.Field{Key: "to", Value: next.String()})
	s.state = next
}

// armWrite enables write readiness. It reports false if the reactor refused
// and the session was failed.
func (s *Session) armWrite() bool {
	if s.writeArmed || !s.registered {
		return true
	}

	if err := s.srv.reactor.Enable(s.fd, reactor.Write); err != nil {
		s.log.Error("failed to enable write interest", logger.Field{Key: "error", Value: err})
		s.setState(StateDestroy)
		if !s.inEvent {
			s.settle()
		}

		return false
	}

	s.writeArmed = true
	return true
}

func (s *Session) disarmWrite() {
	if !s.writeArmed {
		return
	}

	s.writeArmed = false
	if err := s.srv.reactor.Disable(s.fd, reactor.Write); err != nil {
		s.log.Warn("failed to disable write interest", logger.Field{Key: "error", Value: err})
	}
}
