package telnet

import (
	"errors"
	"io"

	"github.com/cyberinferno/telnetd/logger"
)

// handleRead performs one receive into the server's scratch region.
func (s *Session) handleRead() {
	scratch := s.srv.scratch
	n, err := s.conn.Read(scratch)

	switch {
	case n > 0:
		if s.state != StateActive {
			return
		}

		offset := s.in.Len()
		s.in.Append(scratch[:n])
		s.fetchLines(offset)

	case errors.Is(err, io.EOF):
		s.log.Info("client disconnected")
		s.setState(StateDestroy)

	case err == nil || IsTransient(err):
		// retried on the next readiness event

	default:
		s.log.Warn("client recv failed", logger.Field{Key: "error", Value: err})
		s.setState(StateDestroy)
	}
}

// handleWrite performs one send of the queued output.
func (s *Session) handleWrite() {
	if s.out.Len() == 0 {
		s.flushed()
		return
	}

	n, err := s.conn.Write(s.out.Bytes())
	if n > 0 {
		s.out.Consume(n)
		if s.out.Len() == 0 {
			s.flushed()
		}

		return
	}

	if err == nil || IsTransient(err) {
		return
	}

	s.log.Warn("client send failed", logger.Field{Key: "error", Value: err})
	s.setState(StateDestroy)
}

// flushed withdraws write interest once the output buffer is empty and lets
// a pending session move on to linger.
func (s *Session) flushed() {
	s.disarmWrite()
	if s.state == StatePending {
		s.setState(StateLinger)
	}
}
