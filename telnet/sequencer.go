package telnet

import (
	"github.com/cyberinferno/telnetd/logger"
)

// settle advances the shutdown sequence after an event: a pending session
// with nothing left to send starts lingering, a lingering session without a
// timer half-closes and arms one, and a destroyed session is released.
func (s *Session) settle() {
	if s.released {
		return
	}

	if s.state == StatePending && s.out.Len() == 0 {
		s.flushed()
	}

	switch {
	case s.state == StateLinger && s.linger == nil:
		s.beginLinger()
	case s.state == StateDestroy:
		s.srv.destroy(s)
	}
}

func (s *Session) beginLinger() {
	s.disarmWrite()
	if err := s.conn.CloseWrite(); err != nil {
		s.log.Debug("half-close failed", logger.Field{Key: "error", Value: err})
	}

	s.linger = s.srv.timers.Schedule(s.srv.cfg.LingerTimeout, s.lingerExpired)
}

func (s *Session) lingerExpired() {
	s.linger = nil
	if s.released {
		return
	}

	s.log.Info("client disconnected after linger timeout")
	s.srv.destroy(s)
}

// destroy unlinks the session and releases its socket, buffers and timer.
// It runs at most once per session.
func (srv *Server) destroy(s *Session) {
	if s.released {
		return
	}

	s.released = true
	s.state = StateDestroy
	srv.registry.Remove(s)

	if s.registered {
		s.registered = false
		s.writeArmed = false
		if err := srv.reactor.Unregister(s.fd); err != nil {
			s.log.Warn("failed to unregister socket", logger.Field{Key: "error", Value: err})
		}
	}

	if s.linger != nil {
		s.linger.Stop()
		s.linger = nil
	}

	if err := s.conn.Close(); err != nil {
		s.log.Debug("close failed", logger.Field{Key: "error", Value: err})
	}

	s.log.Debug("session destroyed", logger.Field{Key: "in_cap", Value: s.in.Cap()}, logger.Field{Key: "out_cap", Value: s.out.Cap()})
	s.in.Release()
	s.out.Release()
}
