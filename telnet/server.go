// Package telnet implements the connection engine of a line-oriented TCP
// command server. A single event loop drives every client: complete lines
// are framed out of the input stream and handed to a Dispatcher, responses
// are queued and flushed as the socket becomes writable, and sessions are
// closed either immediately or gracefully (drain, half-close, linger with a
// timeout).
package telnet

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/telnetd/logger"
	"github.com/cyberinferno/telnetd/reactor"
	"github.com/cyberinferno/telnetd/scheduler"
	"golang.org/x/sys/unix"
)

// Timers schedules one-shot callbacks on the event loop.
type Timers interface {
	Schedule(delay time.Duration, fn func()) scheduler.Handle
}

// Server accepts connections and owns every client session. Start, Stop
// and session methods run on the event loop goroutine (or before the loop
// starts and after it returns). Running, SessionCount and Session may be
// called from any goroutine.
type Server struct {
	cfg        Config
	reactor    reactor.Reactor
	timers     Timers
	dispatcher Dispatcher
	log        logger.Logger

	registry *Registry
	scratch  []byte
	listenFd int
	running  atomic.Bool
}

// NewServer validates cfg and builds a Server that is not yet listening.
//
// Parameters:
//   - cfg: Listening address and session tuning
//   - r: Reactor that delivers readiness events for the listener and sessions
//   - timers: Timer service used for linger timeouts
//   - d: Command dispatcher; nil selects EchoDispatcher
//   - log: Logger; nil discards log output
//
// Returns:
//   - The new *Server, or an error for an invalid configuration
func NewServer(cfg Config, r reactor.Reactor, timers Timers, d Dispatcher, log logger.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("telnet: invalid config: %w", err)
	}

	if r == nil || timers == nil {
		return nil, errors.New("telnet: reactor and timers are required")
	}

	if d == nil {
		d = EchoDispatcher{}
	}

	if log == nil {
		log = logger.NewNop()
	}

	return &Server{
		cfg:        cfg,
		reactor:    r,
		timers:     timers,
		dispatcher: d,
		log:        log,
		registry:   NewRegistry(),
		scratch:    make([]byte, cfg.ReadChunkSize),
		listenFd:   -1,
	}, nil
}

// Config returns the server configuration.
func (srv *Server) Config() Config {
	return srv.cfg
}

// Start binds the listening socket and registers it for accept readiness.
// On failure everything acquired is released and Start may be retried.
//
// Returns:
//   - ErrServerRunning if already started, or the socket/reactor error
func (srv *Server) Start() error {
	if srv.running.Load() {
		return ErrServerRunning
	}

	fd, err := listenSocket(srv.cfg)
	if err != nil {
		srv.log.Error("server failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("telnet: start: %w", err)
	}

	if err := srv.reactor.Register(fd, newListener(srv), reactor.Read); err != nil {
		_ = closeSocket(fd)
		srv.log.Error("server failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("telnet: start: %w", err)
	}

	srv.listenFd = fd
	srv.running.Store(true)

	fields := []logger.Field{{Key: "address", Value: srv.cfg.ListenAddress}, {Key: "port", Value: srv.cfg.Port}}
	if addr, err := socketAddr(fd); err == nil {
		fields[1].Value = addr.Port
	}

	srv.log.Info("server listening", fields...)
	return nil
}

// Stop destroys every session without the graceful sequence and then closes
// the listening socket. The server may be started again afterwards.
func (srv *Server) Stop() {
	if !srv.running.Load() {
		srv.log.Info("server not running")
		return
	}

	srv.CloseAll()

	if err := srv.reactor.Unregister(srv.listenFd); err != nil {
		srv.log.Warn("failed to unregister listener", logger.Field{Key: "error", Value: err})
	}

	if err := closeSocket(srv.listenFd); err != nil {
		srv.log.Warn("failed to close listener", logger.Field{Key: "error", Value: err})
	}

	srv.listenFd = -1
	srv.running.Store(false)
	srv.log.Info("server stopped")
}

// CloseAll forcibly destroys every live session.
//
// Returns:
//   - The number of sessions destroyed
func (srv *Server) CloseAll() int {
	sessions := srv.registry.Sessions()
	for _, s := range sessions {
		srv.destroy(s)
	}

	return len(sessions)
}

// Running reports whether the server is listening.
func (srv *Server) Running() bool {
	return srv.running.Load()
}

// Addr returns the bound listening address, or nil when not running.
func (srv *Server) Addr() *net.TCPAddr {
	if srv.listenFd < 0 {
		return nil
	}

	addr, err := socketAddr(srv.listenFd)
	if err != nil {
		return nil
	}

	return addr
}

// SessionCount returns the number of live sessions.
func (srv *Server) SessionCount() int {
	return srv.registry.Len()
}

// Session returns the live session with the given ID.
func (srv *Server) Session(id uint32) (*Session, bool) {
	return srv.registry.Get(id)
}

// Sessions returns a snapshot of the live sessions ordered by ID.
func (srv *Server) Sessions() []*Session {
	return srv.registry.Sessions()
}

// AddConn adopts an already-connected non-blocking socket as a new active
// session and registers it for read readiness. On failure conn is closed.
//
// Parameters:
//   - conn: The accepted connection
//
// Returns:
//   - The new session, or an error if it could not be registered
func (srv *Server) AddConn(conn Conn) (*Session, error) {
	s := newSession(srv, srv.registry.NextID(), conn)

	if err := srv.registry.Add(s); err != nil {
		s.released = true
		_ = conn.Close()
		s.in.Release()
		s.out.Release()
		return nil, err
	}

	if err := srv.reactor.Register(s.fd, s, reactor.Read); err != nil {
		srv.destroy(s)
		return nil, fmt.Errorf("telnet: register session: %w", err)
	}

	s.registered = true
	return s, nil
}

// acceptErrorInterval bounds how often a repeating accept error is logged.
// The listener is level-triggered, so errors such as EMFILE recur on every
// loop iteration until a descriptor frees up.
const acceptErrorInterval = 10 * time.Second

// listener accepts one connection per read readiness event.
type listener struct {
	srv    *Server
	accept func(listenFd int) (Conn, error)
	now    func() time.Time

	lastErr    string
	lastLogged time.Time
	suppressed int
}

func newListener(srv *Server) *listener {
	return &listener{srv: srv, accept: acceptConn, now: time.Now}
}

func (l *listener) HandleEvent(_ int, _ reactor.Interest) {
	srv := l.srv
	if srv.listenFd < 0 {
		return
	}

	conn, err := l.accept(srv.listenFd)
	if err != nil {
		// a peer that reset before accept is not a server fault
		if !IsTransient(err) && !errors.Is(err, unix.ECONNABORTED) {
			l.acceptFailed(err)
		}

		return
	}

	if l.lastErr != "" {
		srv.log.Info("server accept recovered", logger.Field{Key: "suppressed", Value: l.suppressed})
		l.lastErr = ""
		l.suppressed = 0
	}

	srv.log.Info("client connected", logger.Field{Key: "remote", Value: conn.RemoteAddr()}, logger.Field{Key: "fd", Value: conn.Fd()})

	if _, err := srv.AddConn(conn); err != nil {
		srv.log.Error("failed to add session", logger.Field{Key: "error", Value: err})
	}
}

// acceptFailed logs err unless the same error was logged less than
// acceptErrorInterval ago, in which case it is only counted.
func (l *listener) acceptFailed(err error) {
	now := l.now()
	msg := err.Error()
	if msg == l.lastErr && now.Sub(l.lastLogged) < acceptErrorInterval {
		l.suppressed++
		return
	}

	fields := []logger.Field{{Key: "error", Value: err}}
	if l.suppressed > 0 {
		fields = append(fields, logger.Field{Key: "suppressed", Value: l.suppressed})
	}

	l.srv.log.Error("server accept error", fields...)
	l.lastErr = msg
	l.lastLogged = now
	l.suppressed = 0
}
