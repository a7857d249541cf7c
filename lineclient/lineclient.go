// Package lineclient provides an event-driven client for line-oriented TCP
// servers. Callers register handlers for connection state changes, received
// lines and errors, then Connect. With AutoReconnect the client redials with
// exponential backoff whenever the connection is lost.
package lineclient

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/cyberinferno/telnetd/logger"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("lineclient: client is closed")

	// ErrNotConnected is returned by Send when there is no connection.
	ErrNotConnected = errors.New("lineclient: not connected")

	// ErrAlreadyConnected is returned by Connect while connected or connecting.
	ErrAlreadyConnected = errors.New("lineclient: already connected or connecting")

	// ErrGaveUp is reported with the final Disconnected event once
	// MaxReconnectAttempts redials have failed.
	ErrGaveUp = errors.New("lineclient: giving up reconnecting")
)

// ConnectionState represents the current state of the connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota // Not connected and not attempting to connect
	Connecting                          // Dial in progress
	Connected                           // Connected
	Reconnecting                        // Waiting to redial (AutoReconnect)
	Closed                              // Closed for good
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ConnectionStateEvent is emitted when the connection state changes.
type ConnectionStateEvent struct {
	State     ConnectionState
	Address   string
	Timestamp time.Time
	Error     error // Non-nil if the change was caused by an error
}

// LineEvent carries one received line without its terminator.
type LineEvent struct {
	Line      string
	Timestamp time.Time
}

// ErrorEvent is emitted when a read, write or dial fails.
type ErrorEvent struct {
	Error     error
	Timestamp time.Time
}

// Handlers run on the client's internal goroutines, one event at a time per
// connection, and must not block for long or call Close. LineHandler calls
// preserve the order of lines on the wire.
type (
	ConnectionStateHandler func(event ConnectionStateEvent)
	LineHandler            func(event LineEvent)
	ErrorHandler           func(event ErrorEvent)
)

// Config holds configuration for the client.
type Config struct {
	// Address is the "host:port" to connect to.
	Address string `yaml:"address"`
	// AutoReconnect redials after the connection is lost.
	AutoReconnect bool `yaml:"auto_reconnect"`
	// ReconnectMin and ReconnectMax bound the backoff delay between redials.
	ReconnectMin time.Duration `yaml:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
	// ReconnectFactor multiplies the delay after each failed redial.
	ReconnectFactor float64 `yaml:"reconnect_factor"`
	// ReconnectJitter randomizes the delays.
	ReconnectJitter bool `yaml:"reconnect_jitter"`
	// MaxReconnectAttempts stops redialing after this many failures; 0 means
	// never stop.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`
	// MaxLineLength is the longest accepted line; longer input is an error.
	MaxLineLength int `yaml:"max_line_length"`
	// WriteTimeout bounds each write; 0 means no timeout.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// ReadTimeout bounds the wait for the next line; 0 means no timeout.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// ConnectionTimeout bounds each dial.
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// DefaultConfig returns a Config with default values for the given address.
// AutoReconnect is off.
//
// Parameters:
//   - address: The "host:port" to connect to
//
// Returns:
//   - A Config with 500ms..30s backoff (factor 2, jitter), 64 KiB lines,
//     10s write and dial timeouts and no read timeout
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		ReconnectMin:      500 * time.Millisecond,
		ReconnectMax:      30 * time.Second,
		ReconnectFactor:   2,
		ReconnectJitter:   true,
		MaxLineLength:     64 * 1024,
		WriteTimeout:      10 * time.Second,
		ConnectionTimeout: 10 * time.Second,
	}
}

// Client is a line client. It is safe for concurrent use.
type Client struct {
	config  Config
	log     logger.Logger
	backoff *backoff.Backoff

	mu         sync.RWMutex
	conn       net.Conn
	state      ConnectionState
	closed     bool
	redialing  bool
	onState    ConnectionStateHandler
	onLine     LineHandler
	onError    ErrorHandler
	stopChan   chan struct{}
	redialChan chan struct{}
	wg         sync.WaitGroup
}

// New creates a client in the Disconnected state.
//
// Parameters:
//   - config: Address and behavior (e.g. from DefaultConfig)
//   - log: Logger for connection events; nil discards
//
// Returns:
//   - A new *Client; call Close when done
func New(config Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}

	if config.MaxLineLength <= 0 {
		config.MaxLineLength = bufio.MaxScanTokenSize
	}

	return &Client{
		config: config,
		log:    log.With(logger.Field{Key: "address", Value: config.Address}),
		backoff: &backoff.Backoff{
			Min:    config.ReconnectMin,
			Max:    config.ReconnectMax,
			Factor: config.ReconnectFactor,
			Jitter: config.ReconnectJitter,
		},
		state:      Disconnected,
		stopChan:   make(chan struct{}),
		redialChan: make(chan struct{}, 1),
	}
}

// OnConnectionState sets the state change handler; nil clears it.
func (c *Client) OnConnectionState(handler ConnectionStateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = handler
}

// OnLine sets the received line handler; nil clears it.
func (c *Client) OnLine(handler LineHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLine = handler
}

// OnError sets the error handler; nil clears it.
func (c *Client) OnError(handler ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

// Connect dials the configured address and starts reading lines.
//
// Returns:
//   - nil on success, ErrClosed, ErrAlreadyConnected or the dial error
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	if c.state == Connected || c.state == Connecting {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	startRedial := c.config.AutoReconnect && !c.redialing
	if startRedial {
		c.redialing = true
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if startRedial {
		go c.redialLoop()
	}

	return c.connect()
}

// Disconnect closes the current connection. Connect may be called again.
// An explicit Disconnect does not trigger a redial.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil
	}

	c.conn = nil
	c.state = Disconnected
	c.mu.Unlock()

	err := conn.Close()
	c.emitState(Disconnected, nil)
	return err
}

// Close disconnects, stops every goroutine and moves to Closed. Later calls
// return nil.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	close(c.stopChan)
	c.wg.Wait()

	c.setState(Closed, nil)
	return nil
}

// SendLine sends text followed by a newline.
func (c *Client) SendLine(text string) error {
	return c.Send([]byte(text + "\n"))
}

// Send writes data to the connection.
//
// Returns:
//   - nil on success, ErrNotConnected, or the write error
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}
	}

	if _, err := conn.Write(data); err != nil {
		c.emitError(err)
		return fmt.Errorf("lineclient: send: %w", err)
	}

	return nil
}

// CloseWrite half-closes the connection so the server reads end of stream
// while responses can still be received.
func (c *Client) CloseWrite() error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	hc, ok := conn.(interface{ CloseWrite() error })
	if !ok {
		return fmt.Errorf("lineclient: %T cannot half-close", conn)
	}

	return hc.CloseWrite()
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the client is Connected.
func (c *Client) IsConnected() bool {
	return c.State() == Connected
}

func (c *Client) connect() error {
	c.setState(Connecting, nil)

	dialer := net.Dialer{Timeout: c.config.ConnectionTimeout}
	conn, err := dialer.Dial("tcp", c.config.Address)
	if err != nil {
		c.log.Debug("dial failed", logger.Field{Key: "error", Value: err})
		c.setState(Disconnected, err)
		c.emitError(err)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}

	c.conn = conn
	c.wg.Add(1)
	c.mu.Unlock()

	c.log.Info("connected", logger.Field{Key: "local", Value: conn.LocalAddr().String()})
	c.setState(Connected, nil)

	go c.readLoop(conn)
	return nil
}

func (c *Client) readLoop(conn net.Conn) {
	defer c.wg.Done()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, min(4096, c.config.MaxLineLength)), c.config.MaxLineLength)

	for {
		if c.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}

		if !sc.Scan() {
			break
		}

		c.emitLine(strings.TrimSuffix(sc.Text(), "\r"))
	}

	c.mu.Lock()
	if c.conn != conn {
		// closed by Disconnect or Close
		c.mu.Unlock()
		return
	}

	c.conn = nil
	c.mu.Unlock()
	_ = conn.Close()

	err := sc.Err()
	if err != nil {
		c.log.Warn("read failed", logger.Field{Key: "error", Value: err})
		c.emitError(err)
	} else {
		c.log.Info("server closed the connection")
	}

	c.setState(Disconnected, err)
	c.triggerRedial()
}

// redialLoop runs while the client is open and AutoReconnect is set.
func (c *Client) redialLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		case <-c.redialChan:
		}

		for {
			limit := c.config.MaxReconnectAttempts
			if limit > 0 && int(c.backoff.Attempt()) >= limit {
				c.backoff.Reset()
				c.log.Warn("giving up reconnecting", logger.Field{Key: "attempts", Value: limit})
				c.setState(Disconnected, ErrGaveUp)
				break
			}

			delay := c.backoff.Duration()
			c.setState(Reconnecting, nil)

			t := time.NewTimer(delay)
			select {
			case <-c.stopChan:
				t.Stop()
				return
			case <-t.C:
			}

			err := c.connect()
			if err == nil {
				c.backoff.Reset()
				break
			}

			if errors.Is(err, ErrClosed) {
				return
			}
		}
	}
}

func (c *Client) triggerRedial() {
	if !c.config.AutoReconnect {
		return
	}

	select {
	case c.redialChan <- struct{}{}:
	default:
	}
}

func (c *Client) setState(state ConnectionState, err error) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	c.emitState(state, err)
}

func (c *Client) emitState(state ConnectionState, err error) {
	c.mu.RLock()
	handler := c.onState
	c.mu.RUnlock()

	if handler != nil {
		handler(ConnectionStateEvent{
			State:     state,
			Address:   c.config.Address,
			Timestamp: time.Now(),
			Error:     err,
		})
	}
}

func (c *Client) emitLine(line string) {
	c.mu.RLock()
	handler := c.onLine
	c.mu.RUnlock()

	if handler != nil {
		handler(LineEvent{Line: line, Timestamp: time.Now()})
	}
}

func (c *Client) emitError(err error) {
	c.mu.RLock()
	handler := c.onError
	c.mu.RUnlock()

	if handler != nil {
		handler(ErrorEvent{Error: err, Timestamp: time.Now()})
	}
}
