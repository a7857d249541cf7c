package lineclient

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// recorder collects client events.
type recorder struct {
	mu     sync.Mutex
	states []ConnectionState
	lines  []string
	errs   []error
}

func (r *recorder) attach(c *Client) {
	c.OnConnectionState(func(e ConnectionStateEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.states = append(r.states, e.State)
	})
	c.OnLine(func(e LineEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.lines = append(r.lines, e.Line)
	})
	c.OnError(func(e ErrorEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.errs = append(r.errs, e.Error)
	})
}

func (r *recorder) snapshot() ([]ConnectionState, []string, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConnectionState(nil), r.states...), append([]string(nil), r.lines...), append([]error(nil), r.errs...)
}

func (r *recorder) count(state ConnectionState) int {
	states, _, _ := r.snapshot()
	n := 0
	for _, s := range states {
		if s == state {
			n++
		}
	}

	return n
}

func listen(t *testing.T) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	return ln
}

func testConfig(addr string) Config {
	cfg := DefaultConfig(addr)
	cfg.ConnectionTimeout = 2 * time.Second
	cfg.ReconnectMin = 10 * time.Millisecond
	cfg.ReconnectMax = 50 * time.Millisecond
	cfg.ReconnectJitter = false
	return cfg
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "Disconnected", Disconnected.String())
	assert.Equal(t, "Connecting", Connecting.String())
	assert.Equal(t, "Connected", Connected.String())
	assert.Equal(t, "Reconnecting", Reconnecting.String())
	assert.Equal(t, "Closed", Closed.String())
	assert.Equal(t, "Unknown", ConnectionState(99).String())
}

func TestClient_LinesAndServerClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	ln := listen(t)
	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		line, _ := bufio.NewReader(conn).ReadString('\n')
		received <- line

		_, _ = conn.Write([]byte("one\r\ntwo\n\nthree"))
	}()

	rec := &recorder{}
	c := New(testConfig(ln.Addr().String()), nil)
	rec.attach(c)

	require.NoError(t, c.Connect())
	assert.True(t, c.IsConnected())
	assert.ErrorIs(t, c.Connect(), ErrAlreadyConnected)

	require.NoError(t, c.SendLine("ping"))
	assert.Equal(t, "ping\n", <-received)

	assert.Eventually(t, func() bool { return rec.count(Disconnected) == 1 }, 2*time.Second, 5*time.Millisecond)

	states, lines, errs := rec.snapshot()
	assert.Equal(t, []string{"one", "two", "", "three"}, lines)
	assert.Equal(t, []ConnectionState{Connecting, Connected, Disconnected}, states)
	assert.Empty(t, errs)

	assert.ErrorIs(t, c.SendLine("late"), ErrNotConnected)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, Closed, c.State())
	assert.ErrorIs(t, c.Connect(), ErrClosed)
}

func TestClient_ConnectFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	ln := listen(t)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	rec := &recorder{}
	c := New(testConfig(addr), nil)
	rec.attach(c)

	assert.Error(t, c.Connect())
	assert.Equal(t, Disconnected, c.State())

	_, _, errs := rec.snapshot()
	assert.Len(t, errs, 1)
	require.NoError(t, c.Close())
}

func TestClient_Disconnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	ln := listen(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	cfg := testConfig(ln.Addr().String())
	cfg.AutoReconnect = true
	c := New(cfg, nil)
	rec := &recorder{}
	rec.attach(c)

	require.NoError(t, c.Connect())
	server := <-accepted
	defer server.Close()

	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Disconnect())
	assert.Equal(t, Disconnected, c.State())

	// an explicit disconnect is not followed by a redial
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rec.count(Reconnecting))

	require.NoError(t, c.Close())
}

func TestClient_AutoReconnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	ln := listen(t)
	second := make(chan string, 1)
	go func() {
		first, err := ln.Accept()
		if err != nil {
			return
		}
		_ = first.Close()

		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		line, _ := bufio.NewReader(conn).ReadString('\n')
		second <- line
	}()

	cfg := testConfig(ln.Addr().String())
	cfg.AutoReconnect = true
	c := New(cfg, nil)
	rec := &recorder{}
	rec.attach(c)

	require.NoError(t, c.Connect())

	assert.Eventually(t, func() bool { return rec.count(Connected) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, rec.count(Reconnecting), 1)

	require.NoError(t, c.SendLine("again"))
	assert.Equal(t, "again\n", <-second)

	require.NoError(t, c.Close())
	assert.Equal(t, Closed, c.State())
}

func TestClient_GivesUpReconnecting(t *testing.T) {
	defer goleak.VerifyNone(t)

	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_ = ln.Close()
		_ = conn.Close()
	}()

	cfg := testConfig(ln.Addr().String())
	cfg.AutoReconnect = true
	cfg.MaxReconnectAttempts = 2
	c := New(cfg, nil)

	var mu sync.Mutex
	var gaveUp error
	c.OnConnectionState(func(e ConnectionStateEvent) {
		mu.Lock()
		defer mu.Unlock()
		if errors.Is(e.Error, ErrGaveUp) {
			gaveUp = e.Error
		}
	})

	require.NoError(t, c.Connect())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gaveUp != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Disconnected, c.State())

	require.NoError(t, c.Close())
}

func TestClient_LineTooLong(t *testing.T) {
	defer goleak.VerifyNone(t)

	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		_, _ = conn.Write([]byte("0123456789abcdef\n"))
	}()

	cfg := testConfig(ln.Addr().String())
	cfg.MaxLineLength = 8
	c := New(cfg, nil)
	rec := &recorder{}
	rec.attach(c)

	require.NoError(t, c.Connect())
	assert.Eventually(t, func() bool { return c.State() == Disconnected }, 2*time.Second, 5*time.Millisecond)

	_, lines, errs := rec.snapshot()
	assert.Empty(t, lines)
	assert.Len(t, errs, 1)

	require.NoError(t, c.Close())
}
