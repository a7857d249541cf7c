package telnet

import (
	"fmt"
	"net"
	"time"
)

// Address families accepted in Config.Family.
const (
	FamilyIPv4 = "ipv4"
	FamilyIPv6 = "ipv6"
)

// Config holds everything the server needs to listen and serve clients.
// It is passed explicitly to NewServer; nothing is read from process-wide
// state.
type Config struct {
	// Family selects the socket address family: "ipv4" or "ipv6".
	Family string `yaml:"family"`
	// ListenAddress is the IP address to bind to.
	ListenAddress string `yaml:"listen_address"`
	// Port is the TCP port to bind to; 0 picks an ephemeral port.
	Port int `yaml:"port"`
	// Backlog is the listen(2) backlog.
	Backlog int `yaml:"backlog"`
	// BufferSize is the initial capacity of each session's input and output buffer.
	BufferSize int `yaml:"buffer_size"`
	// ReadChunkSize is the size of the scratch region used for each receive.
	ReadChunkSize int `yaml:"read_chunk_size"`
	// LingerTimeout bounds how long a half-closed session waits for the peer
	// to close before it is removed.
	LingerTimeout time.Duration `yaml:"linger_timeout"`
}

// DefaultConfig returns a Config with default values: IPv4 on
// 127.0.0.1:2023, backlog 1, 1024-byte buffers and reads, 42s linger.
func DefaultConfig() Config {
	return Config{
		Family:        FamilyIPv4,
		ListenAddress: "127.0.0.1",
		Port:          2023,
		Backlog:       1,
		BufferSize:    1024,
		ReadChunkSize: 1024,
		LingerTimeout: 42 * time.Second,
	}
}

// Validate reports the first invalid field.
//
// Returns:
//   - nil if the configuration is usable
func (c Config) Validate() error {
	ip := net.ParseIP(c.ListenAddress)
	if ip == nil {
		return fmt.Errorf("invalid listen address %q", c.ListenAddress)
	}

	switch c.Family {
	case FamilyIPv4:
		if ip.To4() == nil {
			return fmt.Errorf("listen address %q is not an IPv4 address", c.ListenAddress)
		}
	case FamilyIPv6:
	default:
		return fmt.Errorf("unknown address family %q", c.Family)
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	if c.Backlog <= 0 {
		return fmt.Errorf("backlog must be positive, got %d", c.Backlog)
	}

	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", c.BufferSize)
	}

	if c.ReadChunkSize <= 0 {
		return fmt.Errorf("read chunk size must be positive, got %d", c.ReadChunkSize)
	}

	if c.LingerTimeout <= 0 {
		return fmt.Errorf("linger timeout must be positive, got %s", c.LingerTimeout)
	}

	return nil
}
