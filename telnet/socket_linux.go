//go:build linux

package telnet

import (
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/sys/unix"
)

// listenSocket creates, binds and listens on a non-blocking TCP socket. On
// failure nothing stays open.
func listenSocket(cfg Config) (fd int, err error) {
	domain, sa, err := sockaddr(cfg)
	if err != nil {
		return -1, err
	}

	fd, err = unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}

	defer func() {
		if err != nil {
			_ = unix.Close(fd)
			fd = -1
		}
	}()

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fd, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	if err = unix.Bind(fd, sa); err != nil {
		return fd, fmt.Errorf("bind %s: %w", net.JoinHostPort(cfg.ListenAddress, fmt.Sprint(cfg.Port)), err)
	}

	if err = unix.Listen(fd, cfg.Backlog); err != nil {
		return fd, fmt.Errorf("listen: %w", err)
	}

	return fd, nil
}

func sockaddr(cfg Config) (int, unix.Sockaddr, error) {
	addr, err := netip.ParseAddr(cfg.ListenAddress)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid listen address %q: %w", cfg.ListenAddress, err)
	}

	if cfg.Family == FamilyIPv6 {
		return unix.AF_INET6, &unix.SockaddrInet6{Port: cfg.Port, Addr: addr.As16()}, nil
	}

	if !addr.Unmap().Is4() {
		return 0, nil, fmt.Errorf("listen address %q is not an IPv4 address", cfg.ListenAddress)
	}

	return unix.AF_INET, &unix.SockaddrInet4{Port: cfg.Port, Addr: addr.Unmap().As4()}, nil
}

// acceptConn accepts one pending connection as a non-blocking Conn.
func acceptConn(listenFd int) (Conn, error) {
	fd, sa, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return nil, err
	}

	return newFdConn(fd, sockaddrString(sa)), nil
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port)).String()
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr), uint16(a.Port)).String()
	default:
		return ""
	}
}

// socketAddr returns the bound address of a listening socket.
func socketAddr(fd int) (*net.TCPAddr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, err
	}

	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]).To16(), Port: a.Port}, nil
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}, nil
	default:
		return nil, fmt.Errorf("unexpected socket address %T", sa)
	}
}

func closeSocket(fd int) error {
	return unix.Close(fd)
}
