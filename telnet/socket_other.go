//go:build !linux

package telnet

import (
	"errors"
	"net"

	"golang.org/x/sys/unix"
)

var errUnsupported = errors.New("telnet: listening sockets are only supported on linux")

func listenSocket(Config) (int, error) {
	return -1, errUnsupported
}

func acceptConn(int) (Conn, error) {
	return nil, errUnsupported
}

func socketAddr(int) (*net.TCPAddr, error) {
	return nil, errUnsupported
}

func closeSocket(fd int) error {
	return unix.Close(fd)
}
