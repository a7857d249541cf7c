//go:build linux

package reactor

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const maxEvents = 128

// epollPoller waits on an epoll set. An eventfd is kept in the set so other
// goroutines can interrupt a blocking wait.
type epollPoller struct {
	epfd   int
	wakeFd int
	events [maxEvents]unix.EpollEvent
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		_ = unix.Close(wakeFd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add eventfd: %w", err)
	}

	return &epollPoller{epfd: epfd, wakeFd: wakeFd}, nil
}

func epollEvents(interest Interest) uint32 {
	var events uint32
	if interest&Read != 0 {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}

	if interest&Write != 0 {
		events |= unix.EPOLLOUT
	}

	return events
}

func (p *epollPoller) add(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: epollEvents(interest), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) modify(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: epollEvents(interest), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) wait(timeout time.Duration, fn func(fd int, events Interest)) error {
	msec := -1
	if timeout >= 0 {
		msec = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}

	n, err := unix.EpollWait(p.epfd, p.events[:], msec)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil
		}

		return err
	}

	for i := 0; i < n; i++ {
		ev := p.events[i]
		fd := int(ev.Fd)

		if fd == p.wakeFd {
			p.drainWake()
			continue
		}

		var fired Interest
		if ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			fired |= Read
		}

		if ev.Events&unix.EPOLLOUT != 0 {
			fired |= Write
		}

		fn(fd, fired)
	}

	return nil
}

func (p *epollPoller) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakeFd, buf[:]); err != nil {
			return
		}
	}
}

func (p *epollPoller) wake() error {
	one := [8]byte{1}
	_, err := unix.Write(p.wakeFd, one[:])
	if errors.Is(err, unix.EAGAIN) {
		return nil
	}

	return err
}

func (p *epollPoller) close() error {
	werr := unix.Close(p.wakeFd)
	if err := unix.Close(p.epfd); err != nil {
		return err
	}

	return werr
}
