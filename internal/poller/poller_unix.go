//go:build unix

package poller

import (
	"time"

	"golang.org/x/sys/unix"
)

func waitFD(fd int, ev Events, timeout time.Duration) (bool, error) {
	var want int16
	if ev&Read != 0 {
		want |= unix.POLLIN
	}
	if ev&Write != 0 {
		want |= unix.POLLOUT
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: want}}
	deadline := time.Now().Add(timeout)
	for {
		ms := int(time.Until(deadline) / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0 && fds[0].Revents&(want|unix.POLLHUP|unix.POLLERR) != 0, nil
	}
}
