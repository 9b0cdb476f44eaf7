// Package poller waits for readiness of a connection's file descriptor.
package poller

import (
	"syscall"
	"time"
)

// Events selects the readiness condition to wait for.
type Events int16

const (
	// Read waits until the descriptor has data (or EOF) to read.
	Read Events = 1 << iota
	// Write waits until the descriptor can accept more bytes.
	Write
)

// Wait blocks until c is ready for ev or timeout expires. It reports whether
// the descriptor became ready. Values that do not expose a raw descriptor are
// always reported ready, callers then rely on deadlines to bound their I/O.
func Wait(c interface{}, ev Events, timeout time.Duration) (bool, error) {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return true, nil
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return true, nil
	}
	var (
		ready   bool
		pollErr error
	)
	if err := rc.Control(func(fd uintptr) {
		ready, pollErr = waitFD(int(fd), ev, timeout)
	}); err != nil {
		return false, err
	}
	return ready, pollErr
}
