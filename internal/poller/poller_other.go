//go:build !unix

package poller

import "time"

func waitFD(int, Events, time.Duration) (bool, error) { return true, nil }
