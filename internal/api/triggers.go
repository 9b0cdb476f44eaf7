package api

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Trigger names a class of core state changes a query can wait for.
type Trigger int

const (
	TriggerAll Trigger = iota
	TriggerCheck
	TriggerState
	TriggerLog
	TriggerDowntime
	TriggerComment
	TriggerCommand
	TriggerProgram
	numTriggers
)

var triggerNames = [numTriggers]string{"all", "check", "state", "log", "downtime", "comment", "command", "program"}

func (t Trigger) String() string {
	if t < 0 || t >= numTriggers {
		return "unknown"
	}
	return triggerNames[t]
}

// ParseTrigger resolves a WaitTrigger header value.
func ParseTrigger(name string) (Trigger, error) {
	for i, n := range triggerNames {
		if n == name {
			return Trigger(i), nil
		}
	}
	return 0, errors.Errorf("invalid trigger '%s', allowed: all, check, state, log, downtime, comment, command and program", name)
}

// Triggers broadcasts state changes to waiting queries. Each trigger owns a
// channel that is closed and replaced on every notification.
type Triggers struct {
	mu    sync.Mutex
	chans [numTriggers]chan struct{}
}

func NewTriggers() *Triggers {
	t := &Triggers{}
	for i := range t.chans {
		t.chans[i] = make(chan struct{})
	}
	return t
}

// Notify wakes all waiters of tr and of TriggerAll.
func (t *Triggers) Notify(tr Trigger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tr == TriggerAll {
		for i := range t.chans {
			t.wake(Trigger(i))
		}
		return
	}
	t.wake(tr)
	t.wake(TriggerAll)
}

func (t *Triggers) wake(tr Trigger) {
	close(t.chans[tr])
	t.chans[tr] = make(chan struct{})
}

// Channel returns the channel closed by the next notification of tr. Take it
// before checking a condition so that no notification is lost.
func (t *Triggers) Channel(tr Trigger) <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chans[tr]
}

// Wait blocks until tr is notified, timeout passes or ctx is done. It reports
// whether a notification arrived. A zero timeout waits without limit.
func (t *Triggers) Wait(ctx context.Context, tr Trigger, timeout time.Duration) bool {
	return WaitOn(ctx, t.Channel(tr), timeout)
}

// WaitOn waits for ch to be closed like Wait.
func WaitOn(ctx context.Context, ch <-chan struct{}, timeout time.Duration) bool {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-ch:
		return true
	case <-expired:
		return false
	case <-ctx.Done():
		return false
	}
}
