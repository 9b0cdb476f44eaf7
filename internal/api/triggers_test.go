package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrigger(t *testing.T) {
	for i, name := range triggerNames {
		tr, err := ParseTrigger(name)
		require.NoError(t, err)
		assert.Equal(t, Trigger(i), tr)
		assert.Equal(t, name, tr.String())
	}
	_, err := ParseTrigger("sometimes")
	assert.Error(t, err)
}

func TestTriggerNotifyWakesSpecificAndAll(t *testing.T) {
	tr := NewTriggers()
	state := tr.Channel(TriggerState)
	all := tr.Channel(TriggerAll)
	log := tr.Channel(TriggerLog)

	tr.Notify(TriggerState)

	assert.True(t, WaitOn(context.Background(), state, time.Second))
	assert.True(t, WaitOn(context.Background(), all, time.Second))
	assert.False(t, WaitOn(context.Background(), log, 10*time.Millisecond))
}

func TestTriggerWait(t *testing.T) {
	tr := NewTriggers()
	done := make(chan bool, 1)
	go func() { done <- tr.Wait(context.Background(), TriggerComment, 5*time.Second) }()

	// Notify until the waiter has picked up a channel.
	deadline := time.After(5 * time.Second)
	for {
		tr.Notify(TriggerComment)
		select {
		case got := <-done:
			assert.True(t, got)
			return
		case <-deadline:
			t.Fatal("waiter never woke")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTriggerWaitTimeoutAndCancel(t *testing.T) {
	tr := NewTriggers()
	start := time.Now()
	assert.False(t, tr.Wait(context.Background(), TriggerCheck, 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, tr.Wait(ctx, TriggerCheck, 0))
}
