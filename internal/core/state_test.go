package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oceanplexian/livestatus/internal/objects"
)

func TestNextState(t *testing.T) {
	const (
		ok   = objects.ServiceOK
		crit = objects.ServiceCritical
		warn = objects.ServiceWarning
		soft = objects.StateTypeSoft
		hard = objects.StateTypeHard
	)
	tests := []struct {
		name                                       string
		prev, prevType, prevAttempt, max, lastHard int
		state                                      int
		want                                       transition
	}{
		{"ok stays ok", ok, hard, 1, 3, ok, ok, transition{stateType: hard, attempt: 1}},
		{"first problem is soft", ok, hard, 1, 3, ok, crit, transition{stateType: soft, attempt: 1, changed: true, alert: true}},
		{"single attempt goes hard", ok, hard, 1, 1, ok, crit, transition{stateType: hard, attempt: 1, changed: true, hardChanged: true, alert: true}},
		{"soft retry", crit, soft, 1, 3, ok, crit, transition{stateType: soft, attempt: 2, alert: true}},
		{"last retry is hard", crit, soft, 2, 3, ok, crit, transition{stateType: hard, attempt: 3, hardChanged: true, alert: true}},
		{"hard problem repeats quietly", crit, hard, 3, 3, crit, crit, transition{stateType: hard, attempt: 3}},
		{"hard problem changes", crit, hard, 3, 3, crit, warn, transition{stateType: hard, attempt: 3, changed: true, hardChanged: true, alert: true}},
		{"soft recovery", crit, soft, 2, 3, ok, ok, transition{stateType: soft, attempt: 1, changed: true, alert: true}},
		{"hard recovery", crit, hard, 3, 3, crit, ok, transition{stateType: hard, attempt: 1, changed: true, hardChanged: true, alert: true}},
		{"zero max attempts", ok, hard, 0, 0, ok, crit, transition{stateType: hard, attempt: 1, changed: true, hardChanged: true, alert: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextState(tt.prev, tt.prevType, tt.prevAttempt, tt.max, tt.lastHard, tt.state, objects.ServiceOK)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitOutput(t *testing.T) {
	tests := []struct {
		raw                string
		output, long, perf string
	}{
		{"OK", "OK", "", ""},
		{"OK - fine | rta=1ms", "OK - fine", "", "rta=1ms"},
		{`DISK OK\n/ 10%\n/var 20%`, "DISK OK", "/ 10%\n/var 20%", ""},
		{`LOAD OK|load1=0.1\nall good|load5=0.2`, "LOAD OK", "all good", "load1=0.1 load5=0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			output, long, perf := splitOutput(tt.raw)
			assert.Equal(t, tt.output, output)
			assert.Equal(t, tt.long, long)
			assert.Equal(t, tt.perf, perf)
		})
	}
}
