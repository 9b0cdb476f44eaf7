package core

import (
	"strings"

	"github.com/oceanplexian/livestatus/internal/objects"
)

// transition is the state bookkeeping after one check result.
type transition struct {
	stateType   int
	attempt     int
	changed     bool // the state differs from the previous result
	hardChanged bool // a new hard state was reached
	alert       bool // an ALERT line goes to the history
}

// nextState applies the soft/hard retry rules shared by hosts and services.
// okState is the state that counts as recovered.
func nextState(prev, prevType, prevAttempt, maxAttempts, lastHard, state, okState int) transition {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	t := transition{stateType: objects.StateTypeHard, attempt: 1, changed: state != prev}
	switch {
	case state == okState:
		if prev != okState && prevType == objects.StateTypeSoft {
			t.stateType = objects.StateTypeSoft
		}
	case prev == okState:
		if maxAttempts > 1 {
			t.stateType = objects.StateTypeSoft
		}
	case prevType == objects.StateTypeSoft:
		t.attempt = min(prevAttempt+1, maxAttempts)
		if t.attempt < maxAttempts {
			t.stateType = objects.StateTypeSoft
		}
	default:
		t.attempt = maxAttempts
	}
	t.hardChanged = t.stateType == objects.StateTypeHard && state != lastHard
	t.alert = t.changed || t.hardChanged || (t.stateType == objects.StateTypeSoft && state != okState)
	return t
}

// splitOutput separates plugin output into the first line, the long output
// and the performance data. Escaped "\n" sequences are line breaks.
func splitOutput(raw string) (output, long, perf string) {
	text := strings.ReplaceAll(raw, `\n`, "\n")
	first, rest, _ := strings.Cut(text, "\n")
	output, perf, _ = strings.Cut(first, "|")
	long, morePerf, found := strings.Cut(rest, "|")
	if found {
		perf = strings.TrimSpace(perf + " " + strings.ReplaceAll(morePerf, "\n", " "))
	}
	return strings.TrimSpace(output), strings.TrimSpace(long), strings.TrimSpace(perf)
}
