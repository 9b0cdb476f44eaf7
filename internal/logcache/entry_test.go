package logcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Entry
	}{
		{
			name: "initial host state",
			line: "[1551424305] INITIAL HOST STATE: huey;UP;HARD;7;Krasser Output;Laaanger\\nLong",
			want: Entry{Class: ClassState, Type: "INITIAL HOST STATE", HostName: "huey", StateType: "HARD",
				StateInfo: "HARD (UP)", Attempt: 7, PluginOutput: "Krasser Output", LongPluginOutput: "Laaanger\nLong"},
		},
		{
			name: "service alert",
			line: "[1551424323] SERVICE ALERT: huey;hi!;CRITICAL;SOFT;1234;Komisch...",
			want: Entry{Class: ClassAlert, Type: "SERVICE ALERT", HostName: "huey", ServiceDescription: "hi!",
				State: 2, StateType: "SOFT", StateInfo: "SOFT (CRITICAL)", Attempt: 1234, PluginOutput: "Komisch..."},
		},
		{
			name: "host downtime alert",
			line: "[1551424323] HOST DOWNTIME ALERT: huey;STARTED;Komisch...",
			want: Entry{Class: ClassAlert, Type: "HOST DOWNTIME ALERT", HostName: "huey", StateType: "STARTED",
				StateInfo: "STARTED", Comment: "Komisch..."},
		},
		{
			name: "service acknowledge alert",
			line: "[1551424323] SERVICE ACKNOWLEDGE ALERT: huey;hi!;EXPIRED;King Kong;foo bar",
			want: Entry{Class: ClassAlert, Type: "SERVICE ACKNOWLEDGE ALERT", HostName: "huey", ServiceDescription: "hi!",
				StateType: "EXPIRED", StateInfo: "EXPIRED", ContactName: "King Kong", Comment: "foo bar"},
		},
		{
			name: "host notification",
			line: "[1551424305] HOST NOTIFICATION: King Kong;donald;DOWN;commando;viel output...;Tolkien;The Hobbit;lalala",
			want: Entry{Class: ClassNotification, Type: "HOST NOTIFICATION", HostName: "donald", ContactName: "King Kong",
				CommandName: "commando", State: 1, StateType: "DOWN", StateInfo: "NOTIFY (DOWN)",
				PluginOutput: "viel output...", Comment: "The Hobbit", LongPluginOutput: "lalala"},
		},
		{
			name: "service notification with reason",
			line: "[1551424305] SERVICE NOTIFICATION: King Kong;donald;duck;DOWNTIMESTART (WARNING);commando;out",
			want: Entry{Class: ClassNotification, Type: "SERVICE NOTIFICATION", HostName: "donald", ServiceDescription: "duck",
				ContactName: "King Kong", CommandName: "commando", State: 1, StateType: "DOWNTIMESTART (WARNING)",
				StateInfo: "DOWNTIMESTART (WARNING)", PluginOutput: "out"},
		},
		{
			name: "alert handler notification",
			line: "[1551424305] HOST NOTIFICATION: King Kong;donald;ALERTHANDLER (CRITICAL);commando;out",
			want: Entry{Class: ClassNotification, Type: "HOST NOTIFICATION", HostName: "donald", ContactName: "King Kong",
				CommandName: "commando", State: 2, StateType: "ALERTHANDLER (CRITICAL)",
				StateInfo: "EXIT_CODE (PERMANENT_FAILURE)", PluginOutput: "out"},
		},
		{
			name: "swapped notification",
			line: "[1551424305] HOST NOTIFICATION: King Kong;donald;check-mk-notify;UNREACHABLE;out",
			want: Entry{Class: ClassNotification, Type: "HOST NOTIFICATION", HostName: "donald", ContactName: "King Kong",
				CommandName: "check-mk-notify", State: 2, StateType: "UNREACHABLE",
				StateInfo: "NOTIFY (UNREACHABLE)", PluginOutput: "out"},
		},
		{
			name: "service notification result",
			line: "[1551424305] SERVICE NOTIFICATION RESULT: King Kong;donald;duck;WARNING;commando;out;blah blubb",
			want: Entry{Class: ClassNotification, Type: "SERVICE NOTIFICATION RESULT", HostName: "donald",
				ServiceDescription: "duck", ContactName: "King Kong", CommandName: "commando", State: 1,
				StateType: "WARNING", StateInfo: "EXIT_CODE (TEMPORARY_FAILURE)", PluginOutput: "out", Comment: "blah blubb"},
		},
		{
			name: "alert handler stopped",
			line: "[1551424305] HOST ALERT HANDLER STOPPED: donald;commando;UNKNOWN;es war einmal...",
			want: Entry{Class: ClassAlertHandlers, Type: "HOST ALERT HANDLER STOPPED", HostName: "donald",
				CommandName: "commando", State: 3, StateInfo: "EXIT_CODE (FUNNY_EXIT_CODE_3)", PluginOutput: "es war einmal..."},
		},
		{
			name: "passive service check",
			line: "[1551424305] PASSIVE SERVICE CHECK: donald;duck;2;Isch hab Ruecken!",
			want: Entry{Class: ClassPassive, Type: "PASSIVE SERVICE CHECK", HostName: "donald", ServiceDescription: "duck",
				State: 2, StateInfo: "PASSIVE (CRITICAL)", PluginOutput: "Isch hab Ruecken!"},
		},
		{
			name: "passive host check",
			line: "[1551424305] PASSIVE HOST CHECK: donald;1;down",
			want: Entry{Class: ClassPassive, Type: "PASSIVE HOST CHECK", HostName: "donald", State: 1,
				StateInfo: "PASSIVE (DOWN)", PluginOutput: "down"},
		},
		{
			name: "external command",
			line: "[1551424305] EXTERNAL COMMAND: commando",
			want: Entry{Class: ClassCommand, Type: "EXTERNAL COMMAND"},
		},
		{
			name: "timeperiod transition",
			line: "[1551424323] TIMEPERIOD TRANSITION: denominazione;-1;1",
			want: Entry{Class: ClassState, Type: "TIMEPERIOD TRANSITION"},
		},
		{
			name: "log version",
			line: "[1551424305] LOG VERSION: 2.0",
			want: Entry{Class: ClassProgram, Type: "LOG VERSION: 2.0"},
		},
		{
			name: "core starting",
			line: "[1551424305] starting...",
			want: Entry{Class: ClassProgram, Type: "starting..."},
		},
		{
			name: "no colon",
			line: "[1551424305] this is total;nonsense",
			want: Entry{Class: ClassInfo, Type: "this is total;nonsense"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := ParseEntry(42, tt.line)
			require.True(t, ok)
			assert.Equal(t, 42, e.Lineno)
			assert.Equal(t, tt.line, e.Message)

			want := tt.want
			want.Time = e.Time
			want.Lineno = 42
			want.Message = tt.line
			want.Options = e.Options
			assert.Equal(t, &want, e)
		})
	}
}

func TestParseEntryOptions(t *testing.T) {
	e, ok := ParseEntry(1, "[1551424305] EXTERNAL COMMAND: commando;a;b")
	require.True(t, ok)
	assert.Equal(t, time.Unix(1551424305, 0), e.Time)
	assert.Equal(t, "commando;a;b", e.Options)

	e, ok = ParseEntry(1, "[1551424305] logging initial states")
	require.True(t, ok)
	assert.Empty(t, e.Options)
}

func TestParseEntryInvalid(t *testing.T) {
	for _, line := range []string{
		"",
		"[oh no...",
		"[nonsense!!] this is total;nonsense",
		"no timestamp at all",
		"[1551424305]",
	} {
		t.Run(line, func(t *testing.T) {
			_, ok := ParseEntry(1, line)
			assert.False(t, ok)
		})
	}
}
