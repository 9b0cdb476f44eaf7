package objects

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSnapshot = `
program:
  version: "2.0.0"
  pid: 4242
  program_start: 1700000000
  enable_notifications: false
timeperiods:
  - name: 24x7
commands:
  - name: check-host-alive
    line: /usr/lib/nagios/plugins/check_ping -H $HOSTADDRESS$
contacts:
  - name: alice
    email: alice@example.com
    custom_variables:
      _team: ops
  - name: bob
contactgroups:
  - name: admins
    members: [alice]
hosts:
  - name: router
    address: 10.0.0.1
    contacts: [bob]
  - name: web-01
    address: 10.0.0.2
    parents: [router]
    contact_groups: [admins]
    state: 1
    plugin_output: PING CRITICAL
    last_check: 1700000100
    custom_variables:
      TAGS: prod web
hostgroups:
  - name: web
    members: [web-01]
services:
  - host: web-01
    description: HTTP
    state: 2
    state_type: 0
    contacts: [alice]
servicegroups:
  - name: http
    members: ["web-01;HTTP"]
comments:
  - id: 7
    host: web-01
    service: HTTP
    author: alice
    comment: looking into it
downtimes:
  - id: 3
    host: router
    start_time: 1699999000
    end_time: 1700009000
`

func TestParseSnapshot(t *testing.T) {
	now := time.Unix(1700000200, 0)
	store, global, err := ParseSnapshot([]byte(testSnapshot), now)
	require.NoError(t, err)

	assert.Equal(t, "2.0.0", global.Version)
	assert.Equal(t, 4242, global.PID)
	assert.False(t, global.EnableNotifications)
	assert.True(t, global.ExecuteHostChecks)
	assert.Equal(t, 60, global.IntervalLength)

	web := store.GetHost("web-01")
	require.NotNil(t, web)
	assert.Equal(t, "web-01", web.DisplayName)
	assert.Equal(t, HostDown, web.CurrentState)
	assert.Equal(t, StateTypeHard, web.StateType)
	assert.True(t, web.HasBeenChecked)
	assert.Equal(t, "prod web", web.CustomVars["TAGS"])
	require.Len(t, web.Parents, 1)
	assert.Equal(t, "router", web.Parents[0].Name)
	assert.Len(t, store.GetHost("router").Children, 1)
	require.Len(t, web.HostGroups, 1)
	require.Len(t, web.ContactGroups, 1)
	assert.Equal(t, "admins", web.ContactGroups[0].Name)

	svc := store.GetService("web-01", "HTTP")
	require.NotNil(t, svc)
	assert.Equal(t, StateTypeSoft, svc.StateType)
	assert.Len(t, svc.ServiceGroups, 1)
	assert.Equal(t, "ops", store.GetContact("alice").CustomVars["TEAM"])

	comments := store.Comments()
	require.Len(t, comments, 1)
	assert.Equal(t, uint64(7), comments[0].ID)
	assert.Equal(t, ServiceCommentType, comments[0].Type)
	assert.Same(t, svc, comments[0].Service)

	assert.Equal(t, 1, store.GetHost("router").ScheduledDowntimeDepth)
}

func TestParseSnapshotErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown parent", "hosts:\n  - name: a\n    parents: [b]\n"},
		{"unknown contact", "hosts:\n  - name: a\n    contacts: [nobody]\n"},
		{"unknown host of service", "services:\n  - host: a\n    description: x\n"},
		{"bad group member", "servicegroups:\n  - name: g\n    members: [nosemicolon]\n"},
		{"duplicate host", "hosts:\n  - name: a\n  - name: a\n"},
		{"unknown field", "hosts:\n  - name: a\n    colour: red\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseSnapshot([]byte(tt.doc), time.Now())
			assert.Error(t, err)
		})
	}
}

func TestLoadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yml")
	require.NoError(t, os.WriteFile(path, []byte(testSnapshot), 0o644))
	store, _, err := LoadSnapshot(path, time.Now())
	require.NoError(t, err)
	assert.Len(t, store.Hosts(), 2)

	_, _, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.yml"), time.Now())
	assert.Error(t, err)
}
