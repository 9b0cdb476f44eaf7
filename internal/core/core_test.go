package core

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanplexian/livestatus/internal/api"
	"github.com/oceanplexian/livestatus/internal/config"
	"github.com/oceanplexian/livestatus/internal/extcmd"
	"github.com/oceanplexian/livestatus/internal/logging"
	"github.com/oceanplexian/livestatus/internal/objects"
)

const snapshot = `
program:
  version: "2.4.0"
  program_start: 1700000000
contacts:
  - name: alice
hosts:
  - name: web-01
    address: 10.0.0.2
    contacts: [alice]
    max_check_attempts: 3
  - name: db-01
    address: 10.0.0.3
    state: 1
    plugin_output: PING CRITICAL
services:
  - host: web-01
    description: HTTP
    max_check_attempts: 3
  - host: db-01
    description: MySQL
    state: 2
comments:
  - id: 7
    host: web-01
    author: alice
    comment: rebooting
`

func newTestCore(t *testing.T) (*Core, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.StateFile = filepath.Join(dir, "state.yml")
	cfg.HistoryFile = filepath.Join(dir, "nagios.log")
	cfg.LogArchivePath = filepath.Join(dir, "archives")
	require.NoError(t, os.WriteFile(cfg.StateFile, []byte(snapshot), 0o644))

	c, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, cfg
}

func submit(t *testing.T, c *Core, line string) error {
	t.Helper()
	cmd, err := extcmd.Parse("[1700000000] " + line)
	require.NoError(t, err)
	return c.SubmitCommand(cmd)
}

func history(t *testing.T, c *Core) string {
	t.Helper()
	data, err := os.ReadFile(c.HistoryFile())
	require.NoError(t, err)
	return string(data)
}

func TestNewLoadsSnapshot(t *testing.T) {
	c, _ := newTestCore(t)
	assert.Len(t, c.Hosts(), 2)
	assert.Len(t, c.Services(), 2)
	assert.Equal(t, os.Getpid(), c.Program().PID)
	assert.Equal(t, "2.4.0", c.Program().Version)
	assert.True(t, c.LastLogRotation().IsZero())

	log := history(t, c)
	assert.Contains(t, log, "] LOG VERSION: 2.0\n")
	assert.Contains(t, log, "] INITIAL HOST STATE: db-01;DOWN;HARD;")
	assert.Contains(t, log, "] INITIAL SERVICE STATE: db-01;MySQL;CRITICAL;HARD;")
}

func TestNewWithoutStateFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.HistoryFile = filepath.Join(dir, "nagios.log")
	cfg.LogArchivePath = filepath.Join(dir, "archives")
	cfg.ProgramVersion = "9.9"
	c, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	defer c.Close()
	assert.Empty(t, c.Hosts())
	assert.Equal(t, "9.9", c.Program().Version)

	_, err = New(config.Default(), logging.Discard())
	assert.Error(t, err, "a history file is required")
}

func TestComments(t *testing.T) {
	c, _ := newTestCore(t)
	require.NoError(t, submit(t, c, "ADD_SVC_COMMENT;web-01;HTTP;1;bob;deploying; again"))
	comments := c.Comments()
	require.Len(t, comments, 2)
	added := comments[1]
	assert.Equal(t, uint64(8), added.ID)
	assert.Equal(t, objects.ServiceCommentType, added.Type)
	assert.Equal(t, "deploying; again", added.Data)
	assert.True(t, added.Persistent)
	assert.Same(t, c.FindService("web-01", "HTTP"), added.Service)

	require.NoError(t, submit(t, c, "DEL_HOST_COMMENT;7"))
	assert.Len(t, c.Comments(), 1)
	assert.Error(t, submit(t, c, "DEL_HOST_COMMENT;7"))
}

func TestAcknowledgement(t *testing.T) {
	c, _ := newTestCore(t)
	mysql := c.FindService("db-01", "MySQL")

	require.NoError(t, submit(t, c, "ACKNOWLEDGE_SVC_PROBLEM;db-01;MySQL;2;0;1;alice;on it"))
	assert.True(t, mysql.ProblemAcknowledged)
	assert.Equal(t, objects.AckSticky, mysql.AckType)
	require.Len(t, c.Comments(), 2)
	assert.Equal(t, objects.AcknowledgementCommentEntry, c.Comments()[1].EntryType)

	require.NoError(t, submit(t, c, "REMOVE_SVC_ACKNOWLEDGEMENT;db-01;MySQL"))
	assert.False(t, mysql.ProblemAcknowledged)
	assert.Equal(t, objects.AckNone, mysql.AckType)
	assert.Len(t, c.Comments(), 1)

	err := submit(t, c, "ACKNOWLEDGE_HOST_PROBLEM;web-01;1;0;0;alice;nothing to ack")
	assert.ErrorContains(t, err, "has no problem")
}

func TestDowntimes(t *testing.T) {
	c, _ := newTestCore(t)
	web := c.FindHost("web-01")
	now := time.Now().Unix()
	require.NoError(t, submit(t, c, "SCHEDULE_HOST_DOWNTIME;web-01;"+
		strconv.FormatInt(now-10, 10)+";"+strconv.FormatInt(now+3600, 10)+";1;0;0;alice;patching"))

	downtimes := c.Downtimes()
	require.Len(t, downtimes, 1)
	d := downtimes[0]
	assert.Equal(t, time.Hour+10*time.Second, d.Duration, "fixed downtimes last the whole window")
	assert.Equal(t, 1, web.ScheduledDowntimeDepth)
	require.NotNil(t, c.store.GetComment(d.CommentID))
	assert.Contains(t, history(t, c), "HOST DOWNTIME ALERT: web-01;STARTED;")

	require.NoError(t, submit(t, c, "DEL_HOST_DOWNTIME;"+strconv.FormatInt(int64(d.ID), 10)))
	assert.Empty(t, c.Downtimes())
	assert.Zero(t, web.ScheduledDowntimeDepth)
	assert.Nil(t, c.store.GetComment(d.CommentID))
	assert.Contains(t, history(t, c), "HOST DOWNTIME ALERT: web-01;CANCELLED;")

	assert.Error(t, submit(t, c, "SCHEDULE_SVC_DOWNTIME;web-01;HTTP;100;50;1;0;0;alice;backwards"))
}

func TestPassiveServiceResults(t *testing.T) {
	c, _ := newTestCore(t)
	http := c.FindService("web-01", "HTTP")

	for i := 1; i <= 3; i++ {
		require.NoError(t, submit(t, c, `PROCESS_SERVICE_CHECK_RESULT;web-01;HTTP;2;CRITICAL - refused|time=0s\nretry later`))
		assert.Equal(t, i, http.CurrentAttempt)
	}
	assert.Equal(t, objects.ServiceCritical, http.CurrentState)
	assert.Equal(t, objects.StateTypeHard, http.StateType)
	assert.Equal(t, objects.ServiceCritical, http.LastHardState)
	assert.Equal(t, "CRITICAL - refused", http.PluginOutput)
	assert.Equal(t, "retry later", http.LongPluginOutput)
	assert.Equal(t, "time=0s", http.PerfData)

	log := history(t, c)
	assert.Contains(t, log, "PASSIVE SERVICE CHECK: web-01;HTTP;2;")
	assert.Contains(t, log, "SERVICE ALERT: web-01;HTTP;CRITICAL;SOFT;1;CRITICAL - refused\n")
	assert.Contains(t, log, "SERVICE ALERT: web-01;HTTP;CRITICAL;HARD;3;CRITICAL - refused\n")

	require.NoError(t, submit(t, c, "PROCESS_SERVICE_CHECK_RESULT;web-01;HTTP;0;OK"))
	assert.Equal(t, objects.ServiceOK, http.CurrentState)
	assert.Equal(t, 1, http.CurrentAttempt)
	assert.Contains(t, history(t, c), "SERVICE ALERT: web-01;HTTP;OK;HARD;1;OK\n")
}

func TestPassiveHostResultClearsAcknowledgement(t *testing.T) {
	c, _ := newTestCore(t)
	db := c.FindHost("db-01")
	require.NoError(t, submit(t, c, "ACKNOWLEDGE_HOST_PROBLEM;db-01;1;0;0;alice;known"))
	require.True(t, db.ProblemAcknowledged)

	require.NoError(t, submit(t, c, "PROCESS_HOST_CHECK_RESULT;db-01;0;PING OK"))
	assert.Equal(t, objects.HostUp, db.CurrentState)
	assert.False(t, db.ProblemAcknowledged)
	assert.Contains(t, history(t, c), "HOST ALERT: db-01;UP;HARD;1;PING OK\n")
}

func TestNotificationSwitches(t *testing.T) {
	c, _ := newTestCore(t)
	require.NoError(t, submit(t, c, "DISABLE_NOTIFICATIONS"))
	assert.False(t, c.Program().EnableNotifications)
	require.NoError(t, submit(t, c, "DISABLE_SVC_NOTIFICATIONS;web-01;HTTP"))
	assert.False(t, c.FindService("web-01", "HTTP").NotificationsEnabled)
	require.NoError(t, submit(t, c, "ENABLE_HOST_NOTIFICATIONS;web-01"))
	assert.True(t, c.FindHost("web-01").NotificationsEnabled)
}

func TestSubmitCommandLogsAndNotifies(t *testing.T) {
	c, _ := newTestCore(t)
	onCommand := c.Triggers().Channel(api.TriggerCommand)
	onLog := c.Triggers().Channel(api.TriggerLog)

	err := submit(t, c, "FROBNICATE;web-01")
	assert.True(t, errors.Is(err, extcmd.ErrUnknownCommand))
	assert.Contains(t, history(t, c), "EXTERNAL COMMAND: FROBNICATE;web-01\n")
	assert.False(t, c.Program().LastCommandCheck.IsZero())

	for name, ch := range map[string]<-chan struct{}{"command": onCommand, "log": onLog} {
		select {
		case <-ch:
		default:
			t.Errorf("%s trigger did not fire", name)
		}
	}

	for _, line := range []string{"ADD_HOST_COMMENT;nohost;1;a;b", "ADD_SVC_COMMENT;web-01;NOPE;1;a;b", "DEL_SVC_COMMENT;abc", "ACKNOWLEDGE_HOST_PROBLEM;db-01"} {
		assert.Error(t, submit(t, c, line), line)
	}
}

func TestRotateLog(t *testing.T) {
	c, cfg := newTestCore(t)
	require.NoError(t, c.RotateLog())
	assert.False(t, c.LastLogRotation().IsZero())

	archives, err := os.ReadDir(cfg.LogArchivePath)
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.True(t, strings.HasPrefix(archives[0].Name(), "nagios-"))
	assert.Contains(t, history(t, c), "LOG ROTATION: ")
}

func TestReload(t *testing.T) {
	c, cfg := newTestCore(t)
	start := c.Program().ProgramStart
	require.NoError(t, os.WriteFile(cfg.StateFile, []byte(snapshot+`
  - id: 9
    host: db-01
    author: bob
    comment: added
`), 0o644))
	onProgram := c.Triggers().Channel(api.TriggerProgram)

	require.NoError(t, c.Reload())
	assert.Len(t, c.Comments(), 2)
	assert.Equal(t, start, c.Program().ProgramStart)
	select {
	case <-onProgram:
	default:
		t.Error("program trigger did not fire")
	}

	require.NoError(t, os.WriteFile(cfg.StateFile, []byte("hosts: [nonsense"), 0o644))
	assert.Error(t, c.Reload())
	assert.Len(t, c.Comments(), 2, "a failed reload keeps the old state")
}

func TestExpire(t *testing.T) {
	c, _ := newTestCore(t)
	mysql := c.FindService("db-01", "MySQL")
	now := time.Now()
	start, end := now.Add(time.Minute), now.Add(2*time.Minute)
	require.NoError(t, submit(t, c, "SCHEDULE_SVC_DOWNTIME;db-01;MySQL;"+
		strconv.FormatInt(start.Unix(), 10)+";"+strconv.FormatInt(end.Unix(), 10)+";1;0;0;bob;migration"))
	require.Len(t, c.Downtimes(), 1)
	d := c.Downtimes()[0]
	assert.Zero(t, mysql.ScheduledDowntimeDepth)

	note := c.store.AddComment(&objects.Comment{
		Type: objects.ServiceCommentType, Host: mysql.Host, Service: mysql, Author: "bob", Data: "temporary",
		Expires: true, ExpireTime: now.Add(90 * time.Second),
	})
	changed := c.Triggers().Channel(api.TriggerDowntime)

	c.Expire(start.Add(time.Second))
	assert.Equal(t, 1, mysql.ScheduledDowntimeDepth)
	assert.NotNil(t, c.store.GetComment(note))
	assert.Contains(t, history(t, c), "SERVICE DOWNTIME ALERT: db-01;MySQL;STARTED;")
	select {
	case <-changed:
	default:
		t.Fatal("downtime trigger not notified")
	}

	c.Expire(end)
	assert.Zero(t, mysql.ScheduledDowntimeDepth)
	assert.Empty(t, c.Downtimes())
	assert.Nil(t, c.store.GetComment(d.CommentID))
	assert.Nil(t, c.store.GetComment(note))
	assert.Contains(t, history(t, c), "SERVICE DOWNTIME ALERT: db-01;MySQL;STOPPED;")
}

func TestRunStopsWithContext(t *testing.T) {
	c, _ := newTestCore(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, 10*time.Millisecond) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
