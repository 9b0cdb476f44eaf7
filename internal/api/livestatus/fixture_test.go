package livestatus

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/oceanplexian/livestatus/internal/api"
	"github.com/oceanplexian/livestatus/internal/config"
	"github.com/oceanplexian/livestatus/internal/extcmd"
	"github.com/oceanplexian/livestatus/internal/logging"
	"github.com/oceanplexian/livestatus/internal/objects"
)

// fakeCore is a MonitoringCore over fixed objects.
type fakeCore struct {
	sync.RWMutex

	hosts         []*objects.Host
	services      []*objects.Service
	hostGroups    []*objects.HostGroup
	serviceGroups []*objects.ServiceGroup
	contacts      []*objects.Contact
	contactGroups []*objects.ContactGroup
	commands      []*objects.Command
	timeperiods   []*objects.Timeperiod
	comments      []*objects.Comment
	downtimes     []*objects.Downtime
	program       *objects.GlobalState

	historyFile string
	archivePath string
	rotations   int
	submitted   []*extcmd.Command
	triggers    *api.Triggers
}

func (c *fakeCore) Hosts() []*objects.Host                 { return c.hosts }
func (c *fakeCore) Services() []*objects.Service           { return c.services }
func (c *fakeCore) HostGroups() []*objects.HostGroup       { return c.hostGroups }
func (c *fakeCore) ServiceGroups() []*objects.ServiceGroup { return c.serviceGroups }
func (c *fakeCore) Contacts() []*objects.Contact           { return c.contacts }
func (c *fakeCore) ContactGroups() []*objects.ContactGroup { return c.contactGroups }
func (c *fakeCore) Commands() []*objects.Command           { return c.commands }
func (c *fakeCore) Timeperiods() []*objects.Timeperiod     { return c.timeperiods }
func (c *fakeCore) Comments() []*objects.Comment           { return c.comments }
func (c *fakeCore) Downtimes() []*objects.Downtime         { return c.downtimes }
func (c *fakeCore) Program() *objects.GlobalState          { return c.program }

func (c *fakeCore) FindHost(name string) *objects.Host {
	for _, h := range c.hosts {
		if h.Name == name {
			return h
		}
	}
	return nil
}

func (c *fakeCore) FindService(host, desc string) *objects.Service {
	for _, s := range c.services {
		if s.Host.Name == host && s.Description == desc {
			return s
		}
	}
	return nil
}

func (c *fakeCore) FindContact(name string) *objects.Contact {
	for _, ct := range c.contacts {
		if ct.Name == name {
			return ct
		}
	}
	return nil
}

func (c *fakeCore) FindHostGroup(name string) *objects.HostGroup {
	for _, g := range c.hostGroups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

func (c *fakeCore) FindServiceGroup(name string) *objects.ServiceGroup {
	for _, g := range c.serviceGroups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

func (c *fakeCore) HistoryFile() string        { return c.historyFile }
func (c *fakeCore) LogArchivePath() string     { return c.archivePath }
func (c *fakeCore) LastLogRotation() time.Time { return time.Unix(1700000000, 0) }
func (c *fakeCore) RotateLog() error           { c.rotations++; return nil }
func (c *fakeCore) Triggers() *api.Triggers    { return c.triggers }

func (c *fakeCore) SubmitCommand(cmd *extcmd.Command) error {
	c.submitted = append(c.submitted, cmd)
	c.triggers.Notify(api.TriggerCommand)
	return nil
}

// newFakeCore returns three hosts in the states UP, DOWN and UNREACHABLE.
// alice is a contact of web only.
func newFakeCore(t *testing.T) *fakeCore {
	dir := t.TempDir()
	alice := &objects.Contact{Name: "alice", Alias: "Alice", Email: "alice@example.com", CustomVars: map[string]string{"TEAM": "ops"}}
	admins := &objects.ContactGroup{Name: "admins", Alias: "Admins", Members: []*objects.Contact{alice}}
	alice.ContactGroups = []*objects.ContactGroup{admins}

	web := &objects.Host{Name: "web", Alias: "Web Server", Address: "10.0.0.1", CurrentState: objects.HostUp,
		HasBeenChecked: true, Contacts: []*objects.Contact{alice}, CustomVars: map[string]string{"OS": "linux", "RACK": "r1"},
		LastCheck: time.Unix(1700000100, 0)}
	db := &objects.Host{Name: "db", Alias: "Database", Address: "10.0.0.2", CurrentState: objects.HostDown, HasBeenChecked: true}
	mail := &objects.Host{Name: "mail", Alias: "Mail", Address: "10.0.0.3", CurrentState: objects.HostUnreachable, HasBeenChecked: true}
	web.Children = []*objects.Host{db}
	db.Parents = []*objects.Host{web}

	http := &objects.Service{Host: web, Description: "HTTP", CurrentState: objects.ServiceOK, HasBeenChecked: true, Latency: 0.5}
	https := &objects.Service{Host: web, Description: "HTTPS", CurrentState: objects.ServiceCritical, HasBeenChecked: true, Latency: 1.5}
	mysql := &objects.Service{Host: db, Description: "MySQL", CurrentState: objects.ServiceWarning, HasBeenChecked: true, Latency: 1}
	web.Services = []*objects.Service{http, https}
	db.Services = []*objects.Service{mysql}

	webGroup := &objects.HostGroup{Name: "webservers", Alias: "Web", Members: []*objects.Host{web}}
	web.HostGroups = []*objects.HostGroup{webGroup}
	httpGroup := &objects.ServiceGroup{Name: "http", Alias: "HTTP", Members: []*objects.Service{http, https}}
	http.ServiceGroups = []*objects.ServiceGroup{httpGroup}
	https.ServiceGroups = []*objects.ServiceGroup{httpGroup}

	return &fakeCore{
		hosts:         []*objects.Host{web, db, mail},
		services:      []*objects.Service{http, https, mysql},
		hostGroups:    []*objects.HostGroup{webGroup},
		serviceGroups: []*objects.ServiceGroup{httpGroup},
		contacts:      []*objects.Contact{alice},
		contactGroups: []*objects.ContactGroup{admins},
		commands:      []*objects.Command{{Name: "check_ping", CommandLine: "$USER1$/check_ping -H $HOSTADDRESS$"}},
		timeperiods:   []*objects.Timeperiod{{Name: "24x7", Alias: "Always"}},
		comments: []*objects.Comment{
			{ID: 7, Type: objects.HostCommentType, EntryType: objects.UserCommentEntry, Author: "alice", Data: "rebooting", Host: web},
			{ID: 8, Type: objects.ServiceCommentType, EntryType: objects.UserCommentEntry, Author: "bob", Data: "slow", Host: db, Service: mysql},
		},
		program: &objects.GlobalState{
			EnableNotifications: true,
			PID:                 4242,
			IntervalLength:      60,
			Version:             "2.4.0",
			ProgramStart:        time.Unix(1700000000, 0),
		},
		historyFile: filepath.Join(dir, "nagios.log"),
		archivePath: filepath.Join(dir, "archives"),
		triggers:    api.NewTriggers(),
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MkeventdSocket = filepath.Join("/nonexistent", "mkeventd", "status")
	return cfg
}

func testLogger() logrus.FieldLogger { return logging.Discard() }

func newTestStore(t *testing.T, core *fakeCore) *Store {
	s, err := NewStore(core, testConfig(), testLogger())
	require.NoError(t, err)
	return s
}

func newTestOutput() *OutputBuffer {
	return NewOutputBuffer(nil, func() bool { return false }, testLogger())
}

// answer runs request through the store and returns the response bytes as
// they would be flushed.
func answer(t *testing.T, s *Store, request ...string) (string, ResponseCode) {
	t.Helper()
	out := newTestOutput()
	defer out.Release()
	s.AnswerRequest(t.Context(), request, out)
	code, _, _ := out.Error()
	return string(out.Bytes()), code
}
