// Package core is a small in-memory monitoring core. It serves a YAML state
// snapshot to the livestatus engine, applies external commands to it and
// records what happens in a Nagios-format history log.
package core

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/oceanplexian/livestatus/internal/api"
	"github.com/oceanplexian/livestatus/internal/config"
	"github.com/oceanplexian/livestatus/internal/counters"
	"github.com/oceanplexian/livestatus/internal/extcmd"
	"github.com/oceanplexian/livestatus/internal/logging"
	"github.com/oceanplexian/livestatus/internal/objects"
)

// Core implements api.MonitoringCore.
type Core struct {
	// mu protects store and global. Command handlers run under the write
	// lock, livestatus holds the read lock for a whole query.
	mu     sync.RWMutex
	store  *objects.ObjectStore
	global *objects.GlobalState

	stateFile string
	version   string
	history   *logging.HistoryLog
	triggers  *api.Triggers
	commands  *extcmd.Dispatcher
	log       logrus.FieldLogger
	now       func() time.Time

	lastRotation atomic.Int64 // unix nanoseconds
}

var _ api.MonitoringCore = (*Core)(nil)

// New loads cfg.StateFile, or starts empty without one, and opens the
// history log.
func New(cfg *config.Config, log logrus.FieldLogger) (*Core, error) {
	if cfg.HistoryFile == "" {
		return nil, errors.New("no history file configured")
	}
	history, err := logging.OpenHistoryLog(cfg.HistoryFile, cfg.LogArchivePath)
	if err != nil {
		return nil, err
	}
	c := &Core{
		stateFile: cfg.StateFile,
		version:   cfg.ProgramVersion,
		history:   history,
		triggers:  api.NewTriggers(),
		commands:  extcmd.NewDispatcher(),
		log:       log,
		now:       time.Now,
	}
	history.Hook = func(string) {
		counters.Increment(counters.LogMessages)
		c.triggers.Notify(api.TriggerLog)
	}
	c.registerHandlers()

	store, global, err := c.load()
	if err != nil {
		history.Close()
		return nil, err
	}
	c.store, c.global = store, global
	c.logInitialStates()
	log.Infof("core started with %d hosts and %d services", len(store.Hosts()), len(store.Services()))
	return c, nil
}

func (c *Core) load() (*objects.ObjectStore, *objects.GlobalState, error) {
	now := c.now()
	var (
		store  *objects.ObjectStore
		global *objects.GlobalState
		err    error
	)
	if c.stateFile == "" {
		store, global, err = objects.ParseSnapshot(nil, now)
	} else {
		store, global, err = objects.LoadSnapshot(c.stateFile, now)
	}
	if err != nil {
		return nil, nil, err
	}
	if c.version != "" {
		global.Version = c.version
	}
	global.PID = os.Getpid()
	return store, global, nil
}

func (c *Core) logInitialStates() {
	c.history.Log("LOG VERSION: 2.0")
	c.history.Log("logging initial states")
	for _, h := range c.store.Hosts() {
		c.history.LogInitialHostState(h)
	}
	for _, s := range c.store.Services() {
		c.history.LogInitialServiceState(s)
	}
}

// Reload replaces the object state with a fresh read of the state file.
// The program start time survives the reload.
func (c *Core) Reload() error {
	store, global, err := c.load()
	if err != nil {
		return errors.Wrap(err, "reload state")
	}
	c.mu.Lock()
	global.ProgramStart = c.global.ProgramStart
	c.store, c.global = store, global
	c.mu.Unlock()
	c.history.Log("Caught SIGHUP, reloaded state from %s", c.stateFile)
	c.triggers.Notify(api.TriggerProgram)
	c.triggers.Notify(api.TriggerState)
	return nil
}

// Close closes the history log.
func (c *Core) Close() error { return c.history.Close() }

func (c *Core) RLock()   { c.mu.RLock() }
func (c *Core) RUnlock() { c.mu.RUnlock() }

func (c *Core) Hosts() []*objects.Host                 { return c.store.Hosts() }
func (c *Core) Services() []*objects.Service           { return c.store.Services() }
func (c *Core) HostGroups() []*objects.HostGroup       { return c.store.HostGroups() }
func (c *Core) ServiceGroups() []*objects.ServiceGroup { return c.store.ServiceGroups() }
func (c *Core) Contacts() []*objects.Contact           { return c.store.Contacts() }
func (c *Core) ContactGroups() []*objects.ContactGroup { return c.store.ContactGroups() }
func (c *Core) Commands() []*objects.Command           { return c.store.Commands() }
func (c *Core) Timeperiods() []*objects.Timeperiod     { return c.store.Timeperiods() }
func (c *Core) Comments() []*objects.Comment           { return c.store.Comments() }
func (c *Core) Downtimes() []*objects.Downtime         { return c.store.Downtimes() }
func (c *Core) Program() *objects.GlobalState          { return c.global }

func (c *Core) FindHost(name string) *objects.Host { return c.store.GetHost(name) }
func (c *Core) FindService(host, desc string) *objects.Service {
	return c.store.GetService(host, desc)
}
func (c *Core) FindContact(name string) *objects.Contact { return c.store.GetContact(name) }
func (c *Core) FindHostGroup(name string) *objects.HostGroup {
	return c.store.GetHostGroup(name)
}
func (c *Core) FindServiceGroup(name string) *objects.ServiceGroup {
	return c.store.GetServiceGroup(name)
}

func (c *Core) HistoryFile() string     { return c.history.Path() }
func (c *Core) LogArchivePath() string  { return c.history.ArchivePath() }
func (c *Core) Triggers() *api.Triggers { return c.triggers }

func (c *Core) LastLogRotation() time.Time {
	if ns := c.lastRotation.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}

// RotateLog archives the history file. The log cache notices the new
// rotation time and rebuilds its index.
func (c *Core) RotateLog() error {
	at, err := c.history.Rotate()
	if err != nil {
		return err
	}
	c.lastRotation.Store(at.UnixNano())
	c.log.Infof("rotated history log at %s", at.Format(time.RFC3339))
	c.triggers.Notify(api.TriggerLog)
	return nil
}

// SubmitCommand logs cmd to the history and applies it.
func (c *Core) SubmitCommand(cmd *extcmd.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history.LogExternalCommand(cmd.Name, cmd.Args)
	c.global.LastCommandCheck = c.now()
	err := c.commands.Dispatch(cmd)
	c.triggers.Notify(api.TriggerCommand)
	return err
}
