package objects

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// The snapshot is a YAML document describing the object configuration and
// the current runtime state of a monitoring core. Times are unix seconds.

type programDoc struct {
	Version                    string `yaml:"version"`
	PID                        int    `yaml:"pid"`
	ProgramStart               int64  `yaml:"program_start"`
	IntervalLength             int    `yaml:"interval_length"`
	EnableNotifications        *bool  `yaml:"enable_notifications"`
	ExecuteServiceChecks       *bool  `yaml:"execute_service_checks"`
	ExecuteHostChecks          *bool  `yaml:"execute_host_checks"`
	AcceptPassiveServiceChecks *bool  `yaml:"accept_passive_service_checks"`
	AcceptPassiveHostChecks    *bool  `yaml:"accept_passive_host_checks"`
	EnableEventHandlers        *bool  `yaml:"enable_event_handlers"`
	EnableFlapDetection        *bool  `yaml:"enable_flap_detection"`
	ProcessPerformanceData     *bool  `yaml:"process_performance_data"`
}

type namedDoc struct {
	Name  string `yaml:"name"`
	Alias string `yaml:"alias"`
}

type commandDoc struct {
	Name string `yaml:"name"`
	Line string `yaml:"line"`
}

type contactDoc struct {
	Name                        string            `yaml:"name"`
	Alias                       string            `yaml:"alias"`
	Email                       string            `yaml:"email"`
	Pager                       string            `yaml:"pager"`
	HostNotificationPeriod      string            `yaml:"host_notification_period"`
	ServiceNotificationPeriod   string            `yaml:"service_notification_period"`
	HostNotificationsEnabled    *bool             `yaml:"host_notifications_enabled"`
	ServiceNotificationsEnabled *bool             `yaml:"service_notifications_enabled"`
	CanSubmitCommands           *bool             `yaml:"can_submit_commands"`
	CustomVariables             map[string]string `yaml:"custom_variables"`
}

type groupDoc struct {
	Name      string   `yaml:"name"`
	Alias     string   `yaml:"alias"`
	Members   []string `yaml:"members"`
	Notes     string   `yaml:"notes"`
	NotesURL  string   `yaml:"notes_url"`
	ActionURL string   `yaml:"action_url"`
}

// checkableDoc holds the fields hosts and services share.
type checkableDoc struct {
	DisplayName          string            `yaml:"display_name"`
	CheckCommand         string            `yaml:"check_command"`
	CheckPeriod          string            `yaml:"check_period"`
	NotificationPeriod   string            `yaml:"notification_period"`
	CheckInterval        float64           `yaml:"check_interval"`
	RetryInterval        float64           `yaml:"retry_interval"`
	MaxCheckAttempts     int               `yaml:"max_check_attempts"`
	ActiveChecksEnabled  *bool             `yaml:"active_checks_enabled"`
	PassiveChecksEnabled *bool             `yaml:"passive_checks_enabled"`
	NotificationsEnabled *bool             `yaml:"notifications_enabled"`
	Contacts             []string          `yaml:"contacts"`
	ContactGroups        []string          `yaml:"contact_groups"`
	Notes                string            `yaml:"notes"`
	NotesURL             string            `yaml:"notes_url"`
	ActionURL            string            `yaml:"action_url"`
	IconImage            string            `yaml:"icon_image"`
	CustomVariables      map[string]string `yaml:"custom_variables"`

	State               int     `yaml:"state"`
	LastState           int     `yaml:"last_state"`
	LastHardState       int     `yaml:"last_hard_state"`
	StateType           *int    `yaml:"state_type"`
	CurrentAttempt      int     `yaml:"current_attempt"`
	HasBeenChecked      *bool   `yaml:"has_been_checked"`
	IsFlapping          bool    `yaml:"is_flapping"`
	PluginOutput        string  `yaml:"plugin_output"`
	LongPluginOutput    string  `yaml:"long_plugin_output"`
	PerfData            string  `yaml:"perf_data"`
	LastCheck           int64   `yaml:"last_check"`
	NextCheck           int64   `yaml:"next_check"`
	LastStateChange     int64   `yaml:"last_state_change"`
	LastHardStateChange int64   `yaml:"last_hard_state_change"`
	LastNotification    int64   `yaml:"last_notification"`
	Latency             float64 `yaml:"latency"`
	ExecutionTime       float64 `yaml:"execution_time"`
	PercentStateChange  float64 `yaml:"percent_state_change"`
	Acknowledged        bool    `yaml:"acknowledged"`
	AcknowledgementType int     `yaml:"acknowledgement_type"`
}

type hostDoc struct {
	Name         string   `yaml:"name"`
	Alias        string   `yaml:"alias"`
	Address      string   `yaml:"address"`
	Parents      []string `yaml:"parents"`
	checkableDoc `yaml:",inline"`
}

type serviceDoc struct {
	Host         string `yaml:"host"`
	Description  string `yaml:"description"`
	IsVolatile   bool   `yaml:"is_volatile"`
	checkableDoc `yaml:",inline"`
}

type commentDoc struct {
	ID         uint64 `yaml:"id"`
	Host       string `yaml:"host"`
	Service    string `yaml:"service"`
	Author     string `yaml:"author"`
	Comment    string `yaml:"comment"`
	EntryType  int    `yaml:"entry_type"`
	EntryTime  int64  `yaml:"entry_time"`
	Persistent bool   `yaml:"persistent"`
	Expires    bool   `yaml:"expires"`
	ExpireTime int64  `yaml:"expire_time"`
}

type downtimeDoc struct {
	ID          uint64 `yaml:"id"`
	Host        string `yaml:"host"`
	Service     string `yaml:"service"`
	Author      string `yaml:"author"`
	Comment     string `yaml:"comment"`
	EntryTime   int64  `yaml:"entry_time"`
	StartTime   int64  `yaml:"start_time"`
	EndTime     int64  `yaml:"end_time"`
	Fixed       *bool  `yaml:"fixed"`
	TriggeredBy uint64 `yaml:"triggered_by"`
	Duration    int64  `yaml:"duration"`
}

type snapshotDoc struct {
	Program       programDoc    `yaml:"program"`
	Timeperiods   []namedDoc    `yaml:"timeperiods"`
	Commands      []commandDoc  `yaml:"commands"`
	Contacts      []contactDoc  `yaml:"contacts"`
	ContactGroups []groupDoc    `yaml:"contactgroups"`
	Hosts         []hostDoc     `yaml:"hosts"`
	HostGroups    []groupDoc    `yaml:"hostgroups"`
	Services      []serviceDoc  `yaml:"services"`
	ServiceGroups []groupDoc    `yaml:"servicegroups"`
	Comments      []commentDoc  `yaml:"comments"`
	Downtimes     []downtimeDoc `yaml:"downtimes"`
}

// LoadSnapshot reads a YAML state snapshot from path.
func LoadSnapshot(path string, now time.Time) (*ObjectStore, *GlobalState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read state snapshot")
	}
	store, global, err := ParseSnapshot(data, now)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "load %s", path)
	}
	return store, global, nil
}

// ParseSnapshot builds an object store from a YAML snapshot and resolves all
// references between objects.
func ParseSnapshot(data []byte, now time.Time) (*ObjectStore, *GlobalState, error) {
	var doc snapshotDoc
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, nil, errors.Wrap(err, "parse snapshot")
	}
	store := NewObjectStore()
	global := doc.Program.global(now)

	for _, tp := range doc.Timeperiods {
		if err := store.AddTimeperiod(&Timeperiod{Name: tp.Name, Alias: or(tp.Alias, tp.Name)}); err != nil {
			return nil, nil, err
		}
	}
	for _, c := range doc.Commands {
		if err := store.AddCommand(&Command{Name: c.Name, CommandLine: c.Line}); err != nil {
			return nil, nil, err
		}
	}
	for _, c := range doc.Contacts {
		contact := &Contact{
			Name:                        c.Name,
			Alias:                       or(c.Alias, c.Name),
			Email:                       c.Email,
			Pager:                       c.Pager,
			HostNotificationPeriod:      c.HostNotificationPeriod,
			ServiceNotificationPeriod:   c.ServiceNotificationPeriod,
			HostNotificationsEnabled:    boolOr(c.HostNotificationsEnabled, true),
			ServiceNotificationsEnabled: boolOr(c.ServiceNotificationsEnabled, true),
			CanSubmitCommands:           boolOr(c.CanSubmitCommands, true),
			CustomVars:                  upperKeys(c.CustomVariables),
		}
		if err := store.AddContact(contact); err != nil {
			return nil, nil, err
		}
	}
	for _, g := range doc.ContactGroups {
		cg := &ContactGroup{Name: g.Name, Alias: or(g.Alias, g.Name)}
		for _, m := range g.Members {
			c := store.GetContact(m)
			if c == nil {
				return nil, nil, errors.Errorf("contactgroup %s: unknown contact %s", g.Name, m)
			}
			cg.Members = append(cg.Members, c)
		}
		if err := store.AddContactGroup(cg); err != nil {
			return nil, nil, err
		}
	}

	for _, hd := range doc.Hosts {
		h := &Host{Name: hd.Name, Alias: or(hd.Alias, hd.Name), Address: hd.Address}
		if err := hd.checkableDoc.applyHost(h, store); err != nil {
			return nil, nil, errors.Wrapf(err, "host %s", hd.Name)
		}
		if err := store.AddHost(h); err != nil {
			return nil, nil, err
		}
	}
	for _, hd := range doc.Hosts {
		var parents []*Host
		for _, p := range hd.Parents {
			ph := store.GetHost(p)
			if ph == nil {
				return nil, nil, errors.Errorf("host %s: unknown parent %s", hd.Name, p)
			}
			parents = append(parents, ph)
		}
		store.SetParents(store.GetHost(hd.Name), parents)
	}
	for _, g := range doc.HostGroups {
		hg := &HostGroup{Name: g.Name, Alias: or(g.Alias, g.Name), Notes: g.Notes, NotesURL: g.NotesURL, ActionURL: g.ActionURL}
		for _, m := range g.Members {
			h := store.GetHost(m)
			if h == nil {
				return nil, nil, errors.Errorf("hostgroup %s: unknown host %s", g.Name, m)
			}
			hg.Members = append(hg.Members, h)
		}
		if err := store.AddHostGroup(hg); err != nil {
			return nil, nil, err
		}
	}

	for _, sd := range doc.Services {
		h := store.GetHost(sd.Host)
		if h == nil {
			return nil, nil, errors.Errorf("service %s: unknown host %s", sd.Description, sd.Host)
		}
		svc := &Service{Host: h, Description: sd.Description, IsVolatile: sd.IsVolatile}
		if err := sd.checkableDoc.applyService(svc, store); err != nil {
			return nil, nil, errors.Wrapf(err, "service %s;%s", sd.Host, sd.Description)
		}
		if err := store.AddService(svc); err != nil {
			return nil, nil, err
		}
	}
	for _, g := range doc.ServiceGroups {
		sg := &ServiceGroup{Name: g.Name, Alias: or(g.Alias, g.Name), Notes: g.Notes, NotesURL: g.NotesURL, ActionURL: g.ActionURL}
		for _, m := range g.Members {
			hostName, desc, ok := strings.Cut(m, ";")
			svc := store.GetService(hostName, desc)
			if !ok || svc == nil {
				return nil, nil, errors.Errorf("servicegroup %s: unknown service %s", g.Name, m)
			}
			sg.Members = append(sg.Members, svc)
		}
		if err := store.AddServiceGroup(sg); err != nil {
			return nil, nil, err
		}
	}

	for _, cd := range doc.Comments {
		h, svc, err := resolveTarget(store, cd.Host, cd.Service)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "comment %d", cd.ID)
		}
		c := &Comment{
			ID:         cd.ID,
			Type:       HostCommentType,
			EntryType:  or(cd.EntryType, UserCommentEntry),
			Source:     1,
			Persistent: cd.Persistent,
			EntryTime:  unixTime(cd.EntryTime),
			Expires:    cd.Expires,
			ExpireTime: unixTime(cd.ExpireTime),
			Author:     cd.Author,
			Data:       cd.Comment,
			Host:       h,
			Service:    svc,
		}
		if svc != nil {
			c.Type = ServiceCommentType
		}
		store.AddComment(c)
	}
	for _, dd := range doc.Downtimes {
		h, svc, err := resolveTarget(store, dd.Host, dd.Service)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "downtime %d", dd.ID)
		}
		d := &Downtime{
			ID:          dd.ID,
			Type:        HostDowntimeType,
			EntryTime:   unixTime(dd.EntryTime),
			StartTime:   unixTime(dd.StartTime),
			EndTime:     unixTime(dd.EndTime),
			Fixed:       boolOr(dd.Fixed, true),
			TriggeredBy: dd.TriggeredBy,
			Duration:    time.Duration(dd.Duration) * time.Second,
			Author:      dd.Author,
			Comment:     dd.Comment,
			Host:        h,
			Service:     svc,
		}
		if svc != nil {
			d.Type = ServiceDowntimeType
		}
		store.AddDowntime(d, now)
	}
	return store, global, nil
}

func (p programDoc) global(now time.Time) *GlobalState {
	g := &GlobalState{
		Version:                    or(p.Version, "livestatus"),
		PID:                        or(p.PID, os.Getpid()),
		ProgramStart:               unixTime(p.ProgramStart),
		IntervalLength:             or(p.IntervalLength, 60),
		EnableNotifications:        boolOr(p.EnableNotifications, true),
		ExecuteServiceChecks:       boolOr(p.ExecuteServiceChecks, true),
		ExecuteHostChecks:          boolOr(p.ExecuteHostChecks, true),
		AcceptPassiveServiceChecks: boolOr(p.AcceptPassiveServiceChecks, true),
		AcceptPassiveHostChecks:    boolOr(p.AcceptPassiveHostChecks, true),
		EnableEventHandlers:        boolOr(p.EnableEventHandlers, true),
		EnableFlapDetection:        boolOr(p.EnableFlapDetection, true),
		ProcessPerformanceData:     boolOr(p.ProcessPerformanceData, false),
	}
	if g.ProgramStart.IsZero() {
		g.ProgramStart = now
	}
	return g
}

func (c *checkableDoc) contactsAndGroups(store *ObjectStore) ([]*Contact, []*ContactGroup, error) {
	var contacts []*Contact
	for _, name := range c.Contacts {
		ct := store.GetContact(name)
		if ct == nil {
			return nil, nil, errors.Errorf("unknown contact %s", name)
		}
		contacts = append(contacts, ct)
	}
	var groups []*ContactGroup
	for _, name := range c.ContactGroups {
		cg := store.GetContactGroup(name)
		if cg == nil {
			return nil, nil, errors.Errorf("unknown contactgroup %s", name)
		}
		groups = append(groups, cg)
	}
	return contacts, groups, nil
}

func (c *checkableDoc) applyHost(h *Host, store *ObjectStore) error {
	contacts, groups, err := c.contactsAndGroups(store)
	if err != nil {
		return err
	}
	*h = Host{
		Name:                 h.Name,
		Alias:                h.Alias,
		Address:              h.Address,
		DisplayName:          or(c.DisplayName, h.Name),
		CheckCommand:         c.CheckCommand,
		CheckPeriod:          c.CheckPeriod,
		NotificationPeriod:   c.NotificationPeriod,
		CheckInterval:        c.CheckInterval,
		RetryInterval:        c.RetryInterval,
		MaxCheckAttempts:     or(c.MaxCheckAttempts, 1),
		ActiveChecksEnabled:  boolOr(c.ActiveChecksEnabled, true),
		PassiveChecksEnabled: boolOr(c.PassiveChecksEnabled, true),
		NotificationsEnabled: boolOr(c.NotificationsEnabled, true),
		Contacts:             contacts,
		ContactGroups:        groups,
		Notes:                c.Notes,
		NotesURL:             c.NotesURL,
		ActionURL:            c.ActionURL,
		IconImage:            c.IconImage,
		CustomVars:           upperKeys(c.CustomVariables),

		CurrentState:        c.State,
		LastState:           c.LastState,
		LastHardState:       c.LastHardState,
		StateType:           intOr(c.StateType, StateTypeHard),
		CurrentAttempt:      or(c.CurrentAttempt, 1),
		HasBeenChecked:      boolOr(c.HasBeenChecked, c.LastCheck != 0),
		IsFlapping:          c.IsFlapping,
		PluginOutput:        c.PluginOutput,
		LongPluginOutput:    c.LongPluginOutput,
		PerfData:            c.PerfData,
		LastCheck:           unixTime(c.LastCheck),
		NextCheck:           unixTime(c.NextCheck),
		LastStateChange:     unixTime(c.LastStateChange),
		LastHardStateChange: unixTime(c.LastHardStateChange),
		LastNotification:    unixTime(c.LastNotification),
		Latency:             c.Latency,
		ExecutionTime:       c.ExecutionTime,
		PercentStateChange:  c.PercentStateChange,
		ProblemAcknowledged: c.Acknowledged,
		AckType:             c.AcknowledgementType,
	}
	return nil
}

func (c *checkableDoc) applyService(svc *Service, store *ObjectStore) error {
	contacts, groups, err := c.contactsAndGroups(store)
	if err != nil {
		return err
	}
	*svc = Service{
		Host:                 svc.Host,
		Description:          svc.Description,
		IsVolatile:           svc.IsVolatile,
		DisplayName:          or(c.DisplayName, svc.Description),
		CheckCommand:         c.CheckCommand,
		CheckPeriod:          c.CheckPeriod,
		NotificationPeriod:   c.NotificationPeriod,
		CheckInterval:        c.CheckInterval,
		RetryInterval:        c.RetryInterval,
		MaxCheckAttempts:     or(c.MaxCheckAttempts, 1),
		ActiveChecksEnabled:  boolOr(c.ActiveChecksEnabled, true),
		PassiveChecksEnabled: boolOr(c.PassiveChecksEnabled, true),
		NotificationsEnabled: boolOr(c.NotificationsEnabled, true),
		Contacts:             contacts,
		ContactGroups:        groups,
		Notes:                c.Notes,
		NotesURL:             c.NotesURL,
		ActionURL:            c.ActionURL,
		IconImage:            c.IconImage,
		CustomVars:           upperKeys(c.CustomVariables),

		CurrentState:        c.State,
		LastState:           c.LastState,
		LastHardState:       c.LastHardState,
		StateType:           intOr(c.StateType, StateTypeHard),
		CurrentAttempt:      or(c.CurrentAttempt, 1),
		HasBeenChecked:      boolOr(c.HasBeenChecked, c.LastCheck != 0),
		IsFlapping:          c.IsFlapping,
		PluginOutput:        c.PluginOutput,
		LongPluginOutput:    c.LongPluginOutput,
		PerfData:            c.PerfData,
		LastCheck:           unixTime(c.LastCheck),
		NextCheck:           unixTime(c.NextCheck),
		LastStateChange:     unixTime(c.LastStateChange),
		LastHardStateChange: unixTime(c.LastHardStateChange),
		LastNotification:    unixTime(c.LastNotification),
		Latency:             c.Latency,
		ExecutionTime:       c.ExecutionTime,
		PercentStateChange:  c.PercentStateChange,
		ProblemAcknowledged: c.Acknowledged,
		AckType:             c.AcknowledgementType,
	}
	return nil
}

func resolveTarget(store *ObjectStore, hostName, desc string) (*Host, *Service, error) {
	h := store.GetHost(hostName)
	if h == nil {
		return nil, nil, errors.Errorf("unknown host %s", hostName)
	}
	if desc == "" {
		return h, nil, nil
	}
	svc := store.GetService(hostName, desc)
	if svc == nil {
		return nil, nil, errors.Errorf("unknown service %s;%s", hostName, desc)
	}
	return h, svc, nil
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

func or[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// upperKeys normalizes custom variable names the way Nagios stores them.
func upperKeys(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToUpper(strings.TrimPrefix(k, "_"))] = v
	}
	return out
}
