package objects

import "time"

// State constants
const (
	HostUp          = 0
	HostDown        = 1
	HostUnreachable = 2

	ServiceOK       = 0
	ServiceWarning  = 1
	ServiceCritical = 2
	ServiceUnknown  = 3

	StateTypeSoft = 0
	StateTypeHard = 1

	AckNone   = 0
	AckNormal = 1
	AckSticky = 2
)

// Comment entry types
const (
	UserCommentEntry            = 1
	DowntimeCommentEntry        = 2
	FlappingCommentEntry        = 3
	AcknowledgementCommentEntry = 4
)

// Comment types
const (
	HostCommentType    = 1
	ServiceCommentType = 2
)

// Downtime types
const (
	HostDowntimeType    = 1
	ServiceDowntimeType = 2
)

type Command struct {
	Name        string
	CommandLine string
}

type Timeperiod struct {
	Name  string
	Alias string
}

type Contact struct {
	Name                        string
	Alias                       string
	Email                       string
	Pager                       string
	HostNotificationPeriod      string
	ServiceNotificationPeriod   string
	HostNotificationsEnabled    bool
	ServiceNotificationsEnabled bool
	CanSubmitCommands           bool
	ContactGroups               []*ContactGroup
	CustomVars                  map[string]string
}

type ContactGroup struct {
	Name    string
	Alias   string
	Members []*Contact
}

// GlobalState holds the process-wide switches reported by the status table.
type GlobalState struct {
	EnableNotifications        bool
	ExecuteServiceChecks       bool
	ExecuteHostChecks          bool
	AcceptPassiveServiceChecks bool
	AcceptPassiveHostChecks    bool
	EnableEventHandlers        bool
	EnableFlapDetection        bool
	ProcessPerformanceData     bool
	CheckServiceFreshness      bool
	CheckHostFreshness         bool
	ObsessOverServices         bool
	ObsessOverHosts            bool
	ProgramStart               time.Time
	LastCommandCheck           time.Time
	PID                        int
	IntervalLength             int
	Version                    string
}

type Host struct {
	// Config
	Name                 string
	DisplayName          string
	Alias                string
	Address              string
	Parents              []*Host
	Children             []*Host
	HostGroups           []*HostGroup
	Services             []*Service
	CheckCommand         string
	CheckPeriod          string
	NotificationPeriod   string
	CheckInterval        float64
	RetryInterval        float64
	MaxCheckAttempts     int
	ActiveChecksEnabled  bool
	PassiveChecksEnabled bool
	NotificationsEnabled bool
	ContactGroups        []*ContactGroup
	Contacts             []*Contact
	Notes                string
	NotesURL             string
	ActionURL            string
	IconImage            string
	CustomVars           map[string]string

	// Runtime state
	CurrentState              int
	LastState                 int
	LastHardState             int
	StateType                 int
	CurrentAttempt            int
	HasBeenChecked            bool
	IsFlapping                bool
	PluginOutput              string
	LongPluginOutput          string
	PerfData                  string
	LastCheck                 time.Time
	NextCheck                 time.Time
	LastStateChange           time.Time
	LastHardStateChange       time.Time
	LastNotification          time.Time
	Latency                   float64
	ExecutionTime             float64
	PercentStateChange        float64
	CurrentNotificationNumber int
	ProblemAcknowledged       bool
	AckType                   int
	ScheduledDowntimeDepth    int
}

type HostGroup struct {
	Name      string
	Alias     string
	Members   []*Host
	Notes     string
	NotesURL  string
	ActionURL string
}

type Service struct {
	// Config
	Host                 *Host
	Description          string
	DisplayName          string
	ServiceGroups        []*ServiceGroup
	CheckCommand         string
	CheckPeriod          string
	NotificationPeriod   string
	CheckInterval        float64
	RetryInterval        float64
	MaxCheckAttempts     int
	ActiveChecksEnabled  bool
	PassiveChecksEnabled bool
	NotificationsEnabled bool
	IsVolatile           bool
	ContactGroups        []*ContactGroup
	Contacts             []*Contact
	Notes                string
	NotesURL             string
	ActionURL            string
	IconImage            string
	CustomVars           map[string]string

	// Runtime state
	CurrentState              int
	LastState                 int
	LastHardState             int
	StateType                 int
	CurrentAttempt            int
	HasBeenChecked            bool
	IsFlapping                bool
	PluginOutput              string
	LongPluginOutput          string
	PerfData                  string
	LastCheck                 time.Time
	NextCheck                 time.Time
	LastStateChange           time.Time
	LastHardStateChange       time.Time
	LastNotification          time.Time
	Latency                   float64
	ExecutionTime             float64
	PercentStateChange        float64
	CurrentNotificationNumber int
	ProblemAcknowledged       bool
	AckType                   int
	ScheduledDowntimeDepth    int
}

type ServiceGroup struct {
	Name      string
	Alias     string
	Members   []*Service
	Notes     string
	NotesURL  string
	ActionURL string
}

// Comment is a host or service comment. Service is nil for host comments.
type Comment struct {
	ID         uint64
	Type       int // HostCommentType or ServiceCommentType
	EntryType  int // UserCommentEntry, DowntimeCommentEntry, ...
	Source     int // 0=internal, 1=external
	Persistent bool
	EntryTime  time.Time
	Expires    bool
	ExpireTime time.Time
	Author     string
	Data       string
	Host       *Host
	Service    *Service
}

// Downtime is a scheduled downtime. Service is nil for host downtimes.
type Downtime struct {
	ID          uint64
	Type        int // HostDowntimeType or ServiceDowntimeType
	EntryTime   time.Time
	StartTime   time.Time
	EndTime     time.Time
	Fixed       bool
	TriggeredBy uint64
	Duration    time.Duration
	Author      string
	Comment     string
	CommentID   uint64
	Host        *Host
	Service     *Service

	// Active is set while the downtime counts toward the object's depth.
	Active bool
}

// InEffect reports whether now lies inside the downtime window.
func (d *Downtime) InEffect(now time.Time) bool {
	return !now.Before(d.StartTime) && now.Before(d.EndTime)
}

// HostStateName returns the Nagios name of a host state.
func HostStateName(state int) string {
	switch state {
	case HostUp:
		return "UP"
	case HostDown:
		return "DOWN"
	case HostUnreachable:
		return "UNREACHABLE"
	}
	return "UNKNOWN"
}

// ServiceStateName returns the Nagios name of a service state.
func ServiceStateName(state int) string {
	switch state {
	case ServiceOK:
		return "OK"
	case ServiceWarning:
		return "WARNING"
	case ServiceCritical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

func StateTypeName(st int) string {
	if st == StateTypeHard {
		return "HARD"
	}
	return "SOFT"
}
