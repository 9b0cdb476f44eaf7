// Package api defines the boundary between the livestatus query engine and
// the monitoring core whose state it serves.
package api

import (
	"time"

	"github.com/oceanplexian/livestatus/internal/extcmd"
	"github.com/oceanplexian/livestatus/internal/objects"
)

// MonitoringCore gives the livestatus engine read access to the runtime
// state of a monitoring core. The object accessors must only be called while
// the read lock is held. The slices they return are owned by the core.
type MonitoringCore interface {
	RLock()
	RUnlock()

	Hosts() []*objects.Host
	Services() []*objects.Service
	HostGroups() []*objects.HostGroup
	ServiceGroups() []*objects.ServiceGroup
	Contacts() []*objects.Contact
	ContactGroups() []*objects.ContactGroup
	Commands() []*objects.Command
	Timeperiods() []*objects.Timeperiod
	Comments() []*objects.Comment
	Downtimes() []*objects.Downtime

	FindHost(name string) *objects.Host
	FindService(hostName, description string) *objects.Service
	FindContact(name string) *objects.Contact
	FindHostGroup(name string) *objects.HostGroup
	FindServiceGroup(name string) *objects.ServiceGroup

	// Program returns the process-wide state reported by the status table.
	Program() *objects.GlobalState

	// The methods below may be called without holding the read lock.

	// HistoryFile is the path of the currently written history log.
	HistoryFile() string
	// LogArchivePath is the directory holding rotated history logs.
	LogArchivePath() string
	// LastLogRotation is the time of the most recent history rotation.
	LastLogRotation() time.Time
	// RotateLog rotates the history log.
	RotateLog() error
	// SubmitCommand hands an external command to the core.
	SubmitCommand(cmd *extcmd.Command) error
	// Triggers is notified by the core whenever its state changes.
	Triggers() *Triggers
}
