package livestatus

import (
	"time"

	"github.com/oceanplexian/livestatus/internal/api"
	"github.com/oceanplexian/livestatus/internal/logcache"
	"github.com/oceanplexian/livestatus/internal/objects"
)

func logTable(core api.MonitoringCore, cache *logcache.Cache) *Table {
	t := newTable("log", "log_")
	off := Offsets{}
	str := func(name, d string, fn func(*logcache.Entry) string) *Column {
		return StringColumn(name, d, off, fn)
	}
	num := func(name, d string, fn func(*logcache.Entry) int64) *Column {
		return IntColumn(name, d, off, fn)
	}
	t.Add(
		TimeColumn("time", "Time of the log event (UNIX timestamp)", off, func(e *logcache.Entry) time.Time { return e.Time }),
		num("lineno", "The number of the line in the log file", func(e *logcache.Entry) int64 { return int64(e.Lineno) }),
		num("class", "The class of the message as integer (0:info, 1:alert, 2:program, 3:notification, 4:passive, 5:command, 6:state, 7:text)", func(e *logcache.Entry) int64 { return int64(e.Class) }),
		str("message", "The complete message line including the timestamp", func(e *logcache.Entry) string { return e.Message }),
		str("type", "The type of the message (text before the colon), the message itself for info messages", func(e *logcache.Entry) string { return e.Type }),
		str("options", "The part of the message after the ':'", func(e *logcache.Entry) string { return e.Options }),
		str("comment", "A comment field used in various message types", func(e *logcache.Entry) string { return e.Comment }),
		str("plugin_output", "The output of the check, if any is associated with the message", func(e *logcache.Entry) string { return e.PluginOutput }),
		str("long_plugin_output", "The complete output of the check, if any is associated with the message", func(e *logcache.Entry) string { return e.LongPluginOutput }),
		num("state", "The state of the host or service in question", func(e *logcache.Entry) int64 { return int64(e.State) }),
		str("state_type", "The type of the state (varies on different log classes)", func(e *logcache.Entry) string { return e.StateType }),
		str("state_info", "Additional information about the state", func(e *logcache.Entry) string { return e.StateInfo }),
		num("attempt", "The number of the check attempt", func(e *logcache.Entry) int64 { return int64(e.Attempt) }),
		str("host_name", "The name of the host the message is about (might be empty)", func(e *logcache.Entry) string { return e.HostName }),
		str("service_description", "The description of the service log entry is about (might be empty)", func(e *logcache.Entry) string { return e.ServiceDescription }),
		str("contact_name", "The name of the contact the log entry is about (might be empty)", func(e *logcache.Entry) string { return e.ContactName }),
		str("command_name", "The name of the command of the log entry (e.g. for notifications)", func(e *logcache.Entry) string { return e.CommandName }),
	)
	addHostColumns(t, "current_host_", "Host: ", off.Add(Hop(func(e *logcache.Entry) *objects.Host {
		if e.HostName == "" {
			return nil
		}
		return core.FindHost(e.HostName)
	})), core)
	addServiceColumns(t, "current_service_", "Service: ", off.Add(Hop(func(e *logcache.Entry) *objects.Service {
		if e.ServiceDescription == "" {
			return nil
		}
		return core.FindService(e.HostName, e.ServiceDescription)
	})), core)
	addContactColumns(t, "current_contact_", "Contact: ", off.Add(Hop(func(e *logcache.Entry) *objects.Contact {
		if e.ContactName == "" {
			return nil
		}
		return core.FindContact(e.ContactName)
	})))

	t.rows = func(q *Query, fn func(Row) bool) {
		since, until := q.timeBounds("time")
		classes := q.valueSet("class", logcache.AllClasses)
		cache.ForEach(logcache.Filter{Since: since, Until: until, Classes: classes}, func(e *logcache.Entry) bool {
			return fn(e)
		})
	}
	// Entries for unknown hosts are visible, the others follow the object.
	t.authorized = func(r Row, user api.User) bool {
		e, _ := r.(*logcache.Entry)
		if e == nil || e.HostName == "" {
			return true
		}
		h := core.FindHost(e.HostName)
		if h == nil {
			return true
		}
		var s *objects.Service
		if e.ServiceDescription != "" {
			if s = core.FindService(e.HostName, e.ServiceDescription); s == nil {
				return true
			}
		}
		return authorizedFor(user, h, s)
	}
	return t
}
