package livestatus

import (
	"sort"
	"time"

	"github.com/oceanplexian/livestatus/internal/api"
	"github.com/oceanplexian/livestatus/internal/objects"
)

func hostsTable(core api.MonitoringCore) *Table {
	t := newTable("hosts", "host_")
	addHostColumns(t, "", "", Offsets{}, core)
	t.rows = func(_ *Query, fn func(Row) bool) { eachRow(core.Hosts(), fn) }
	t.authorized = func(r Row, user api.User) bool {
		h, _ := r.(*objects.Host)
		return user.IsAuthorizedForHost(h)
	}
	t.get = func(key string) Row {
		if h := core.FindHost(key); h != nil {
			return h
		}
		return nil
	}
	return t
}

// addHostColumns adds the host attributes reached through off. Tables
// joining hosts pass a prefix like "host_" and a description prefix.
func addHostColumns(t *Table, prefix, desc string, off Offsets, core api.MonitoringCore) {
	str := func(name, d string, fn func(*objects.Host) string) *Column {
		return StringColumn(prefix+name, desc+d, off, fn)
	}
	num := func(name, d string, fn func(*objects.Host) int64) *Column {
		return IntColumn(prefix+name, desc+d, off, fn)
	}
	flag := func(name, d string, fn func(*objects.Host) bool) *Column {
		return BoolColumn(prefix+name, desc+d, off, fn)
	}
	tm := func(name, d string, fn func(*objects.Host) time.Time) *Column {
		return TimeColumn(prefix+name, desc+d, off, fn)
	}
	dbl := func(name, d string, fn func(*objects.Host) float64) *Column {
		return DoubleColumn(prefix+name, desc+d, off, fn)
	}
	list := func(name, d string, fn func(*objects.Host) []string) *Column {
		return ListColumn(prefix+name, desc+d, off, fn)
	}

	t.Add(
		str("name", "Host name", func(h *objects.Host) string { return h.Name }),
		str("display_name", "Optional display name", func(h *objects.Host) string {
			if h.DisplayName != "" {
				return h.DisplayName
			}
			return h.Name
		}),
		str("alias", "An alias name for the host", func(h *objects.Host) string { return h.Alias }),
		str("address", "IP address", func(h *objects.Host) string { return h.Address }),
		str("check_command", "Logical command name for active checks", func(h *objects.Host) string { return h.CheckCommand }),
		str("check_period", "Time period in which this host will be checked", func(h *objects.Host) string { return h.CheckPeriod }),
		str("notification_period", "Time period in which problems of this host will be notified", func(h *objects.Host) string { return h.NotificationPeriod }),
		str("notes", "Optional notes for this host", func(h *objects.Host) string { return h.Notes }),
		str("notes_url", "An optional URL with further information about the host", func(h *objects.Host) string { return h.NotesURL }),
		str("action_url", "An optional URL to custom actions or information about this host", func(h *objects.Host) string { return h.ActionURL }),
		str("icon_image", "The name of an image file to be used in the web pages", func(h *objects.Host) string { return h.IconImage }),
		str("plugin_output", "Output of the last host check", func(h *objects.Host) string { return h.PluginOutput }),
		str("long_plugin_output", "Complete output from check plugin", func(h *objects.Host) string { return h.LongPluginOutput }),
		str("perf_data", "Optional performance data of the last host check", func(h *objects.Host) string { return h.PerfData }),

		num("state", "The current state of the host (0: up, 1: down, 2: unreachable)", func(h *objects.Host) int64 { return int64(h.CurrentState) }),
		num("state_type", "Type of the current state (0: soft, 1: hard)", func(h *objects.Host) int64 { return int64(h.StateType) }),
		num("last_state", "State before last state change", func(h *objects.Host) int64 { return int64(h.LastState) }),
		num("last_hard_state", "Last hard state", func(h *objects.Host) int64 { return int64(h.LastHardState) }),
		num("hard_state", "The effective hard state of the host", func(h *objects.Host) int64 {
			if h.StateType == objects.StateTypeHard {
				return int64(h.CurrentState)
			}
			return int64(h.LastHardState)
		}),
		flag("has_been_checked", "Whether the host has already been checked (0/1)", func(h *objects.Host) bool { return h.HasBeenChecked }),
		num("current_attempt", "Number of the current check attempts", func(h *objects.Host) int64 { return int64(h.CurrentAttempt) }),
		num("max_check_attempts", "Max check attempts for active host checks before a hard state", func(h *objects.Host) int64 { return int64(h.MaxCheckAttempts) }),
		num("current_notification_number", "Number of the current notification", func(h *objects.Host) int64 { return int64(h.CurrentNotificationNumber) }),
		flag("notifications_enabled", "Whether notifications of the host are enabled (0/1)", func(h *objects.Host) bool { return h.NotificationsEnabled }),
		flag("active_checks_enabled", "Whether active checks are enabled for the host (0/1)", func(h *objects.Host) bool { return h.ActiveChecksEnabled }),
		flag("accept_passive_checks", "Whether passive host checks are accepted (0/1)", func(h *objects.Host) bool { return h.PassiveChecksEnabled }),
		flag("is_flapping", "Whether the host state is flapping (0/1)", func(h *objects.Host) bool { return h.IsFlapping }),
		flag("acknowledged", "Whether the current host problem has been acknowledged (0/1)", func(h *objects.Host) bool { return h.ProblemAcknowledged }),
		num("acknowledgement_type", "Type of acknowledgement (0: none, 1: normal, 2: sticky)", func(h *objects.Host) int64 { return int64(h.AckType) }),
		num("scheduled_downtime_depth", "The number of downtimes this host is currently in", func(h *objects.Host) int64 { return int64(h.ScheduledDowntimeDepth) }),

		tm("last_check", "Time of the last check (Unix timestamp)", func(h *objects.Host) time.Time { return h.LastCheck }),
		tm("next_check", "Scheduled time for the next check (Unix timestamp)", func(h *objects.Host) time.Time { return h.NextCheck }),
		tm("last_state_change", "Time of the last state change (Unix timestamp)", func(h *objects.Host) time.Time { return h.LastStateChange }),
		tm("last_hard_state_change", "Time of the last hard state change (Unix timestamp)", func(h *objects.Host) time.Time { return h.LastHardStateChange }),
		tm("last_notification", "Time of the last notification (Unix timestamp)", func(h *objects.Host) time.Time { return h.LastNotification }),

		dbl("latency", "Time difference between scheduled check time and actual check time", func(h *objects.Host) float64 { return h.Latency }),
		dbl("execution_time", "Time the host check needed for execution", func(h *objects.Host) float64 { return h.ExecutionTime }),
		dbl("percent_state_change", "Percent state change", func(h *objects.Host) float64 { return h.PercentStateChange }),
		dbl("check_interval", "Number of basic interval lengths between two scheduled checks", func(h *objects.Host) float64 { return h.CheckInterval }),
		dbl("retry_interval", "Number of basic interval lengths between checks when retrying after a soft error", func(h *objects.Host) float64 { return h.RetryInterval }),

		list("contacts", "A list of all contacts of this host, either direct or via a contact group", func(h *objects.Host) []string {
			return contactNames(h.Contacts, h.ContactGroups)
		}),
		list("contact_groups", "A list of all contact groups this host is in", func(h *objects.Host) []string {
			return names(h.ContactGroups, func(g *objects.ContactGroup) string { return g.Name })
		}),
		list("groups", "A list of all host groups this host is in", func(h *objects.Host) []string {
			return names(h.HostGroups, func(g *objects.HostGroup) string { return g.Name })
		}),
		list("parents", "A list of all direct parents of the host", func(h *objects.Host) []string { return hostNames(h.Parents) }),
		list("childs", "A list of all direct childs of the host", func(h *objects.Host) []string { return hostNames(h.Children) }),
		list("services", "A list of all services of the host", func(h *objects.Host) []string {
			return names(h.Services, func(s *objects.Service) string { return s.Description })
		}),
		list("custom_variable_names", "A list of the names of the custom variables", func(h *objects.Host) []string { return sortedKeys(h.CustomVars) }),
		list("custom_variable_values", "A list of the values of the custom variables", func(h *objects.Host) []string { return sortedValues(h.CustomVars) }),
		DictColumn(prefix+"custom_variables", desc+"A dictionary of the custom variables", off, func(h *objects.Host) map[string]string { return h.CustomVars }),

		num("num_services", "The total number of services of the host", func(h *objects.Host) int64 { return int64(len(h.Services)) }),
		num("num_services_ok", "The number of the host's services with the soft state OK", func(h *objects.Host) int64 {
			return countServices(h, checkedInState(objects.ServiceOK))
		}),
		num("num_services_warn", "The number of the host's services with the soft state WARN", func(h *objects.Host) int64 {
			return countServices(h, checkedInState(objects.ServiceWarning))
		}),
		num("num_services_crit", "The number of the host's services with the soft state CRIT", func(h *objects.Host) int64 {
			return countServices(h, checkedInState(objects.ServiceCritical))
		}),
		num("num_services_unknown", "The number of the host's services with the soft state UNKNOWN", func(h *objects.Host) int64 {
			return countServices(h, checkedInState(objects.ServiceUnknown))
		}),
		num("num_services_pending", "The number of the host's services which have not been checked yet (pending)", func(h *objects.Host) int64 {
			return countServices(h, func(s *objects.Service) bool { return !s.HasBeenChecked })
		}),
		num("worst_service_state", "The worst soft state of all of the host's services (OK <= WARN <= UNKNOWN <= CRIT)", func(h *objects.Host) int64 {
			return int64(worstServiceState(h.Services))
		}),

		IntListColumn(prefix+"comments", desc+"A list of the ids of all comments of this host", off, func(h *objects.Host) []int64 {
			var ids []int64
			for _, c := range core.Comments() {
				if c.Host == h && c.Service == nil {
					ids = append(ids, int64(c.ID))
				}
			}
			return ids
		}),
		IntListColumn(prefix+"downtimes", desc+"A list of the ids of all scheduled downtimes of this host", off, func(h *objects.Host) []int64 {
			var ids []int64
			for _, d := range core.Downtimes() {
				if d.Host == h && d.Service == nil {
					ids = append(ids, int64(d.ID))
				}
			}
			return ids
		}),
	)
}

func names[T any](items []*T, name func(*T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, name(it))
	}
	return out
}

func hostNames(hosts []*objects.Host) []string {
	return names(hosts, func(h *objects.Host) string { return h.Name })
}

// contactNames merges direct contacts and contact group members, sorted
// and without duplicates.
func contactNames(contacts []*objects.Contact, groups []*objects.ContactGroup) []string {
	seen := make(map[string]struct{})
	for _, c := range contacts {
		seen[c.Name] = struct{}{}
	}
	for _, g := range groups {
		for _, c := range g.Members {
			seen[c.Name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func sortedValues(m map[string]string) []string {
	keys := sortedKeys(m)
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = m[k]
	}
	return vals
}

func checkedInState(state int) func(*objects.Service) bool {
	return func(s *objects.Service) bool { return s.HasBeenChecked && s.CurrentState == state }
}

func countServices(h *objects.Host, pred func(*objects.Service) bool) int64 {
	var n int64
	for _, s := range h.Services {
		if pred(s) {
			n++
		}
	}
	return n
}

// serviceSeverity orders service states with CRIT worse than UNKNOWN.
func serviceSeverity(state int) int {
	switch state {
	case objects.ServiceOK:
		return 0
	case objects.ServiceWarning:
		return 1
	case objects.ServiceUnknown:
		return 2
	}
	return 3
}

func worstServiceState(services []*objects.Service) int {
	worst := objects.ServiceOK
	for _, s := range services {
		if serviceSeverity(s.CurrentState) > serviceSeverity(worst) {
			worst = s.CurrentState
		}
	}
	return worst
}
