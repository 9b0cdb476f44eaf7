package livestatus

import (
	"strings"
	"time"

	"github.com/oceanplexian/livestatus/internal/api"
	"github.com/oceanplexian/livestatus/internal/objects"
)

func servicesTable(core api.MonitoringCore) *Table {
	t := newTable("services", "service_")
	addServiceColumns(t, "", "", Offsets{}, core)
	addHostColumns(t, "host_", "Host: ", Offsets{}.Add(Hop(func(s *objects.Service) *objects.Host { return s.Host })), core)
	t.rows = func(_ *Query, fn func(Row) bool) { eachRow(core.Services(), fn) }
	t.authorized = func(r Row, user api.User) bool {
		s, _ := r.(*objects.Service)
		return user.IsAuthorizedForService(s)
	}
	t.get = func(key string) Row {
		if s := findServiceByKey(core, key); s != nil {
			return s
		}
		return nil
	}
	return t
}

// findServiceByKey resolves "host;description" or "host description".
func findServiceByKey(core api.MonitoringCore, key string) *objects.Service {
	host, desc, ok := strings.Cut(key, ";")
	if !ok {
		host, desc, _ = strings.Cut(key, " ")
	}
	return core.FindService(host, desc)
}

func addServiceColumns(t *Table, prefix, desc string, off Offsets, core api.MonitoringCore) {
	str := func(name, d string, fn func(*objects.Service) string) *Column {
		return StringColumn(prefix+name, desc+d, off, fn)
	}
	num := func(name, d string, fn func(*objects.Service) int64) *Column {
		return IntColumn(prefix+name, desc+d, off, fn)
	}
	flag := func(name, d string, fn func(*objects.Service) bool) *Column {
		return BoolColumn(prefix+name, desc+d, off, fn)
	}
	tm := func(name, d string, fn func(*objects.Service) time.Time) *Column {
		return TimeColumn(prefix+name, desc+d, off, fn)
	}
	dbl := func(name, d string, fn func(*objects.Service) float64) *Column {
		return DoubleColumn(prefix+name, desc+d, off, fn)
	}
	list := func(name, d string, fn func(*objects.Service) []string) *Column {
		return ListColumn(prefix+name, desc+d, off, fn)
	}

	t.Add(
		str("description", "Service description", func(s *objects.Service) string { return s.Description }),
		str("display_name", "An optional display name", func(s *objects.Service) string {
			if s.DisplayName != "" {
				return s.DisplayName
			}
			return s.Description
		}),
		str("check_command", "Logical command name for active checks", func(s *objects.Service) string { return s.CheckCommand }),
		str("check_period", "The name of the check period of the service", func(s *objects.Service) string { return s.CheckPeriod }),
		str("notification_period", "The name of the notification period of the service", func(s *objects.Service) string { return s.NotificationPeriod }),
		str("notes", "Optional notes about the service", func(s *objects.Service) string { return s.Notes }),
		str("notes_url", "An optional URL for additional notes about the service", func(s *objects.Service) string { return s.NotesURL }),
		str("action_url", "An optional URL for actions or custom information about the service", func(s *objects.Service) string { return s.ActionURL }),
		str("icon_image", "The name of an image to be used as icon in the web interface", func(s *objects.Service) string { return s.IconImage }),
		str("plugin_output", "Output of the last check plugin", func(s *objects.Service) string { return s.PluginOutput }),
		str("long_plugin_output", "Unabbreviated output of the last check plugin", func(s *objects.Service) string { return s.LongPluginOutput }),
		str("perf_data", "Performance data of the last check plugin", func(s *objects.Service) string { return s.PerfData }),

		num("state", "The current state of the service (0: OK, 1: WARN, 2: CRITICAL, 3: UNKNOWN)", func(s *objects.Service) int64 { return int64(s.CurrentState) }),
		num("state_type", "The type of the current state (0: soft, 1: hard)", func(s *objects.Service) int64 { return int64(s.StateType) }),
		num("last_state", "The last state of the service", func(s *objects.Service) int64 { return int64(s.LastState) }),
		num("last_hard_state", "The last hard state of the service", func(s *objects.Service) int64 { return int64(s.LastHardState) }),
		flag("has_been_checked", "Whether the service already has been checked (0/1)", func(s *objects.Service) bool { return s.HasBeenChecked }),
		num("current_attempt", "The number of the current check attempt", func(s *objects.Service) int64 { return int64(s.CurrentAttempt) }),
		num("max_check_attempts", "The maximum number of check attempts", func(s *objects.Service) int64 { return int64(s.MaxCheckAttempts) }),
		num("current_notification_number", "The number of the current notification", func(s *objects.Service) int64 { return int64(s.CurrentNotificationNumber) }),
		flag("notifications_enabled", "Whether notifications are enabled for the service (0/1)", func(s *objects.Service) bool { return s.NotificationsEnabled }),
		flag("active_checks_enabled", "Whether active checks are enabled for the service (0/1)", func(s *objects.Service) bool { return s.ActiveChecksEnabled }),
		flag("accept_passive_checks", "Whether the service accepts passive checks (0/1)", func(s *objects.Service) bool { return s.PassiveChecksEnabled }),
		flag("is_flapping", "Whether the service is flapping (0/1)", func(s *objects.Service) bool { return s.IsFlapping }),
		flag("is_volatile", "Whether the service is considered volatile (0/1)", func(s *objects.Service) bool { return s.IsVolatile }),
		flag("acknowledged", "Whether the current service problem has been acknowledged (0/1)", func(s *objects.Service) bool { return s.ProblemAcknowledged }),
		num("acknowledgement_type", "The type of the acknowledgement (0: none, 1: normal, 2: sticky)", func(s *objects.Service) int64 { return int64(s.AckType) }),
		num("scheduled_downtime_depth", "The number of scheduled downtimes the service is currently in", func(s *objects.Service) int64 { return int64(s.ScheduledDowntimeDepth) }),

		tm("last_check", "The time of the last check (Unix timestamp)", func(s *objects.Service) time.Time { return s.LastCheck }),
		tm("next_check", "The scheduled time of the next check (Unix timestamp)", func(s *objects.Service) time.Time { return s.NextCheck }),
		tm("last_state_change", "The time of the last state change (Unix timestamp)", func(s *objects.Service) time.Time { return s.LastStateChange }),
		tm("last_hard_state_change", "The time of the last hard state change (Unix timestamp)", func(s *objects.Service) time.Time { return s.LastHardStateChange }),
		tm("last_notification", "The time of the last notification (Unix timestamp)", func(s *objects.Service) time.Time { return s.LastNotification }),

		dbl("latency", "Time difference between scheduled check time and actual check time", func(s *objects.Service) float64 { return s.Latency }),
		dbl("execution_time", "Time the service check needed for execution", func(s *objects.Service) float64 { return s.ExecutionTime }),
		dbl("percent_state_change", "Percent state change", func(s *objects.Service) float64 { return s.PercentStateChange }),
		dbl("check_interval", "Number of basic interval lengths between two scheduled checks of the service", func(s *objects.Service) float64 { return s.CheckInterval }),
		dbl("retry_interval", "Number of basic interval lengths between checks when retrying after a soft error", func(s *objects.Service) float64 { return s.RetryInterval }),

		list("contacts", "A list of all contacts of the service, either direct or via a contact group", func(s *objects.Service) []string {
			return contactNames(s.Contacts, s.ContactGroups)
		}),
		list("contact_groups", "A list of all contact groups this service is in", func(s *objects.Service) []string {
			return names(s.ContactGroups, func(g *objects.ContactGroup) string { return g.Name })
		}),
		list("groups", "A list of all service groups the service is in", func(s *objects.Service) []string {
			return names(s.ServiceGroups, func(g *objects.ServiceGroup) string { return g.Name })
		}),
		list("custom_variable_names", "A list of the names of the custom variables of the service", func(s *objects.Service) []string { return sortedKeys(s.CustomVars) }),
		list("custom_variable_values", "A list of the values of the custom variables of the service", func(s *objects.Service) []string { return sortedValues(s.CustomVars) }),
		DictColumn(prefix+"custom_variables", desc+"A dictionary of the custom variables", off, func(s *objects.Service) map[string]string { return s.CustomVars }),

		IntListColumn(prefix+"comments", desc+"A list of all comment ids of the service", off, func(s *objects.Service) []int64 {
			var ids []int64
			for _, c := range core.Comments() {
				if c.Service == s {
					ids = append(ids, int64(c.ID))
				}
			}
			return ids
		}),
		IntListColumn(prefix+"downtimes", desc+"A list of all downtime ids of the service", off, func(s *objects.Service) []int64 {
			var ids []int64
			for _, d := range core.Downtimes() {
				if d.Service == s {
					ids = append(ids, int64(d.ID))
				}
			}
			return ids
		}),
	)
}
