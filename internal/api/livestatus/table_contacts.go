package livestatus

import (
	"github.com/oceanplexian/livestatus/internal/api"
	"github.com/oceanplexian/livestatus/internal/objects"
)

func contactsTable(core api.MonitoringCore) *Table {
	t := newTable("contacts", "contact_")
	addContactColumns(t, "", "", Offsets{})
	t.rows = func(_ *Query, fn func(Row) bool) { eachRow(core.Contacts(), fn) }
	t.get = func(key string) Row {
		if c := core.FindContact(key); c != nil {
			return c
		}
		return nil
	}
	return t
}

func addContactColumns(t *Table, prefix, desc string, off Offsets) {
	str := func(name, d string, fn func(*objects.Contact) string) *Column {
		return StringColumn(prefix+name, desc+d, off, fn)
	}
	flag := func(name, d string, fn func(*objects.Contact) bool) *Column {
		return BoolColumn(prefix+name, desc+d, off, fn)
	}
	t.Add(
		str("name", "The login name of the contact person", func(c *objects.Contact) string { return c.Name }),
		str("alias", "The full name of the contact", func(c *objects.Contact) string { return c.Alias }),
		str("email", "The email address of the contact", func(c *objects.Contact) string { return c.Email }),
		str("pager", "The pager address of the contact", func(c *objects.Contact) string { return c.Pager }),
		str("host_notification_period", "The time period in which the contact will be notified about host problems", func(c *objects.Contact) string { return c.HostNotificationPeriod }),
		str("service_notification_period", "The time period in which the contact will be notified about service problems", func(c *objects.Contact) string { return c.ServiceNotificationPeriod }),
		flag("host_notifications_enabled", "Whether the contact will be notified about host problems in general (0/1)", func(c *objects.Contact) bool { return c.HostNotificationsEnabled }),
		flag("service_notifications_enabled", "Whether the contact will be notified about service problems in general (0/1)", func(c *objects.Contact) bool { return c.ServiceNotificationsEnabled }),
		flag("can_submit_commands", "Whether the contact is allowed to submit commands (0/1)", func(c *objects.Contact) bool { return c.CanSubmitCommands }),
		ListColumn(prefix+"groups", desc+"A list of all contact groups this contact is in", off, func(c *objects.Contact) []string {
			return names(c.ContactGroups, func(g *objects.ContactGroup) string { return g.Name })
		}),
		ListColumn(prefix+"custom_variable_names", desc+"A list of all custom variables of the contact", off, func(c *objects.Contact) []string { return sortedKeys(c.CustomVars) }),
		ListColumn(prefix+"custom_variable_values", desc+"A list of the values of all custom variables of the contact", off, func(c *objects.Contact) []string { return sortedValues(c.CustomVars) }),
		DictColumn(prefix+"custom_variables", desc+"A dictionary of the custom variables", off, func(c *objects.Contact) map[string]string { return c.CustomVars }),
	)
}

func contactgroupsTable(core api.MonitoringCore) *Table {
	t := newTable("contactgroups", "contactgroup_")
	t.Add(
		StringColumn("name", "The name of the contactgroup", Offsets{}, func(g *objects.ContactGroup) string { return g.Name }),
		StringColumn("alias", "The alias of the contactgroup", Offsets{}, func(g *objects.ContactGroup) string { return g.Alias }),
		ListColumn("members", "A list of all members of this contactgroup", Offsets{}, func(g *objects.ContactGroup) []string {
			return names(g.Members, func(c *objects.Contact) string { return c.Name })
		}),
	)
	t.rows = func(_ *Query, fn func(Row) bool) { eachRow(core.ContactGroups(), fn) }
	return t
}

func commandsTable(core api.MonitoringCore) *Table {
	t := newTable("commands", "command_")
	t.Add(
		StringColumn("name", "The name of the command", Offsets{}, func(c *objects.Command) string { return c.Name }),
		StringColumn("line", "The shell command line", Offsets{}, func(c *objects.Command) string { return c.CommandLine }),
	)
	t.rows = func(_ *Query, fn func(Row) bool) { eachRow(core.Commands(), fn) }
	return t
}

func timeperiodsTable(core api.MonitoringCore) *Table {
	t := newTable("timeperiods", "timeperiod_")
	t.Add(
		StringColumn("name", "The name of the timeperiod", Offsets{}, func(p *objects.Timeperiod) string { return p.Name }),
		StringColumn("alias", "The alias of the timeperiod", Offsets{}, func(p *objects.Timeperiod) string { return p.Alias }),
	)
	t.rows = func(_ *Query, fn func(Row) bool) { eachRow(core.Timeperiods(), fn) }
	return t
}
