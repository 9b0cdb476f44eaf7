package livestatus

import (
	"github.com/oceanplexian/livestatus/internal/api"
	"github.com/oceanplexian/livestatus/internal/objects"
)

func hostgroupsTable(core api.MonitoringCore) *Table {
	t := newTable("hostgroups", "hostgroup_")
	addHostGroupColumns(t, "", "", Offsets{})
	t.rows = func(_ *Query, fn func(Row) bool) { eachRow(core.HostGroups(), fn) }
	t.authorized = func(r Row, user api.User) bool {
		g, _ := r.(*objects.HostGroup)
		return user.IsAuthorizedForHostGroup(g)
	}
	t.get = func(key string) Row {
		if g := core.FindHostGroup(key); g != nil {
			return g
		}
		return nil
	}
	return t
}

func addHostGroupColumns(t *Table, prefix, desc string, off Offsets) {
	str := func(name, d string, fn func(*objects.HostGroup) string) *Column {
		return StringColumn(prefix+name, desc+d, off, fn)
	}
	hosts := func(name, d string, pred func(*objects.Host) bool) *Column {
		return IntColumn(prefix+name, desc+d, off, func(g *objects.HostGroup) int64 {
			var n int64
			for _, h := range g.Members {
				if pred(h) {
					n++
				}
			}
			return n
		})
	}
	services := func(name, d string, pred func(*objects.Service) bool) *Column {
		return IntColumn(prefix+name, desc+d, off, func(g *objects.HostGroup) int64 {
			var n int64
			for _, h := range g.Members {
				n += countServices(h, pred)
			}
			return n
		})
	}
	hostState := func(state int) func(*objects.Host) bool {
		return func(h *objects.Host) bool { return h.HasBeenChecked && h.CurrentState == state }
	}
	all := func(*objects.Service) bool { return true }

	t.Add(
		str("name", "Name of the hostgroup", func(g *objects.HostGroup) string { return g.Name }),
		str("alias", "An alias of the hostgroup", func(g *objects.HostGroup) string { return g.Alias }),
		str("notes", "Optional notes to the hostgroup", func(g *objects.HostGroup) string { return g.Notes }),
		str("notes_url", "An optional URL with further information about the hostgroup", func(g *objects.HostGroup) string { return g.NotesURL }),
		str("action_url", "An optional URL to custom actions or information about the hostgroup", func(g *objects.HostGroup) string { return g.ActionURL }),
		ListColumn(prefix+"members", desc+"A list of all host names that are members of the hostgroup", off, func(g *objects.HostGroup) []string {
			return hostNames(g.Members)
		}),
		hosts("num_hosts", "The total number of hosts in the group", func(*objects.Host) bool { return true }),
		hosts("num_hosts_up", "The number of hosts in the group that are up", hostState(objects.HostUp)),
		hosts("num_hosts_down", "The number of hosts in the group that are down", hostState(objects.HostDown)),
		hosts("num_hosts_unreach", "The number of hosts in the group that are unreachable", hostState(objects.HostUnreachable)),
		hosts("num_hosts_pending", "The number of hosts in the group that are pending", func(h *objects.Host) bool { return !h.HasBeenChecked }),
		IntColumn(prefix+"worst_host_state", desc+"The worst state of all of the groups' hosts (UP <= UNREACHABLE <= DOWN)", off, func(g *objects.HostGroup) int64 {
			return int64(worstHostState(g.Members))
		}),
		services("num_services", "The total number of services of hosts in this group", all),
		services("num_services_ok", "The total number of services with the state OK of hosts in this group", checkedInState(objects.ServiceOK)),
		services("num_services_warn", "The total number of services with the state WARN of hosts in this group", checkedInState(objects.ServiceWarning)),
		services("num_services_crit", "The total number of services with the state CRIT of hosts in this group", checkedInState(objects.ServiceCritical)),
		services("num_services_unknown", "The total number of services with the state UNKNOWN of hosts in this group", checkedInState(objects.ServiceUnknown)),
		services("num_services_pending", "The total number of services with the state Pending of hosts in this group", func(s *objects.Service) bool { return !s.HasBeenChecked }),
		IntColumn(prefix+"worst_service_state", desc+"The worst state of all services that belong to a host of this group (OK <= WARN <= UNKNOWN <= CRIT)", off, func(g *objects.HostGroup) int64 {
			worst := objects.ServiceOK
			for _, h := range g.Members {
				if w := worstServiceState(h.Services); serviceSeverity(w) > serviceSeverity(worst) {
					worst = w
				}
			}
			return int64(worst)
		}),
	)
}

// hostSeverity orders host states with DOWN worse than UNREACHABLE.
func hostSeverity(state int) int {
	switch state {
	case objects.HostUp:
		return 0
	case objects.HostUnreachable:
		return 1
	}
	return 2
}

func worstHostState(hosts []*objects.Host) int {
	worst := objects.HostUp
	for _, h := range hosts {
		if hostSeverity(h.CurrentState) > hostSeverity(worst) {
			worst = h.CurrentState
		}
	}
	return worst
}

func servicegroupsTable(core api.MonitoringCore) *Table {
	t := newTable("servicegroups", "servicegroup_")
	addServiceGroupColumns(t, "", "", Offsets{}, DefaultSeparators.HostService)
	t.rows = func(_ *Query, fn func(Row) bool) { eachRow(core.ServiceGroups(), fn) }
	t.authorized = func(r Row, user api.User) bool {
		g, _ := r.(*objects.ServiceGroup)
		return user.IsAuthorizedForServiceGroup(g)
	}
	t.get = func(key string) Row {
		if g := core.FindServiceGroup(key); g != nil {
			return g
		}
		return nil
	}
	return t
}

// addServiceGroupColumns adds servicegroup columns. Members render as
// "host<sep>description".
func addServiceGroupColumns(t *Table, prefix, desc string, off Offsets, sep byte) {
	str := func(name, d string, fn func(*objects.ServiceGroup) string) *Column {
		return StringColumn(prefix+name, desc+d, off, fn)
	}
	services := func(name, d string, pred func(*objects.Service) bool) *Column {
		return IntColumn(prefix+name, desc+d, off, func(g *objects.ServiceGroup) int64 {
			var n int64
			for _, s := range g.Members {
				if pred(s) {
					n++
				}
			}
			return n
		})
	}

	t.Add(
		str("name", "The name of the service group", func(g *objects.ServiceGroup) string { return g.Name }),
		str("alias", "An alias of the service group", func(g *objects.ServiceGroup) string { return g.Alias }),
		str("notes", "Optional additional notes about the service group", func(g *objects.ServiceGroup) string { return g.Notes }),
		str("notes_url", "An optional URL to further notes on the service group", func(g *objects.ServiceGroup) string { return g.NotesURL }),
		str("action_url", "An optional URL to custom notes or actions on the service group", func(g *objects.ServiceGroup) string { return g.ActionURL }),
		ListColumn(prefix+"members", desc+"A list of all members of the service group as host/service pairs", off, func(g *objects.ServiceGroup) []string {
			return names(g.Members, func(s *objects.Service) string {
				if s.Host == nil {
					return string(sep) + s.Description
				}
				return s.Host.Name + string(sep) + s.Description
			})
		}),
		services("num_services", "The total number of services in the group", func(*objects.Service) bool { return true }),
		services("num_services_ok", "The number of services in the group that are OK", checkedInState(objects.ServiceOK)),
		services("num_services_warn", "The number of services in the group that are WARN", checkedInState(objects.ServiceWarning)),
		services("num_services_crit", "The number of services in the group that are CRIT", checkedInState(objects.ServiceCritical)),
		services("num_services_unknown", "The number of services in the group that are UNKNOWN", checkedInState(objects.ServiceUnknown)),
		services("num_services_pending", "The number of services in the group that are PENDING", func(s *objects.Service) bool { return !s.HasBeenChecked }),
		IntColumn(prefix+"worst_service_state", desc+"The worst soft state of all of the groups services (OK <= WARN <= UNKNOWN <= CRIT)", off, func(g *objects.ServiceGroup) int64 {
			return int64(worstServiceState(g.Members))
		}),
	)
}
