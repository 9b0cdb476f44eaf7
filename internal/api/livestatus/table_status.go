package livestatus

import (
	"time"

	"github.com/oceanplexian/livestatus/internal/api"
	"github.com/oceanplexian/livestatus/internal/counters"
	"github.com/oceanplexian/livestatus/internal/logcache"
	"github.com/oceanplexian/livestatus/internal/objects"
)

// Version is the livestatus_version reported by the status table.
var Version = "1.0.0"

// ConnectionStats reports the dispatcher gauges shown in the status table.
type ConnectionStats interface {
	ActiveConnections() int
	QueuedConnections() int
	Threads() int
}

func statusTable(core api.MonitoringCore, cache *logcache.Cache, conns func() ConnectionStats) *Table {
	t := newTable("status", "status_")
	off := Offsets{}
	flag := func(name, d string, fn func(*objects.GlobalState) bool) *Column {
		return BoolColumn(name, d, off, fn)
	}
	gauge := func(name, d string, fn func(ConnectionStats) int) *Column {
		return IntColumn(name, d, off, func(*objects.GlobalState) int64 {
			if s := conns(); s != nil {
				return int64(fn(s))
			}
			return 0
		})
	}

	for _, c := range counters.All() {
		c := c
		t.Add(
			IntColumn(c.Name(), "The number of "+c.Name()+" since program start", off, func(*objects.GlobalState) int64 { return counters.Value(c) }),
			DoubleColumn(c.Name()+"_rate", "The averaged number of "+c.Name()+" per second", off, func(*objects.GlobalState) float64 { return counters.Rate(c) }),
		)
	}
	t.Add(
		StringColumn("program_version", "The version of the monitoring daemon", off, func(g *objects.GlobalState) string { return g.Version }),
		StringColumn("livestatus_version", "The version of the livestatus engine", off, func(*objects.GlobalState) string { return Version }),
		TimeColumn("program_start", "The time of the last program start as UNIX timestamp", off, func(g *objects.GlobalState) time.Time { return g.ProgramStart }),
		TimeColumn("last_command_check", "The time of the last check for a command as UNIX timestamp", off, func(g *objects.GlobalState) time.Time { return g.LastCommandCheck }),
		TimeColumn("last_log_rotation", "The time of the last log file rotation", off, func(*objects.GlobalState) time.Time { return core.LastLogRotation() }),
		IntColumn("nagios_pid", "The process ID of the monitoring core", off, func(g *objects.GlobalState) int64 { return int64(g.PID) }),
		IntColumn("interval_length", "The default interval length", off, func(g *objects.GlobalState) int64 { return int64(g.IntervalLength) }),
		flag("enable_notifications", "Whether notifications are enabled in general (0/1)", func(g *objects.GlobalState) bool { return g.EnableNotifications }),
		flag("execute_service_checks", "Whether active service checks are activated in general (0/1)", func(g *objects.GlobalState) bool { return g.ExecuteServiceChecks }),
		flag("execute_host_checks", "Whether host checks are executed in general (0/1)", func(g *objects.GlobalState) bool { return g.ExecuteHostChecks }),
		flag("accept_passive_service_checks", "Whether passive service checks are activated in general (0/1)", func(g *objects.GlobalState) bool { return g.AcceptPassiveServiceChecks }),
		flag("accept_passive_host_checks", "Whether passive host checks are accepted in general (0/1)", func(g *objects.GlobalState) bool { return g.AcceptPassiveHostChecks }),
		flag("enable_event_handlers", "Whether event handlers are activated in general (0/1)", func(g *objects.GlobalState) bool { return g.EnableEventHandlers }),
		flag("enable_flap_detection", "Whether flap detection is activated in general (0/1)", func(g *objects.GlobalState) bool { return g.EnableFlapDetection }),
		flag("process_performance_data", "Whether processing of performance data is activated in general (0/1)", func(g *objects.GlobalState) bool { return g.ProcessPerformanceData }),
		flag("check_service_freshness", "Whether service freshness checking is activated in general (0/1)", func(g *objects.GlobalState) bool { return g.CheckServiceFreshness }),
		flag("check_host_freshness", "Whether host freshness checking is activated in general (0/1)", func(g *objects.GlobalState) bool { return g.CheckHostFreshness }),
		flag("obsess_over_services", "Whether the core will obsess over service checks and run the ocsp_command (0/1)", func(g *objects.GlobalState) bool { return g.ObsessOverServices }),
		flag("obsess_over_hosts", "Whether the core will obsess over host checks (0/1)", func(g *objects.GlobalState) bool { return g.ObsessOverHosts }),
		IntColumn("cached_log_messages", "The current number of log messages livestatus keeps in memory", off, func(*objects.GlobalState) int64 {
			if cache == nil {
				return 0
			}
			return int64(cache.NumCachedMessages())
		}),
		gauge("livestatus_active_connections", "The current number of active connections to livestatus", ConnectionStats.ActiveConnections),
		gauge("livestatus_queued_connections", "The current number of queued connections to livestatus", ConnectionStats.QueuedConnections),
		gauge("livestatus_threads", "The maximum number of connections to livestatus that can be handled in parallel", ConnectionStats.Threads),
	)
	t.rows = func(_ *Query, fn func(Row) bool) {
		if g := core.Program(); g != nil {
			fn(g)
		}
	}
	t.defaultRow = func() Row {
		if g := core.Program(); g != nil {
			return g
		}
		return nil
	}
	return t
}
