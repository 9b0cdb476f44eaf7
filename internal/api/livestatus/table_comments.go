package livestatus

import (
	"time"

	"github.com/oceanplexian/livestatus/internal/api"
	"github.com/oceanplexian/livestatus/internal/objects"
)

// authorizedFor checks host entries against the host and service entries
// against the service.
func authorizedFor(user api.User, h *objects.Host, s *objects.Service) bool {
	if s != nil {
		return user.IsAuthorizedForService(s)
	}
	return user.IsAuthorizedForHost(h)
}

func commentsTable(core api.MonitoringCore) *Table {
	t := newTable("comments", "comment_")
	off := Offsets{}
	t.Add(
		IntColumn("id", "The id of the comment", off, func(c *objects.Comment) int64 { return int64(c.ID) }),
		StringColumn("author", "The contact that entered the comment", off, func(c *objects.Comment) string { return c.Author }),
		StringColumn("comment", "A comment text", off, func(c *objects.Comment) string { return c.Data }),
		IntColumn("type", "The type of the comment: 1 is host, 2 is service", off, func(c *objects.Comment) int64 { return int64(c.Type) }),
		IntColumn("entry_type", "The type of the comment: 1 is user, 2 is downtime, 3 is flapping and 4 is acknowledgement", off, func(c *objects.Comment) int64 { return int64(c.EntryType) }),
		IntColumn("source", "The source of the comment (0 is internal and 1 is external)", off, func(c *objects.Comment) int64 { return int64(c.Source) }),
		BoolColumn("persistent", "Whether this comment is persistent (0/1)", off, func(c *objects.Comment) bool { return c.Persistent }),
		BoolColumn("expires", "Whether this comment expires", off, func(c *objects.Comment) bool { return c.Expires }),
		TimeColumn("entry_time", "The time the entry was made as UNIX timestamp", off, func(c *objects.Comment) time.Time { return c.EntryTime }),
		TimeColumn("expire_time", "The time of expiry of this comment as a UNIX timestamp", off, func(c *objects.Comment) time.Time { return c.ExpireTime }),
		BoolColumn("is_service", "0, if this entry is for a host, 1 if it is for a service", off, func(c *objects.Comment) bool { return c.Service != nil }),
	)
	addHostColumns(t, "host_", "Host: ", off.Add(Hop(func(c *objects.Comment) *objects.Host { return c.Host })), core)
	addServiceColumns(t, "service_", "Service: ", off.Add(Hop(func(c *objects.Comment) *objects.Service { return c.Service })), core)
	t.rows = func(_ *Query, fn func(Row) bool) { eachRow(core.Comments(), fn) }
	t.authorized = func(r Row, user api.User) bool {
		c, _ := r.(*objects.Comment)
		return c != nil && authorizedFor(user, c.Host, c.Service)
	}
	return t
}

func downtimesTable(core api.MonitoringCore) *Table {
	t := newTable("downtimes", "downtime_")
	off := Offsets{}
	t.Add(
		IntColumn("id", "The id of the downtime", off, func(d *objects.Downtime) int64 { return int64(d.ID) }),
		StringColumn("author", "The contact that scheduled the downtime", off, func(d *objects.Downtime) string { return d.Author }),
		StringColumn("comment", "A comment text", off, func(d *objects.Downtime) string { return d.Comment }),
		IntColumn("type", "The type of the downtime: 1 is host, 2 is service", off, func(d *objects.Downtime) int64 { return int64(d.Type) }),
		BoolColumn("fixed", "A 1 if the downtime is fixed, a 0 if it is flexible", off, func(d *objects.Downtime) bool { return d.Fixed }),
		IntColumn("duration", "The duration of the downtime in seconds", off, func(d *objects.Downtime) int64 { return int64(d.Duration / time.Second) }),
		IntColumn("triggered_by", "The id of the downtime this downtime was triggered by or 0 if it was not triggered by another downtime", off, func(d *objects.Downtime) int64 { return int64(d.TriggeredBy) }),
		IntColumn("comment_id", "The id of the comment created with the downtime", off, func(d *objects.Downtime) int64 { return int64(d.CommentID) }),
		TimeColumn("entry_time", "The time the entry was made as UNIX timestamp", off, func(d *objects.Downtime) time.Time { return d.EntryTime }),
		TimeColumn("start_time", "The start time of the downtime as UNIX timestamp", off, func(d *objects.Downtime) time.Time { return d.StartTime }),
		TimeColumn("end_time", "The end time of the downtime as UNIX timestamp", off, func(d *objects.Downtime) time.Time { return d.EndTime }),
		BoolColumn("is_pending", "1 if the downtime is currently pending (not active), 0 if it is active", off, func(d *objects.Downtime) bool { return !d.Active }),
		BoolColumn("is_service", "0, if this entry is for a host, 1 if it is for a service", off, func(d *objects.Downtime) bool { return d.Service != nil }),
	)
	addHostColumns(t, "host_", "Host: ", off.Add(Hop(func(d *objects.Downtime) *objects.Host { return d.Host })), core)
	addServiceColumns(t, "service_", "Service: ", off.Add(Hop(func(d *objects.Downtime) *objects.Service { return d.Service })), core)
	t.rows = func(_ *Query, fn func(Row) bool) { eachRow(core.Downtimes(), fn) }
	t.authorized = func(r Row, user api.User) bool {
		d, _ := r.(*objects.Downtime)
		return d != nil && authorizedFor(user, d.Host, d.Service)
	}
	return t
}
