package core

import (
	"time"

	"github.com/pkg/errors"

	"github.com/oceanplexian/livestatus/internal/api"
	"github.com/oceanplexian/livestatus/internal/counters"
	"github.com/oceanplexian/livestatus/internal/extcmd"
	"github.com/oceanplexian/livestatus/internal/objects"
)

// Handlers run with c.mu write-locked.
func (c *Core) registerHandlers() {
	c.commands.RegisterHandlers(map[string]extcmd.Handler{
		"ADD_HOST_COMMENT": c.addComment(false),
		"ADD_SVC_COMMENT":  c.addComment(true),
		"DEL_HOST_COMMENT": c.deleteComment,
		"DEL_SVC_COMMENT":  c.deleteComment,

		"ACKNOWLEDGE_HOST_PROBLEM":    c.acknowledge(false),
		"ACKNOWLEDGE_SVC_PROBLEM":     c.acknowledge(true),
		"REMOVE_HOST_ACKNOWLEDGEMENT": c.removeAcknowledgement(false),
		"REMOVE_SVC_ACKNOWLEDGEMENT":  c.removeAcknowledgement(true),

		"SCHEDULE_HOST_DOWNTIME": c.scheduleDowntime(false),
		"SCHEDULE_SVC_DOWNTIME":  c.scheduleDowntime(true),
		"DEL_HOST_DOWNTIME":      c.deleteDowntime,
		"DEL_SVC_DOWNTIME":       c.deleteDowntime,

		"PROCESS_HOST_CHECK_RESULT":    c.processHostResult,
		"PROCESS_SERVICE_CHECK_RESULT": c.processServiceResult,

		"ENABLE_NOTIFICATIONS":       c.setGlobalNotifications(true),
		"DISABLE_NOTIFICATIONS":      c.setGlobalNotifications(false),
		"ENABLE_HOST_NOTIFICATIONS":  c.setNotifications(false, true),
		"DISABLE_HOST_NOTIFICATIONS": c.setNotifications(false, false),
		"ENABLE_SVC_NOTIFICATIONS":   c.setNotifications(true, true),
		"DISABLE_SVC_NOTIFICATIONS":  c.setNotifications(true, false),
	})
}

// target resolves the host (and with svc the service) named by the leading
// arguments of cmd. It returns the index of the first remaining argument.
func (c *Core) target(cmd *extcmd.Command, svc bool) (*objects.Host, *objects.Service, int, error) {
	hostName, err := cmd.Arg(0)
	if err != nil {
		return nil, nil, 0, err
	}
	h := c.store.GetHost(hostName)
	if h == nil {
		return nil, nil, 0, errors.Errorf("%s: unknown host '%s'", cmd.Name, hostName)
	}
	if !svc {
		return h, nil, 1, nil
	}
	desc, err := cmd.Arg(1)
	if err != nil {
		return nil, nil, 0, err
	}
	s := c.store.GetService(hostName, desc)
	if s == nil {
		return nil, nil, 0, errors.Errorf("%s: unknown service '%s' on host '%s'", cmd.Name, desc, hostName)
	}
	return h, s, 2, nil
}

func commentType(s *objects.Service) int {
	if s != nil {
		return objects.ServiceCommentType
	}
	return objects.HostCommentType
}

// ADD_HOST_COMMENT;host;persistent;author;comment
// ADD_SVC_COMMENT;host;svc;persistent;author;comment
func (c *Core) addComment(svc bool) extcmd.Handler {
	return func(cmd *extcmd.Command) error {
		h, s, i, err := c.target(cmd, svc)
		if err != nil {
			return err
		}
		persistent, err := cmd.Bool(i)
		if err != nil {
			return err
		}
		author, err := cmd.Arg(i + 1)
		if err != nil {
			return err
		}
		text, err := cmd.Arg(i + 2)
		if err != nil {
			return err
		}
		c.store.AddComment(&objects.Comment{
			Type:       commentType(s),
			EntryType:  objects.UserCommentEntry,
			Source:     1,
			Persistent: persistent,
			EntryTime:  c.now(),
			Author:     author,
			Data:       text,
			Host:       h,
			Service:    s,
		})
		c.triggers.Notify(api.TriggerComment)
		return nil
	}
}

// DEL_HOST_COMMENT;id and DEL_SVC_COMMENT;id
func (c *Core) deleteComment(cmd *extcmd.Command) error {
	id, err := cmd.Int(0)
	if err != nil {
		return err
	}
	if !c.store.DeleteComment(uint64(id)) {
		return errors.Errorf("%s: no comment with id %d", cmd.Name, id)
	}
	c.triggers.Notify(api.TriggerComment)
	return nil
}

// ACKNOWLEDGE_HOST_PROBLEM;host;sticky;notify;persistent;author;comment
// ACKNOWLEDGE_SVC_PROBLEM;host;svc;sticky;notify;persistent;author;comment
func (c *Core) acknowledge(svc bool) extcmd.Handler {
	return func(cmd *extcmd.Command) error {
		h, s, i, err := c.target(cmd, svc)
		if err != nil {
			return err
		}
		sticky, err := cmd.Int(i)
		if err != nil {
			return err
		}
		persistent, err := cmd.Bool(i + 2)
		if err != nil {
			return err
		}
		author, err := cmd.Arg(i + 3)
		if err != nil {
			return err
		}
		text, err := cmd.Arg(i + 4)
		if err != nil {
			return err
		}

		ackType := objects.AckNormal
		if sticky == 2 {
			ackType = objects.AckSticky
		}
		if s != nil {
			if s.CurrentState == objects.ServiceOK {
				return errors.Errorf("%s: service '%s' on host '%s' has no problem", cmd.Name, s.Description, h.Name)
			}
			s.ProblemAcknowledged, s.AckType = true, ackType
			c.history.Log("SERVICE ACKNOWLEDGE ALERT: %s;%s;STARTED; Service problem has been acknowledged", h.Name, s.Description)
		} else {
			if h.CurrentState == objects.HostUp {
				return errors.Errorf("%s: host '%s' has no problem", cmd.Name, h.Name)
			}
			h.ProblemAcknowledged, h.AckType = true, ackType
			c.history.Log("HOST ACKNOWLEDGE ALERT: %s;STARTED; Host problem has been acknowledged", h.Name)
		}
		c.store.AddComment(&objects.Comment{
			Type:       commentType(s),
			EntryType:  objects.AcknowledgementCommentEntry,
			Source:     1,
			Persistent: persistent,
			EntryTime:  c.now(),
			Author:     author,
			Data:       text,
			Host:       h,
			Service:    s,
		})
		c.triggers.Notify(api.TriggerComment)
		c.triggers.Notify(api.TriggerState)
		return nil
	}
}

// REMOVE_HOST_ACKNOWLEDGEMENT;host and REMOVE_SVC_ACKNOWLEDGEMENT;host;svc
func (c *Core) removeAcknowledgement(svc bool) extcmd.Handler {
	return func(cmd *extcmd.Command) error {
		h, s, _, err := c.target(cmd, svc)
		if err != nil {
			return err
		}
		c.clearAcknowledgement(h, s)
		c.triggers.Notify(api.TriggerComment)
		c.triggers.Notify(api.TriggerState)
		return nil
	}
}

func (c *Core) clearAcknowledgement(h *objects.Host, s *objects.Service) {
	if s != nil {
		s.ProblemAcknowledged, s.AckType = false, objects.AckNone
	} else {
		h.ProblemAcknowledged, h.AckType = false, objects.AckNone
	}
	c.store.DeleteAcknowledgementComments(h, s)
}

// SCHEDULE_HOST_DOWNTIME;host;start;end;fixed;trigger_id;duration;author;comment
// SCHEDULE_SVC_DOWNTIME;host;svc;start;end;fixed;trigger_id;duration;author;comment
func (c *Core) scheduleDowntime(svc bool) extcmd.Handler {
	return func(cmd *extcmd.Command) error {
		h, s, i, err := c.target(cmd, svc)
		if err != nil {
			return err
		}
		var nums [5]int64 // start, end, fixed, trigger, duration
		for k := range nums {
			if nums[k], err = cmd.Int(i + k); err != nil {
				return err
			}
		}
		author, err := cmd.Arg(i + 5)
		if err != nil {
			return err
		}
		text, err := cmd.Arg(i + 6)
		if err != nil {
			return err
		}
		start, end := time.Unix(nums[0], 0), time.Unix(nums[1], 0)
		if !end.After(start) {
			return errors.Errorf("%s: end time %d is not after start time %d", cmd.Name, nums[1], nums[0])
		}
		d := &objects.Downtime{
			Type:        objects.HostDowntimeType,
			StartTime:   start,
			EndTime:     end,
			Fixed:       nums[2] != 0,
			TriggeredBy: uint64(nums[3]),
			Duration:    time.Duration(nums[4]) * time.Second,
			Author:      author,
			Comment:     text,
			Host:        h,
			Service:     s,
		}
		if d.Fixed {
			d.Duration = end.Sub(start)
		}
		if s != nil {
			d.Type = objects.ServiceDowntimeType
		}
		now := c.now()
		d.CommentID = c.store.AddComment(&objects.Comment{
			Type:      commentType(s),
			EntryType: objects.DowntimeCommentEntry,
			EntryTime: now,
			Author:    author,
			Data:      text,
			Host:      h,
			Service:   s,
		})
		c.store.AddDowntime(d, now)
		if d.Active {
			c.logDowntime(d, "STARTED")
		}
		c.triggers.Notify(api.TriggerDowntime)
		c.triggers.Notify(api.TriggerComment)
		return nil
	}
}

// DEL_HOST_DOWNTIME;id and DEL_SVC_DOWNTIME;id
func (c *Core) deleteDowntime(cmd *extcmd.Command) error {
	id, err := cmd.Int(0)
	if err != nil {
		return err
	}
	d := c.store.GetDowntime(uint64(id))
	if d == nil {
		return errors.Errorf("%s: no downtime with id %d", cmd.Name, id)
	}
	if d.Active {
		c.logDowntime(d, "CANCELLED")
	}
	c.store.DeleteDowntime(d.ID, c.now())
	c.triggers.Notify(api.TriggerDowntime)
	c.triggers.Notify(api.TriggerComment)
	return nil
}

func (c *Core) logDowntime(d *objects.Downtime, action string) {
	verb := "entered"
	if action != "STARTED" {
		verb = "exited from"
	}
	if d.Service != nil {
		c.history.LogServiceDowntime(d.Host.Name, d.Service.Description, action,
			"Service has "+verb+" a period of scheduled downtime")
		return
	}
	c.history.LogHostDowntime(d.Host.Name, action, "Host has "+verb+" a period of scheduled downtime")
}

// PROCESS_HOST_CHECK_RESULT;host;status;output
func (c *Core) processHostResult(cmd *extcmd.Command) error {
	h, _, _, err := c.target(cmd, false)
	if err != nil {
		return err
	}
	rc, err := cmd.Int(1)
	if err != nil {
		return err
	}
	raw, _ := cmd.Arg(2)
	c.history.LogPassiveCheck(true, h.Name, "", int(rc), raw)
	counters.Increment(counters.HostChecks)

	state := int(rc)
	if state < objects.HostUp || state > objects.HostUnreachable {
		state = objects.HostDown
	}
	now := c.now()
	t := nextState(h.CurrentState, h.StateType, h.CurrentAttempt, h.MaxCheckAttempts, h.LastHardState, state, objects.HostUp)
	h.LastState = h.CurrentState
	h.CurrentState, h.StateType, h.CurrentAttempt = state, t.stateType, t.attempt
	h.PluginOutput, h.LongPluginOutput, h.PerfData = splitOutput(raw)
	h.HasBeenChecked = true
	h.LastCheck = now
	if t.changed {
		h.LastStateChange = now
		if h.ProblemAcknowledged && (h.AckType != objects.AckSticky || state == objects.HostUp) {
			c.clearAcknowledgement(h, nil)
		}
	}
	if t.hardChanged {
		h.LastHardState = state
		h.LastHardStateChange = now
	}
	if t.alert {
		c.history.LogHostAlert(h.Name, state, t.stateType, t.attempt, h.PluginOutput)
	}
	c.triggers.Notify(api.TriggerCheck)
	if t.changed {
		c.triggers.Notify(api.TriggerState)
	}
	return nil
}

// PROCESS_SERVICE_CHECK_RESULT;host;svc;status;output
func (c *Core) processServiceResult(cmd *extcmd.Command) error {
	h, s, _, err := c.target(cmd, true)
	if err != nil {
		return err
	}
	rc, err := cmd.Int(2)
	if err != nil {
		return err
	}
	raw, _ := cmd.Arg(3)
	c.history.LogPassiveCheck(false, h.Name, s.Description, int(rc), raw)
	counters.Increment(counters.ServiceChecks)

	state := int(rc)
	if state < objects.ServiceOK || state > objects.ServiceUnknown {
		state = objects.ServiceUnknown
	}
	now := c.now()
	t := nextState(s.CurrentState, s.StateType, s.CurrentAttempt, s.MaxCheckAttempts, s.LastHardState, state, objects.ServiceOK)
	s.LastState = s.CurrentState
	s.CurrentState, s.StateType, s.CurrentAttempt = state, t.stateType, t.attempt
	s.PluginOutput, s.LongPluginOutput, s.PerfData = splitOutput(raw)
	s.HasBeenChecked = true
	s.LastCheck = now
	if t.changed {
		s.LastStateChange = now
		if s.ProblemAcknowledged && (s.AckType != objects.AckSticky || state == objects.ServiceOK) {
			c.clearAcknowledgement(h, s)
		}
	}
	if t.hardChanged {
		s.LastHardState = state
		s.LastHardStateChange = now
	}
	if t.alert {
		c.history.LogServiceAlert(h.Name, s.Description, state, t.stateType, t.attempt, s.PluginOutput)
	}
	c.triggers.Notify(api.TriggerCheck)
	if t.changed {
		c.triggers.Notify(api.TriggerState)
	}
	return nil
}

func (c *Core) setGlobalNotifications(on bool) extcmd.Handler {
	return func(*extcmd.Command) error {
		c.global.EnableNotifications = on
		c.triggers.Notify(api.TriggerProgram)
		return nil
	}
}

func (c *Core) setNotifications(svc, on bool) extcmd.Handler {
	return func(cmd *extcmd.Command) error {
		h, s, _, err := c.target(cmd, svc)
		if err != nil {
			return err
		}
		if s != nil {
			s.NotificationsEnabled = on
		} else {
			h.NotificationsEnabled = on
		}
		c.triggers.Notify(api.TriggerState)
		return nil
	}
}
