package objects

import (
	"sort"
	"time"

	"github.com/pkg/errors"
)

// registry keeps objects of one kind in insertion order with a name index.
type registry[T any] struct {
	kind   string
	items  []*T
	byName map[string]*T
}

func newRegistry[T any](kind string) registry[T] {
	return registry[T]{kind: kind, byName: make(map[string]*T)}
}

func (r *registry[T]) add(name string, item *T) error {
	if _, exists := r.byName[name]; exists {
		return errors.Errorf("duplicate %s: %s", r.kind, name)
	}
	r.items = append(r.items, item)
	r.byName[name] = item
	return nil
}

func (r *registry[T]) get(name string) *T { return r.byName[name] }

// ObjectStore holds every monitoring object the query engine can read. It
// does no locking of its own; the owner serializes access.
type ObjectStore struct {
	hosts         registry[Host]
	services      registry[Service]
	commands      registry[Command]
	contacts      registry[Contact]
	contactGroups registry[ContactGroup]
	timeperiods   registry[Timeperiod]
	hostGroups    registry[HostGroup]
	serviceGroups registry[ServiceGroup]

	comments       map[uint64]*Comment
	downtimes      map[uint64]*Downtime
	nextCommentID  uint64
	nextDowntimeID uint64
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{
		hosts:          newRegistry[Host]("host"),
		services:       newRegistry[Service]("service"),
		commands:       newRegistry[Command]("command"),
		contacts:       newRegistry[Contact]("contact"),
		contactGroups:  newRegistry[ContactGroup]("contactgroup"),
		timeperiods:    newRegistry[Timeperiod]("timeperiod"),
		hostGroups:     newRegistry[HostGroup]("hostgroup"),
		serviceGroups:  newRegistry[ServiceGroup]("servicegroup"),
		comments:       make(map[uint64]*Comment),
		downtimes:      make(map[uint64]*Downtime),
		nextCommentID:  1,
		nextDowntimeID: 1,
	}
}

func svcKey(hostName, desc string) string {
	return hostName + "\t" + desc
}

func (s *ObjectStore) AddHost(h *Host) error { return s.hosts.add(h.Name, h) }
func (s *ObjectStore) GetHost(name string) *Host { return s.hosts.get(name) }
func (s *ObjectStore) Hosts() []*Host { return s.hosts.items }

// AddService registers svc and appends it to its host's service list.
func (s *ObjectStore) AddService(svc *Service) error {
	if svc.Host == nil {
		return errors.Errorf("service %q has no host", svc.Description)
	}
	if err := s.services.add(svcKey(svc.Host.Name, svc.Description), svc); err != nil {
		return err
	}
	svc.Host.Services = append(svc.Host.Services, svc)
	return nil
}

func (s *ObjectStore) GetService(hostName, desc string) *Service {
	return s.services.get(svcKey(hostName, desc))
}
func (s *ObjectStore) Services() []*Service { return s.services.items }

func (s *ObjectStore) AddCommand(c *Command) error { return s.commands.add(c.Name, c) }
func (s *ObjectStore) GetCommand(name string) *Command { return s.commands.get(name) }
func (s *ObjectStore) Commands() []*Command { return s.commands.items }

func (s *ObjectStore) AddContact(c *Contact) error { return s.contacts.add(c.Name, c) }
func (s *ObjectStore) GetContact(name string) *Contact { return s.contacts.get(name) }
func (s *ObjectStore) Contacts() []*Contact { return s.contacts.items }

// AddContactGroup registers cg and links its members back to it.
func (s *ObjectStore) AddContactGroup(cg *ContactGroup) error {
	if err := s.contactGroups.add(cg.Name, cg); err != nil {
		return err
	}
	for _, c := range cg.Members {
		c.ContactGroups = append(c.ContactGroups, cg)
	}
	return nil
}
func (s *ObjectStore) GetContactGroup(name string) *ContactGroup { return s.contactGroups.get(name) }
func (s *ObjectStore) ContactGroups() []*ContactGroup { return s.contactGroups.items }

func (s *ObjectStore) AddTimeperiod(tp *Timeperiod) error { return s.timeperiods.add(tp.Name, tp) }
func (s *ObjectStore) GetTimeperiod(name string) *Timeperiod { return s.timeperiods.get(name) }
func (s *ObjectStore) Timeperiods() []*Timeperiod { return s.timeperiods.items }

// AddHostGroup registers hg and links its members back to it.
func (s *ObjectStore) AddHostGroup(hg *HostGroup) error {
	if err := s.hostGroups.add(hg.Name, hg); err != nil {
		return err
	}
	for _, h := range hg.Members {
		h.HostGroups = append(h.HostGroups, hg)
	}
	return nil
}
func (s *ObjectStore) GetHostGroup(name string) *HostGroup { return s.hostGroups.get(name) }
func (s *ObjectStore) HostGroups() []*HostGroup { return s.hostGroups.items }

// AddServiceGroup registers sg and links its members back to it.
func (s *ObjectStore) AddServiceGroup(sg *ServiceGroup) error {
	if err := s.serviceGroups.add(sg.Name, sg); err != nil {
		return err
	}
	for _, svc := range sg.Members {
		svc.ServiceGroups = append(svc.ServiceGroups, sg)
	}
	return nil
}
func (s *ObjectStore) GetServiceGroup(name string) *ServiceGroup { return s.serviceGroups.get(name) }
func (s *ObjectStore) ServiceGroups() []*ServiceGroup { return s.serviceGroups.items }

// SetParents records the parent relation and the inverse child lists.
func (s *ObjectStore) SetParents(h *Host, parents []*Host) {
	h.Parents = parents
	for _, p := range parents {
		p.Children = append(p.Children, h)
	}
}

// AddComment assigns the next comment ID to c and stores it.
func (s *ObjectStore) AddComment(c *Comment) uint64 {
	if c.ID == 0 {
		c.ID = s.nextCommentID
	}
	if c.ID >= s.nextCommentID {
		s.nextCommentID = c.ID + 1
	}
	if c.EntryTime.IsZero() {
		c.EntryTime = time.Now()
	}
	s.comments[c.ID] = c
	return c.ID
}

// DeleteComment removes a comment and reports whether it existed.
func (s *ObjectStore) DeleteComment(id uint64) bool {
	if _, ok := s.comments[id]; !ok {
		return false
	}
	delete(s.comments, id)
	return true
}

func (s *ObjectStore) GetComment(id uint64) *Comment { return s.comments[id] }

// Comments returns all comments ordered by ID.
func (s *ObjectStore) Comments() []*Comment {
	out := make([]*Comment, 0, len(s.comments))
	for _, c := range s.comments {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeleteAcknowledgementComments drops the acknowledgement comments of a host
// (svc == nil) or a service.
func (s *ObjectStore) DeleteAcknowledgementComments(h *Host, svc *Service) int {
	n := 0
	for id, c := range s.comments {
		if c.EntryType == AcknowledgementCommentEntry && c.Host == h && c.Service == svc {
			delete(s.comments, id)
			n++
		}
	}
	return n
}

// AddDowntime assigns the next downtime ID to d, stores it and raises the
// downtime depth of the affected object when the window is in effect.
func (s *ObjectStore) AddDowntime(d *Downtime, now time.Time) uint64 {
	if d.ID == 0 {
		d.ID = s.nextDowntimeID
	}
	if d.ID >= s.nextDowntimeID {
		s.nextDowntimeID = d.ID + 1
	}
	if d.EntryTime.IsZero() {
		d.EntryTime = now
	}
	s.downtimes[d.ID] = d
	if !d.Active && d.InEffect(now) {
		d.Active = true
		s.adjustDowntimeDepth(d, 1)
	}
	return d.ID
}

// DeleteDowntime removes a downtime and its comment.
func (s *ObjectStore) DeleteDowntime(id uint64, now time.Time) bool {
	d, ok := s.downtimes[id]
	if !ok {
		return false
	}
	delete(s.downtimes, id)
	if d.CommentID != 0 {
		delete(s.comments, d.CommentID)
	}
	if d.Active {
		d.Active = false
		s.adjustDowntimeDepth(d, -1)
	}
	return true
}

// UpdateDowntimes starts downtimes whose window has opened and removes
// those whose window has closed, fixing the depth either way.
func (s *ObjectStore) UpdateDowntimes(now time.Time) (started, stopped []*Downtime) {
	for _, d := range s.Downtimes() {
		switch {
		case !now.Before(d.EndTime):
			if d.Active {
				stopped = append(stopped, d)
			}
			s.DeleteDowntime(d.ID, now)
		case !d.Active && d.InEffect(now):
			d.Active = true
			s.adjustDowntimeDepth(d, 1)
			started = append(started, d)
		}
	}
	return started, stopped
}

// ExpireComments removes comments whose expire time has passed and returns
// how many went.
func (s *ObjectStore) ExpireComments(now time.Time) int {
	n := 0
	for id, c := range s.comments {
		if c.Expires && !c.ExpireTime.IsZero() && !now.Before(c.ExpireTime) {
			delete(s.comments, id)
			n++
		}
	}
	return n
}

func (s *ObjectStore) adjustDowntimeDepth(d *Downtime, delta int) {
	if d.Service != nil {
		d.Service.ScheduledDowntimeDepth = max(0, d.Service.ScheduledDowntimeDepth+delta)
		return
	}
	if d.Host != nil {
		d.Host.ScheduledDowntimeDepth = max(0, d.Host.ScheduledDowntimeDepth+delta)
	}
}

func (s *ObjectStore) GetDowntime(id uint64) *Downtime { return s.downtimes[id] }

// Downtimes returns all downtimes ordered by ID.
func (s *ObjectStore) Downtimes() []*Downtime {
	out := make([]*Downtime, 0, len(s.downtimes))
	for _, d := range s.downtimes {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
