package api

import (
	"github.com/oceanplexian/livestatus/internal/config"
	"github.com/oceanplexian/livestatus/internal/objects"
)

// User decides which objects a query may see.
type User interface {
	IsAuthorizedForHost(h *objects.Host) bool
	IsAuthorizedForService(s *objects.Service) bool
	IsAuthorizedForHostGroup(g *objects.HostGroup) bool
	IsAuthorizedForServiceGroup(g *objects.ServiceGroup) bool
}

// NoAuthUser is used when a request carries no AuthUser header. It sees
// everything.
var NoAuthUser User = noAuthUser{}

type noAuthUser struct{}

func (noAuthUser) IsAuthorizedForHost(*objects.Host) bool                 { return true }
func (noAuthUser) IsAuthorizedForService(*objects.Service) bool           { return true }
func (noAuthUser) IsAuthorizedForHostGroup(*objects.HostGroup) bool       { return true }
func (noAuthUser) IsAuthorizedForServiceGroup(*objects.ServiceGroup) bool { return true }

// UnknownUser is used for an AuthUser that names no contact. It sees nothing.
var UnknownUser User = unknownUser{}

type unknownUser struct{}

func (unknownUser) IsAuthorizedForHost(*objects.Host) bool                 { return false }
func (unknownUser) IsAuthorizedForService(*objects.Service) bool           { return false }
func (unknownUser) IsAuthorizedForHostGroup(*objects.HostGroup) bool       { return false }
func (unknownUser) IsAuthorizedForServiceGroup(*objects.ServiceGroup) bool { return false }

// contactUser authorizes by contact membership.
type contactUser struct {
	contact     *objects.Contact
	serviceAuth config.AuthorizationMode
	groupAuth   config.AuthorizationMode
}

// NewUser returns the User for an AuthUser header. A nil contact yields
// UnknownUser.
func NewUser(contact *objects.Contact, serviceAuth, groupAuth config.AuthorizationMode) User {
	if contact == nil {
		return UnknownUser
	}
	return &contactUser{contact: contact, serviceAuth: serviceAuth, groupAuth: groupAuth}
}

func (u *contactUser) IsAuthorizedForHost(h *objects.Host) bool {
	return h != nil && isContactFor(u.contact, h.Contacts, h.ContactGroups)
}

func (u *contactUser) IsAuthorizedForService(s *objects.Service) bool {
	if s == nil {
		return false
	}
	if isContactFor(u.contact, s.Contacts, s.ContactGroups) {
		return true
	}
	return u.serviceAuth == config.AuthLoose && u.IsAuthorizedForHost(s.Host)
}

func (u *contactUser) IsAuthorizedForHostGroup(g *objects.HostGroup) bool {
	if g == nil {
		return false
	}
	return authorizedForGroup(u.groupAuth, g.Members, u.IsAuthorizedForHost)
}

func (u *contactUser) IsAuthorizedForServiceGroup(g *objects.ServiceGroup) bool {
	if g == nil {
		return false
	}
	return authorizedForGroup(u.groupAuth, g.Members, u.IsAuthorizedForService)
}

// authorizedForGroup requires every member in strict mode and any member in
// loose mode. Empty groups are visible in strict mode only.
func authorizedForGroup[T any](mode config.AuthorizationMode, members []*T, auth func(*T) bool) bool {
	if mode == config.AuthStrict {
		for _, m := range members {
			if !auth(m) {
				return false
			}
		}
		return true
	}
	for _, m := range members {
		if auth(m) {
			return true
		}
	}
	return false
}

func isContactFor(c *objects.Contact, contacts []*objects.Contact, groups []*objects.ContactGroup) bool {
	for _, ct := range contacts {
		if ct == c {
			return true
		}
	}
	for _, g := range groups {
		for _, m := range g.Members {
			if m == c {
				return true
			}
		}
	}
	return false
}
