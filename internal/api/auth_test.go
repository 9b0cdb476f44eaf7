package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oceanplexian/livestatus/internal/config"
	"github.com/oceanplexian/livestatus/internal/objects"
)

type authFixture struct {
	alice, bob, carol *objects.Contact
	web, db           *objects.Host
	http, mysql       *objects.Service
	webGroup, all     *objects.HostGroup
	svcGroup          *objects.ServiceGroup
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		alice: &objects.Contact{Name: "alice"},
		bob:   &objects.Contact{Name: "bob"},
		carol: &objects.Contact{Name: "carol"},
	}
	admins := &objects.ContactGroup{Name: "admins", Members: []*objects.Contact{f.bob}}
	f.web = &objects.Host{Name: "web", Contacts: []*objects.Contact{f.alice}}
	f.db = &objects.Host{Name: "db", ContactGroups: []*objects.ContactGroup{admins}}
	f.http = &objects.Service{Host: f.web, Description: "HTTP", Contacts: []*objects.Contact{f.carol}}
	f.mysql = &objects.Service{Host: f.db, Description: "MySQL"}
	f.webGroup = &objects.HostGroup{Name: "web", Members: []*objects.Host{f.web}}
	f.all = &objects.HostGroup{Name: "all", Members: []*objects.Host{f.web, f.db}}
	f.svcGroup = &objects.ServiceGroup{Name: "svc", Members: []*objects.Service{f.http, f.mysql}}
	return f
}

func TestHostAuthorization(t *testing.T) {
	f := newAuthFixture()
	alice := NewUser(f.alice, config.AuthLoose, config.AuthStrict)
	bob := NewUser(f.bob, config.AuthLoose, config.AuthStrict)

	assert.True(t, alice.IsAuthorizedForHost(f.web))
	assert.False(t, alice.IsAuthorizedForHost(f.db))
	assert.True(t, bob.IsAuthorizedForHost(f.db), "contact group membership")
	assert.False(t, alice.IsAuthorizedForHost(nil))
}

func TestServiceAuthorization(t *testing.T) {
	f := newAuthFixture()
	tests := []struct {
		name    string
		contact *objects.Contact
		mode    config.AuthorizationMode
		svc     *objects.Service
		want    bool
	}{
		{"service contact strict", f.carol, config.AuthStrict, f.http, true},
		{"host contact strict", f.alice, config.AuthStrict, f.http, false},
		{"host contact loose", f.alice, config.AuthLoose, f.http, true},
		{"host group contact loose", f.bob, config.AuthLoose, f.mysql, true},
		{"unrelated", f.carol, config.AuthLoose, f.mysql, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUser(tt.contact, tt.mode, config.AuthStrict)
			assert.Equal(t, tt.want, u.IsAuthorizedForService(tt.svc))
		})
	}
}

func TestGroupAuthorization(t *testing.T) {
	f := newAuthFixture()
	strict := NewUser(f.alice, config.AuthLoose, config.AuthStrict)
	loose := NewUser(f.alice, config.AuthLoose, config.AuthLoose)

	assert.True(t, strict.IsAuthorizedForHostGroup(f.webGroup))
	assert.False(t, strict.IsAuthorizedForHostGroup(f.all))
	assert.True(t, loose.IsAuthorizedForHostGroup(f.all))
	assert.False(t, strict.IsAuthorizedForServiceGroup(f.svcGroup))
	assert.True(t, loose.IsAuthorizedForServiceGroup(f.svcGroup))
	assert.True(t, strict.IsAuthorizedForHostGroup(&objects.HostGroup{Name: "empty"}))
	assert.False(t, loose.IsAuthorizedForHostGroup(&objects.HostGroup{Name: "empty"}))
}

func TestSpecialUsers(t *testing.T) {
	f := newAuthFixture()
	assert.True(t, NoAuthUser.IsAuthorizedForHost(f.db))
	assert.True(t, NoAuthUser.IsAuthorizedForServiceGroup(f.svcGroup))
	assert.False(t, UnknownUser.IsAuthorizedForHost(f.web))
	assert.False(t, UnknownUser.IsAuthorizedForHostGroup(f.webGroup))
	assert.Equal(t, UnknownUser, NewUser(nil, config.AuthLoose, config.AuthLoose))
}
