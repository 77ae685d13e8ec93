package model

import (
	"testing"

	"maunium.net/go/mautrix/event"
)

func TestParseAccessRule(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		known      bool
	}{
		{"restricted", "restricted", true},
		{"unrestricted", "unrestricted", true},
		{"direct", "direct", true},
		{"unknown identifier is preserved", "some_future_rule", false},
		{"empty identifier is preserved", "", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rule := ParseAccessRule(test.identifier)
			if rule.Identifier() != test.identifier {
				t.Errorf("expected identifier %q, got %q", test.identifier, rule.Identifier())
			}
			if rule.Known() != test.known {
				t.Errorf("expected known=%v for %q", test.known, test.identifier)
			}
		})
	}
}

func TestDefaultAccessRule(t *testing.T) {
	if rule := DefaultAccessRule(true); rule != AccessRuleDirect {
		t.Errorf("expected direct for a direct chat, got %q", rule)
	}
	if rule := DefaultAccessRule(false); rule != AccessRuleRestricted {
		t.Errorf("expected restricted by default, got %q", rule)
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name         string
		encrypted    bool
		joinRule     event.JoinRule
		membership   event.Membership
		rule         AccessRule
		serverNotice bool
		expected     RoomCategory
	}{
		{"server notice wins over everything", true, event.JoinRulePublic, event.MembershipJoin, AccessRuleDirect, true, CategoryServerNotice},
		{"encrypted direct", true, event.JoinRuleInvite, event.MembershipJoin, AccessRuleDirect, false, CategoryDirectChat},
		{"encrypted restricted", true, event.JoinRuleInvite, event.MembershipJoin, AccessRuleRestricted, false, CategoryRestrictedPrivate},
		{"encrypted unrestricted", true, event.JoinRuleInvite, event.MembershipJoin, AccessRuleUnrestricted, false, CategoryUnrestrictedPrivate},
		{"encrypted with unknown rule", true, event.JoinRuleInvite, event.MembershipJoin, AccessRule("weird"), false, CategoryUnknown},
		{"public joined is a forum", false, event.JoinRulePublic, event.MembershipJoin, AccessRuleRestricted, false, CategoryForum},
		{"public pending invite stays unknown", false, event.JoinRulePublic, event.MembershipInvite, AccessRuleRestricted, false, CategoryUnknown},
		{"unencrypted private", false, event.JoinRuleInvite, event.MembershipJoin, AccessRuleRestricted, false, CategoryUnknown},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Categorize(test.encrypted, test.joinRule, test.membership, test.rule, test.serverNotice)
			if got != test.expected {
				t.Errorf("expected %q, got %q", test.expected, got)
			}
		})
	}
}

func TestIsFederated(t *testing.T) {
	federated := true
	notFederated := false
	tests := []struct {
		name     string
		params   *CreateRoomParams
		expected bool
	}{
		{"absent flag means federated", &CreateRoomParams{}, true},
		{"explicit true", &CreateRoomParams{Federated: &federated}, true},
		{"explicit false", &CreateRoomParams{Federated: &notFederated}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.params.IsFederated(); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}
