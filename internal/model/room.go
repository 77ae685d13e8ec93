package model

import (
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

const (
	// AccessRulesEventType is the custom state event type carrying the room access rule
	AccessRulesEventType = "im.vector.room.access_rules"
	// AccessRulesContentKey is the content key of the access rules state event
	AccessRulesContentKey = "rule"
	// RetentionEventType is the state event type carrying the room messages retention period
	RetentionEventType = "m.room.retention"
	// RetentionContentKey is the content key of the retention state event (max lifetime in ms)
	RetentionContentKey = "max_lifetime"
	// ServerNoticeTag marks rooms used by the homeserver to deliver server notices
	ServerNoticeTag = "m.server_notice"
	// DefaultRetentionDays is the retention period applied when a room has no retention state
	DefaultRetentionDays = 365
)

// AccessRule is the room access rule vocabulary.
// The set of known rules is closed (restricted, unrestricted, direct),
// but unknown identifiers coming from the server are carried as-is,
// so parsing is total and round-tripping is lossless.
type AccessRule string

const (
	// AccessRuleRestricted - external users are not allowed
	AccessRuleRestricted AccessRule = "restricted"
	// AccessRuleUnrestricted - external users are allowed to join
	AccessRuleUnrestricted AccessRule = "unrestricted"
	// AccessRuleDirect - the room is a 1:1 chat
	AccessRuleDirect AccessRule = "direct"
)

// ParseAccessRule parses a wire identifier into an AccessRule. Total function -
// unknown identifiers are preserved verbatim instead of being rejected,
// because the server-side vocabulary may grow without a client update.
func ParseAccessRule(identifier string) AccessRule {
	return AccessRule(identifier)
}

// Identifier returns the stable wire identifier of the rule
func (r AccessRule) Identifier() string {
	return string(r)
}

// Known reports whether the rule belongs to the closed set
func (r AccessRule) Known() bool {
	switch r {
	case AccessRuleRestricted, AccessRuleUnrestricted, AccessRuleDirect:
		return true
	}
	return false
}

// DefaultAccessRule returns the rule assumed when a room carries no access rules state:
// direct chats are "direct", everything else is closed by default ("restricted")
func DefaultAccessRule(isDirect bool) AccessRule {
	if isDirect {
		return AccessRuleDirect
	}
	return AccessRuleRestricted
}

// RoomCategory is the derived classification of a room. It is never stored,
// always recomputed from the authoritative room state.
type RoomCategory string

const (
	CategoryUnknown             RoomCategory = "unknown"
	CategoryDirectChat          RoomCategory = "direct_chat"
	CategoryRestrictedPrivate   RoomCategory = "restricted_private"
	CategoryUnrestrictedPrivate RoomCategory = "unrestricted_private"
	CategoryForum               RoomCategory = "forum"
	CategoryServerNotice        RoomCategory = "server_notice"
)

// Categorize derives the room category from its state.
// Precedence is fixed: the server-notice tag wins over everything,
// then encryption + access rule, then the public-forum check.
// Public rooms with a pending invite stay unknown: the full room state
// (hence the encryption status) is not known until the invite is accepted.
func Categorize(encrypted bool, joinRule event.JoinRule, membership event.Membership, rule AccessRule, serverNotice bool) RoomCategory {
	switch {
	case serverNotice:
		return CategoryServerNotice
	case encrypted:
		switch rule {
		case AccessRuleDirect:
			return CategoryDirectChat
		case AccessRuleRestricted:
			return CategoryRestrictedPrivate
		case AccessRuleUnrestricted:
			return CategoryUnrestrictedPrivate
		default:
			return CategoryUnknown
		}
	case joinRule == event.JoinRulePublic && membership != event.MembershipInvite:
		return CategoryForum
	default:
		return CategoryUnknown
	}
}

// DiscussionStatus of a 1:1 discussion lookup
type DiscussionStatus string

const (
	// DiscussionJoined - an active 1:1 room with the counterpart exists
	DiscussionJoined DiscussionStatus = "joined"
	// DiscussionInvite - the only 1:1 room is a pending invite from the counterpart
	DiscussionInvite DiscussionStatus = "invite"
	// DiscussionNone - no 1:1 room with the counterpart
	DiscussionNone DiscussionStatus = "none"
)

// Discussion is the result of a 1:1 discussion lookup.
// Computed fresh on every lookup - room membership can change between calls.
type Discussion struct {
	Status DiscussionStatus `json:"status"`
	RoomID id.RoomID        `json:"room_id,omitempty"`
}

// RoomVisibility of a room in the published directory
type RoomVisibility string

const (
	VisibilityPublic  RoomVisibility = "public"
	VisibilityPrivate RoomVisibility = "private"
)

// RoomPreset for room creation
type RoomPreset string

const (
	PresetPublicChat  RoomPreset = "public_chat"
	PresetPrivateChat RoomPreset = "private_chat"
)

// CreateRoomParams is the high-level room creation intent.
// Transient: created per request and discarded after the HTTP round trip.
type CreateRoomParams struct {
	Visibility        RoomVisibility                 `json:"visibility"`
	Name              string                         `json:"name,omitempty"`
	AvatarURL         string                         `json:"avatar_url,omitempty"`
	AccessRule        AccessRule                     `json:"access_rule"`
	Invite            []id.UserID                    `json:"invite,omitempty"`
	Invite3PID        []Invite3PID                   `json:"invite_3pid,omitempty"`
	Federated         *bool                          `json:"federated,omitempty"`
	HistoryVisibility event.HistoryVisibility        `json:"history_visibility,omitempty"`
	PowerLevelContent *event.PowerLevelsEventContent `json:"power_level_content_override,omitempty"`
	IsDirect          bool                           `json:"is_direct,omitempty"`
}

// IsFederated reports the federation flag of the intent.
// Federation is opt-out: an absent flag means federated, matching upstream
// Matrix semantics for creation content without "m.federate".
func (p *CreateRoomParams) IsFederated() bool {
	return p.Federated == nil || *p.Federated
}

// Invite3PID is a third-party identifier invited at room creation
type Invite3PID struct {
	IDServer      string `json:"id_server"`
	IDAccessToken string `json:"id_access_token,omitempty"`
	Medium        string `json:"medium"`
	Address       string `json:"address"`
}

// StateEvent is an initial state event of a room creation request
type StateEvent struct {
	Type     string         `json:"type"`
	StateKey string         `json:"state_key"`
	Content  map[string]any `json:"content"`
}

// CreateRoomRequest is the wire-level body of the createRoom endpoint
type CreateRoomRequest struct {
	Visibility                RoomVisibility                 `json:"visibility,omitempty"`
	RoomAliasName             string                         `json:"room_alias_name,omitempty"`
	Name                      string                         `json:"name,omitempty"`
	Invite                    []id.UserID                    `json:"invite,omitempty"`
	Invite3PID                []Invite3PID                   `json:"invite_3pid,omitempty"`
	Preset                    RoomPreset                     `json:"preset,omitempty"`
	IsDirect                  bool                           `json:"is_direct,omitempty"`
	CreationContent           map[string]any                 `json:"creation_content,omitempty"`
	InitialState              []*StateEvent                  `json:"initial_state,omitempty"`
	PowerLevelContentOverride *event.PowerLevelsEventContent `json:"power_level_content_override,omitempty"`
}
