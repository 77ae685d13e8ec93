package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/etkecc/go-apm"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/tchapgouv/rps/internal/model"
	"github.com/tchapgouv/rps/internal/utils"
)

const (
	// aliasSuffixLength is the length of the random alias suffix; long enough
	// to make collisions between same-named rooms practically impossible
	aliasSuffixLength = 11
	// adminPowerLevel is the power level of a room administrator
	adminPowerLevel = 100
	// msPerDay for retention conversions
	msPerDay = 24 * 60 * 60 * 1000
)

// ErrInvalidAvatarURL is returned before any room is created
var ErrInvalidAvatarURL = errors.New("invalid avatar url")

// FinalizationError reports a failure of a post-creation step: the room
// exists and is usable, but the follow-up did not complete
type FinalizationError struct {
	RoomID id.RoomID
	Step   string // "avatar" or "direct"
	Err    error
}

// Error string
func (e *FinalizationError) Error() string {
	return fmt.Sprintf("room %s created, but the %s step failed: %v", e.RoomID, e.Step, e.Err)
}

// Unwrap returns the underlying error
func (e *FinalizationError) Unwrap() error {
	return e.Err
}

// IsAliasTaken reports whether the room creation failed because the generated
// alias is already in use. The only creation error worth retrying.
func IsAliasTaken(err error) bool {
	return errors.Is(err, mautrix.MRoomInUse)
}

type roomsClient interface {
	UserID() id.UserID
	CreateRoom(ctx context.Context, req *model.CreateRoomRequest) (id.RoomID, error)
	SendStateEvent(ctx context.Context, roomID id.RoomID, eventType, stateKey string, content any) error
	StateEvents(ctx context.Context, roomID id.RoomID, eventType string) ([]*event.Event, error)
	StateEvent(ctx context.Context, roomID id.RoomID, eventType, stateKey string, out any) error
	Members(ctx context.Context, roomID id.RoomID) ([]*event.Event, error)
	DirectChats(ctx context.Context) (event.DirectChatsEventContent, error)
	SetDirectChats(ctx context.Context, chats event.DirectChatsEventContent) error
	IsServerNotice(ctx context.Context, roomID id.RoomID) (bool, error)
	PowerLevels(ctx context.Context, roomID id.RoomID) (*event.PowerLevelsEventContent, error)
}

// Rooms provisions rooms with the Tchap access policy baked in, and answers
// policy questions about existing rooms from their authoritative state
type Rooms struct {
	cfg    ConfigService
	client roomsClient
}

// NewRooms creates new room provisioning service
func NewRooms(cfg ConfigService, client roomsClient) *Rooms {
	return &Rooms{cfg: cfg, client: client}
}

// BuildCreateRequest translates a creation intent into the wire request.
// Every room leaves this function with an access rules state event: a room
// without a rule would be unclassifiable by every client.
func (r *Rooms) BuildCreateRequest(params *model.CreateRoomParams) *model.CreateRoomRequest {
	req := &model.CreateRoomRequest{
		Visibility:                params.Visibility,
		Name:                      params.Name,
		Invite:                    params.Invite,
		Invite3PID:                params.Invite3PID,
		IsDirect:                  params.IsDirect,
		PowerLevelContentOverride: params.PowerLevelContent,
	}

	history := params.HistoryVisibility
	if params.Visibility == model.VisibilityPublic {
		req.Preset = model.PresetPublicChat
		req.RoomAliasName = r.defaultAlias(params.Name)
		if history == "" {
			history = event.HistoryVisibilityWorldReadable
		}
	} else {
		req.Preset = model.PresetPrivateChat
		if history == "" {
			history = event.HistoryVisibilityInvited
		}
	}

	rule := params.AccessRule
	if rule == "" {
		rule = model.DefaultAccessRule(params.IsDirect)
	}
	req.InitialState = []*model.StateEvent{
		{
			Type:    model.AccessRulesEventType,
			Content: map[string]any{model.AccessRulesContentKey: rule.Identifier()},
		},
		{
			Type:    event.StateHistoryVisibility.Type,
			Content: map[string]any{"history_visibility": string(history)},
		},
	}

	if !params.IsFederated() {
		req.CreationContent = map[string]any{"m.federate": false}
	}

	return req
}

// defaultAlias derives a room alias localpart from the room name:
// the name stripped to alphanumerics, plus a random alphanumeric suffix
func (r *Rooms) defaultAlias(name string) string {
	return utils.StripNonAlphanumeric(name) + utils.RandomString(aliasSuffixLength)
}

// CreateRoom creates a room from the intent. The avatar is set in a second
// step after creation; its failure is reported as *FinalizationError so the
// caller knows the room itself exists.
func (r *Rooms) CreateRoom(ctx context.Context, params *model.CreateRoomParams) (id.RoomID, error) {
	var avatar id.ContentURI
	if params.AvatarURL != "" {
		parsed, err := id.ParseContentURI(params.AvatarURL)
		if err != nil {
			return "", ErrInvalidAvatarURL
		}
		avatar = parsed
	}

	roomID, err := r.client.CreateRoom(ctx, r.BuildCreateRequest(params))
	if err != nil {
		return "", err
	}

	if params.AvatarURL != "" {
		content := &event.RoomAvatarEventContent{URL: avatar}
		if err := r.client.SendStateEvent(ctx, roomID, event.StateRoomAvatar.Type, "", content); err != nil {
			return roomID, &FinalizationError{RoomID: roomID, Step: "avatar", Err: err}
		}
	}

	return roomID, nil
}

// CreateRoomRetrying creates a room, regenerating the alias and retrying
// when the generated alias is already taken. Any other error is final.
func (r *Rooms) CreateRoomRetrying(ctx context.Context, params *model.CreateRoomParams, retries int) (id.RoomID, error) {
	log := apm.Log(ctx)
	roomID, err := r.CreateRoom(ctx, params)
	for i := 0; i < retries && IsAliasTaken(err); i++ {
		log.Warn().Err(err).Str("name", params.Name).Msg("room alias collision, retrying with a fresh alias")
		roomID, err = r.CreateRoom(ctx, params)
	}
	return roomID, err
}

// CreateDiscussion creates a private 1:1 room with the user and records it
// in the account's direct chats. A failure of the recording step is reported
// as *FinalizationError - the room exists, but a later discussion lookup
// would not find it.
func (r *Rooms) CreateDiscussion(ctx context.Context, invitee id.UserID) (id.RoomID, error) {
	params := &model.CreateRoomParams{
		Visibility: model.VisibilityPrivate,
		AccessRule: model.AccessRuleDirect,
		IsDirect:   true,
		Invite:     []id.UserID{invitee},
	}
	roomID, err := r.client.CreateRoom(ctx, r.BuildCreateRequest(params))
	if err != nil {
		return "", err
	}

	if err := r.markDirect(ctx, string(invitee), roomID); err != nil {
		return roomID, &FinalizationError{RoomID: roomID, Step: "direct", Err: err}
	}
	return roomID, nil
}

// CreateDiscussionWith3PID creates a private 1:1 room by inviting a third-party
// identifier, and records it in the direct chats keyed by that identifier's
// address (no matrix ID exists for the counterpart yet)
func (r *Rooms) CreateDiscussionWith3PID(ctx context.Context, pid model.Invite3PID) (id.RoomID, error) {
	params := &model.CreateRoomParams{
		Visibility: model.VisibilityPrivate,
		AccessRule: model.AccessRuleDirect,
		IsDirect:   true,
		Invite3PID: []model.Invite3PID{pid},
	}
	roomID, err := r.client.CreateRoom(ctx, r.BuildCreateRequest(params))
	if err != nil {
		return "", err
	}

	if err := r.markDirect(ctx, pid.Address, roomID); err != nil {
		return roomID, &FinalizationError{RoomID: roomID, Step: "direct", Err: err}
	}
	return roomID, nil
}

// markDirect adds the room to the m.direct account data under the given key
// (a matrix user ID or a third-party address)
func (r *Rooms) markDirect(ctx context.Context, key string, roomID id.RoomID) error {
	chats, err := r.client.DirectChats(ctx)
	if err != nil {
		if !errors.Is(err, mautrix.MNotFound) {
			return err
		}
		chats = event.DirectChatsEventContent{}
	}

	userKey := id.UserID(key)
	for _, existing := range chats[userKey] {
		if existing == roomID {
			return nil
		}
	}
	chats[userKey] = append(chats[userKey], roomID)
	return r.client.SetDirectChats(ctx, chats)
}

// RemoveDirect drops the room from the m.direct account data under the given
// key, so abandoned discussions stop resurfacing in lookups
func (r *Rooms) RemoveDirect(ctx context.Context, key string, roomID id.RoomID) error {
	chats, err := r.client.DirectChats(ctx)
	if err != nil {
		if errors.Is(err, mautrix.MNotFound) {
			return nil
		}
		return err
	}

	userKey := id.UserID(key)
	existing := chats[userKey]
	kept := make([]id.RoomID, 0, len(existing))
	for _, direct := range existing {
		if direct != roomID {
			kept = append(kept, direct)
		}
	}
	if len(kept) == len(existing) {
		return nil
	}
	if len(kept) == 0 {
		delete(chats, userKey)
	} else {
		chats[userKey] = kept
	}
	return r.client.SetDirectChats(ctx, chats)
}

// GetAccessRule returns the access rule of the room. When several access rules
// events exist in the state, the latest by origin server timestamp wins.
// A room without any rule gets the default for its direct/non-direct nature.
func (r *Rooms) GetAccessRule(ctx context.Context, roomID id.RoomID) (model.AccessRule, error) {
	events, err := r.client.StateEvents(ctx, roomID, model.AccessRulesEventType)
	if err != nil {
		return "", err
	}

	var latest *event.Event
	for _, evt := range events {
		if latest == nil || evt.Timestamp > latest.Timestamp {
			latest = evt
		}
	}
	if latest != nil {
		if rule, ok := latest.Content.Raw[model.AccessRulesContentKey].(string); ok && rule != "" {
			return model.ParseAccessRule(rule), nil
		}
	}

	isDirect, err := r.isDirect(ctx, roomID)
	if err != nil {
		return "", err
	}
	return model.DefaultAccessRule(isDirect), nil
}

func (r *Rooms) isDirect(ctx context.Context, roomID id.RoomID) (bool, error) {
	chats, err := r.client.DirectChats(ctx)
	if err != nil {
		if errors.Is(err, mautrix.MNotFound) {
			return false, nil
		}
		return false, err
	}
	for _, roomIDs := range chats {
		for _, direct := range roomIDs {
			if direct == roomID {
				return true, nil
			}
		}
	}
	return false, nil
}

// IsFederated reports whether the room federates. Federation is opt-out:
// a creation content without "m.federate" means federated.
func (r *Rooms) IsFederated(ctx context.Context, roomID id.RoomID) (bool, error) {
	var content struct {
		Federate *bool `json:"m.federate"`
	}
	if err := r.client.StateEvent(ctx, roomID, event.StateCreate.Type, "", &content); err != nil {
		return false, err
	}
	return content.Federate == nil || *content.Federate, nil
}

// RetentionDays returns the message retention period of the room in days,
// falling back to the platform default when the room carries no retention state
func (r *Rooms) RetentionDays(ctx context.Context, roomID id.RoomID) (int, error) {
	var content struct {
		MaxLifetime *int64 `json:"max_lifetime"`
	}
	err := r.client.StateEvent(ctx, roomID, model.RetentionEventType, "", &content)
	if err != nil {
		if errors.Is(err, mautrix.MNotFound) {
			return model.DefaultRetentionDays, nil
		}
		return 0, err
	}
	if content.MaxLifetime == nil {
		return model.DefaultRetentionDays, nil
	}
	return int(*content.MaxLifetime / msPerDay), nil
}

// Category derives the room category from its current state
func (r *Rooms) Category(ctx context.Context, roomID id.RoomID) (model.RoomCategory, error) {
	serverNotice, err := r.client.IsServerNotice(ctx, roomID)
	if err != nil && !errors.Is(err, mautrix.MNotFound) {
		return "", err
	}

	encrypted := true
	var enc event.EncryptionEventContent
	if err := r.client.StateEvent(ctx, roomID, event.StateEncryption.Type, "", &enc); err != nil {
		if !errors.Is(err, mautrix.MNotFound) {
			return "", err
		}
		encrypted = false
	}

	var joinRules event.JoinRulesEventContent
	if err := r.client.StateEvent(ctx, roomID, event.StateJoinRules.Type, "", &joinRules); err != nil && !errors.Is(err, mautrix.MNotFound) {
		return "", err
	}

	var member event.MemberEventContent
	if err := r.client.StateEvent(ctx, roomID, event.StateMember.Type, string(r.client.UserID()), &member); err != nil && !errors.Is(err, mautrix.MNotFound) {
		return "", err
	}

	rule, err := r.GetAccessRule(ctx, roomID)
	if err != nil {
		return "", err
	}

	return model.Categorize(encrypted, joinRules.JoinRule, member.Membership, rule, serverNotice), nil
}

// IsLastAdministrator reports whether the user is the only joined administrator
// of the room. A user that is not an administrator is never the last one.
// When no other joined administrator is found the answer is true: demoted or
// parted admins don't count.
func (r *Rooms) IsLastAdministrator(ctx context.Context, roomID id.RoomID, userID id.UserID) (bool, error) {
	levels, err := r.client.PowerLevels(ctx, roomID)
	if err != nil {
		return false, err
	}
	if levels.GetUserLevel(userID) < adminPowerLevel {
		return false, nil
	}

	members, err := r.client.Members(ctx, roomID)
	if err != nil {
		return false, err
	}
	for _, evt := range members {
		membership, _ := evt.Content.Raw["membership"].(string)
		if event.Membership(membership) != event.MembershipJoin {
			continue
		}
		member := id.UserID(evt.GetStateKey())
		if member == userID {
			continue
		}
		if levels.GetUserLevel(member) >= adminPowerLevel {
			return false, nil
		}
	}
	return true, nil
}
