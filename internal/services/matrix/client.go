// Package matrix is the only place that talks to the homeserver.
// It wraps the mautrix SDK client behind the few calls the policy
// services need; everything above it depends on small consumer-side
// interfaces so it can be replaced by a test double.
package matrix

import (
	"context"
	"strings"

	"github.com/etkecc/go-apm"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/tchapgouv/rps/internal/model"
)

const accountValidityPath = "/_synapse/client/email_account_validity/send_mail"

type configService interface {
	Get() *model.Config
}

// Client wraps the mautrix client for a single account
type Client struct {
	cfg configService
	mx  *mautrix.Client
}

// NewClient creates a new homeserver client from the configured account
func NewClient(cfg configService) (*Client, error) {
	matrixCfg := cfg.Get().Matrix
	mx, err := mautrix.NewClient(matrixCfg.HomeserverURL, id.UserID(matrixCfg.UserID), matrixCfg.AccessToken)
	if err != nil {
		return nil, err
	}
	mx.Log = zerolog.Ctx(apm.NewContext()).With().Str("component", "matrix").Logger()

	return &Client{cfg: cfg, mx: mx}, nil
}

// UserID of the account this client acts as
func (c *Client) UserID() id.UserID {
	return c.mx.UserID
}

// CreateRoom calls the createRoom endpoint with the prepared wire request
func (c *Client) CreateRoom(ctx context.Context, req *model.CreateRoomRequest) (id.RoomID, error) {
	var resp struct {
		RoomID id.RoomID `json:"room_id"`
	}
	_, err := c.mx.MakeRequest(ctx, "POST", c.mx.BuildClientURL("v3", "createRoom"), req, &resp)
	if err != nil {
		return "", err
	}
	return resp.RoomID, nil
}

// SendStateEvent sends a state event into the room
func (c *Client) SendStateEvent(ctx context.Context, roomID id.RoomID, eventType, stateKey string, content any) error {
	evtType := event.Type{Type: eventType, Class: event.StateEventType}
	_, err := c.mx.SendStateEvent(ctx, roomID, evtType, stateKey, content)
	return err
}

// StateEvents returns all state events of the given type currently in the room state
func (c *Client) StateEvents(ctx context.Context, roomID id.RoomID, eventType string) ([]*event.Event, error) {
	state, err := c.mx.State(ctx, roomID)
	if err != nil {
		return nil, err
	}

	var events []*event.Event
	for evtType, byKey := range state {
		if evtType.Type != eventType {
			continue
		}
		for _, evt := range byKey {
			events = append(events, evt)
		}
	}
	return events, nil
}

// StateEvent fetches a single state event content into out
func (c *Client) StateEvent(ctx context.Context, roomID id.RoomID, eventType, stateKey string, out any) error {
	evtType := event.Type{Type: eventType, Class: event.StateEventType}
	return c.mx.StateEvent(ctx, roomID, evtType, stateKey, out)
}

// Members returns the member events of the room
func (c *Client) Members(ctx context.Context, roomID id.RoomID) ([]*event.Event, error) {
	resp, err := c.mx.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return resp.Chunk, nil
}

// JoinRoom joins the room by ID
func (c *Client) JoinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.mx.JoinRoomByID(ctx, roomID)
	return err
}

// LeaveRoom leaves the room
func (c *Client) LeaveRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.mx.LeaveRoom(ctx, roomID)
	return err
}

// Profile fetches the user profile
func (c *Client) Profile(ctx context.Context, userID id.UserID) (*model.User, error) {
	resp, err := c.mx.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.User{
		ID:          userID,
		DisplayName: resp.DisplayName,
		AvatarURL:   resp.AvatarURL.String(),
	}, nil
}

// DirectChats returns the m.direct account data of the account.
// Keys are usually matrix user IDs, but discussions created by inviting an
// email address are keyed by that address.
func (c *Client) DirectChats(ctx context.Context) (event.DirectChatsEventContent, error) {
	chats := event.DirectChatsEventContent{}
	err := c.mx.GetAccountData(ctx, event.AccountDataDirectChats.Type, &chats)
	if err != nil {
		return nil, err
	}
	return chats, nil
}

// SetDirectChats replaces the m.direct account data of the account
func (c *Client) SetDirectChats(ctx context.Context, chats event.DirectChatsEventContent) error {
	return c.mx.SetAccountData(ctx, event.AccountDataDirectChats.Type, &chats)
}

// IsServerNotice checks whether the room is tagged as a server notices room
func (c *Client) IsServerNotice(ctx context.Context, roomID id.RoomID) (bool, error) {
	var resp struct {
		Tags map[string]any `json:"tags"`
	}
	uri := c.mx.BuildClientURL("v3", "user", c.mx.UserID, "rooms", roomID, "tags")
	_, err := c.mx.MakeRequest(ctx, "GET", uri, nil, &resp)
	if err != nil {
		return false, err
	}
	_, tagged := resp.Tags[model.ServerNoticeTag]
	return tagged, nil
}

// AccountInfo fetches the account status of the user.
// A body the endpoint's homeserver fills with something unexpected is treated
// as an empty status, not an error.
func (c *Client) AccountInfo(ctx context.Context, userID id.UserID) (*model.AccountInfo, error) {
	uri := c.mx.BuildClientURL("unstable", "user", userID, "info")
	body, err := c.mx.MakeRequest(ctx, "GET", uri, nil, nil)
	if err != nil {
		return nil, err
	}

	var info model.AccountInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return &model.AccountInfo{}, nil //nolint:nilerr // absent status means active
	}
	return &info, nil
}

// RequestRenewalEmail asks the homeserver to send an account validity renewal email
func (c *Client) RequestRenewalEmail(ctx context.Context) error {
	uri := strings.TrimSuffix(c.cfg.Get().Matrix.HomeserverURL, "/") + accountValidityPath
	_, err := c.mx.MakeRequest(ctx, "POST", uri, nil, nil)
	return err
}

// PowerLevels returns the power levels of the room
func (c *Client) PowerLevels(ctx context.Context, roomID id.RoomID) (*event.PowerLevelsEventContent, error) {
	var content event.PowerLevelsEventContent
	if err := c.StateEvent(ctx, roomID, event.StatePowerLevels.Type, "", &content); err != nil {
		return nil, err
	}
	return &content, nil
}
