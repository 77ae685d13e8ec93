package services

import (
	"context"

	"github.com/etkecc/go-apm"
	"maunium.net/go/mautrix/id"

	"github.com/tchapgouv/rps/internal/model"
	"github.com/tchapgouv/rps/internal/utils"
)

type identityLookup interface {
	Lookup(ctx context.Context, address, medium string) (id.UserID, error)
}

type emailPolicy interface {
	IsEmailAuthorized(ctx context.Context, email string) (bool, error)
	IsEmailBoundToExternalHost(ctx context.Context, email string) (bool, error)
}

type discussionFinder interface {
	Find(ctx context.Context, counterpart string, includeInvite, autoJoin bool) (*model.Discussion, error)
}

type discussionCreator interface {
	CreateDiscussionWith3PID(ctx context.Context, pid model.Invite3PID) (id.RoomID, error)
	RemoveDirect(ctx context.Context, key string, roomID id.RoomID) error
}

type roomLeaver interface {
	LeaveRoom(ctx context.Context, roomID id.RoomID) error
}

// Invite drives the "invite by email" flow: discover an existing account first,
// reuse a pending invite when one exists, and only then create a new discussion
// room with a third-party invite
type Invite struct {
	cfg      ConfigService
	identity identityLookup
	users    emailPolicy
	finder   discussionFinder
	rooms    discussionCreator
	client   roomLeaver
}

// NewInvite creates new email invite service
func NewInvite(cfg ConfigService, identity identityLookup, users emailPolicy, finder discussionFinder, rooms discussionCreator, client roomLeaver) *Invite {
	return &Invite{
		cfg:      cfg,
		identity: identity,
		users:    users,
		finder:   finder,
		rooms:    rooms,
		client:   client,
	}
}

// SendEmailInvite invites an email address into a new 1:1 discussion.
//
// The address is first looked up: when it is already bound to an account,
// no invite is sent and the discovered user ID is returned instead.
// A still-pending earlier invite is reused, unless the address moved to an
// external homeserver in the meantime - then the stale room is left and a
// fresh invite is created, so the pending invite always reflects where the
// recipient will actually sign up.
func (s *Invite) SendEmailInvite(ctx context.Context, email string) (*model.InviteStatus, error) {
	log := apm.Log(ctx)

	mxid, err := s.identity.Lookup(ctx, email, MediumEmail)
	if err != nil {
		return nil, err
	}
	if mxid != "" {
		return &model.InviteStatus{Result: model.InviteDiscoveredUser, UserID: mxid}, nil
	}

	discussion, err := s.finder.Find(ctx, email, true, false)
	if err != nil {
		return nil, err
	}
	if discussion.Status != model.DiscussionNone {
		external, err := s.users.IsEmailBoundToExternalHost(ctx, email)
		if err != nil || !external {
			if err != nil {
				log.Warn().Err(err).Msg("cannot re-check the invited address, keeping the pending invite")
			}
			return &model.InviteStatus{Result: model.InviteAlreadySent, RoomID: discussion.RoomID}, nil
		}
		if err := s.client.LeaveRoom(ctx, discussion.RoomID); err != nil {
			log.Warn().Err(err).Str("room", discussion.RoomID.String()).Msg("cannot leave the stale invite room, keeping the pending invite")
			return &model.InviteStatus{Result: model.InviteAlreadySent, RoomID: discussion.RoomID}, nil
		}
		// otherwise the dead room stays in m.direct and keeps shadowing
		// the fresh invite in lookups
		if err := s.rooms.RemoveDirect(ctx, email, discussion.RoomID); err != nil {
			log.Warn().Err(err).Str("room", discussion.RoomID.String()).Msg("cannot drop the stale room from direct chats")
		}
	}

	authorized, err := s.users.IsEmailAuthorized(ctx, email)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return &model.InviteStatus{Result: model.InviteUnauthorized}, nil
	}

	roomID, err := s.rooms.CreateDiscussionWith3PID(ctx, model.Invite3PID{
		IDServer: s.identityServerHost(),
		Medium:   MediumEmail,
		Address:  email,
	})
	if err != nil {
		return nil, err
	}
	return &model.InviteStatus{Result: model.InviteSent, RoomID: roomID}, nil
}

// identityServerHost returns the host of the first configured identity server,
// the one the homeserver will use to resolve the 3pid invite
func (s *Invite) identityServerHost() string {
	servers := s.cfg.Get().Identity.Servers
	if len(servers) == 0 {
		return ""
	}
	if u := utils.ParseURL(servers[0]); u != nil && u.Host != "" {
		return u.Host
	}
	return servers[0]
}
