package services

import (
	"context"
	"errors"
	"math"

	"github.com/etkecc/go-apm"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/tchapgouv/rps/internal/model"
	"github.com/tchapgouv/rps/internal/utils"
)

type discussionClient interface {
	UserID() id.UserID
	DirectChats(ctx context.Context) (event.DirectChatsEventContent, error)
	Members(ctx context.Context, roomID id.RoomID) ([]*event.Event, error)
	StateEvents(ctx context.Context, roomID id.RoomID, eventType string) ([]*event.Event, error)
	JoinRoom(ctx context.Context, roomID id.RoomID) error
}

// DiscussionFinder finds the canonical existing 1:1 room with a counterpart,
// so clients reuse a discussion instead of piling up duplicates
type DiscussionFinder struct {
	client discussionClient
}

// NewDiscussionFinder creates new discussion finder service
func NewDiscussionFinder(client discussionClient) *DiscussionFinder {
	return &DiscussionFinder{client: client}
}

// candidate rooms are bucketed by the membership pair, in preference order:
// both joined, pending invite from them, our invite awaiting them, they left
const (
	bucketJoined = iota
	bucketReceivedInvite
	bucketSentInvite
	bucketLeft
	bucketCount
)

type candidate struct {
	roomID  id.RoomID
	pending bool // our own membership is invite
}

// Find returns the canonical 1:1 discussion with the counterpart, identified
// by a matrix user ID or by a third-party address (for invites sent by email).
// includeInvite also considers rooms where we only hold a pending invite;
// autoJoin accepts such an invite before returning it as joined.
// The result is computed fresh on every call.
func (f *DiscussionFinder) Find(ctx context.Context, counterpart string, includeInvite, autoJoin bool) (*model.Discussion, error) {
	chats, err := f.client.DirectChats(ctx)
	if err != nil {
		if errors.Is(err, mautrix.MNotFound) {
			return &model.Discussion{Status: model.DiscussionNone}, nil
		}
		return nil, err
	}

	roomIDs := chats[id.UserID(counterpart)]
	if len(roomIDs) == 0 {
		return &model.Discussion{Status: model.DiscussionNone}, nil
	}

	log := apm.Log(ctx)
	isMatrixID := utils.IsValidUserID(counterpart)
	var buckets [bucketCount][]candidate
	for _, roomID := range roomIDs {
		members, err := f.client.Members(ctx, roomID)
		if err != nil {
			// the room may be gone or inaccessible between the account data
			// read and this lookup; skip it rather than failing the search
			log.Warn().Err(err).Str("room", roomID.String()).Msg("cannot fetch discussion room members")
			continue
		}

		own := membershipOf(members, f.client.UserID())
		if own == event.MembershipLeave || own == event.MembershipBan {
			// m.direct may still list rooms we already left; those are
			// dead discussions, not reusable ones
			continue
		}
		pending := own == event.MembershipInvite
		if pending && !includeInvite {
			continue
		}

		if !isMatrixID {
			// email-keyed rooms: the counterpart has no account yet,
			// so the pending 3pid invite is the only possible shape
			buckets[bucketSentInvite] = append(buckets[bucketSentInvite], candidate{roomID: roomID})
			continue
		}

		other := membershipOf(members, id.UserID(counterpart))
		c := candidate{roomID: roomID, pending: pending}
		switch other {
		case event.MembershipJoin:
			if pending {
				buckets[bucketReceivedInvite] = append(buckets[bucketReceivedInvite], c)
			} else {
				buckets[bucketJoined] = append(buckets[bucketJoined], c)
			}
		case event.MembershipInvite:
			if !pending {
				buckets[bucketSentInvite] = append(buckets[bucketSentInvite], c)
			}
		case event.MembershipLeave, event.MembershipBan:
			buckets[bucketLeft] = append(buckets[bucketLeft], c)
		}
	}

	for _, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		chosen := f.oldest(ctx, bucket)
		if !chosen.pending {
			return &model.Discussion{Status: model.DiscussionJoined, RoomID: chosen.roomID}, nil
		}
		if !autoJoin {
			return &model.Discussion{Status: model.DiscussionInvite, RoomID: chosen.roomID}, nil
		}
		if err := f.client.JoinRoom(ctx, chosen.roomID); err != nil {
			return nil, err
		}
		return &model.Discussion{Status: model.DiscussionJoined, RoomID: chosen.roomID}, nil
	}

	return &model.Discussion{Status: model.DiscussionNone}, nil
}

// FindDefault is Find with pending invites included and auto-joined,
// the behavior expected when opening a discussion from a user profile
func (f *DiscussionFinder) FindDefault(ctx context.Context, counterpart string) (*model.Discussion, error) {
	return f.Find(ctx, counterpart, true, true)
}

// oldest picks the earliest-created room of the bucket, so that concurrent
// duplicate creations converge on the same room for both sides.
// Creation timestamps are only fetched when there is an actual tie to break.
func (f *DiscussionFinder) oldest(ctx context.Context, bucket []candidate) candidate {
	if len(bucket) == 1 {
		return bucket[0]
	}

	chosen := bucket[0]
	best := int64(math.MaxInt64)
	for _, c := range bucket {
		ts := f.createdAt(ctx, c.roomID)
		if ts < best {
			best = ts
			chosen = c
		}
	}
	return chosen
}

func (f *DiscussionFinder) createdAt(ctx context.Context, roomID id.RoomID) int64 {
	events, err := f.client.StateEvents(ctx, roomID, event.StateCreate.Type)
	if err != nil || len(events) == 0 {
		return math.MaxInt64
	}
	return events[0].Timestamp
}

func membershipOf(members []*event.Event, userID id.UserID) event.Membership {
	for _, evt := range members {
		if id.UserID(evt.GetStateKey()) != userID {
			continue
		}
		membership, _ := evt.Content.Raw["membership"].(string)
		return event.Membership(membership)
	}
	return ""
}
