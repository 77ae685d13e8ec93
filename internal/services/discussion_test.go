package services

import (
	"context"
	"errors"
	"testing"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/tchapgouv/rps/internal/model"
)

const (
	self  = id.UserID("@me:agent.dinum.tchap.gouv.fr")
	peer  = id.UserID("@peer:agent.dinum.tchap.gouv.fr")
	rFoo  = id.RoomID("!foo:x")
	rBar  = id.RoomID("!bar:x")
	rBaz  = id.RoomID("!baz:x")
	email = "guest@example.org"
)

func discussionRoom(own, other event.Membership) []*event.Event {
	return []*event.Event{
		memberEvent(self, own),
		memberEvent(peer, other),
	}
}

func createEvent(ts int64) []*event.Event {
	return []*event.Event{{Timestamp: ts}}
}

func TestDiscussionFind(t *testing.T) {
	ctx := context.Background()

	t.Run("no direct chats at all", func(t *testing.T) {
		finder := NewDiscussionFinder(&fakeMatrixClient{userID: self})
		discussion, err := finder.Find(ctx, string(peer), true, false)
		if err != nil {
			t.Fatal(err)
		}
		if discussion.Status != model.DiscussionNone {
			t.Errorf("expected none, got %+v", discussion)
		}
	})

	t.Run("joined room is found", func(t *testing.T) {
		client := &fakeMatrixClient{
			userID:      self,
			directChats: event.DirectChatsEventContent{peer: {rFoo}},
			members:     map[id.RoomID][]*event.Event{rFoo: discussionRoom(event.MembershipJoin, event.MembershipJoin)},
		}
		finder := NewDiscussionFinder(client)
		discussion, err := finder.Find(ctx, string(peer), true, false)
		if err != nil {
			t.Fatal(err)
		}
		if discussion.Status != model.DiscussionJoined || discussion.RoomID != rFoo {
			t.Errorf("expected joined %s, got %+v", rFoo, discussion)
		}
	})

	t.Run("joined beats pending invite", func(t *testing.T) {
		client := &fakeMatrixClient{
			userID:      self,
			directChats: event.DirectChatsEventContent{peer: {rFoo, rBar}},
			members: map[id.RoomID][]*event.Event{
				rFoo: discussionRoom(event.MembershipInvite, event.MembershipJoin),
				rBar: discussionRoom(event.MembershipJoin, event.MembershipJoin),
			},
		}
		finder := NewDiscussionFinder(client)
		discussion, err := finder.Find(ctx, string(peer), true, false)
		if err != nil {
			t.Fatal(err)
		}
		if discussion.Status != model.DiscussionJoined || discussion.RoomID != rBar {
			t.Errorf("expected joined %s, got %+v", rBar, discussion)
		}
	})

	t.Run("duplicates converge on the oldest room", func(t *testing.T) {
		client := &fakeMatrixClient{
			userID:      self,
			directChats: event.DirectChatsEventContent{peer: {rFoo, rBar, rBaz}},
			members: map[id.RoomID][]*event.Event{
				rFoo: discussionRoom(event.MembershipJoin, event.MembershipJoin),
				rBar: discussionRoom(event.MembershipJoin, event.MembershipJoin),
				rBaz: discussionRoom(event.MembershipJoin, event.MembershipJoin),
			},
			stateByRoom: map[id.RoomID]map[string][]*event.Event{
				rFoo: {event.StateCreate.Type: createEvent(300)},
				rBar: {event.StateCreate.Type: createEvent(100)},
				rBaz: {event.StateCreate.Type: createEvent(200)},
			},
		}
		finder := NewDiscussionFinder(client)
		discussion, err := finder.Find(ctx, string(peer), true, false)
		if err != nil {
			t.Fatal(err)
		}
		if discussion.RoomID != rBar {
			t.Errorf("expected the oldest room %s, got %+v", rBar, discussion)
		}
	})

	t.Run("pending invite without auto join", func(t *testing.T) {
		client := &fakeMatrixClient{
			userID:      self,
			directChats: event.DirectChatsEventContent{peer: {rFoo}},
			members:     map[id.RoomID][]*event.Event{rFoo: discussionRoom(event.MembershipInvite, event.MembershipJoin)},
		}
		finder := NewDiscussionFinder(client)
		discussion, err := finder.Find(ctx, string(peer), true, false)
		if err != nil {
			t.Fatal(err)
		}
		if discussion.Status != model.DiscussionInvite || discussion.RoomID != rFoo {
			t.Errorf("expected invite %s, got %+v", rFoo, discussion)
		}
		if len(client.joined) != 0 {
			t.Error("expected no join without auto join")
		}
	})

	t.Run("pending invite with auto join", func(t *testing.T) {
		client := &fakeMatrixClient{
			userID:      self,
			directChats: event.DirectChatsEventContent{peer: {rFoo}},
			members:     map[id.RoomID][]*event.Event{rFoo: discussionRoom(event.MembershipInvite, event.MembershipJoin)},
		}
		finder := NewDiscussionFinder(client)
		discussion, err := finder.Find(ctx, string(peer), true, true)
		if err != nil {
			t.Fatal(err)
		}
		if discussion.Status != model.DiscussionJoined || discussion.RoomID != rFoo {
			t.Errorf("expected joined %s, got %+v", rFoo, discussion)
		}
		if len(client.joined) != 1 || client.joined[0] != rFoo {
			t.Errorf("expected the invite to be accepted, got %+v", client.joined)
		}
	})

	t.Run("pending invite excluded", func(t *testing.T) {
		client := &fakeMatrixClient{
			userID:      self,
			directChats: event.DirectChatsEventContent{peer: {rFoo}},
			members:     map[id.RoomID][]*event.Event{rFoo: discussionRoom(event.MembershipInvite, event.MembershipJoin)},
		}
		finder := NewDiscussionFinder(client)
		discussion, err := finder.Find(ctx, string(peer), false, false)
		if err != nil {
			t.Fatal(err)
		}
		if discussion.Status != model.DiscussionNone {
			t.Errorf("expected none, got %+v", discussion)
		}
	})

	t.Run("our invite awaiting the peer still counts as joined", func(t *testing.T) {
		client := &fakeMatrixClient{
			userID:      self,
			directChats: event.DirectChatsEventContent{peer: {rFoo}},
			members:     map[id.RoomID][]*event.Event{rFoo: discussionRoom(event.MembershipJoin, event.MembershipInvite)},
		}
		finder := NewDiscussionFinder(client)
		discussion, err := finder.Find(ctx, string(peer), true, false)
		if err != nil {
			t.Fatal(err)
		}
		if discussion.Status != model.DiscussionJoined || discussion.RoomID != rFoo {
			t.Errorf("expected joined %s, got %+v", rFoo, discussion)
		}
	})

	t.Run("room the peer left is the last resort", func(t *testing.T) {
		client := &fakeMatrixClient{
			userID:      self,
			directChats: event.DirectChatsEventContent{peer: {rFoo, rBar}},
			members: map[id.RoomID][]*event.Event{
				rFoo: discussionRoom(event.MembershipJoin, event.MembershipLeave),
				rBar: discussionRoom(event.MembershipJoin, event.MembershipInvite),
			},
		}
		finder := NewDiscussionFinder(client)
		discussion, err := finder.Find(ctx, string(peer), true, false)
		if err != nil {
			t.Fatal(err)
		}
		if discussion.RoomID != rBar {
			t.Errorf("expected the pending outgoing invite to win, got %+v", discussion)
		}
	})

	t.Run("room we left is not a discussion anymore", func(t *testing.T) {
		client := &fakeMatrixClient{
			userID:      self,
			directChats: event.DirectChatsEventContent{peer: {rFoo}},
			members:     map[id.RoomID][]*event.Event{rFoo: discussionRoom(event.MembershipLeave, event.MembershipJoin)},
		}
		finder := NewDiscussionFinder(client)
		discussion, err := finder.Find(ctx, string(peer), true, false)
		if err != nil {
			t.Fatal(err)
		}
		if discussion.Status != model.DiscussionNone {
			t.Errorf("expected none, got %+v", discussion)
		}
	})

	t.Run("room we were banned from is skipped", func(t *testing.T) {
		client := &fakeMatrixClient{
			userID:      self,
			directChats: event.DirectChatsEventContent{peer: {rFoo, rBar}},
			members: map[id.RoomID][]*event.Event{
				rFoo: discussionRoom(event.MembershipBan, event.MembershipJoin),
				rBar: discussionRoom(event.MembershipJoin, event.MembershipJoin),
			},
		}
		finder := NewDiscussionFinder(client)
		discussion, err := finder.Find(ctx, string(peer), true, false)
		if err != nil {
			t.Fatal(err)
		}
		if discussion.Status != model.DiscussionJoined || discussion.RoomID != rBar {
			t.Errorf("expected joined %s, got %+v", rBar, discussion)
		}
	})

	t.Run("email keyed rooms are pending 3pid invites", func(t *testing.T) {
		client := &fakeMatrixClient{
			userID:      self,
			directChats: event.DirectChatsEventContent{id.UserID(email): {rFoo}},
			members:     map[id.RoomID][]*event.Event{rFoo: {memberEvent(self, event.MembershipJoin)}},
		}
		finder := NewDiscussionFinder(client)
		discussion, err := finder.Find(ctx, email, true, false)
		if err != nil {
			t.Fatal(err)
		}
		if discussion.Status != model.DiscussionJoined || discussion.RoomID != rFoo {
			t.Errorf("expected joined %s, got %+v", rFoo, discussion)
		}
	})

	t.Run("left email keyed room does not shadow the fresh invite", func(t *testing.T) {
		client := &fakeMatrixClient{
			userID:      self,
			directChats: event.DirectChatsEventContent{id.UserID(email): {rFoo, rBar}},
			members: map[id.RoomID][]*event.Event{
				rFoo: {memberEvent(self, event.MembershipLeave)},
				rBar: {memberEvent(self, event.MembershipJoin)},
			},
		}
		finder := NewDiscussionFinder(client)
		discussion, err := finder.Find(ctx, email, true, false)
		if err != nil {
			t.Fatal(err)
		}
		if discussion.RoomID != rBar {
			t.Errorf("expected the fresh room %s, got %+v", rBar, discussion)
		}
	})

	t.Run("unreadable room is skipped", func(t *testing.T) {
		client := &fakeMatrixClient{
			userID:      self,
			directChats: event.DirectChatsEventContent{peer: {rFoo, rBar}},
			membersErr:  map[id.RoomID]error{rFoo: errors.New("gone")},
			members: map[id.RoomID][]*event.Event{
				rBar: discussionRoom(event.MembershipJoin, event.MembershipJoin),
			},
		}
		finder := NewDiscussionFinder(client)
		discussion, err := finder.Find(ctx, string(peer), true, false)
		if err != nil {
			t.Fatal(err)
		}
		if discussion.Status != model.DiscussionJoined || discussion.RoomID != rBar {
			t.Errorf("expected joined %s, got %+v", rBar, discussion)
		}
	})
}
