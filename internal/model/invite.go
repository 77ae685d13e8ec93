package model

import "maunium.net/go/mautrix/id"

// InviteResult is the outcome of an email invite attempt
type InviteResult string

const (
	// InviteSent - a new discussion room with a pending 3pid invite was created
	InviteSent InviteResult = "sent"
	// InviteAlreadySent - an earlier invite to this address is still pending
	InviteAlreadySent InviteResult = "already_sent"
	// InviteDiscoveredUser - the address belongs to an existing account;
	// the caller should start a regular discussion with that user instead
	InviteDiscoveredUser InviteResult = "discovered_user"
	// InviteUnauthorized - no homeserver of the federation claims the address
	InviteUnauthorized InviteResult = "unauthorized"
)

// InviteStatus is the result of an email invite attempt
type InviteStatus struct {
	Result InviteResult `json:"result"`
	RoomID id.RoomID    `json:"room_id,omitempty"`
	UserID id.UserID    `json:"user_id,omitempty"`
}
