package model

import "maunium.net/go/mautrix/id"

// User is a normalized Tchap user record.
// Immutable after construction - a changed profile produces a new value.
type User struct {
	ID          id.UserID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}

// AccountInfo is the response of the account status endpoint.
// Both fields default to false when absent from the response.
type AccountInfo struct {
	Expired     bool `json:"expired"`
	Deactivated bool `json:"deactivated"`
}

// ThirdPartyIDInfo is the platform information of an authorized third-party
// identifier, as resolved by the identity servers
type ThirdPartyIDInfo struct {
	Hostname      string `json:"hs"`
	HomeserverURL string `json:"homeserver_url"`
	Invited       bool   `json:"invited"`
}

// MatrixError model
type MatrixError struct {
	HTTP    string `json:"-"`       // HTTP Status e.g., 401 Unauthorized
	Code    string `json:"errcode"` // Matrix error code, e.g M_UNAUTHORIZED
	Message string `json:"error"`   // Matrix error message
}

// Error string
func (e MatrixError) Error() string {
	return e.HTTP + " (" + e.Code + "): " + e.Message
}
