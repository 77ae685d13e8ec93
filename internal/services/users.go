package services

import (
	"context"
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/tchapgouv/rps/internal/model"
	"github.com/tchapgouv/rps/internal/utils"
)

const profileCacheSize = 10000

type thirdPartyIDResolver interface {
	Resolve(ctx context.Context, address, medium string) (*model.ThirdPartyIDInfo, error)
}

type accountClient interface {
	Profile(ctx context.Context, userID id.UserID) (*model.User, error)
	AccountInfo(ctx context.Context, userID id.UserID) (*model.AccountInfo, error)
}

// Users classifies accounts and third-party identifiers against the Tchap
// federation conventions. Classification is offline (string-only) and
// fail-closed: anything malformed is treated as external / not-same-host.
type Users struct {
	cfg      ConfigService
	resolver thirdPartyIDResolver
	account  accountClient
	profiles *lru.Cache[id.UserID, *model.User]
}

// NewUsers creates new user classification service
func NewUsers(cfg ConfigService, resolver thirdPartyIDResolver, account accountClient) (*Users, error) {
	profiles, err := lru.New[id.UserID, *model.User](profileCacheSize)
	if err != nil {
		return nil, err
	}

	return &Users{
		cfg:      cfg,
		resolver: resolver,
		account:  account,
		profiles: profiles,
	}, nil
}

// IsExternal reports whether the user belongs to an external (guest) homeserver.
// Invalid user IDs are external: when in doubt, deny.
func (u *Users) IsExternal(userID string) bool {
	_, host, ok := utils.ParseUserID(userID)
	if !ok {
		return true
	}
	return u.IsExternalHost(host)
}

// IsExternalHost reports whether the homeserver host is an external one,
// by the configured hostname prefixes
func (u *Users) IsExternalHost(host string) bool {
	for _, prefix := range u.cfg.Get().Hosts.ExternalPrefixes {
		if strings.HasPrefix(host, prefix) {
			return true
		}
	}
	return false
}

// SameHost reports whether both user IDs live on the same homeserver.
// False when either ID is unparseable.
func (u *Users) SameHost(userID, otherID string) bool {
	_, host, ok := utils.ParseUserID(userID)
	if !ok {
		return false
	}
	_, otherHost, ok := utils.ParseUserID(otherID)
	if !ok {
		return false
	}
	return host == otherHost
}

// Host returns the homeserver host of the user ID, or "" when invalid
func (u *Users) Host(userID string) string {
	_, host, ok := utils.ParseUserID(userID)
	if !ok {
		return ""
	}
	return host
}

// HostDisplayName builds the short human label of a homeserver host
// ("agent.name2.tchap.gouv.fr" -> "Name2")
func (u *Users) HostDisplayName(host string) string {
	return utils.HostDisplayName(host, u.cfg.Get().Hosts.DisplaySuffix)
}

// DisplayName derives a display name from the user ID localpart,
// used when no profile display name is available
func (u *Users) DisplayName(userID string) string {
	return utils.DisplayNameFromID(userID)
}

// BuildUser builds a user record from the ID alone, without any lookup
func (u *Users) BuildUser(userID id.UserID) *model.User {
	return &model.User{
		ID:          userID,
		DisplayName: utils.DisplayNameFromID(string(userID)),
	}
}

// FindUser returns the profile of the user, with the display name derived
// from the ID when the profile is missing or empty. Profiles are cached -
// they change rarely and lookups are on the hot path of invite rendering.
func (u *Users) FindUser(ctx context.Context, userID id.UserID) (*model.User, error) {
	if cached, ok := u.profiles.Get(userID); ok {
		return cached, nil
	}

	user, err := u.account.Profile(ctx, userID)
	if err != nil {
		if errors.Is(err, mautrix.MNotFound) {
			return u.BuildUser(userID), nil
		}
		return nil, err
	}
	if user.DisplayName == "" {
		user.DisplayName = utils.DisplayNameFromID(string(userID))
	}

	u.profiles.Add(userID, user)
	return user, nil
}

// IsAccountInactive reports whether the account is deactivated or expired.
// Fail-open on the signal: a homeserver that doesn't expose the status
// endpoint must not lock anyone out. Transport errors are still surfaced.
func (u *Users) IsAccountInactive(ctx context.Context, userID id.UserID) (bool, error) {
	info, err := u.account.AccountInfo(ctx, userID)
	if err != nil {
		if errors.Is(err, mautrix.MNotFound) || errors.Is(err, mautrix.MUnrecognized) {
			return false, nil
		}
		return false, err
	}
	return info.Deactivated || info.Expired, nil
}

// IsEmailAuthorized reports whether the email address is claimed by any
// homeserver of the federation
func (u *Users) IsEmailAuthorized(ctx context.Context, email string) (bool, error) {
	info, err := u.resolver.Resolve(ctx, email, MediumEmail)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

// IsEmailBoundToExternalHost reports whether the email address maps
// to an external homeserver. Unauthorized addresses are not external -
// they are nothing at all.
func (u *Users) IsEmailBoundToExternalHost(ctx context.Context, email string) (bool, error) {
	info, err := u.resolver.Resolve(ctx, email, MediumEmail)
	if err != nil {
		return false, err
	}
	if info == nil {
		return false, nil
	}
	return u.IsExternalHost(info.Hostname), nil
}

// IsEmailBound reports whether the email address maps to the given homeserver host
func (u *Users) IsEmailBound(ctx context.Context, email, host string) (bool, error) {
	info, err := u.resolver.Resolve(ctx, email, MediumEmail)
	if err != nil {
		return false, err
	}
	return info != nil && info.Hostname == host, nil
}
