package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/etkecc/go-apm"
	"github.com/etkecc/go-kit"
	"github.com/goccy/go-json"
	"maunium.net/go/mautrix/id"

	"github.com/tchapgouv/rps/internal/model"
	"github.com/tchapgouv/rps/internal/utils"
)

// MediumEmail is the third-party identifier medium for email addresses
const MediumEmail = "email"

const identityAPIPrefix = "/_matrix/identity/api/v1"

// ErrNoIdentityServer is returned when every configured identity server failed
var ErrNoIdentityServer = errors.New("no identity server answered")

// Identity resolves third-party identifiers against the configured identity servers.
// Servers are tried in order until one answers; only transport failures move on
// to the next server.
type Identity struct {
	cfg ConfigService
}

// NewIdentity creates new identity resolution service
func NewIdentity(cfg ConfigService) *Identity {
	return &Identity{cfg: cfg}
}

// Resolve returns the platform information of an authorized third-party
// identifier, or nil when no homeserver claims it (unauthorized).
// Errors are transport/server failures only.
func (i *Identity) Resolve(ctx context.Context, address, medium string) (*model.ThirdPartyIDInfo, error) {
	log := apm.Log(ctx)
	var lastErr error
	for _, server := range i.cfg.Get().Identity.Servers {
		info, err := i.resolve(ctx, server, address, medium)
		if err != nil {
			log.Warn().Err(err).Str("server", server).Msg("identity info request failed")
			lastErr = err
			continue
		}
		return info, nil
	}
	if lastErr == nil {
		lastErr = ErrNoIdentityServer
	}
	return nil, lastErr
}

// Lookup returns the matrix user ID bound to a third-party identifier,
// or "" when the identifier is not bound to any account
func (i *Identity) Lookup(ctx context.Context, address, medium string) (id.UserID, error) {
	log := apm.Log(ctx)
	var lastErr error
	for _, server := range i.cfg.Get().Identity.Servers {
		mxid, err := i.lookup(ctx, server, address, medium)
		if err != nil {
			log.Warn().Err(err).Str("server", server).Msg("identity lookup request failed")
			lastErr = err
			continue
		}
		return mxid, nil
	}
	if lastErr == nil {
		lastErr = ErrNoIdentityServer
	}
	return "", lastErr
}

func (i *Identity) resolve(ctx context.Context, server, address, medium string) (*model.ThirdPartyIDInfo, error) {
	resp, err := utils.Get(ctx, strings.TrimSuffix(server, "/")+identityAPIPrefix+"/info", url.Values{
		"address": {address},
		"medium":  {medium},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		if merr := kit.MatrixErrorFrom(resp.Body); merr != nil {
			return nil, merr
		}
		return nil, fmt.Errorf("identity server %s returned %s", server, resp.Status)
	}

	var body struct {
		HS      string `json:"hs"`
		Invited bool   `json:"invited"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		// an answer we cannot parse is an answer that claims nothing
		return nil, nil //nolint:nilerr // unauthorized, not a transport failure
	}
	if body.HS == "" {
		return nil, nil
	}

	return &model.ThirdPartyIDInfo{
		Hostname:      body.HS,
		HomeserverURL: i.cfg.Get().Hosts.ServerPrefix + body.HS,
		Invited:       body.Invited,
	}, nil
}

func (i *Identity) lookup(ctx context.Context, server, address, medium string) (id.UserID, error) {
	resp, err := utils.Get(ctx, strings.TrimSuffix(server, "/")+identityAPIPrefix+"/lookup", url.Values{
		"address": {address},
		"medium":  {medium},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		if merr := kit.MatrixErrorFrom(resp.Body); merr != nil {
			return "", merr
		}
		return "", fmt.Errorf("identity server %s returned %s", server, resp.Status)
	}

	var body struct {
		MXID id.UserID `json:"mxid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", nil //nolint:nilerr // not bound
	}
	return body.MXID, nil
}
