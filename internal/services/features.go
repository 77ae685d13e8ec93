package services

import (
	"github.com/tchapgouv/rps/internal/model"
)

// Feature identifiers known by the clients. The allow-list in the config may
// reference any identifier; unknown features are simply disabled everywhere.
const (
	FeatureNotificationByEmail = "tchapFeatureNotificationByEmail"
	FeatureVoiceOverIP         = "tchapFeatureVoiceOverIP"
	FeatureVideoOverIP         = "tchapFeatureVideoOverIP"
	FeatureGeolocationSharing  = "tchapFeatureGeolocationSharing"
)

// Features resolves whether a named feature is enabled for a homeserver,
// using the allow-list from the config. New features ship disabled: no entry
// means off for every homeserver.
type Features struct {
	cfg ConfigService
}

// NewFeatures creates new feature gate service
func NewFeatures(cfg ConfigService) *Features {
	return &Features{cfg: cfg}
}

// IsEnabled reports whether the feature is enabled for the given homeserver host.
// Lookup order: exact feature entry, then the any-feature wildcard entry;
// within the entry the host must be listed, or the any-homeserver wildcard present.
func (f *Features) IsEnabled(feature, host string) bool {
	allowlist := f.cfg.Get().Features
	entry, ok := allowlist[feature]
	if !ok {
		entry, ok = allowlist[model.FeatureAny]
	}
	if !ok {
		return false
	}

	for _, allowed := range entry {
		if allowed == model.HomeserverAny || allowed == host {
			return true
		}
	}
	return false
}

// IsEnabledHere reports whether the feature is enabled for the configured homeserver
func (f *Features) IsEnabledHere(feature string) bool {
	return f.IsEnabled(feature, f.cfg.Get().Homeserver())
}
