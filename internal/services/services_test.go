package services

import (
	"github.com/tchapgouv/rps/internal/model"
)

// fakeConfig is a static config service for tests
type fakeConfig struct {
	cfg *model.Config
}

func (f *fakeConfig) Get() *model.Config {
	return f.cfg
}

func testConfig() *fakeConfig {
	return &fakeConfig{cfg: &model.Config{
		Matrix: &model.ConfigMatrix{
			HomeserverURL: "https://matrix.agent.dinum.tchap.gouv.fr",
			UserID:        "@policy-bot:agent.dinum.tchap.gouv.fr",
		},
		Identity: &model.ConfigIdentity{
			Servers: []string{"https://matrix.agent.dinum.tchap.gouv.fr"},
		},
		Hosts: &model.ConfigHosts{
			ServerPrefix:     "https://matrix.",
			DisplaySuffix:    "tchap.gouv.fr",
			ExternalPrefixes: []string{"e.", "agent.externe."},
		},
		Features: map[string][]string{},
	}}
}
