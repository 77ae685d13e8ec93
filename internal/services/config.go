package services

import (
	"context"
	"os"
	"sync"

	"github.com/etkecc/go-apm"
	"github.com/etkecc/go-fswatcher"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/tchapgouv/rps/internal/model"
)

// Tchap federation conventions, used when the config file doesn't override them
var (
	defaultServerPrefix     = "https://matrix."
	defaultDisplaySuffix    = "tchap.gouv.fr"
	defaultExternalPrefixes = []string{"e.", "agent.externe."}
)

// Config service
type Config struct {
	mu   *sync.Mutex
	fsw  *fswatcher.Watcher
	path string
	cfg  *model.Config
}

type ConfigService interface {
	Get() *model.Config
}

// NewConfig creates new config service and loads the config
func NewConfig(path string) (*Config, error) {
	ctx := apm.NewContext()
	c := &Config{
		mu:   &sync.Mutex{},
		path: path,
	}
	c.Read(ctx)

	var err error
	c.fsw, err = fswatcher.New([]string{path}, 0)
	if err != nil {
		return nil, err
	}
	go c.fsw.Start(func(_ fsnotify.Event) { c.Read(ctx) })

	return c, nil
}

// Get config
func (c *Config) Get() *model.Config {
	return c.cfg
}

// Read config
func (c *Config) Read(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	log := apm.Log(ctx)

	log.Info().Msg("reading config")
	configb, err := os.ReadFile(c.path)
	if err != nil {
		log.Error().Err(err).Msg("cannot read config")
		return
	}
	var config *model.Config
	err = yaml.Unmarshal(configb, &config)
	if err != nil {
		log.Error().Err(err).Msg("cannot unmarshal config")
		return
	}

	applyDefaults(config)
	c.cfg = config
}

func applyDefaults(cfg *model.Config) {
	if cfg.Hosts == nil {
		cfg.Hosts = &model.ConfigHosts{}
	}
	if cfg.Hosts.ServerPrefix == "" {
		cfg.Hosts.ServerPrefix = defaultServerPrefix
	}
	if cfg.Hosts.DisplaySuffix == "" {
		cfg.Hosts.DisplaySuffix = defaultDisplaySuffix
	}
	if len(cfg.Hosts.ExternalPrefixes) == 0 {
		cfg.Hosts.ExternalPrefixes = defaultExternalPrefixes
	}
	if cfg.Matrix == nil {
		cfg.Matrix = &model.ConfigMatrix{}
	}
	if cfg.Identity == nil {
		cfg.Identity = &model.ConfigIdentity{}
	}
	if cfg.Auth == nil {
		cfg.Auth = &model.ConfigAuth{}
	}
}
