package model

import (
	echobasicauth "github.com/etkecc/go-echo-basic-auth"
)

const (
	// FeatureAny is the allow-list key matching every feature
	FeatureAny = "*"
	// HomeserverAny is the allow-list value matching every homeserver
	HomeserverAny = "*"
)

// Config is RPS configuration model
type Config struct {
	Port      string              `yaml:"port"`
	SentryDSN string              `yaml:"sentry_dsn"`
	LogLevel  string              `yaml:"loglevel"`
	Matrix    *ConfigMatrix       `yaml:"matrix"`
	Identity  *ConfigIdentity     `yaml:"identity"`
	Hosts     *ConfigHosts        `yaml:"hosts"`
	Features  map[string][]string `yaml:"features"`
	Auth      *ConfigAuth         `yaml:"auth"`
}

// ConfigMatrix - homeserver connection configuration
type ConfigMatrix struct {
	HomeserverURL string `yaml:"homeserver_url"`
	UserID        string `yaml:"user_id"`
	AccessToken   string `yaml:"access_token"`
}

// ConfigIdentity - identity servers configuration.
// Servers are tried in order until one answers.
type ConfigIdentity struct {
	Servers []string `yaml:"servers"`
}

// ConfigHosts - homeserver naming conventions of the federation
type ConfigHosts struct {
	// ServerPrefix is the URL prefix shared by home and identity servers, e.g. "https://matrix."
	ServerPrefix string `yaml:"server_prefix"`
	// DisplaySuffix is the hostname suffix stripped to build display names, e.g. "tchap.gouv.fr"
	DisplaySuffix string `yaml:"display_suffix"`
	// ExternalPrefixes are the hostname prefixes of external (guest) instances
	ExternalPrefixes []string `yaml:"external_prefixes"`
}

// ConfigAuth - basic auth credentials of the protected endpoints
type ConfigAuth struct {
	Metrics echobasicauth.Auth `yaml:"metrics"`
	Admin   echobasicauth.Auth `yaml:"admin"`
}

// Homeserver returns the bare homeserver host, i.e. the homeserver URL
// without the shared server prefix
func (c *Config) Homeserver() string {
	if c.Matrix == nil {
		return ""
	}
	if c.Hosts == nil || c.Hosts.ServerPrefix == "" {
		return c.Matrix.HomeserverURL
	}
	host := c.Matrix.HomeserverURL
	if len(host) >= len(c.Hosts.ServerPrefix) && host[:len(c.Hosts.ServerPrefix)] == c.Hosts.ServerPrefix {
		host = host[len(c.Hosts.ServerPrefix):]
	}
	return host
}
