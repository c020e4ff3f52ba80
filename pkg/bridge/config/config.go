// Package config defines the validated configuration value tree the bridge
// consumes, and a thin YAML loader/validator around it.
//
// The bridge core itself never touches a filesystem or an environment
// variable — spec.md §1 makes parsing, env-expansion, and secret resolution
// an explicit non-goal of the core. This package is the adapter that turns
// an on-disk YAML file into the already-validated, secret-free Config value
// the rest of pkg/bridge is built against, grounded on the teacher's
// config.NewYAMLLoader(path, envReader) shape in
// pkg/vmcp/config/yaml_loader_test.go.
package config

import (
	"time"

	"github.com/mcpfabric/gateway/pkg/bridge"
)

// Config is the root configuration value tree, matching the field table in
// spec.md §6.
type Config struct {
	Backends            map[string]BackendConfig `yaml:"backends"`
	ConflictResolution   ConflictResolutionConfig `yaml:"conflict_resolution"`
	IncomingAuth         IncomingAuthConfig       `yaml:"incoming_auth"`
	Authorization        AuthorizationConfig      `yaml:"authorization"`
	Audit                AuditConfig              `yaml:"audit"`
	Health               HealthConfig             `yaml:"health"`
}

// BackendConfig is one entry of the backends map, keyed by backend name in
// the loaded YAML (the key becomes BackendDescriptor.Name).
type BackendConfig struct {
	Transport     bridge.TransportKind                        `yaml:"transport"`
	Connect       ConnectConfig                               `yaml:"connect"`
	Auth          *OutgoingAuthConfig                         `yaml:"auth"`
	Filters       map[bridge.CapabilityKind]bridge.FilterRules `yaml:"filters"`
	ToolOverrides map[string]bridge.ToolOverride               `yaml:"tool_overrides"`
	Timeouts      TimeoutsConfig                              `yaml:"timeouts"`
	Group         string                                      `yaml:"group"`
}

// ConnectConfig holds the union of per-transport connect parameters; only
// the fields relevant to BackendConfig.Transport are populated.
type ConnectConfig struct {
	// stdio
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`

	// sse / streamable-http
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// OutgoingAuthConfig selects one outgoing-auth strategy for a backend.
type OutgoingAuthConfig struct {
	Type              bridge.OutgoingAuthKind          `yaml:"type"`
	Static            *bridge.StaticAuthConfig         `yaml:"static"`
	ClientCredentials *ClientCredentialsConfig         `yaml:"client_credentials"`
}

// ClientCredentialsConfig is the YAML shape of a client-credentials token
// fetch; RefreshBuffer defaults to 30s when zero (see ApplyDefaults in defaults.go).
type ClientCredentialsConfig struct {
	TokenURL      string        `yaml:"token_url"`
	ClientID      string        `yaml:"client_id"`
	ClientSecret  string        `yaml:"client_secret"`
	Scopes        []string      `yaml:"scopes"`
	RefreshBuffer time.Duration `yaml:"refresh_buffer"`
}

// TimeoutsConfig is the YAML shape of per-backend timeout overrides.
type TimeoutsConfig struct {
	Init       time.Duration `yaml:"init"`
	CapFetch   time.Duration `yaml:"cap_fetch"`
	SSEStartup time.Duration `yaml:"sse_startup"`
}

// ConflictResolutionConfig configures the conflict resolver (spec.md §4.4).
type ConflictResolutionConfig struct {
	Strategy  bridge.ConflictStrategy `yaml:"strategy"`
	Separator string                  `yaml:"separator"`
	Order     []string                `yaml:"order"`
}

// IncomingAuthConfig configures the authentication middleware's provider.
type IncomingAuthConfig struct {
	Type  string      `yaml:"type"` // anonymous / local / jwt / oidc
	Local LocalConfig `yaml:"local"`
	JWT   JWTConfig   `yaml:"jwt"`
	OIDC  OIDCConfig  `yaml:"oidc"`
}

// LocalConfig is the static-bearer-token provider's configuration.
type LocalConfig struct {
	Token string `yaml:"token"`
}

// JWTConfig configures JWKS-backed JWT validation without OIDC discovery.
type JWTConfig struct {
	JWKSURI    string   `yaml:"jwks_uri"`
	Issuer     string   `yaml:"issuer"`
	Audience   string   `yaml:"audience"`
	Algorithms []string `yaml:"algorithms"`
}

// OIDCConfig configures OIDC-discovery-backed validation.
type OIDCConfig struct {
	Issuer   string   `yaml:"issuer"`
	Audience string   `yaml:"audience"`
	Scopes   []string `yaml:"scopes"`
}

// AuthorizationConfig configures the authorization engine (spec.md §4.9).
type AuthorizationConfig struct {
	Enabled       bool           `yaml:"enabled"`
	DefaultEffect string         `yaml:"default_effect"` // allow / deny
	Policies      []PolicyConfig `yaml:"policies"`
}

// PolicyConfig is one ordered policy entry.
type PolicyConfig struct {
	Effect    string   `yaml:"effect"` // allow / deny
	Roles     []string `yaml:"roles"`
	Resources []string `yaml:"resources"`
}

// AuditConfig configures the audit recorder's sink (spec.md §4.10).
type AuditConfig struct {
	Enabled     bool   `yaml:"enabled"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"max_size"`
	BackupCount int    `yaml:"backup_count"`
}

// HealthConfig configures the health monitor (spec.md §4.6).
type HealthConfig struct {
	Interval          time.Duration `yaml:"interval"`
	DegradedThreshold int           `yaml:"degraded_threshold"`
	FailedThreshold   int           `yaml:"failed_threshold"`
	LatencyThreshold  time.Duration `yaml:"latency_threshold"`
}
