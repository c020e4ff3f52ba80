package config

import (
	"time"

	"dario.cat/mergo"
)

// defaults applied by ApplyDefaults, mirroring spec.md's stated defaults.
const (
	DefaultSeparator         = "_"
	DefaultHealthInterval    = 30 * time.Second
	DefaultDegradedThreshold = 1
	DefaultFailedThreshold   = 3
	DefaultLatencyThreshold  = 5 * time.Second
	DefaultAuditBackupCount  = 5
	DefaultRefreshBuffer     = 30 * time.Second
)

// defaultConfig is merged into every loaded Config by ApplyDefaults — only
// zero-valued destination fields are filled in (mergo's default,
// non-overriding merge), so anything the YAML set explicitly survives.
var defaultConfig = Config{
	ConflictResolution: ConflictResolutionConfig{Separator: DefaultSeparator},
	Health: HealthConfig{
		Interval:          DefaultHealthInterval,
		DegradedThreshold: DefaultDegradedThreshold,
		FailedThreshold:   DefaultFailedThreshold,
		LatencyThreshold:  DefaultLatencyThreshold,
	},
	Audit:         AuditConfig{BackupCount: DefaultAuditBackupCount},
	IncomingAuth:  IncomingAuthConfig{Type: "anonymous"},
	Authorization: AuthorizationConfig{DefaultEffect: "deny"},
}

// ApplyDefaults mutates cfg in place, filling zero-valued fields with the
// package defaults via dario.cat/mergo so the loader's output never leaves
// ambiguous zero values for the bridge to reinterpret.
func ApplyDefaults(cfg *Config) {
	// mergo.Merge only fills destination zero values, never overrides a
	// value the YAML already set; Backends is merged by hand below because
	// mergo's default map-merge does not reach into per-backend Group/Auth
	// zero fields the way struct-field merging does.
	backends := cfg.Backends
	cfg.Backends = nil
	_ = mergo.Merge(cfg, defaultConfig)
	cfg.Backends = backends

	for name, b := range cfg.Backends {
		if b.Group == "" {
			b.Group = "default"
		}
		if b.Auth != nil && b.Auth.ClientCredentials != nil && b.Auth.ClientCredentials.RefreshBuffer == 0 {
			b.Auth.ClientCredentials.RefreshBuffer = DefaultRefreshBuffer
		}
		cfg.Backends[name] = b
	}
}
