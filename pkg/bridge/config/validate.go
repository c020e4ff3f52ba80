package config

import (
	"fmt"
	"regexp"

	"github.com/mcpfabric/gateway/pkg/bridge"
)

var backendNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var validStrategies = map[bridge.ConflictStrategy]bool{
	bridge.ConflictFirstWins: true,
	bridge.ConflictPrefix:    true,
	bridge.ConflictPriority:  true,
	bridge.ConflictError:     true,
}

// ValidationError reports one configuration field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a loaded Config for the constraints spec.md §3 and §6
// impose, returning the first violation found. Callers should call
// ApplyDefaults before Validate so default-filled fields are checked too.
func Validate(cfg *Config) error {
	for name, b := range cfg.Backends {
		if !backendNamePattern.MatchString(name) {
			return &ValidationError{Field: "backends." + name, Message: "name must match [A-Za-z0-9_-]+"}
		}
		switch b.Transport {
		case bridge.TransportStdio:
			if b.Connect.Command == "" {
				return &ValidationError{Field: "backends." + name + ".connect.command", Message: "required for stdio transport"}
			}
		case bridge.TransportSSE, bridge.TransportStreamableHTTP:
			if b.Connect.URL == "" {
				return &ValidationError{Field: "backends." + name + ".connect.url", Message: "required for network transports"}
			}
		default:
			return &ValidationError{Field: "backends." + name + ".transport", Message: "must be one of stdio, sse, streamable-http"}
		}
		if b.Auth != nil {
			switch b.Auth.Type {
			case bridge.OutgoingAuthNone, bridge.OutgoingAuthStatic, bridge.OutgoingAuthClientCredentials:
			default:
				return &ValidationError{Field: "backends." + name + ".auth.type", Message: "must be static or client-credentials"}
			}
			if b.Auth.Type == bridge.OutgoingAuthClientCredentials && (b.Auth.ClientCredentials == nil || b.Auth.ClientCredentials.TokenURL == "") {
				return &ValidationError{Field: "backends." + name + ".auth.client_credentials.token_url", Message: "required"}
			}
		}
	}

	// The strategy name "manual" is explicitly called out in spec.md §9's
	// Open Questions as a historically-documented-but-invalid value; it is
	// rejected here along with any other unrecognized string rather than
	// silently accepted as a no-op strategy.
	if !validStrategies[cfg.ConflictResolution.Strategy] {
		return &ValidationError{
			Field:   "conflict_resolution.strategy",
			Message: fmt.Sprintf("must be one of first-wins, prefix, priority, error (got %q)", cfg.ConflictResolution.Strategy),
		}
	}
	if cfg.ConflictResolution.Strategy == bridge.ConflictPriority && len(cfg.ConflictResolution.Order) == 0 {
		return &ValidationError{Field: "conflict_resolution.order", Message: "required for priority strategy"}
	}

	switch cfg.IncomingAuth.Type {
	case "anonymous", "local", "jwt", "oidc":
	default:
		return &ValidationError{Field: "incoming_auth.type", Message: "must be one of anonymous, local, jwt, oidc"}
	}
	if cfg.IncomingAuth.Type == "local" && cfg.IncomingAuth.Local.Token == "" {
		return &ValidationError{Field: "incoming_auth.local.token", Message: "required for local provider"}
	}
	if cfg.IncomingAuth.Type == "oidc" && cfg.IncomingAuth.OIDC.Issuer == "" {
		return &ValidationError{Field: "incoming_auth.oidc.issuer", Message: "required for oidc provider"}
	}
	if cfg.IncomingAuth.Type == "jwt" && cfg.IncomingAuth.JWT.JWKSURI == "" {
		return &ValidationError{Field: "incoming_auth.jwt.jwks_uri", Message: "required for jwt provider"}
	}

	if cfg.Authorization.Enabled {
		switch cfg.Authorization.DefaultEffect {
		case "allow", "deny":
		default:
			return &ValidationError{Field: "authorization.default_effect", Message: "must be allow or deny"}
		}
		for i, p := range cfg.Authorization.Policies {
			if p.Effect != "allow" && p.Effect != "deny" {
				return &ValidationError{Field: fmt.Sprintf("authorization.policies[%d].effect", i), Message: "must be allow or deny"}
			}
		}
	}

	return nil
}
