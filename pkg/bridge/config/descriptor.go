package config

import "github.com/mcpfabric/gateway/pkg/bridge"

// ToDescriptor converts one loaded backend entry into the
// bridge.BackendDescriptor the client manager and reload coordinator
// operate on, resolving the union-shaped ConnectConfig/OutgoingAuthConfig
// down to the transport- and strategy-specific bridge types.
func (b BackendWithName) ToDescriptor() bridge.BackendDescriptor {
	return bridge.BackendDescriptor{
		Name:      b.Name,
		Transport: b.Transport,
		Stdio: bridge.StdioConnect{
			Command: b.Connect.Command,
			Args:    b.Connect.Args,
			Env:     b.Connect.Env,
		},
		Network: bridge.NetworkConnect{
			URL:     b.Connect.URL,
			Headers: b.Connect.Headers,
		},
		Auth:          outgoingAuth(b.Auth),
		Group:         b.Group,
		Filters:       b.Filters,
		ToolOverrides: b.ToolOverrides,
		Timeouts: bridge.Timeouts{
			Init:       b.Timeouts.Init,
			CapFetch:   b.Timeouts.CapFetch,
			StartDelay: b.Timeouts.SSEStartup,
		},
	}
}

func outgoingAuth(cfg *OutgoingAuthConfig) bridge.OutgoingAuth {
	if cfg == nil {
		return bridge.OutgoingAuth{Kind: bridge.OutgoingAuthNone}
	}
	auth := bridge.OutgoingAuth{Kind: cfg.Type, Static: cfg.Static}
	if cfg.ClientCredentials != nil {
		auth.ClientCredentials = &bridge.ClientCredentialsConfig{
			TokenURL:      cfg.ClientCredentials.TokenURL,
			ClientID:      cfg.ClientCredentials.ClientID,
			ClientSecret:  cfg.ClientCredentials.ClientSecret,
			Scopes:        cfg.ClientCredentials.Scopes,
			RefreshBuffer: cfg.ClientCredentials.RefreshBuffer,
		}
	}
	return auth
}

// ToDescriptors converts every loaded backend, in deterministic
// (sorted-by-name) order, via ToDescriptor.
func (c *Config) ToDescriptors() []bridge.BackendDescriptor {
	entries := c.toBackendsWithName()
	out := make([]bridge.BackendDescriptor, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.ToDescriptor())
	}
	return out
}
