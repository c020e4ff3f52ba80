// Package app provides the entry point for the gateway command-line
// application.
//
// Grounded on _examples/stacklok-toolhive/cmd/vmcp/app/commands.go: same
// cobra root command with persistent --debug/--config flags bound
// through viper, the same serve/version/validate subcommand split, and
// the same loadAndValidateConfig/runServe shape — narrowed from the
// teacher's Kubernetes-aware backend-discovery wiring to the bridge's own
// static-config backend set, and extended with the reload coordinator,
// upstream session tracker, and inbound MCP gateway this module adds.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/mcpfabric/gateway/pkg/api"
	"github.com/mcpfabric/gateway/pkg/api/management"
	"github.com/mcpfabric/gateway/pkg/bridge"
	"github.com/mcpfabric/gateway/pkg/bridge/aggregator"
	"github.com/mcpfabric/gateway/pkg/bridge/audit"
	"github.com/mcpfabric/gateway/pkg/bridge/auth"
	"github.com/mcpfabric/gateway/pkg/bridge/authz"
	"github.com/mcpfabric/gateway/pkg/bridge/config"
	"github.com/mcpfabric/gateway/pkg/bridge/frontend"
	"github.com/mcpfabric/gateway/pkg/bridge/health"
	"github.com/mcpfabric/gateway/pkg/bridge/manager"
	"github.com/mcpfabric/gateway/pkg/bridge/middleware"
	"github.com/mcpfabric/gateway/pkg/bridge/reload"
	"github.com/mcpfabric/gateway/pkg/bridge/router"
	"github.com/mcpfabric/gateway/pkg/bridge/session"
	"github.com/mcpfabric/gateway/pkg/bridge/upstream"
	"github.com/mcpfabric/gateway/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "mcpfabric",
	DisableAutoGenTag: true,
	Short:             "MCP aggregation gateway - combine multiple MCP servers behind one endpoint",
	Long: `mcpfabric aggregates multiple MCP (Model Context Protocol) backend servers
behind a single gateway endpoint. It provides:

- Tool, resource, and prompt aggregation with configurable conflict resolution
- Authentication and authorization middleware in front of every call
- Audit logging of every MCP operation and lifecycle transition
- Health monitoring and explicit reload/reconnect operations
- A management REST API alongside the gateway's own inbound MCP surface`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates the root command for the gateway CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to gateway configuration file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("Error binding config flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateCmd())

	rootCmd.SilenceUsage = true
	return rootCmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		Long: `Start the gateway, connect to every configured backend, and begin serving
aggregated MCP traffic. Reads the configuration file named by --config.`,
		RunE: runServe,
	}

	cmd.Flags().String("transport", "streamable-http", "Inbound MCP transport: stdio, sse, streamable-http")
	cmd.Flags().String("gateway-host", "127.0.0.1", "Host address the gateway's MCP endpoint binds to")
	cmd.Flags().Int("gateway-port", 4483, "Port the gateway's MCP endpoint listens on")
	cmd.Flags().String("mcp-path", "/mcp", "Streamable-HTTP endpoint path")
	cmd.Flags().String("management-host", "127.0.0.1", "Host address the management API binds to")
	cmd.Flags().Int("management-port", 4484, "Port the management API listens on")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			logger.Infof("mcpfabric version: %s", getVersion())
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long:  "Check the configured backends, conflict resolution, auth, and audit settings for syntax and semantic errors.",
		RunE: func(_ *cobra.Command, _ []string) error {
			configPath := viper.GetString("config")
			if configPath == "" {
				return fmt.Errorf("no configuration file specified, use --config flag")
			}

			cfg, err := loadAndValidateConfig(configPath)
			if err != nil {
				return err
			}

			logger.Infof("Configuration is valid")
			logger.Infof("  Backends: %d", len(cfg.Backends))
			logger.Infof("  Conflict resolution: %s", cfg.ConflictResolution.Strategy)
			logger.Infof("  Incoming auth: %s", cfg.IncomingAuth.Type)
			logger.Infof("  Authorization enabled: %t", cfg.Authorization.Enabled)
			logger.Infof("  Audit enabled: %t", cfg.Audit.Enabled)
			return nil
		},
	}
}

func getVersion() string {
	return "dev"
}

// loadAndValidateConfig loads, defaults, and validates the gateway
// configuration file.
func loadAndValidateConfig(configPath string) (*config.Config, error) {
	logger.Infof("Loading configuration from: %s", configPath)
	loader := config.NewYAMLLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	logger.Infof("Configuration loaded and validated: %d backend(s)", len(cfg.Backends))
	return cfg, nil
}

// managerBackends adapts *manager.Manager to health.Backends: the health
// monitor's contract returns a session through the narrower health.Pinger
// interface, while the manager's own Session method returns the wider
// session.Session the rest of the bridge uses — session.Session already
// satisfies health.Pinger structurally (it has a Ping method), but Go
// requires the return type in an interface method signature to match
// exactly, so a thin wrapper is needed rather than a type assertion.
type managerBackends struct {
	*manager.Manager
}

func (m managerBackends) Session(name string) (health.Pinger, bool) {
	return m.Manager.Session(name)
}

// phaseTracker remembers each backend's last-seen phase so the
// transition-notification callback (invoked concurrently by the manager's
// per-backend startup goroutines) can report an accurate from/to pair to
// the audit recorder.
type phaseTracker struct {
	mu     sync.Mutex
	phases map[string]bridge.BackendPhase
}

func newPhaseTracker() *phaseTracker {
	return &phaseTracker{phases: make(map[string]bridge.BackendPhase)}
}

func (t *phaseTracker) swap(name string, to bridge.BackendPhase) bridge.BackendPhase {
	t.mu.Lock()
	defer t.mu.Unlock()
	from := t.phases[name]
	t.phases[name] = to
	return from
}

// runServe implements the serve command: load configuration, connect to
// every backend, assemble the middleware chain, and serve both the
// gateway's inbound MCP endpoint and the management REST API until the
// command context is cancelled.
func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	configPath := viper.GetString("config")
	if configPath == "" {
		return fmt.Errorf("no configuration file specified, use --config flag")
	}

	loader := config.NewYAMLLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	descriptors := cfg.ToDescriptors()
	logger.Infof("Starting gateway with %d configured backend(s)", len(descriptors))

	var recorder *audit.Recorder
	var tail *audit.TailBuffer
	if cfg.Audit.Enabled {
		sink := audit.NewRotatingSink(audit.Config{
			File:        cfg.Audit.File,
			MaxSizeMB:   cfg.Audit.MaxSizeMB,
			BackupCount: cfg.Audit.BackupCount,
		})
		tail = audit.NewTailBuffer(sink, audit.DefaultTailCapacity)
		recorder = audit.NewRecorder(tail)
		defer recorder.Close()
		logger.Info("Audit logging enabled")
	}

	phases := newPhaseTracker()
	mgr := manager.New(session.NewFactory(), manager.WithTransitionFunc(func(name string, status bridge.BackendStatus) {
		if recorder == nil {
			return
		}
		from := phases.swap(name, status.Phase)
		var reason string
		if n := len(status.Conditions); n > 0 {
			reason = status.Conditions[n-1].Reason
		}
		recorder.BackendTransition(ctx, name, from, status.Phase, reason)
	}))

	startCtx, cancelStart := context.WithTimeout(ctx, reload.DefaultDeadline)
	if err := mgr.StartAll(startCtx, descriptors); err != nil {
		logger.Warnf("One or more backends failed to start cleanly: %v", err)
	}
	cancelStart()

	registry := bridge.NewRegistry()
	caps, dropped, err := aggregator.Rebuild(ctx, mgr, cfg.ConflictResolution.Strategy, cfg.ConflictResolution.Separator, cfg.ConflictResolution.Order)
	if err != nil {
		return fmt.Errorf("initial capability aggregation failed: %w", err)
	}
	for _, d := range dropped {
		logger.Warnf("capability dropped during aggregation: %s %s from %s (winner: %s)", d.Kind, d.ExposedName, d.Backend, d.WinningBackend)
		recorder.CapabilityDropped(ctx, d.Kind, d.ExposedName, d.Backend, d.WinningBackend)
	}
	registry.Publish(bridge.NewRouteMap(caps))

	monitor := health.New(managerBackends{mgr}, health.Config{
		Interval:          cfg.Health.Interval,
		DegradedThreshold: cfg.Health.DegradedThreshold,
		FailedThreshold:   cfg.Health.FailedThreshold,
		LatencyThreshold:  cfg.Health.LatencyThreshold,
	}.WithDefaults())

	coordinator := reload.New(mgr, registry, cfg.ConflictResolution.Strategy, cfg.ConflictResolution.Separator, cfg.ConflictResolution.Order, descriptors, reload.WithRecorder(recorder))

	tracker := upstream.New(registry, upstream.DefaultTTL)

	authProvider, err := auth.NewProvider(ctx, cfg.IncomingAuth)
	if err != nil {
		return fmt.Errorf("failed to create incoming authentication provider: %w", err)
	}

	var authzEngine *authz.Engine
	if cfg.Authorization.Enabled {
		policies := make([]authz.Policy, 0, len(cfg.Authorization.Policies))
		for _, p := range cfg.Authorization.Policies {
			policies = append(policies, authz.Policy{Effect: authz.Effect(p.Effect), Roles: p.Roles, Resources: p.Resources})
		}
		authzEngine, err = authz.New(true, authz.Effect(cfg.Authorization.DefaultEffect), policies)
		if err != nil {
			return fmt.Errorf("failed to build authorization engine: %w", err)
		}
	}

	terminal := router.New(registry, mgr)
	handler := middleware.Build(terminal.Dispatch, middleware.Options{
		AuthProvider: authProvider,
		AuthzEngine:  authzEngine,
		Recorder:     recorder,
	})

	gw := frontend.New("mcpfabric", getVersion(), registry, tracker, handler)
	gw.Sync()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		monitor.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		tracker.Run(groupCtx)
		return nil
	})

	host, _ := cmd.Flags().GetString("gateway-host")
	port, _ := cmd.Flags().GetInt("gateway-port")
	transport, _ := cmd.Flags().GetString("transport")
	mcpPath, _ := cmd.Flags().GetString("mcp-path")
	gatewayAddr := fmt.Sprintf("%s:%d", host, port)

	group.Go(func() error {
		switch transport {
		case "stdio":
			return gw.Stdio(groupCtx)
		case "sse":
			return gw.ServeSSE(groupCtx, gatewayAddr, fmt.Sprintf("http://%s", gatewayAddr))
		case "streamable-http":
			return gw.ServeStreamableHTTP(groupCtx, gatewayAddr, mcpPath)
		default:
			return fmt.Errorf("unknown transport %q", transport)
		}
	})

	mgmtHost, _ := cmd.Flags().GetString("management-host")
	mgmtPort, _ := cmd.Flags().GetInt("management-port")
	mgmtAddr := fmt.Sprintf("%s:%d", mgmtHost, mgmtPort)

	group.Go(func() error {
		return api.Serve(groupCtx, mgmtAddr, management.Deps{
			Manager:     mgr,
			Registry:    registry,
			Coordinator: coordinator,
			Config:      loader,
			Tail:        tail,
			StartedAt:   time.Now(),
		})
	})

	return group.Wait()
}
