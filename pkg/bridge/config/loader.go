package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mcpfabric/gateway/pkg/bridge"
)

// YAMLLoader reads, defaults, and validates a Config from a YAML file.
// Grounded on the teacher's config.NewYAMLLoader(path) shape
// (pkg/vmcp/config/yaml_loader_test.go); environment-variable expansion
// and secret resolution happen upstream of this package (spec.md §1) — the
// file this loader reads is expected to already be secret-free.
type YAMLLoader struct {
	path string
}

// NewYAMLLoader returns a loader bound to path.
func NewYAMLLoader(path string) *YAMLLoader {
	return &YAMLLoader{path: path}
}

// Load reads the file, applies package defaults, validates the result, and
// returns the ready-to-use Config. A validation failure is wrapped with
// the file path (the original error stays reachable via errors.Is/As) so
// callers (the CLI's `validate` subcommand) can print it.
func (l *YAMLLoader) Load() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", l.path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", l.path, err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config %q: %w", l.path, err)
	}
	return &cfg, nil
}

// Descriptors re-reads the bound file and converts it straight to the
// bridge-domain descriptor slice the reload coordinator consumes, so the
// management API's reload() call always reloads from the config on disk
// rather than the process's original in-memory copy.
func (l *YAMLLoader) Descriptors() ([]bridge.BackendDescriptor, error) {
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}
	return cfg.ToDescriptors(), nil
}

// toBackendsWithName pairs every loaded backend with its map key, in
// sorted-by-name order — Go's map iteration carries no order of its own,
// and sorting by name matches the deterministic tie-break rule spec.md
// §3/§4.4 require for conflict resolution. ToDescriptors (descriptor.go)
// converts this into the bridge.BackendDescriptor slice callers use.
func (c *Config) toBackendsWithName() []BackendWithName {
	names := make([]string, 0, len(c.Backends))
	for name := range c.Backends {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]BackendWithName, 0, len(names))
	for _, name := range names {
		out = append(out, BackendWithName{Name: name, BackendConfig: c.Backends[name]})
	}
	return out
}

// BackendWithName pairs a BackendConfig with the map key it was loaded
// under, since YAML maps carry no guaranteed order of their own.
type BackendWithName struct {
	Name string
	BackendConfig
}
