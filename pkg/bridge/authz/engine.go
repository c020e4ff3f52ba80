// Package authz implements the authorization engine (spec.md §4.9): a
// stateless, closed glob-based policy matcher evaluating a role set
// against an ordered list of {effect, roles, resources} policies, falling
// back to a configured default effect when nothing matches.
//
// The teacher's own authorization layer (_examples/stacklok-toolhive/
// pkg/authz) is built on a general-purpose Cedar policy engine
// (authorizers/cedar); spec.md §4.9 instead specifies a small closed
// glob matcher, so this package is grounded on the teacher's
// tool_filter_test.go (glob-based tool name matching) and
// config_test.go (ordered policy list, first-match-wins, default effect)
// rather than on the Cedar authorizer itself — see DESIGN.md for why
// Cedar was not wired here.
package authz

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/mcpfabric/gateway/pkg/bridge"
)

// Effect is a policy's allow/deny outcome.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Policy is one ordered {effect, role globs, resource globs} rule.
type Policy struct {
	Effect    Effect
	Roles     []string
	Resources []string
}

type compiledPolicy struct {
	effect    Effect
	roles     []glob.Glob
	resources []glob.Glob
}

// Engine evaluates an identity's role set against its compiled policy list.
// Stateless across requests, per spec.md §4.9.
type Engine struct {
	enabled       bool
	defaultEffect Effect
	policies      []compiledPolicy
}

// New compiles policies into an Engine. An error is returned if any glob
// pattern fails to compile — configuration validation is expected to catch
// this before Engine construction, but New re-checks defensively.
func New(enabled bool, defaultEffect Effect, policies []Policy) (*Engine, error) {
	e := &Engine{enabled: enabled, defaultEffect: defaultEffect}
	for i, p := range policies {
		cp := compiledPolicy{effect: p.Effect}
		for _, r := range p.Roles {
			g, err := glob.Compile(r)
			if err != nil {
				return nil, fmt.Errorf("authz: policy %d: compiling role pattern %q: %w", i, r, err)
			}
			cp.roles = append(cp.roles, g)
		}
		for _, r := range p.Resources {
			g, err := glob.Compile(r)
			if err != nil {
				return nil, fmt.Errorf("authz: policy %d: compiling resource pattern %q: %w", i, r, err)
			}
			cp.resources = append(cp.resources, g)
		}
		e.policies = append(e.policies, cp)
	}
	return e, nil
}

// Resource builds the "kind:capability-name" resource identifier spec.md
// §4.9 defines, e.g. Resource(bridge.KindTool, "search_web") -> "tool:search_web".
func Resource(kind bridge.CapabilityKind, name string) string {
	return fmt.Sprintf("%s:%s", kind, name)
}

// Authorize evaluates roles against the resource identifier, returning
// true if access is allowed. When the engine is disabled (authorization
// not configured), every request is allowed — spec.md §4.9: "an
// enabled: false authorization configuration makes the middleware a
// pass-through."
func (e *Engine) Authorize(roles []string, resource string) bool {
	if !e.enabled {
		return true
	}
	for _, p := range e.policies {
		if !anyRoleMatches(p.roles, roles) {
			continue
		}
		if !anyResourceMatches(p.resources, resource) {
			continue
		}
		return p.effect == EffectAllow
	}
	return e.defaultEffect == EffectAllow
}

func anyRoleMatches(patterns []glob.Glob, roles []string) bool {
	for _, role := range roles {
		for _, p := range patterns {
			if p.Match(role) {
				return true
			}
		}
	}
	return false
}

func anyResourceMatches(patterns []glob.Glob, resource string) bool {
	for _, p := range patterns {
		if p.Match(resource) {
			return true
		}
	}
	return false
}
