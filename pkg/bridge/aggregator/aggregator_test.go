package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpfabric/gateway/pkg/bridge"
)

func tool(name string) bridge.Capability {
	return bridge.Capability{Kind: bridge.KindTool, ExposedName: name}
}

func TestFilterAndRename_DenyWinsOverAllow(t *testing.T) {
	t.Parallel()

	raw := []bridge.Capability{tool("search_web"), tool("search_internal"), tool("foo")}
	rules := map[bridge.CapabilityKind]bridge.FilterRules{
		bridge.KindTool: {Allow: []string{"search_*"}, Deny: []string{"search_internal"}},
	}
	out := FilterAndRename(raw, rules, nil)

	names := make([]string, len(out))
	for i, c := range out {
		names[i] = c.ExposedName
	}
	assert.ElementsMatch(t, []string{"search_web"}, names)
}

func TestFilterAndRename_Override(t *testing.T) {
	t.Parallel()

	raw := []bridge.Capability{tool("create_issue")}
	overrides := map[string]bridge.ToolOverride{"create_issue": {Name: "file_issue", Description: "File a new issue"}}
	out := FilterAndRename(raw, nil, overrides)

	require.Len(t, out, 1)
	assert.Equal(t, "file_issue", out[0].ExposedName)
	assert.Equal(t, "create_issue", out[0].OriginalName)
	assert.Equal(t, "File a new issue", out[0].Description)
}

func TestResolve_Prefix(t *testing.T) {
	t.Parallel()

	catalogs := []BackendCatalog{
		{Backend: "gh", Capabilities: []bridge.Capability{tool("search")}},
		{Backend: "jira", Capabilities: []bridge.Capability{tool("search")}},
	}
	out, dropped, err := Resolve(catalogs, bridge.ConflictPrefix, "_", nil)
	require.NoError(t, err)
	assert.Empty(t, dropped)

	byName := map[string]bridge.Capability{}
	for _, c := range out {
		byName[c.ExposedName] = c
	}
	require.Contains(t, byName, "gh_search")
	require.Contains(t, byName, "jira_search")
	assert.Equal(t, "gh", byName["gh_search"].Backend)
	assert.Equal(t, "search", byName["gh_search"].OriginalName)
	assert.NotContains(t, byName, "search")
}

func TestResolve_FirstWins(t *testing.T) {
	t.Parallel()

	catalogs := []BackendCatalog{
		{Backend: "gh", Capabilities: []bridge.Capability{tool("search")}},
		{Backend: "jira", Capabilities: []bridge.Capability{tool("search")}},
	}
	out, dropped, err := Resolve(catalogs, bridge.ConflictFirstWins, "_", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "gh", out[0].Backend)
	require.Len(t, dropped, 1)
	assert.Equal(t, "jira", dropped[0].Backend)
	assert.Equal(t, "gh", dropped[0].WinningBackend)
}

func TestResolve_Priority(t *testing.T) {
	t.Parallel()

	catalogs := []BackendCatalog{
		{Backend: "gh", Capabilities: []bridge.Capability{tool("search")}},
		{Backend: "jira", Capabilities: []bridge.Capability{tool("search")}},
	}
	out, _, err := Resolve(catalogs, bridge.ConflictPriority, "_", []string{"jira", "gh"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "jira", out[0].Backend)
}

func TestResolve_Error(t *testing.T) {
	t.Parallel()

	catalogs := []BackendCatalog{
		{Backend: "gh", Capabilities: []bridge.Capability{tool("search")}},
		{Backend: "jira", Capabilities: []bridge.Capability{tool("search")}},
	}
	_, _, err := Resolve(catalogs, bridge.ConflictError, "_", nil)
	require.Error(t, err)
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.ElementsMatch(t, []string{"gh", "jira"}, conflictErr.Backends)
}

func TestResolve_NoConflictNoError(t *testing.T) {
	t.Parallel()

	catalogs := []BackendCatalog{
		{Backend: "gh", Capabilities: []bridge.Capability{tool("search")}},
		{Backend: "jira", Capabilities: []bridge.Capability{tool("list_projects")}},
	}
	out, _, err := Resolve(catalogs, bridge.ConflictError, "_", nil)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
