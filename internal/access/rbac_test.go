package access

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRBAC() *RBAC {
	return &RBAC{
		policy:      DefaultPolicy(),
		policyCache: make(map[string]map[string]bool),
	}
}

func TestDefaultPolicy_CapabilityMatrix(t *testing.T) {
	rbac := newTestRBAC()

	cases := []struct {
		role     string
		resource string
		action   string
		allowed  bool
	}{
		{"ADMIN", "locks", "manage", true},
		{"ADMIN", "users", "manage", true},
		{"ADMIN", "events", "view", true},
		{"ADMIN", "anything", "whatever", true}, // wildcard

		{"SUPERVISOR", "locks", "manage", true},
		{"SUPERVISOR", "users", "manage", true},
		{"SUPERVISOR", "events", "view", true},
		{"SUPERVISOR", "locks", "view", true}, // inherited from USER
		{"SUPERVISOR", "locks", "assign", true},

		{"USER", "locks", "view", true},
		{"USER", "locks", "assign", true},
		{"USER", "locks", "release", true},
		{"USER", "locks", "manage", false},
		{"USER", "users", "manage", false},
		{"USER", "events", "view", false},

		{"PENDING", "locks", "view", false},
		{"PENDING", "locks", "assign", false},
		{"PENDING", "users", "manage", false},

		{"UNKNOWN_ROLE", "locks", "view", false},
	}

	for _, tc := range cases {
		got := rbac.Can(tc.role, tc.resource, tc.action)
		assert.Equalf(t, tc.allowed, got, "%s %s:%s", tc.role, tc.resource, tc.action)
	}
}

func TestCan_CachedResultStable(t *testing.T) {
	rbac := newTestRBAC()

	first := rbac.Can("USER", "locks", "assign")
	second := rbac.Can("USER", "locks", "assign")
	assert.True(t, first)
	assert.Equal(t, first, second)
}

func TestLoadPolicy_OverridesDefaults(t *testing.T) {
	policyYAML := `
roles:
  AUDITOR:
    description: Read-only audit access
    permissions:
      - resource: events
        actions: [view]
  USER:
    description: Restricted field worker
    permissions:
      - resource: locks
        actions: [view]
inheritance:
  AUDITOR: [USER]
`
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policyYAML), 0644))

	rbac := newTestRBAC()
	require.NoError(t, rbac.LoadPolicy(path))

	assert.True(t, rbac.Can("AUDITOR", "events", "view"))
	assert.True(t, rbac.Can("AUDITOR", "locks", "view")) // via inheritance
	assert.True(t, rbac.Can("USER", "locks", "view"))
	assert.False(t, rbac.Can("USER", "locks", "assign"), "override removed the default grant")
	assert.False(t, rbac.Can("ADMIN", "locks", "manage"), "roles absent from the override have no permissions")
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	rbac := newTestRBAC()
	err := rbac.LoadPolicy("/does/not/exist.yaml")
	require.Error(t, err)
}
