// Package access centralizes role capability checks. Every route guard goes
// through Can(role, resource, action) instead of comparing role strings at
// the call site.
package access

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

type Permission struct {
	Resource string   `yaml:"resource"`
	Actions  []string `yaml:"actions"`
}

type Role struct {
	Description string       `yaml:"description"`
	Permissions []Permission `yaml:"permissions"`
}

type Policy struct {
	Roles       map[string]Role     `yaml:"roles"`
	Inheritance map[string][]string `yaml:"inheritance"`
}

type RBAC struct {
	policy      *Policy
	mu          sync.RWMutex
	policyCache map[string]map[string]bool // role -> "resource:action" -> allowed
}

// DefaultPolicy is used unless a policy file overrides it. PENDING holds no
// permissions: freshly registered accounts cannot touch locks until promoted.
func DefaultPolicy() *Policy {
	return &Policy{
		Roles: map[string]Role{
			"ADMIN": {
				Description: "Full administrative access",
				Permissions: []Permission{
					{Resource: "*", Actions: []string{"*"}},
				},
			},
			"SUPERVISOR": {
				Description: "Lock inventory and user management",
				Permissions: []Permission{
					{Resource: "locks", Actions: []string{"manage"}},
					{Resource: "users", Actions: []string{"manage"}},
					{Resource: "events", Actions: []string{"view"}},
				},
			},
			"USER": {
				Description: "Field worker",
				Permissions: []Permission{
					{Resource: "locks", Actions: []string{"view", "assign", "release"}},
				},
			},
			"PENDING": {
				Description: "Awaiting approval",
			},
		},
		Inheritance: map[string][]string{
			"ADMIN":      {"SUPERVISOR"},
			"SUPERVISOR": {"USER"},
		},
	}
}

var (
	rbacInstance *RBAC
	rbacOnce     sync.Once
)

// GetRBAC returns the singleton RBAC instance, initialized with the default
// policy.
func GetRBAC() *RBAC {
	rbacOnce.Do(func() {
		rbacInstance = &RBAC{
			policy:      DefaultPolicy(),
			policyCache: make(map[string]map[string]bool),
		}
	})
	return rbacInstance
}

// LoadPolicy replaces the capability policy from a YAML file.
func (r *RBAC) LoadPolicy(filepath string) error {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return fmt.Errorf("failed to parse policy file: %w", err)
	}

	r.mu.Lock()
	r.policy = &policy
	r.policyCache = make(map[string]map[string]bool) // Clear cache
	r.mu.Unlock()

	slog.Info("RBAC policy loaded", "file", filepath, "roles", len(policy.Roles))
	return nil
}

// expandRoles returns the role plus everything it inherits.
func (r *RBAC) expandRoles(role string) []string {
	all := make(map[string]bool)
	all[role] = true
	r.addInheritedRoles(role, all)

	result := make([]string, 0, len(all))
	for name := range all {
		result = append(result, name)
	}
	return result
}

// addInheritedRoles recursively adds inherited roles
func (r *RBAC) addInheritedRoles(role string, roles map[string]bool) {
	if r.policy == nil || r.policy.Inheritance == nil {
		return
	}

	inherited := r.policy.Inheritance[role]
	for _, inheritedRole := range inherited {
		if !roles[inheritedRole] {
			roles[inheritedRole] = true
			r.addInheritedRoles(inheritedRole, roles)
		}
	}
}

// Can checks if a role can perform an action on a resource.
func (r *RBAC) Can(role, resource, action string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.policy == nil {
		slog.Warn("RBAC policy not loaded")
		return false
	}

	// Check cache first
	cacheKey := fmt.Sprintf("%s:%s", resource, action)
	if cache, exists := r.policyCache[role]; exists {
		if allowed, found := cache[cacheKey]; found {
			return allowed
		}
	}

	allowed := false
	for _, roleName := range r.expandRoles(role) {
		def, exists := r.policy.Roles[roleName]
		if !exists {
			continue
		}

		for _, perm := range def.Permissions {
			// Check wildcard resource
			if perm.Resource == "*" || perm.Resource == resource {
				// Check wildcard action or specific action
				for _, act := range perm.Actions {
					if act == "*" || act == action {
						allowed = true
						break
					}
				}
			}
			if allowed {
				break
			}
		}
		if allowed {
			break
		}
	}

	// Cache the result
	if r.policyCache[role] == nil {
		r.policyCache[role] = make(map[string]bool)
	}
	r.policyCache[role][cacheKey] = allowed

	return allowed
}
