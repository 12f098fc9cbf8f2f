package pdp

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// MemberRole is granted implicitly to every principal known to the tenant's
// attribute store, so tenant co-membership can carry permissions without an
// explicit role assignment.
const MemberRole = "member"

// Policy is the static rule set evaluated for every check. It is immutable
// once loaded; reloads swap the whole policy atomically.
type Policy struct {
	Resources []ResourcePolicy `yaml:"resources"`
}

// ResourcePolicy holds the grants and conditions for one resource type.
type ResourcePolicy struct {
	// Type is the resource type name the policy applies to.
	Type string `yaml:"type"`

	// Roles maps a role name to the actions it grants on this resource type.
	Roles map[string][]string `yaml:"roles"`

	// Conditions are attribute conditions that grant an action when they
	// evaluate to true, independent of role grants.
	Conditions []ConditionPolicy `yaml:"conditions"`
}

// ConditionPolicy is a named attribute condition in expr source form. The
// expression is evaluated against principal, resource, context and derived
// attributes; a missing attribute makes the condition false, never an error
// for the whole check.
type ConditionPolicy struct {
	Name string `yaml:"name"`

	// Actions the condition applies to. Empty means all actions.
	Actions []string `yaml:"actions"`

	// When is the expr source. It must evaluate to a boolean.
	When string `yaml:"when"`
}

// AppliesTo reports whether the condition covers the given action.
func (c ConditionPolicy) AppliesTo(action string) bool {
	return len(c.Actions) == 0 || slices.Contains(c.Actions, action)
}

// ResourcePolicy returns the policy block for a resource type.
func (p *Policy) ResourcePolicy(resourceType string) (ResourcePolicy, bool) {
	for _, rp := range p.Resources {
		if rp.Type == resourceType {
			return rp, true
		}
	}

	return ResourcePolicy{}, false
}

// Validate checks structural invariants of the policy.
func (p *Policy) Validate() error {
	seen := make(map[string]bool, len(p.Resources))

	for _, rp := range p.Resources {
		if rp.Type == "" {
			return fmt.Errorf("policy: resource with empty type")
		}

		if seen[rp.Type] {
			return fmt.Errorf("policy: duplicate resource type %q", rp.Type)
		}

		seen[rp.Type] = true

		for _, cond := range rp.Conditions {
			if cond.Name == "" {
				return fmt.Errorf("policy: resource %q has a condition with no name", rp.Type)
			}

			if cond.When == "" {
				return fmt.Errorf("policy: condition %q on resource %q has no expression", cond.Name, rp.Type)
			}
		}
	}

	return nil
}

// ParsePolicy decodes a policy from YAML and validates it.
func ParsePolicy(data []byte) (*Policy, error) {
	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return &policy, nil
}

// LoadPolicy reads and parses a policy file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	return ParsePolicy(data)
}
