package objects

// EvaluationTrace exposes the full evaluation context used for a check:
// resolved attributes, derived custom attributes and the per-rule outcomes.
// A trace is always scoped to the tenant of the originating request.
type EvaluationTrace struct {
	Tenant string `json:"tenant"`
	Shard  int    `json:"shard"`

	PrincipalAttributes Attributes `json:"principal_attributes,omitempty"`
	ResourceAttributes  Attributes `json:"resource_attributes,omitempty"`
	DerivedAttributes   Attributes `json:"derived_attributes,omitempty"`

	MatchedRoles []string         `json:"matched_roles,omitempty"`
	Grants       []GrantTrace     `json:"grants,omitempty"`
	Conditions   []ConditionTrace `json:"conditions,omitempty"`
}

// GrantTrace records a role grant considered during evaluation.
type GrantTrace struct {
	Role     string `json:"role"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Matched  bool   `json:"matched"`
}

// ConditionTrace records the outcome of one condition or custom attribute
// rule. Error is the rule-local failure, which never aborts the check.
type ConditionTrace struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"` // condition, custom_rule
	Matched bool   `json:"matched"`
	Error   string `json:"error,omitempty"`
}
