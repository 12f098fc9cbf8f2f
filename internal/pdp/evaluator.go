package pdp

import (
	"context"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/arbiterhq/arbiter/internal/log"
	"github.com/arbiterhq/arbiter/internal/objects"
	"github.com/arbiterhq/arbiter/internal/store"
)

// Evaluator computes authorization decisions. A decision is a pure function
// of the request, the attribute snapshot and the policy: no hidden state, so
// identical inputs replay to identical results.
type Evaluator struct {
	policy   atomic.Pointer[Policy]
	store    store.AttributeStore
	rules    *RuleRegistry
	programs *programCache
}

// NewEvaluator builds an evaluator over the given policy, store and rules.
func NewEvaluator(policy *Policy, attrStore store.AttributeStore, rules *RuleRegistry) (*Evaluator, error) {
	programs, err := newProgramCache(0)
	if err != nil {
		return nil, err
	}

	e := &Evaluator{
		store:    attrStore,
		rules:    rules,
		programs: programs,
	}
	e.policy.Store(policy)

	return e, nil
}

// Policy returns the current policy snapshot.
func (e *Evaluator) Policy() *Policy {
	return e.policy.Load()
}

// ReloadPolicy swaps the policy atomically. In-flight checks keep evaluating
// against the snapshot they started with.
func (e *Evaluator) ReloadPolicy(policy *Policy) {
	e.policy.Store(policy)
}

// Rules exposes the custom attribute rule registry.
func (e *Evaluator) Rules() *RuleRegistry {
	return e.rules
}

// Check evaluates one request against the given tenant. The tenant has been
// resolved and routed by the dispatcher; shard is recorded on traces only.
func (e *Evaluator) Check(ctx context.Context, tenant string, shard int, req objects.CheckRequest, withTrace bool) objects.CheckResult {
	if err := ctx.Err(); err != nil {
		return objects.CheckResult{
			Tenant: tenant,
			Error:  &objects.CheckError{Code: objects.CheckErrorTimeout, Message: ErrTimeout.Error()},
		}
	}

	storedPrincipal, principalFound, err := e.store.Principal(ctx, tenant, req.Principal.Key)
	if err != nil {
		return internalError(tenant, err)
	}

	storedResource, _, err := e.store.Resource(ctx, tenant, req.Resource.Type, req.Resource.Key)
	if err != nil {
		return internalError(tenant, err)
	}

	// Inline attributes override stored ones for this request only.
	principalAttrs := storedPrincipal.Merge(req.Principal.Attributes)
	resourceAttrs := storedResource.Merge(req.Resource.Attributes)

	in := EvalInput{
		Tenant:              tenant,
		PrincipalKey:        req.Principal.Key,
		PrincipalAttributes: principalAttrs,
		ResourceType:        req.Resource.Type,
		ResourceKey:         req.Resource.Key,
		ResourceAttributes:  resourceAttrs,
		Action:              req.Action,
		Context:             req.Context,
	}

	var trace *objects.EvaluationTrace
	if withTrace {
		trace = &objects.EvaluationTrace{
			Tenant:              tenant,
			Shard:               shard,
			PrincipalAttributes: principalAttrs,
			ResourceAttributes:  resourceAttrs,
		}
	}

	in.Derived = e.rules.Derive(ctx, in, trace)

	if trace != nil {
		trace.DerivedAttributes = in.Derived
	}

	allowed := e.decide(ctx, in, principalFound, trace)

	result := objects.CheckResult{
		Allowed: allowed,
		Tenant:  tenant,
		Trace:   trace,
	}

	return result
}

func internalError(tenant string, err error) objects.CheckResult {
	return objects.CheckResult{
		Tenant: tenant,
		Error:  &objects.CheckError{Code: objects.CheckErrorInternal, Message: err.Error()},
	}
}

// decide applies role grants first, then attribute conditions. The first
// match allows; with no match the default is deny.
func (e *Evaluator) decide(ctx context.Context, in EvalInput, principalFound bool, trace *objects.EvaluationTrace) bool {
	policy := e.policy.Load()

	rp, ok := policy.ResourcePolicy(in.ResourceType)
	if !ok {
		log.Debug(ctx, "no policy for resource type",
			log.String("resource_type", in.ResourceType),
			log.String("tenant", in.Tenant),
		)

		return false
	}

	roles := e.principalRoles(in, principalFound)

	if trace != nil {
		trace.MatchedRoles = roles
	}

	allowed := false

	for _, role := range sortedRoleNames(rp.Roles) {
		actions := rp.Roles[role]

		granted := slices.Contains(actions, in.Action) && slices.Contains(roles, role)
		if trace != nil {
			trace.Grants = append(trace.Grants, objects.GrantTrace{
				Role:     role,
				Action:   in.Action,
				Resource: in.ResourceType,
				Matched:  granted,
			})
		}

		if granted {
			allowed = true

			if trace == nil {
				return true
			}
		}
	}

	if allowed {
		return true
	}

	for _, cond := range rp.Conditions {
		if !cond.AppliesTo(in.Action) {
			continue
		}

		matched, err := e.programs.EvalBool(cond.When, in)

		if trace != nil {
			ct := objects.ConditionTrace{
				Name:    cond.Name,
				Kind:    "condition",
				Matched: matched,
			}
			if err != nil {
				ct.Error = err.Error()
			}

			trace.Conditions = append(trace.Conditions, ct)
		}

		if err != nil {
			// Missing attributes make the condition false, never the check fail.
			log.Debug(ctx, "condition evaluation defaulted to false",
				log.String("condition", cond.Name),
				log.Cause(err),
			)

			continue
		}

		if matched {
			allowed = true

			if trace == nil {
				return true
			}
		}
	}

	return allowed
}

// principalRoles resolves the principal's roles from the merged attribute
// view. Principals known to the tenant are implicit members.
func (e *Evaluator) principalRoles(in EvalInput, principalFound bool) []string {
	stored, _ := in.PrincipalAttributes.GetStrings("roles")

	// The stored slice may be shared with the store snapshot; never sort or
	// append to it in place.
	roles := slices.Clone(stored)

	if principalFound && !slices.Contains(roles, MemberRole) {
		roles = append(roles, MemberRole)
	}

	sort.Strings(roles)

	return roles
}

func sortedRoleNames(roles map[string][]string) []string {
	names := make([]string, 0, len(roles))
	for name := range roles {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
