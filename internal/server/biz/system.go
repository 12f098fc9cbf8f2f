package biz

import (
	"context"
	"time"

	"github.com/arbiterhq/arbiter/internal/build"
	"github.com/arbiterhq/arbiter/internal/pdp/dispatch"
)

// SystemStatus is the operational summary exposed on the status endpoint.
type SystemStatus struct {
	Name             string    `json:"name"`
	Version          string    `json:"version"`
	ResourcePolicies int       `json:"resource_policies"`
	CustomRules      []string  `json:"custom_rules"`
	Shards           int       `json:"shards"`
	PolicyReloadedAt time.Time `json:"policy_reloaded_at"`
	StartedAt        time.Time `json:"started_at"`
}

type SystemService struct {
	name       string
	policy     *PolicyService
	dispatcher *dispatch.Dispatcher
	startedAt  time.Time
}

func NewSystemService(policy *PolicyService, dispatcher *dispatch.Dispatcher) *SystemService {
	return &SystemService{
		name:       "arbiter",
		policy:     policy,
		dispatcher: dispatcher,
		startedAt:  time.Now(),
	}
}

func (s *SystemService) Status(ctx context.Context) SystemStatus {
	evaluator := s.policy.Evaluator()

	return SystemStatus{
		Name:             s.name,
		Version:          build.Version,
		ResourcePolicies: len(evaluator.Policy().Resources),
		CustomRules:      evaluator.Rules().Names(),
		Shards:           s.dispatcher.Routing().Shards(),
		PolicyReloadedAt: s.policy.ReloadedAt(),
		StartedAt:        s.startedAt,
	}
}
