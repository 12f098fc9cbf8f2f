package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zhenzou/executors"
	"go.uber.org/multierr"

	"github.com/arbiterhq/arbiter/internal/log"
	"github.com/arbiterhq/arbiter/internal/pdp"
	"github.com/arbiterhq/arbiter/internal/pkg/watcher"
	"github.com/arbiterhq/arbiter/internal/store"
)

// PolicyConfig locates the policy sources and controls refresh behavior.
type PolicyConfig struct {
	// Path is the policy YAML file.
	Path string `conf:"path" yaml:"path" json:"path"`

	// RulesDir holds custom attribute rule files.
	RulesDir string `conf:"rules_dir" yaml:"rules_dir" json:"rules_dir"`

	// ReloadCron refreshes policy, rules and the attribute fixture on a
	// schedule. Empty disables the scheduled refresh.
	ReloadCron string `conf:"reload_cron" yaml:"reload_cron" json:"reload_cron"`

	// Watch propagates reload requests across instances.
	Watch watcher.Config `conf:"watch" yaml:"watch" json:"watch"`
}

const policyReloadChannel = "arbiter:policy:reload"

// reloadable is implemented by store backends that can refresh their
// snapshot in place.
type reloadable interface {
	Reload() error
}

// PolicyService owns the evaluator's policy and rule lifecycle: initial load,
// admin-triggered reloads, scheduled refreshes, and cross-instance reload
// propagation through the watcher.
type PolicyService struct {
	config    PolicyConfig
	evaluator *pdp.Evaluator
	store     store.AttributeStore
	notifier  watcher.Notifier[string]

	mu         sync.Mutex
	reloadedAt time.Time

	stopWatch func()
}

func NewPolicyService(config PolicyConfig, attrStore store.AttributeStore) (*PolicyService, error) {
	registry := pdp.NewRuleRegistry()
	if config.RulesDir != "" {
		if err := registry.LoadDir(context.Background(), config.RulesDir); err != nil {
			return nil, fmt.Errorf("load custom rules: %w", err)
		}
	}

	policy := &pdp.Policy{}

	if config.Path != "" {
		loaded, err := pdp.LoadPolicy(config.Path)
		if err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}

		policy = loaded
	}

	evaluator, err := pdp.NewEvaluator(policy, attrStore, registry)
	if err != nil {
		return nil, err
	}

	notifier, err := watcher.NewWatcherFromConfig[string](config.Watch, watcher.WatcherFromConfigOptions{
		RedisChannel: policyReloadChannel,
	})
	if err != nil {
		return nil, fmt.Errorf("policy watcher: %w", err)
	}

	return &PolicyService{
		config:     config,
		evaluator:  evaluator,
		store:      attrStore,
		notifier:   notifier,
		reloadedAt: time.Now(),
	}, nil
}

// Evaluator exposes the evaluator built from the loaded policy.
func (s *PolicyService) Evaluator() *pdp.Evaluator {
	return s.evaluator
}

// ReloadedAt reports when policy sources were last applied.
func (s *PolicyService) ReloadedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reloadedAt
}

// RequestReload broadcasts a reload request. Every subscribed instance,
// including this one, re-reads its policy sources.
func (s *PolicyService) RequestReload(ctx context.Context) error {
	return s.notifier.Notify(ctx, time.Now().Format(time.RFC3339Nano))
}

// Reload re-reads the policy file, the rule directory and the attribute
// fixture. Each source swaps atomically and independently; a failed source
// keeps its previous state without blocking the others.
func (s *PolicyService) Reload(ctx context.Context) error {
	var errs error

	if s.config.Path != "" {
		policy, err := pdp.LoadPolicy(s.config.Path)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reload policy: %w", err))
		} else {
			s.evaluator.ReloadPolicy(policy)
		}
	}

	if s.config.RulesDir != "" {
		if err := s.evaluator.Rules().ReloadDir(ctx, s.config.RulesDir); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reload custom rules: %w", err))
		}
	}

	if r, ok := s.store.(reloadable); ok {
		if err := r.Reload(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reload attribute snapshot: %w", err))
		}
	}

	if errs != nil {
		return errs
	}

	s.mu.Lock()
	s.reloadedAt = time.Now()
	s.mu.Unlock()

	log.Info(ctx, "policy sources reloaded",
		log.String("policy", s.config.Path),
		log.String("rules_dir", s.config.RulesDir),
	)

	return nil
}

// Start subscribes to reload broadcasts and registers the scheduled refresh.
func (s *PolicyService) Start(ctx context.Context, executor executors.ScheduledExecutor) error {
	events, stop := s.notifier.Watch()
	s.stopWatch = stop

	go func() {
		for range events {
			if err := s.Reload(context.Background()); err != nil {
				log.Error(context.Background(), "policy reload failed", log.Cause(err))
			}
		}
	}()

	if s.config.ReloadCron != "" {
		_, err := executor.ScheduleFuncAtCronRate(func(ctx context.Context) {
			if err := s.Reload(ctx); err != nil {
				log.Error(ctx, "scheduled policy reload failed", log.Cause(err))
			}
		}, executors.CRONRule{Expr: s.config.ReloadCron})
		if err != nil {
			return fmt.Errorf("schedule policy reload: %w", err)
		}
	}

	return nil
}

// Stop unsubscribes from reload broadcasts.
func (s *PolicyService) Stop(ctx context.Context) error {
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}

	return nil
}
