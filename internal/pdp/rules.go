package pdp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/arbiterhq/arbiter/internal/log"
	"github.com/arbiterhq/arbiter/internal/objects"
)

// RuleNamespace is the single well-known namespace custom attribute rules are
// registered under. Rules declared under any other namespace are rejected, so
// the evaluator can locate rules deterministically.
const RuleNamespace = "arbiter.rules"

// RuleFunc is a programmatic custom attribute rule. It must be a pure
// function of its inputs: no I/O, no ambient randomness, no retained state.
type RuleFunc func(principal, resource objects.Attributes) (any, error)

type customRule struct {
	name   string
	source string   // expr source, when file-based
	fn     RuleFunc // programmatic, when registered from Go
}

// RuleRegistry holds the custom attribute rules. Each rule derives one
// attribute named after the rule. Rules are re-invoked for every check and
// never accumulate state across calls.
type RuleRegistry struct {
	mu       sync.RWMutex
	rules    map[string]customRule
	programs *programCache
}

func NewRuleRegistry() *RuleRegistry {
	programs, err := newProgramCache(0)
	if err != nil {
		// lru.New only fails on non-positive size, which newProgramCache defaults.
		panic(err)
	}

	return &RuleRegistry{
		rules:    make(map[string]customRule),
		programs: programs,
	}
}

// Register adds an expression-based rule. The namespace must be RuleNamespace
// and the expression must compile; registration is the only moment a rule can
// fail loudly.
func (r *RuleRegistry) Register(namespace, name, source string) error {
	if namespace != RuleNamespace {
		return fmt.Errorf("unrecognized rule namespace %q (rules must live in %q)", namespace, RuleNamespace)
	}

	if name == "" {
		return fmt.Errorf("rule name is required")
	}

	if _, err := r.programs.compile(source, false); err != nil {
		return fmt.Errorf("rule %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules[name] = customRule{name: name, source: source}

	return nil
}

// RegisterFunc adds a programmatic rule.
func (r *RuleRegistry) RegisterFunc(namespace, name string, fn RuleFunc) error {
	if namespace != RuleNamespace {
		return fmt.Errorf("unrecognized rule namespace %q (rules must live in %q)", namespace, RuleNamespace)
	}

	if name == "" || fn == nil {
		return fmt.Errorf("rule name and function are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules[name] = customRule{name: name, fn: fn}

	return nil
}

// Names returns the registered rule names, sorted.
func (r *RuleRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.rules))
	for name := range r.rules {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// ruleFile is the on-disk rule declaration format.
type ruleFile struct {
	Namespace string `yaml:"namespace"`
	Rules     []struct {
		Name string `yaml:"name"`
		Expr string `yaml:"expr"`
	} `yaml:"rules"`
}

// LoadDir registers every rule declared in *.yaml / *.yml files under dir.
// A missing directory is not an error: deployments without custom rules are
// the common case.
func (r *RuleRegistry) LoadDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("read rules directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read rule file %s: %w", path, err)
		}

		var file ruleFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parse rule file %s: %w", path, err)
		}

		for _, rule := range file.Rules {
			if err := r.Register(file.Namespace, rule.Name, rule.Expr); err != nil {
				return fmt.Errorf("rule file %s: %w", path, err)
			}

			log.Debug(ctx, "registered custom attribute rule",
				log.String("rule", rule.Name),
				log.String("file", entry.Name()),
			)
		}
	}

	return nil
}

// ReloadDir re-reads the rule directory and replaces the registered rules in
// one swap. A parse or compile failure leaves the current rules in place.
func (r *RuleRegistry) ReloadDir(ctx context.Context, dir string) error {
	fresh := NewRuleRegistry()
	if err := fresh.LoadDir(ctx, dir); err != nil {
		return err
	}

	r.mu.Lock()
	r.rules = fresh.rules
	r.mu.Unlock()

	return nil
}

// Derive computes the derived attributes for one check. Rules run in name
// order so identical inputs always yield identical outputs. A failing rule
// contributes the documented default (false) for its own attribute only; the
// failure is recorded on the trace when one is collected.
func (r *RuleRegistry) Derive(ctx context.Context, in EvalInput, trace *objects.EvaluationTrace) objects.Attributes {
	r.mu.RLock()

	rules := make([]customRule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, rule)
	}

	r.mu.RUnlock()

	sort.Slice(rules, func(i, j int) bool { return rules[i].name < rules[j].name })

	derived := make(objects.Attributes, len(rules))

	for _, rule := range rules {
		value, err := r.invoke(rule, in)
		if err != nil {
			// The rule failed internally. Its derived attribute falls back to
			// the documented default; every other attribute is unaffected.
			derived[rule.name] = false

			log.Debug(ctx, "custom attribute rule failed",
				log.String("rule", rule.name),
				log.Cause(err),
			)

			if trace != nil {
				trace.Conditions = append(trace.Conditions, objects.ConditionTrace{
					Name:  rule.name,
					Kind:  "custom_rule",
					Error: err.Error(),
				})
			}

			continue
		}

		derived[rule.name] = value

		if trace != nil {
			matched, _ := value.(bool)
			trace.Conditions = append(trace.Conditions, objects.ConditionTrace{
				Name:    rule.name,
				Kind:    "custom_rule",
				Matched: matched,
			})
		}
	}

	return derived
}

func (r *RuleRegistry) invoke(rule customRule, in EvalInput) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value = nil
			err = fmt.Errorf("%w: panic: %v", ErrPluginExecution, rec)
		}
	}()

	if rule.fn != nil {
		value, err = rule.fn(in.PrincipalAttributes, in.ResourceAttributes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPluginExecution, err)
		}

		return value, nil
	}

	return r.programs.EvalValue(rule.source, in)
}
