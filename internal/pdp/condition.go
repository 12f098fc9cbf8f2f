package pdp

import (
	"encoding/json"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tidwall/gjson"

	"github.com/arbiterhq/arbiter/internal/objects"
)

// EvalInput is the attribute view a condition or custom rule evaluates
// against. It is fully resolved before evaluation: evaluation is a pure
// function of this input.
type EvalInput struct {
	Tenant string

	PrincipalKey        string
	PrincipalAttributes objects.Attributes

	ResourceType       string
	ResourceKey        string
	ResourceAttributes objects.Attributes

	Action  string
	Context objects.Attributes
	Derived objects.Attributes
}

// Env builds the expression environment. Expressions see:
//
//	principal.key, principal.attributes.*
//	resource.type, resource.key, resource.tenant, resource.attributes.*
//	action, context.*, derived.*
//	lookup("path.to.value") for gjson path queries over the whole input
func (in EvalInput) Env() map[string]any {
	env := map[string]any{
		"principal": map[string]any{
			"key":        in.PrincipalKey,
			"attributes": map[string]any(in.PrincipalAttributes),
		},
		"resource": map[string]any{
			"type":       in.ResourceType,
			"key":        in.ResourceKey,
			"tenant":     in.Tenant,
			"attributes": map[string]any(in.ResourceAttributes),
		},
		"action":  in.Action,
		"context": map[string]any(in.Context),
		"derived": map[string]any(in.Derived),
	}

	// The lookup document is built from the data keys only; the closure itself
	// is not marshalable and must not be part of it.
	var doc []byte

	env["lookup"] = func(path string) any {
		if doc == nil {
			data, err := json.Marshal(map[string]any{
				"principal": env["principal"],
				"resource":  env["resource"],
				"action":    env["action"],
				"context":   env["context"],
				"derived":   env["derived"],
			})
			if err != nil {
				return nil
			}

			doc = data
		}

		return gjson.GetBytes(doc, path).Value()
	}

	return env
}

// programCache compiles expr sources once and keeps the compiled programs in
// an LRU cache. Boolean and value programs are cached under distinct keys
// because they compile with different output constraints.
type programCache struct {
	programs *lru.Cache[string, *vm.Program]
}

const defaultProgramCacheSize = 1024

func newProgramCache(size int) (*programCache, error) {
	if size <= 0 {
		size = defaultProgramCacheSize
	}

	programs, err := lru.New[string, *vm.Program](size)
	if err != nil {
		return nil, err
	}

	return &programCache{programs: programs}, nil
}

func (c *programCache) compile(source string, asBool bool) (*vm.Program, error) {
	key := "v:" + source
	if asBool {
		key = "b:" + source
	}

	if program, ok := c.programs.Get(key); ok {
		return program, nil
	}

	opts := []expr.Option{
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	}
	if asBool {
		opts = append(opts, expr.AsBool())
	}

	program, err := expr.Compile(source, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}

	c.programs.Add(key, program)

	return program, nil
}

// EvalBool runs a boolean expression against the input. A runtime failure
// (typically a missing attribute) yields false with the error attached; the
// caller decides whether to surface it in a trace.
func (c *programCache) EvalBool(source string, in EvalInput) (bool, error) {
	program, err := c.compile(source, true)
	if err != nil {
		return false, err
	}

	out, err := expr.Run(program, in.Env())
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrMissingAttribute, err)
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to a boolean: %T", out)
	}

	return result, nil
}

// EvalValue runs a value expression against the input, for derived custom
// attributes.
func (c *programCache) EvalValue(source string, in EvalInput) (any, error) {
	program, err := c.compile(source, false)
	if err != nil {
		return nil, err
	}

	out, err := expr.Run(program, in.Env())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPluginExecution, err)
	}

	return out, nil
}
