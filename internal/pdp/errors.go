package pdp

import (
	"errors"
	"fmt"
)

// Failures are always scoped to the smallest affected unit: a single derived
// attribute, a single request, or a single tenant partition. None of these
// errors abort a whole batch.
var (
	// ErrMissingAttribute marks a condition that referenced an attribute absent
	// from the snapshot. The condition evaluates to false; the check proceeds.
	ErrMissingAttribute = errors.New("missing attribute")

	// ErrPluginExecution marks a custom attribute rule that failed internally.
	// Only that derived attribute is treated as absent.
	ErrPluginExecution = errors.New("custom rule execution failed")

	// ErrTimeout marks a tenant partition that exceeded the query timeout.
	ErrTimeout = errors.New("evaluation timed out")

	// ErrRouting marks a request whose resource cannot be resolved to a tenant.
	ErrRouting = errors.New("cannot resolve tenant for resource")
)

// RoutingError reports the request that could not be routed.
type RoutingError struct {
	ResourceType string
	ResourceKey  string
}

func (e *RoutingError) Error() string {
	if e.ResourceKey != "" {
		return fmt.Sprintf("cannot resolve tenant for resource %s:%s", e.ResourceType, e.ResourceKey)
	}

	return fmt.Sprintf("cannot resolve tenant for resource %s", e.ResourceType)
}

func (e *RoutingError) Unwrap() error {
	return ErrRouting
}
