package contexts

import (
	"context"
)

// ContextKey defines the context key type.
type ContextKey string

const (
	// containerContextKey is used to store the context container in the context.
	containerContextKey ContextKey = "context_container"
)

// WithTraceID stores the trace id in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	container := getContainer(ctx)
	container.TraceID = &traceID

	return withContainer(ctx, container)
}

// GetTraceID retrieves the trace id from the context.
func GetTraceID(ctx context.Context) (string, bool) {
	container := getContainer(ctx)
	if container.TraceID != nil {
		return *container.TraceID, true
	}

	return "", false
}

// WithRequestID stores the request id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	container := getContainer(ctx)
	container.RequestID = &requestID

	return withContainer(ctx, container)
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) (string, bool) {
	container := getContainer(ctx)
	if container.RequestID != nil {
		return *container.RequestID, true
	}

	return "", false
}

// WithOperationName stores the operation name in the context.
func WithOperationName(ctx context.Context, name string) context.Context {
	container := getContainer(ctx)
	container.OperationName = &name

	return withContainer(ctx, container)
}

// GetOperationName retrieves the operation name from the context.
func GetOperationName(ctx context.Context) (string, bool) {
	container := getContainer(ctx)
	if container.OperationName != nil {
		return *container.OperationName, true
	}

	return "", false
}

// WithAPIKeyName stores the authenticated API key name in the context.
func WithAPIKeyName(ctx context.Context, name string) context.Context {
	container := getContainer(ctx)
	container.APIKeyName = &name

	return withContainer(ctx, container)
}

// GetAPIKeyName retrieves the authenticated API key name from the context.
func GetAPIKeyName(ctx context.Context) (string, bool) {
	container := getContainer(ctx)
	if container.APIKeyName != nil {
		return *container.APIKeyName, true
	}

	return "", false
}

// AddError appends an error to the context container, so the access log can
// surface errors raised below the handler layer.
func AddError(ctx context.Context, err error) {
	if err == nil {
		return
	}

	container := getContainer(ctx)
	container.mu.Lock()
	container.Errors = append(container.Errors, err)
	container.mu.Unlock()
}

// GetErrors retrieves the errors accumulated in the context.
func GetErrors(ctx context.Context) []error {
	container := getContainer(ctx)
	container.mu.RLock()
	defer container.mu.RUnlock()

	errs := make([]error, len(container.Errors))
	copy(errs, container.Errors)

	return errs
}
