package objects

// Principal identifies the subject of a check. Inline attributes override
// stored attributes for the duration of the request.
type Principal struct {
	Key        string     `json:"key" binding:"required"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// Resource identifies the object of a check. Tenant is optional; a resource
// without an explicit tenant resolves to the configured default tenant.
type Resource struct {
	Type       string     `json:"type" binding:"required"`
	Key        string     `json:"key,omitempty"`
	Tenant     string     `json:"tenant,omitempty"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// CheckRequest is a single authorization question: may Principal perform
// Action on Resource.
type CheckRequest struct {
	Principal Principal  `json:"principal"`
	Action    string     `json:"action" binding:"required"`
	Resource  Resource   `json:"resource"`
	Context   Attributes `json:"context,omitempty"`

	// Trace requests full evaluation internals on the result. Traces are
	// materialized off the decision hot path.
	Trace bool `json:"trace,omitempty"`
}

// BulkCheckRequest carries an ordered sequence of checks. Results are
// index-aligned with the input.
type BulkCheckRequest struct {
	Checks []CheckRequest `json:"checks"`
}

// CheckResult is the answer to one CheckRequest. Exactly one of Decision or
// Error is authoritative: when Error is set the check did not produce a
// decision and Allowed is false.
type CheckResult struct {
	Allowed bool             `json:"allowed"`
	Tenant  string           `json:"tenant,omitempty"`
	Error   *CheckError      `json:"error,omitempty"`
	Trace   *EvaluationTrace `json:"trace,omitempty"`
}

// BulkCheckResponse carries results index-aligned with the request checks.
type BulkCheckResponse struct {
	Results []CheckResult `json:"results"`
}

// CheckError codes.
const (
	CheckErrorTimeout  = "timeout"
	CheckErrorRouting  = "routing"
	CheckErrorInternal = "internal"
)

// CheckError marks a check that failed without a decision.
type CheckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *CheckError) Error() string {
	return e.Message
}
