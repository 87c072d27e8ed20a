package agentruntime

import "fmt"

// Typed AgentRuntime errors (spec §4.2/§6: "kind ∈ {validation, timeout,
// rate_limit, connection, unknown}"). Adapted from the teacher's
// runtime/agent/toolerrors.ToolError: a small wrapping type per kind rather
// than one generic error, so C5's pattern matcher and the error-taxonomy
// table in spec §7 can switch on concrete Go types via errors.As instead of
// string sniffing.
type (
	// ValidationError reports that the LLM's response failed schema
	// validation against the task's expected_output schema. FieldPath pinpoints
	// the offending field for C5's pattern matcher (spec §4.2).
	ValidationError struct {
		FieldPath string
		Message   string
	}

	// TimeoutError reports that Execute did not complete in time. httpruntime
	// also returns it for 5xx responses from the execution service.
	TimeoutError struct {
		Elapsed string
	}

	// RateLimitError reports a provider rate-limit rejection. RetryAfterSeconds
	// is the provider-suggested backoff, when known; zero means unknown.
	RateLimitError struct {
		RetryAfterSeconds float64
	}

	// ConnectionError reports a transient network/provider failure.
	ConnectionError struct {
		Cause error
	}
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("agentruntime: validation failed at %q: %s", e.FieldPath, e.Message)
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("agentruntime: timed out after %s", e.Elapsed)
}

func (e *RateLimitError) Error() string {
	return "agentruntime: rate limited"
}

func (e *ConnectionError) Error() string {
	if e.Cause == nil {
		return "agentruntime: connection error"
	}
	return "agentruntime: connection error: " + e.Cause.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Cause }
