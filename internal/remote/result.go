package remote

// Failure reasons produced by the client itself. Application failures carry
// the server-supplied message instead.
const (
	ReasonConnection = "Connection error. Is the backend running?"
	ReasonFailed     = "Failed to fetch data"
)

// Result is the outcome of one remote call: either OK with a Value, or not
// OK with a human-readable Reason. Transport and application failures share
// the same shape because callers recover from both the same way.
type Result[T any] struct {
	OK     bool   `json:"ok"`
	Value  T      `json:"value"`
	Reason string `json:"reason,omitempty"`
}

// Success wraps v in an OK result.
func Success[T any](v T) Result[T] {
	return Result[T]{OK: true, Value: v}
}

// Failure returns a failed result carrying reason.
func Failure[T any](reason string) Result[T] {
	if reason == "" {
		reason = ReasonFailed
	}
	return Result[T]{Reason: reason}
}
