package step

import "fmt"

// UpstreamErrorKind classifies collaborator failures.
type UpstreamErrorKind string

const (
	// UpstreamUnavailable means the collaborator could not serve the call.
	UpstreamUnavailable UpstreamErrorKind = "upstream_unavailable"
	// UpstreamTimeout means the collaborator did not answer in time.
	UpstreamTimeout UpstreamErrorKind = "upstream_timeout"
)

// UpstreamError wraps a failure of an external collaborator
// (text generation or retrieval).
type UpstreamError struct {
	Kind UpstreamErrorKind
	Op   string
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError builds an UpstreamError for the given operation.
func NewUpstreamError(kind UpstreamErrorKind, op string, err error) *UpstreamError {
	return &UpstreamError{Kind: kind, Op: op, Err: err}
}
