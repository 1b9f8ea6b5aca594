package build

import "fmt"

// Kind classifies build failures.
type Kind string

const (
	KindBadRequest        Kind = "bad_request"
	KindMissingDockerfile Kind = "missing_dockerfile"
	KindBackendFailure    Kind = "backend_failure"
	KindPushDenied        Kind = "push_denied"
)

// Error is a typed build failure.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "build: " + msg
}

func (e *Error) Unwrap() error { return e.Err }
