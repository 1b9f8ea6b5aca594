package nomad

import (
	"fmt"
	"strings"
)

// TransportError is a connectivity failure: the control plane was never
// reached or the connection broke mid-request. Distinguished from APIError
// so callers can tell "cluster unreachable" from "cluster said no".
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("nomad: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is an application-level rejection from the control plane.
type APIError struct {
	Status int
	Method string
	URL    string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nomad: %s %s: %d %s", e.Method, e.URL, e.Status, e.Body)
}

// ValidationError reports a spec the cluster's schema check rejected.
type ValidationError struct {
	Errors   []string
	Warnings string
}

func (e *ValidationError) Error() string {
	return "nomad: invalid job spec: " + strings.Join(e.Errors, "; ")
}
