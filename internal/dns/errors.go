package dns

import (
	"errors"
	"fmt"
)

var (
	// ErrListNotFound means no destination list carries the requested name.
	ErrListNotFound = errors.New("destination list not found")
	// ErrListAmbiguous means more than one destination list carries the requested name.
	ErrListAmbiguous = errors.New("destination list name is ambiguous")
)

// AuthError reports a failure to obtain a bearer token.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication failed: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// LookupError reports a failure to resolve a destination list by name.
type LookupError struct {
	Name string
	Err  error
}

func (e *LookupError) Error() string { return fmt.Sprintf("lookup %q: %v", e.Name, e.Err) }
func (e *LookupError) Unwrap() error { return e.Err }

// HTTPError reports a non-2xx response or a transport failure. StatusCode is
// zero when no response was received.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *HTTPError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.StatusCode)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is an HTTPError carrying 401 or 403.
func IsUnauthorized(err error) bool {
	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	return he.StatusCode == 401 || he.StatusCode == 403
}
