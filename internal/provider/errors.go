package provider

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoToken is returned by message operations called without a
	// bearer token.
	ErrNoToken = errors.New("no auth token")

	// ErrNotFound is returned when the provider has no message with the
	// requested id.
	ErrNotFound = errors.New("message not found")
)

// ProvisioningError indicates that the provider rejected account creation.
type ProvisioningError struct {
	Address string
	Status  int
	Err     error
}

func (e *ProvisioningError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("creating account %s: provider returned %d", e.Address, e.Status)
	}
	return fmt.Sprintf("creating account %s: %v", e.Address, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// AuthenticationError indicates that the provider rejected a token request.
type AuthenticationError struct {
	Address string
	Status  int
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authenticating %s: provider returned %d", e.Address, e.Status)
	}
	return fmt.Sprintf("authenticating %s: %v", e.Address, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// FetchError indicates a transport failure or a non-success response on a
// message listing or message fetch.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: provider returned %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Unauthorized reports whether the provider rejected the bearer token.
func (e *FetchError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// IsProvisioningError reports whether err (or any error in its chain) is a
// ProvisioningError.
func IsProvisioningError(err error) bool {
	var target *ProvisioningError
	return errors.As(err, &target)
}

// IsAuthenticationError reports whether err (or any error in its chain)
// is an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// IsUnauthorized reports whether err carries a 401 from a message
// operation, meaning the token should be refreshed.
func IsUnauthorized(err error) bool {
	var target *FetchError
	return errors.As(err, &target) && target.Unauthorized()
}

// statusError is the internal error returned by do for non-2xx responses.
type statusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.Status, e.Method, e.Path, e.Body)
}
