// ABOUTME: Typed errors separating gateway status failures from transport failures.
// ABOUTME: Both are errors.As-matchable so callers can branch on failure class.

package gateway

import "fmt"

// GatewayError is a chat completion call that reached the gateway but came
// back with a non-2xx status. No automatic retry happens at this layer.
type GatewayError struct {
	Status int
	Body   string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned status %d", e.Status)
}

// NetworkError is a transport-level failure: the request never produced an
// HTTP status at all.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("gateway unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
