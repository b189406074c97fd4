package agent

import (
	"errors"
	"fmt"
)

// Sentinel errors for remote calls.
var (
	ErrNilIdentity      = errors.New("agent: identity is nil")
	ErrMissingSatellite = errors.New("agent: satellite id is required")
	ErrUnknownMethod    = errors.New("agent: method not in interface")
	ErrRejected         = errors.New("agent: call rejected")
	ErrTransport        = errors.New("agent: transport failure")
	ErrRootKey          = errors.New("agent: fetch root key")
)

// RejectError is a call the satellite refused to execute.
// It matches ErrRejected with errors.Is.
type RejectError struct {
	Code    int
	Message string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("agent: call rejected (code %d): %s", e.Code, e.Message)
}

// Is reports whether target is ErrRejected.
func (e *RejectError) Is(target error) bool {
	return target == ErrRejected
}
