package wsclient

import (
	"errors"
	"fmt"
)

// NetworkError reports a transport-level failure: the request never reached
// the endpoint or no usable response came back. Callers may defer the write
// to offline storage or retry the sync later.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteServiceError reports that the endpoint executed the function but
// rejected the request (validation, permission, conflict). Terminal for the
// current mutation: never queued and never retried automatically.
type RemoteServiceError struct {
	Function  string
	Exception string
	Code      string
	Message   string
}

func (e *RemoteServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s rejected by server (%s): %s", e.Function, e.Code, e.Message)
	}
	return fmt.Sprintf("%s rejected by server: %s", e.Function, e.Message)
}

// IsNetworkError reports whether err is (or wraps) a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsRemoteServiceError reports whether err is (or wraps) a RemoteServiceError.
func IsRemoteServiceError(err error) bool {
	var re *RemoteServiceError
	return errors.As(err, &re)
}
