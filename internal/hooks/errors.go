// Package hooks - errors.go defines the structured rejection error.
package hooks

import (
	"errors"
	"fmt"
	"net/http"
)

// Rejection is a deliberate policy refusal raised by a hook. It stops the
// pipeline and is rendered per call type: completion-like calls get a
// synthetic successful response carrying the message, everything else gets a
// client error with the message as detail.
type Rejection struct {
	// Hook names the rejecting hook.
	Hook string

	// Message is the client-visible rejection text.
	Message string

	// StatusCode is the HTTP status for non-completion call types.
	// Zero means 400.
	StatusCode int
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	return fmt.Sprintf("rejected by hook %s: %s", r.Hook, r.Message)
}

// Status returns the client-visible status code.
func (r *Rejection) Status() int {
	if r.StatusCode == 0 {
		return http.StatusBadRequest
	}
	return r.StatusCode
}

// Reject creates a Rejection from a hook.
func Reject(hook, message string) *Rejection {
	return &Rejection{Hook: hook, Message: message}
}

// AsRejection unwraps err into a *Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
