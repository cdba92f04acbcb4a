// Package pipeline - errors.go defines the unexpected-hook-failure error.
package pipeline

import (
	"errors"
	"fmt"
)

// HookError is an unexpected failure inside a hook (including recovered
// panics). It aborts the rest of the pipeline pass and surfaces to the
// caller as a generic failure; policy rejections use hooks.Rejection instead.
type HookError struct {
	// Hook names the failing hook.
	Hook string

	// Stage is the pipeline stage: pre_call, moderation, post_call_success.
	Stage string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *HookError) Error() string {
	return fmt.Sprintf("hook %s failed during %s: %v", e.Hook, e.Stage, e.Err)
}

// Unwrap supports errors.Is/As.
func (e *HookError) Unwrap() error {
	return e.Err
}

// AsHookError unwraps err into a *HookError if it is one.
func AsHookError(err error) (*HookError, bool) {
	var he *HookError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}
