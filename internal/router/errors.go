// Package router - errors.go defines routing failures.
package router

import (
	"errors"
	"fmt"
	"strings"
)

// NoDeploymentError reports that no deployment could serve a request. It is
// raised when the logical model name is unknown or when tag filtering leaves
// no candidates.
type NoDeploymentError struct {
	// Model is the logical model name the client asked for.
	Model string

	// Tags are the request tags that failed to match, if any.
	Tags []string
}

// Error implements the error interface.
func (e *NoDeploymentError) Error() string {
	if len(e.Tags) > 0 {
		return fmt.Sprintf("no deployment for model %q matching tags [%s]", e.Model, strings.Join(e.Tags, ", "))
	}
	return fmt.Sprintf("no deployment for model %q", e.Model)
}

// IsNoDeployment reports whether err is a NoDeploymentError.
func IsNoDeployment(err error) bool {
	var nde *NoDeploymentError
	return errors.As(err, &nde)
}
