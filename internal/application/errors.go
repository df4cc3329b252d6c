// Package application contains use-case orchestration services.
package application

import "fmt"

// ValidationError indicates malformed caller input, such as an unsupported
// alert status or report cadence value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
