package config

import (
	"errors"
	"fmt"
)

// ErrUnknownSetting indicates a configuration file key with no setting.
var ErrUnknownSetting = errors.New("unknown setting")

// ValidationError reports one invalid setting.
type ValidationError struct {
	// Field is the dotted setting path.
	Field string
	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
