// Package apperr defines the error kinds shared by the scheduling core and
// the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports user-correctable input. The message is safe to
// show to the end user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports a referenced resource that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// PersistenceError reports a failed write or a store result that does not
// match the requested transition.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConfigurationError reports a required setting that is absent or invalid.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Key, e.Reason)
}

// ErrSubmissionInProgress is returned when the same control submits again
// before its previous submission finished.
var ErrSubmissionInProgress = errors.New("a submission for this appointment is already in progress")

func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func Persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

func Configuration(key, reason string) error {
	return &ConfigurationError{Key: key, Reason: reason}
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsPersistence reports whether err wraps a PersistenceError.
func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}

// IsConfiguration reports whether err wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}
