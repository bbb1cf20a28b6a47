// Package domain defines the learning entities the job handlers
// operate on and their validation rules.
package domain

import "errors"

// ErrValidation is the root of every entity validation error in this
// package. Callers that do not care which field failed can match it
// with errors.Is.
var ErrValidation = errors.New("validation failed")
