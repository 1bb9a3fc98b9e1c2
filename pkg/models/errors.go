package models

import "errors"

// ErrValidation marks malformed input: bad JSON or a missing id, type or key.
var ErrValidation = errors.New("validation failed")
