package utils

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and returns an error wrapping models.ErrValidation.
func Validate[T any](value T) (T, error) {
	if err := validate.Struct(value); err != nil {
		return value, ValidationErrorToString(value, err)
	}
	return value, nil
}

// ValidateSlice validates every element and reports the first failing index.
func ValidateSlice[T any](values []T) error {
	for i, v := range values {
		if _, err := Validate(v); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func ValidationErrorToString(input any, err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s=%s' (got '%v')", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s'", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %T: %s", models.ErrValidation, input, strings.Join(msgs, "; "))
}
