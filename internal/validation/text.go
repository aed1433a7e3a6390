// Package validation holds input checks shared by the services and the HTTP layer.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// NonEmpty trims surrounding whitespace and rejects values that end up empty.
func NonEmpty(value, field string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s cannot be empty.", field)
	}
	return trimmed, nil
}

// MaxLength rejects values longer than limit characters.
func MaxLength(value, field string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return fmt.Errorf("%s cannot exceed %d characters.", field, limit)
	}
	return nil
}

// RequiredText is NonEmpty followed by MaxLength on the trimmed value.
func RequiredText(value, field string, limit int) (string, error) {
	trimmed, err := NonEmpty(value, field)
	if err != nil {
		return "", err
	}
	if err := MaxLength(trimmed, field, limit); err != nil {
		return "", err
	}
	return trimmed, nil
}

// OptionalText trims the value and enforces only the length limit.
func OptionalText(value, field string, limit int) (string, error) {
	trimmed := strings.TrimSpace(value)
	if err := MaxLength(trimmed, field, limit); err != nil {
		return "", err
	}
	return trimmed, nil
}
