package validation

import (
	"fmt"
	"strings"
)

// ParseFormBool converts an HTML form or query value into a bool.
// Checkbox style values ("on", "true", "1", "yes") are true; "off", "false",
// "0", "no" and the empty string are false. Anything else is rejected.
func ParseFormBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "1", "yes":
		return true, nil
	case "", "off", "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q", raw)
	}
}

// ParseOptionalFormBool returns nil when the value is absent.
func ParseOptionalFormBool(raw string, present bool) (*bool, error) {
	if !present {
		return nil, nil
	}
	v, err := ParseFormBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
