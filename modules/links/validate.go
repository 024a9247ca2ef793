package links

import (
	"fmt"
	"regexp"
	"strconv"
)

// ValidateValue applies a link's validation rule to a candidate field
// value. It returns nil when the value is acceptable; otherwise the link's
// validation message, or a generic default, wrapped in an error. This is a
// pure function: the consuming form renderer calls it per keystroke or on
// submit without touching the store.
func ValidateValue(value string, l *Link) error {
	switch l.ValidationType {
	case "", ValidationNone:
		return nil

	case ValidationRequired:
		if value == "" {
			return validationError(l, "a value is required")
		}
		return nil

	case ValidationRegex:
		re, err := regexp.Compile(l.ValidationPattern)
		if err != nil {
			return fmt.Errorf("invalid validation pattern: %w", err)
		}
		if !re.MatchString(value) {
			return validationError(l, "value does not match the required format")
		}
		return nil

	case ValidationLength:
		n := len([]rune(value))
		if l.MinLength != nil && n < *l.MinLength {
			return validationError(l, fmt.Sprintf("must be at least %d characters", *l.MinLength))
		}
		if l.MaxLength != nil && n > *l.MaxLength {
			return validationError(l, fmt.Sprintf("must be at most %d characters", *l.MaxLength))
		}
		return nil

	case ValidationRange:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return validationError(l, "must be a number")
		}
		if l.MinValue != nil && v < *l.MinValue {
			return validationError(l, fmt.Sprintf("must be at least %v", *l.MinValue))
		}
		if l.MaxValue != nil && v > *l.MaxValue {
			return validationError(l, fmt.Sprintf("must be at most %v", *l.MaxValue))
		}
		return nil
	}
	return fmt.Errorf("unknown validation type %q", l.ValidationType)
}

func validationError(l *Link, fallback string) error {
	if l.ValidationMessage != "" {
		return fmt.Errorf("%s", l.ValidationMessage)
	}
	return fmt.Errorf("%s", fallback)
}
