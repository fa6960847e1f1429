package validation

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const MaxDescriptionLength = 300

// ValidateDescription validates a goal description
func ValidateDescription(description string) error {
	trimmed := strings.TrimSpace(description)

	if trimmed == "" {
		return errors.New("description is required")
	}

	if utf8.RuneCountInString(trimmed) > MaxDescriptionLength {
		return errors.New("description is too long (max 300 characters)")
	}

	return nil
}
