package utils

import (
	"fmt"
	"regexp"
)

var orgIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]*$`)

// ValidateOrgID validates an organization identifier from config or flags
func ValidateOrgID(id string) error {
	if !orgIDPattern.MatchString(id) {
		return fmt.Errorf("invalid organization id: %q", id)
	}
	return nil
}

// ValidateConfidence validates a confidence threshold in [0, 100]
func ValidateConfidence(name string, v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%s must be between 0 and 100: %d", name, v)
	}
	return nil
}
