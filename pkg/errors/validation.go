package errors

import (
	"strings"
	"unicode"
)

// maxNodeIDLength bounds node identifiers read from untrusted input.
const maxNodeIDLength = 1024

// ValidateNodeID checks that a node identifier read from input is usable as
// a map key and as a display label.
//
// The rules are:
//   - No empty ids
//   - No control characters (including null bytes)
//   - Maximum length of 1024 bytes
func ValidateNodeID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidNodeID, "node id cannot be empty")
	}
	if len(id) > maxNodeIDLength {
		return New(ErrCodeInvalidNodeID, "node id too long (max %d characters)", maxNodeIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidNodeID, "node id %q contains control characters", id)
		}
	}
	return nil
}

// ValidateInputPath validates the path of a graph input file given on the
// command line or in configuration.
//
// Validation rules:
//   - Path cannot be empty
//   - No null bytes or control characters
//   - Must end in .json ("-" is accepted for stdin)
func ValidateInputPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "input path cannot be empty")
	}
	if path == "-" {
		return nil
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "input path contains invalid characters")
		}
	}
	if !strings.HasSuffix(strings.ToLower(path), ".json") {
		return New(ErrCodeInvalidInput, "input must be a .json file: %s", path)
	}
	return nil
}
