package errors

import (
	"strings"
	"unicode"
)

// maxNodeIDLength bounds node identifiers read from model files.
const maxNodeIDLength = 512

// ValidateNodeID validates a layer identifier.
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - No control characters or null bytes
//   - No leading or trailing whitespace
//   - Maximum length of 512 bytes
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

	if strings.TrimSpace(id) != id {
		return New(ErrCodeInvalidNodeID, "node id %q has surrounding whitespace", id)
	}

	return nil
}

// ValidateModelPath validates a model file path given on the command line
// or in a request. Only the extension and emptiness are checked; the file
// system decides the rest.
func ValidateModelPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "model path cannot be empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return New(ErrCodeInvalidInput, "model path contains a null byte")
	}
	return nil
}
