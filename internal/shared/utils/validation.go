package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Payload size limits (in bytes)
const (
	MaxGuestSize   = 16 * 1024 * 1024 // 16MB - decompressed guest module or script
	MaxRequestSize = 64 * 1024        // 64KB - JSON request bodies
	MaxMessageSize = 16 * 1024        // 16KB - single WebSocket message
)

// String length limits
const (
	MaxIDLength   = 128
	MaxNameLength = 256
)

// Viewport limits in layout pixels
const (
	MaxViewport = 16384
)

// SafeIDPattern allows alphanumeric, hyphens, underscores
var SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateSize checks a payload against a byte limit
func ValidateSize(data []byte, limit int, what string) error {
	if len(data) == 0 {
		return fmt.Errorf("%s is empty", what)
	}
	if len(data) > limit {
		return fmt.Errorf("%s size %d bytes exceeds maximum %d bytes", what, len(data), limit)
	}
	return nil
}

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates an ID field
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateName validates a display name
func ValidateName(name, fieldName string) error {
	return ValidateString(name, fieldName, 1, MaxNameLength, true)
}

// ValidateViewport checks layout dimensions
func ValidateViewport(width, height float32) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("viewport %gx%g must be positive", width, height)
	}
	if width > MaxViewport || height > MaxViewport {
		return fmt.Errorf("viewport %gx%g exceeds maximum %d", width, height, MaxViewport)
	}
	return nil
}
