package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Input validation for values that end up in exec argv or CloudWatch payloads

var (
	// Container IDs as reported by the runtime: hex, short (12) or full (64) form
	containerIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{12,64}$`)

	// CloudWatch namespace: printable subset documented by the service
	namespaceRegex = regexp.MustCompile(`^[A-Za-z0-9._/#:\-]+$`)
)

// CloudWatch-imposed payload limits.
const (
	MaxNamespaceLength      = 255
	MaxDimensionNameLength  = 255
	MaxDimensionValueLength = 1024
)

// ValidateContainerID rejects anything that is not a plain runtime container
// ID. IDs are interpolated into command argv, so nothing outside the hex
// alphabet is ever accepted.
func ValidateContainerID(id string) error {
	if id == "" {
		return fmt.Errorf("container ID cannot be empty")
	}

	if !containerIDRegex.MatchString(id) {
		return fmt.Errorf("container ID contains invalid characters or length: %q", id)
	}

	return nil
}

// ValidateNamespace validates a CloudWatch metric namespace.
func ValidateNamespace(namespace string) error {
	if namespace == "" {
		return fmt.Errorf("namespace cannot be empty")
	}

	if len(namespace) > MaxNamespaceLength {
		return fmt.Errorf("namespace too long: %d > %d", len(namespace), MaxNamespaceLength)
	}

	if strings.HasPrefix(namespace, "AWS/") {
		return fmt.Errorf("namespace %q uses the reserved AWS/ prefix", namespace)
	}

	if !namespaceRegex.MatchString(namespace) {
		return fmt.Errorf("namespace contains invalid characters: %q", namespace)
	}

	return nil
}

// ValidateDimension validates one dimension name/value pair against the
// CloudWatch constraints.
func ValidateDimension(name, value string) error {
	if name == "" {
		return fmt.Errorf("dimension name cannot be empty")
	}
	if value == "" {
		return fmt.Errorf("dimension %q has an empty value", name)
	}

	if len(name) > MaxDimensionNameLength {
		return fmt.Errorf("dimension name too long: %d > %d", len(name), MaxDimensionNameLength)
	}
	if len(value) > MaxDimensionValueLength {
		return fmt.Errorf("dimension %q value too long: %d > %d", name, len(value), MaxDimensionValueLength)
	}

	if !utf8.ValidString(name) || !utf8.ValidString(value) {
		return fmt.Errorf("dimension %q contains invalid UTF-8", name)
	}

	if containsControlCharacters(name) || containsControlCharacters(value) {
		return fmt.Errorf("dimension %q contains control characters", name)
	}

	return nil
}

// ValidateSocketPath prevents traversal and null-byte tricks in the
// configured socket path before it is compared against inspector output.
func ValidateSocketPath(path string) error {
	if path == "" {
		return fmt.Errorf("socket path cannot be empty")
	}

	if strings.Contains(path, "..") {
		return fmt.Errorf("socket path contains directory traversal: %s", path)
	}

	if strings.Contains(path, "\x00") {
		return fmt.Errorf("socket path contains null bytes")
	}

	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("socket path must be absolute: %s", path)
	}

	return nil
}

func containsControlCharacters(s string) bool {
	for _, r := range s {
		if r < 32 || r == 127 {
			return true
		}
	}
	return false
}
