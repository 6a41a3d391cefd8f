package diag

import (
	"fmt"
	"strings"
)

// Severity defines the importance of a compiler message.
type Severity uint8

const (
	// SevInfo is for informational messages.
	SevInfo Severity = iota
	// SevWarning is for warning messages.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// ParseSeverity parses a severity name from configuration (case-insensitive).
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SevInfo, nil
	case "warning", "warn":
		return SevWarning, nil
	case "error":
		return SevError, nil
	}
	return SevInfo, fmt.Errorf("unknown severity %q (must be info, warning or error)", s)
}
