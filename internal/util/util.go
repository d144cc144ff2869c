// Package util provides helpers for decoding host extension arguments.
package util

import (
	"fmt"
	"strconv"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg strips the quoting the host adds around every argument.
func CleanArg(s string) string {
	return FixEscapeQuotes(TrimQuotes(strings.TrimSpace(s)))
}

// ParseBool accepts true/false in any case and the numeric forms 1/0.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(CleanArg(s)) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// ParseFloat parses a host number. The host has no integer type, so "3" and
// "3.00" are both accepted.
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(CleanArg(s), 64)
}
