// Package shared
package shared

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingAuth   = errors.New("missing authorization header")
	ErrInvalidFormat = errors.New("invalid authorization format")
)

func GetString(m map[string]any, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

// Truthy follows JSON truthiness: nil, false, 0 and "" are false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

// SplitList splits a comma separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ExtractBearer returns the token of an `Authorization: Bearer <token>`
// header.
func ExtractBearer(h http.Header) (string, error) {
	auth := h.Get("Authorization")
	if auth == "" {
		return "", ErrMissingAuth
	}
	parts := strings.Split(auth, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", ErrInvalidFormat
	}
	return parts[1], nil
}
