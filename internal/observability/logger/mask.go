package logger

import (
	"net/http"
	"strings"
)

// Substrings that mark a field or header as secret.
var secretMarkers = []string{
	"authorization",
	"cookie",
	"password",
	"secret",
	"signature",
	"token",
	"api_key",
	"apikey",
}

// MaskSecret keeps the last four characters of value.
func MaskSecret(value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return ""
	case len(value) <= 4:
		return "****"
	default:
		return "****" + value[len(value)-4:]
	}
}

// MaskHeaders flattens headers for logging. Bearer tokens keep their scheme;
// every other secret header is reduced to its last four characters.
func MaskHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for key, values := range headers {
		joined := strings.Join(values, ",")
		if !isSecret(key) {
			out[key] = joined
			continue
		}
		if scheme, token, ok := strings.Cut(strings.TrimSpace(joined), " "); ok && strings.EqualFold(scheme, "Bearer") {
			out[key] = "Bearer " + MaskSecret(token)
			continue
		}
		out[key] = MaskSecret(joined)
	}
	return out
}

// MaskFields returns a copy of fields with secret values masked at any depth.
func MaskFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if isSecret(key) {
			out[key] = maskAny(value)
			continue
		}
		out[key] = maskNested(value)
	}
	return out
}

func maskNested(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return MaskFields(typed)
	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			items[i] = maskNested(item)
		}
		return items
	default:
		return value
	}
}

func maskAny(value any) any {
	switch typed := value.(type) {
	case string:
		return MaskSecret(typed)
	case []byte:
		return MaskSecret(string(typed))
	case nil:
		return nil
	default:
		return "****"
	}
}

func isSecret(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, marker := range secretMarkers {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
