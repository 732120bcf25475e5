// Package observability provides trace-id propagation, secret redaction, and
// request logging middleware shared across the HTTP and job-processing paths.
package observability

import "strings"

var secretKeys = []string{
	"access_token",
	"refresh_token",
	"token",
	"authorization",
	"cookie",
	"sessionid",
	"api_key",
	"api_secret",
	"secret",
	"password",
}

// RedactPayload walks a JSON-shaped value and masks any string found under a
// key whose lowercased form contains one of the known secret substrings.
// Nested maps and slices are walked recursively; other values pass through.
func RedactPayload(payload interface{}) interface{} {
	switch v := payload.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSecretKey(key) {
				out[key] = maskValue(value)
			} else {
				out[key] = RedactPayload(value)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = RedactPayload(item)
		}
		return out
	default:
		return v
	}
}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	for _, secret := range secretKeys {
		if strings.Contains(k, secret) {
			return true
		}
	}
	return false
}

func maskValue(value interface{}) string {
	s, ok := value.(string)
	if !ok {
		s = ""
	}
	return mask(s)
}

// mask shortens a secret to its first and last four characters, or to all
// asterisks when it is too short to reveal anything useful either side.
func mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + "..." + value[len(value)-4:]
}
