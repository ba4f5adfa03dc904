package policy

import "strings"

// Keys whose values are credentials and must never reach logs in cleartext.
var secretKeys = map[string]bool{
	"token":        true,
	"access_token": true,
	"api_token":    true,
	"x-api-key":    true,
}

// MaskSecret hides a credential value, keeping a short suffix for correlation.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// RedactBody returns a copy of a decoded JSON object with credential values
// masked, recursing into nested objects and arrays. Safe to pass to loggers.
func RedactBody(body map[string]any) map[string]any {
	if body == nil {
		return nil
	}
	out := make(map[string]any, len(body))
	for k, v := range body {
		out[k] = redactValue(k, v)
	}
	return out
}

func redactValue(key string, v any) any {
	if s, ok := v.(string); ok && secretKeys[strings.ToLower(key)] {
		return MaskSecret(s)
	}
	switch t := v.(type) {
	case map[string]any:
		return RedactBody(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = redactValue("", item)
		}
		return out
	default:
		return v
	}
}
