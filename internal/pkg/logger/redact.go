package logger

import "strings"

var secretKeyHints = []string{"key", "token", "secret", "password", "credential"}

func redactSecretValue(key, val string) string {
	lower := strings.ToLower(key)
	for _, hint := range secretKeyHints {
		if strings.Contains(lower, hint) {
			return RedactSecret(val)
		}
	}
	return val
}

// RedactSecret masks a credential for safe logging, keeping a short prefix
// so rotated values can still be told apart.
// "sk_live_abcdef123456" → "sk_l***"
// Values of 4 characters or fewer are fully masked.
func RedactSecret(val string) string {
	if val == "" {
		return ""
	}
	if len(val) <= 4 {
		return "***"
	}
	return val[:4] + "***"
}
