package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// Preimages, secrets and signatures are masked in every log sink.
var sensitiveKeys = map[string]struct{}{
	"preimage":   {},
	"secret":     {},
	"signature":  {},
	"sig1":       {},
	"sig2":       {},
	"passphrase": {},
	"privatekey": {},
}

// IsSensitive reports whether values logged under key are masked.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// Redact masks attr when its key is sensitive and its value non-empty.
func Redact(attr slog.Attr) slog.Attr {
	if !IsSensitive(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
