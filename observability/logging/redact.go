package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive values in logs.
const RedactedValue = "[REDACTED]"

// Keys emitted verbatim by the host and RPC loggers. Anything else passed
// through MaskField is replaced by RedactedValue.
var redactionAllowlist = map[string]struct{}{
	"service":    {},
	"env":        {},
	"op":         {},
	"outcome":    {},
	"method":     {},
	"request_id": {},
	"remote":     {},
	"error":      {},
	"component":  {},
}

// IsAllowlisted reports whether key is exempt from redaction.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns a slog.Attr carrying value only when key is allowlisted.
// Empty values pass through so absent headers stay visible as absent.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
