package logger

import "strings"

// Level names written to the "level" field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Closed vocabularies. Unknown "status" values pass through lowercased,
// unknown "outcome" values are dropped.
var (
	statuses = set("ok", "fail", "skip", "retry", "rate_limited", "cancelled")
	outcomes = set("ok", "fail", "cancelled", "rate_limited")
)

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return strings.ToUpper(level)
}

func normalizeEnum(value string, allowed map[string]struct{}) (string, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", false
	}
	_, ok := allowed[value]
	return value, ok
}

// defaultKeyOrder puts identity and correlation first; keys not listed
// follow in lexical order.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"op",
	"cb_key",
	"outcome",
	"decision",
	"mode",
	"membership",
	"endpoint",
	"duration_ms",
	"count",
	"expired",
	"pending_count",
	"prev_expected",
	"prev_age_ms",
	"payload",
	"lang",
	"username",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempt",
	"attempts",
	"backoff_ms",
}
