package logs

import (
	"strings"
	"time"

	"github.com/cuemby/debughostd/pkg/types"
)

// classifyLevel applies case-insensitive substring priority: error/fatal >
// warn/warning > debug/trace > info.
func classifyLevel(message string) types.LogLevel {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "fatal"):
		return types.LevelError
	case strings.Contains(lower, "warn"):
		return types.LevelWarn
	case strings.Contains(lower, "debug") || strings.Contains(lower, "trace"):
		return types.LevelDebug
	default:
		return types.LevelInfo
	}
}

// splitTimestamp extracts a leading RFC-3339-like timestamp from payload,
// returning the parsed time and the remainder of the message with the
// timestamp and its trailing space stripped. If no valid timestamp is
// present, it returns the zero time and the original payload.
func splitTimestamp(payload string) (time.Time, string) {
	sp := strings.IndexByte(payload, ' ')
	if sp <= 0 {
		return time.Time{}, payload
	}
	candidate := payload[:sp]
	t, err := time.Parse(time.RFC3339Nano, candidate)
	if err != nil {
		return time.Time{}, payload
	}
	return t, payload[sp+1:]
}
