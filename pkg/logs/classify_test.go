package logs

import (
	"testing"

	"github.com/cuemby/debughostd/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestClassifyLevel_PriorityOrder(t *testing.T) {
	assert.Equal(t, types.LevelError, classifyLevel("a FATAL crash occurred"))
	assert.Equal(t, types.LevelError, classifyLevel("request error: timeout"))
	assert.Equal(t, types.LevelWarn, classifyLevel("WARNING: disk almost full"))
	assert.Equal(t, types.LevelDebug, classifyLevel("debug: entering handler"))
	assert.Equal(t, types.LevelInfo, classifyLevel("server listening on :3000"))
}

func TestSplitTimestamp_StripsLeadingTimestamp(t *testing.T) {
	line := "2024-05-01T12:00:00.000000000Z listening on port 3000"
	ts, msg := splitTimestamp(line)
	assert.False(t, ts.IsZero())
	assert.Equal(t, "listening on port 3000", msg)
	assert.Equal(t, 2024, ts.Year())
}

func TestSplitTimestamp_NoTimestampReturnsOriginal(t *testing.T) {
	line := "plain log line with no timestamp"
	ts, msg := splitTimestamp(line)
	assert.True(t, ts.IsZero())
	assert.Equal(t, line, msg)
}

func TestSplitTimestamp_MalformedTimestampReturnsOriginal(t *testing.T) {
	line := "not-a-date message body"
	ts, msg := splitTimestamp(line)
	assert.True(t, ts.IsZero())
	assert.Equal(t, line, msg)
}
