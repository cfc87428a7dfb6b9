package logs

import (
	"testing"

	"github.com/cuemby/debughostd/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestRingBuffer_PreservesOrderUnderCapacity(t *testing.T) {
	r := newRingBuffer(5)
	for i := 0; i < 3; i++ {
		r.push(types.LogEntry{Message: string(rune('a' + i))})
	}
	snap := r.snapshot()
	assert.Equal(t, []string{"a", "b", "c"}, messagesOf(snap))
}

func TestRingBuffer_DropsOldestWhenFull(t *testing.T) {
	r := newRingBuffer(3)
	for i := 0; i < 5; i++ {
		r.push(types.LogEntry{Message: string(rune('a' + i))})
	}
	snap := r.snapshot()
	assert.Equal(t, []string{"c", "d", "e"}, messagesOf(snap))
}

func TestRingBuffer_ClearEmpties(t *testing.T) {
	r := newRingBuffer(3)
	r.push(types.LogEntry{Message: "x"})
	r.clear()
	assert.Empty(t, r.snapshot())
}

func messagesOf(entries []types.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}
