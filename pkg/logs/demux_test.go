package logs

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameBytes(streamType byte, payload string) []byte {
	header := make([]byte, 8)
	header[0] = streamType
	binary.BigEndian.PutUint32(header[4:8], uint32(len(payload)))
	return append(header, []byte(payload)...)
}

func TestDemux_ParsesFramedStdoutAndStderr(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(frameBytes(1, "hello stdout\n"))
	buf.Write(frameBytes(2, "hello stderr\n"))

	var got []frame
	err := demux(&buf, func(f frame) { got = append(got, f) })
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, byte(1), got[0].stream)
	assert.Equal(t, "hello stdout\n", string(got[0].payload))
	assert.Equal(t, byte(2), got[1].stream)
	assert.Equal(t, "hello stderr\n", string(got[1].payload))
}

func TestDemux_FallsBackToRawTextWhenHeaderInvalid(t *testing.T) {
	buf := bytes.NewBufferString("plain line one\nplain line two\n")

	var got []frame
	err := demux(buf, func(f frame) { got = append(got, f) })
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, f := range got {
		assert.Equal(t, byte(1), f.stream)
	}
	assert.Equal(t, "plain line one\n", string(got[0].payload))
	assert.Equal(t, "plain line two\n", string(got[1].payload))
}
