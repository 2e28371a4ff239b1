package stream

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSSESplitsOnBlankLine(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
		"data: [DONE]\n\n"

	out := make(chan Frame, 8)
	err := ReadSSE(context.Background(), bufio.NewReader(strings.NewReader(body)), out)
	require.NoError(t, err)
	close(out)

	var frames []Frame
	for f := range out {
		frames = append(frames, f)
	}
	require.Len(t, frames, 3)
	assert.Contains(t, frames[0].Data, "Hel")
	assert.Contains(t, frames[1].Data, "lo")
	assert.Equal(t, "[DONE]", frames[2].Data)
}

func TestReadSSEWithEventNames(t *testing.T) {
	body := "event: message_start\ndata: {\"type\":\"message_start\"}\n\n"
	out := make(chan Frame, 4)
	err := ReadSSE(context.Background(), bufio.NewReader(strings.NewReader(body)), out)
	require.NoError(t, err)
	close(out)

	f := <-out
	assert.Equal(t, "message_start", f.Event)
	assert.Contains(t, f.Data, "message_start")
}

func TestReadSSEMultilineDataJoinedWithNewline(t *testing.T) {
	body := "data: line1\ndata: line2\n\n"
	out := make(chan Frame, 4)
	err := ReadSSE(context.Background(), bufio.NewReader(strings.NewReader(body)), out)
	require.NoError(t, err)
	close(out)

	f := <-out
	assert.Equal(t, "line1\nline2", f.Data)
}

func TestReadNDJSONOneFramePerLine(t *testing.T) {
	body := `{"message":{"content":"p"},"done":false}` + "\n" +
		`{"message":{"content":"ong"},"done":false}` + "\n" +
		`{"done":true,"prompt_eval_count":3,"eval_count":2}` + "\n"

	out := make(chan Frame, 8)
	err := ReadNDJSON(context.Background(), bufio.NewReader(strings.NewReader(body)), out)
	require.NoError(t, err)
	close(out)

	var frames []Frame
	for f := range out {
		frames = append(frames, f)
	}
	require.Len(t, frames, 3)
	assert.Contains(t, frames[0].Data, `"p"`)
}

func TestReadSSELossyUTF8NeverAborts(t *testing.T) {
	body := "data: bad\xff byte\n\n"
	out := make(chan Frame, 4)
	err := ReadSSE(context.Background(), bufio.NewReader(strings.NewReader(body)), out)
	require.NoError(t, err)
	close(out)

	f := <-out
	assert.Contains(t, f.Data, "bad")
}
