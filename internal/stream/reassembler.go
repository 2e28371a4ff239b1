// Package stream implements the Stream Reassembler: a protocol-aware
// chunking layer between a raw HTTP response body and a Backend Adapter's
// per-frame decoding. One goroutine reads bytes and splits them on the
// wire format's frame boundary; frames are forwarded one at a time through
// a bounded channel so a slow consumer applies backpressure to the reader
// rather than buffering an unbounded backlog.
package stream

import (
	"bufio"
	"context"
	"strings"
)

// Frame is one complete, parseable wire-format event: an SSE "event:"/
// "data:" pair (event may be empty) or one line of Ollama newline-JSON
// (Data only).
type Frame struct {
	Event string
	Data  string
}

// DefaultChannelCapacity is the reassembler's bounded-channel size. A small
// bound is enough to absorb jitter between producer and consumer without
// letting a stalled client accumulate an unbounded backlog of upstream
// bytes in memory.
const DefaultChannelCapacity = 16

// lossyUTF8 applies the reassembler's single point of lossy UTF-8 decoding
// so that one malformed byte in an upstream frame never kills the stream.
func lossyUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// ReadSSE reads Server-Sent-Events framing (blank-line delimited "event:"/
// "data:" blocks) from r, forwarding one complete Frame at a time on out.
// It returns when r is exhausted, ctx is canceled, or a `data: [DONE]`
// sentinel is observed (common to the OpenAI wire format). The caller must
// close out only after ReadSSE returns; ReadSSE itself never closes out so
// callers can fan multiple readers into one channel if needed.
func ReadSSE(ctx context.Context, r *bufio.Reader, out chan<- Frame) error {
	var event strings.Builder
	var data strings.Builder
	haveData := false

	flush := func() bool {
		if !haveData {
			return true
		}
		f := Frame{Event: event.String(), Data: data.String()}
		event.Reset()
		data.Reset()
		haveData = false
		if f.Data == "[DONE]" {
			select {
			case out <- f:
			case <-ctx.Done():
			}
			return false
		}
		select {
		case out <- f:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lineBytes, err := r.ReadBytes('\n')
		if len(lineBytes) > 0 {
			line := strings.TrimRight(lossyUTF8(lineBytes), "\r\n")

			switch {
			case line == "":
				if !flush() {
					return nil
				}
			case strings.HasPrefix(line, "event:"):
				event.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "event:")))
			case strings.HasPrefix(line, "data:"):
				if haveData {
					data.WriteByte('\n')
				}
				data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
				haveData = true
			case strings.HasPrefix(line, ":"):
				// comment / keep-alive line, ignored
			default:
				// unrecognized field, ignored per SSE spec
			}
		}
		if err != nil {
			flush()
			return nil
		}
	}
}

// ReadNDJSON reads Ollama's newline-delimited JSON framing, forwarding one
// line at a time as a Frame with Data set and Event empty.
func ReadNDJSON(ctx context.Context, r *bufio.Reader, out chan<- Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lineBytes, err := r.ReadBytes('\n')
		line := strings.TrimRight(lossyUTF8(lineBytes), "\r\n")
		if line != "" {
			select {
			case out <- Frame{Data: line}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			return nil
		}
	}
}
