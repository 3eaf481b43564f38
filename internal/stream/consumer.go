// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
)

// STREAMING: Robust SSE parsing with error handling

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

// dataPrefix marks SSE lines that carry a payload. Lines without it
// (comments, event ids, blank keep-alives) are ignored.
var dataPrefix = []byte("data: ")

// doneSignal is the upstream end-of-stream sentinel.
var doneSignal = []byte("[DONE]")

// readBufferSize is the chunk size used when draining the response body.
const readBufferSize = 4096

// =============================================================================
// STREAMING TYPES
// =============================================================================

// Delta is a single content fragment emitted while a response streams in.
// MessageID identifies the AI message the fragment belongs to; ModelID is
// the model reported by the upstream chunk, when present.
type Delta struct {
	MessageID string
	ModelID   string
	Content   string
}

// chunk mirrors the OpenAI-style streaming chunk shape on the wire.
type chunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// content returns the first choice's delta content, or empty.
func (c *chunk) content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// StreamError represents an error that occurred during streaming,
// preserving any partial content received before the error.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// CHANNEL-BASED CONSUMER
// =============================================================================

// Deltas reads an event-stream body to EOF and emits content fragments on
// the returned channel. Both channels are closed when the stream ends, so
// a single consumer can fold deltas into state with a plain range loop and
// then check the error channel.
//
// Chunk boundaries carry no meaning: bytes are buffered until a newline
// arrives, so a multi-byte UTF-8 character split across reads is
// reassembled before any line is parsed. Whatever remains in the buffer at
// EOF is flushed as a final line.
//
// Malformed payloads are logged and dropped without aborting the stream;
// [DONE] and empty payloads are skipped silently. There are no retries.
func Deltas(ctx context.Context, r io.Reader, messageID string) (<-chan Delta, <-chan error) {
	deltas := make(chan Delta, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(deltas)
		defer close(errc)

		var pending []byte
		var partial bytes.Buffer
		buf := make([]byte, readBufferSize)

		emit := func(line []byte) bool {
			d, ok := parseLine(line)
			if !ok {
				return true
			}
			d.MessageID = messageID
			select {
			case deltas <- d:
				partial.WriteString(d.Content)
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			default:
			}

			n, err := r.Read(buf)
			if n > 0 {
				pending = append(pending, buf[:n]...)
				for {
					idx := bytes.IndexByte(pending, '\n')
					if idx < 0 {
						break
					}
					line := pending[:idx]
					pending = pending[idx+1:]
					if !emit(line) {
						errc <- ctx.Err()
						return
					}
				}
			}

			if err != nil {
				if err == io.EOF {
					// Flush whatever is left as a final line.
					if len(pending) > 0 {
						emit(pending)
					}
					return
				}
				// A mid-stream read failure still delivered everything
				// before the break; report how much so the caller can
				// decide what to do with the truncated reply.
				errc <- &StreamError{Partial: partial.String(), Err: err}
				return
			}
		}
	}()

	return deltas, errc
}

// parseLine extracts a delta from one SSE line.
// The second return is false when the line carries nothing to emit.
func parseLine(line []byte) (Delta, bool) {
	line = bytes.TrimSpace(line)

	if !bytes.HasPrefix(line, dataPrefix) {
		return Delta{}, false
	}

	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if len(payload) == 0 || bytes.Equal(payload, doneSignal) {
		return Delta{}, false
	}

	var c chunk
	if err := json.Unmarshal(payload, &c); err != nil {
		log.Printf("STREAM: dropping malformed chunk: %v", err)
		return Delta{}, false
	}

	content := c.content()
	if content == "" {
		return Delta{}, false
	}

	return Delta{ModelID: c.Model, Content: content}, true
}

// =============================================================================
// CALLBACK-DRIVEN CONSUMPTION
// =============================================================================

// Consume drives Deltas with callbacks. onDelta runs for each fragment on
// the calling goroutine; onComplete runs exactly once on every path,
// including read errors, which are also returned to the caller.
func Consume(ctx context.Context, r io.Reader, messageID string, onDelta func(Delta), onComplete func()) error {
	defer onComplete()

	deltas, errc := Deltas(ctx, r, messageID)
	for d := range deltas {
		onDelta(d)
	}
	return <-errc
}
