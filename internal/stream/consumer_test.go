// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader yields its chunks one Read at a time, regardless of the
// caller's buffer size, so tests control chunk boundaries exactly.
type chunkedReader struct {
	chunks [][]byte
	pos    int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.pos])
	r.pos++
	return n, nil
}

func newChunkedReader(chunks ...string) *chunkedReader {
	cr := &chunkedReader{}
	for _, c := range chunks {
		cr.chunks = append(cr.chunks, []byte(c))
	}
	return cr
}

// errReader fails after yielding its prefix.
type errReader struct {
	prefix io.Reader
	err    error
	done   bool
}

func (r *errReader) Read(p []byte) (int, error) {
	if !r.done {
		n, err := r.prefix.Read(p)
		if err == io.EOF {
			r.done = true
			return n, nil
		}
		return n, err
	}
	return 0, r.err
}

func collect(t *testing.T, r io.Reader) ([]Delta, error) {
	t.Helper()
	var got []Delta
	completions := 0
	err := Consume(context.Background(), r, "msg-1",
		func(d Delta) { got = append(got, d) },
		func() { completions++ },
	)
	require.Equal(t, 1, completions, "completion must fire exactly once")
	return got, err
}

// =============================================================================
// DELTA EXTRACTION TESTS
// =============================================================================

func TestConsume_ExtractsDeltas(t *testing.T) {
	body := "data: {\"model\":\"deepseek/deepseek-r1:free\",\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\" there\"}}]}\n" +
		"data: [DONE]\n"

	got, err := collect(t, strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Hi", got[0].Content)
	assert.Equal(t, " there", got[1].Content)
	assert.Equal(t, "msg-1", got[0].MessageID)
	assert.Equal(t, "deepseek/deepseek-r1:free", got[0].ModelID)
}

func TestConsume_ChunkingInvariant(t *testing.T) {
	line1 := "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n"
	line2 := "data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n"
	full := line1 + line2

	splits := [][]string{
		{full},
		{line1, line2},
		{full[:7], full[7:30], full[30:]},
		{full[:1], full[1:2], full[2:]},
	}

	for _, chunks := range splits {
		got, err := collect(t, newChunkedReader(chunks...))
		require.NoError(t, err)

		var content string
		prev := 0
		for _, d := range got {
			content += d.Content
			require.GreaterOrEqual(t, len(content), prev, "content must only grow")
			prev = len(content)
		}
		assert.Equal(t, "Hello world", content, "result must not depend on chunk boundaries")
	}
}

func TestConsume_MultiByteRuneSplitAcrossChunks(t *testing.T) {
	// The three bytes of U+00E9 style multi-byte sequences must survive a
	// chunk boundary in the middle of the character.
	line := "data: {\"choices\":[{\"delta\":{\"content\":\"café 日本\"}}]}\n"
	raw := []byte(line)

	// Split inside the multi-byte encoding of the last runes.
	cut := len(raw) - 5
	got, err := collect(t, newChunkedReader(string(raw[:cut]), string(raw[cut:])))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "café 日本", got[0].Content)
}

func TestConsume_FlushesFinalLineWithoutNewline(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"tail\"}}]}"

	got, err := collect(t, strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tail", got[0].Content)
}

// =============================================================================
// SKIP AND DROP TESTS
// =============================================================================

func TestConsume_DoneAndEmptyPayloadsProduceNothing(t *testing.T) {
	body := "data: [DONE]\n" +
		"data: \n" +
		"\n" +
		": keep-alive comment\n"

	got, err := collect(t, strings.NewReader(body))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConsume_NonDataLinesIgnored(t *testing.T) {
	body := "event: message\n" +
		"id: 42\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n"

	got, err := collect(t, strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Content)
}

func TestConsume_MalformedLineDroppedWithoutAborting(t *testing.T) {
	body := "data: not-json\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n"

	got, err := collect(t, strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, got, 1, "malformed line must be dropped, valid line must still emit")
	assert.Equal(t, "hi", got[0].Content)
}

func TestConsume_EmptyContentDeltaNotEmitted(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n"

	got, err := collect(t, strings.NewReader(body))
	require.NoError(t, err)
	assert.Empty(t, got)
}

// =============================================================================
// COMPLETION AND ERROR TESTS
// =============================================================================

func TestConsume_CompletionFiresOnceOnError(t *testing.T) {
	boom := errors.New("connection reset")
	r := &errReader{
		prefix: strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n"),
		err:    boom,
	}

	var got []Delta
	completions := 0
	err := Consume(context.Background(), r, "msg-1",
		func(d Delta) { got = append(got, d) },
		func() { completions++ },
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, completions, "completion must fire exactly once even on stream error")
	require.Len(t, got, 1, "deltas before the error must still be delivered")
	assert.Equal(t, "partial", got[0].Content)
}

func TestConsume_ReadErrorCarriesPartialContent(t *testing.T) {
	boom := errors.New("connection reset")
	r := &errReader{
		prefix: strings.NewReader(
			"data: {\"choices\":[{\"delta\":{\"content\":\"part one\"}}]}\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\" part two\"}}]}\n"),
		err: boom,
	}

	_, err := collect(t, r)
	require.Error(t, err)

	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "part one part two", streamErr.Partial)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "partial content received")
}

func TestConsume_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pr, pw := io.Pipe()
	defer pw.Close()

	completions := 0
	err := Consume(ctx, pr, "msg-1", func(Delta) {}, func() { completions++ })

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, completions)
}
