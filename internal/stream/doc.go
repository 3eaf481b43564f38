// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream consumes OpenAI-style event streams chunk by chunk.
//
// The consumer buffers raw bytes across reads, splits on newlines, and
// extracts content deltas from "data: " payloads. Deltas are delivered on
// a channel to a single consumer (or via the Consume callback wrapper),
// with a completion guarantee: the completion hook fires exactly once
// whether the stream ends normally, via [DONE], or with a read error.
//
// # Usage
//
//	err := stream.Consume(ctx, resp.Body, msgID,
//	    func(d stream.Delta) { apply(d) },
//	    func() { settle() },
//	)
package stream
