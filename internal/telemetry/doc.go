// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides local usage statistics for routerchat.
//
// Each prompt/reply round trip is recorded in a local SQLite database
// with its model, character counts, and duration, so the stats command
// can show how much each model gets used.
//
// # Key Types
//
//   - Store: SQLite-backed usage recorder
//   - Exchange: Single recorded round trip
//   - ModelUsage: Aggregated per-model statistics
//
// # Usage
//
// Record an exchange:
//
//	store, _ := telemetry.Open(path)
//	store.Record(telemetry.Exchange{
//	    ModelID:     "meta-llama/llama-3.2-3b-instruct:free",
//	    PromptChars: 24,
//	    ReplyChars:  512,
//	    Duration:    3 * time.Second,
//	})
//
// # Privacy
//
// Usage tracking is local-only and does not transmit any data.
// Message content is never stored - only sizes and timings.
package telemetry
