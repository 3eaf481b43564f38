// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package relay implements the HTTP relay between chat clients and the
// OpenRouter API, plus the client used to talk to it.
//
// The relay exposes POST /api/chat, validates the request, forwards it
// upstream with streaming enabled, and passes the SSE bytes through to
// the caller without reframing them. It never stores conversation data;
// persistence is entirely a client concern.
package relay
