// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export provides conversation export functionality for routerchat.
//
// This package supports exporting conversations to various formats with
// styling, metadata, and optional opening in external applications.
//
// # Key Types
//
//   - Exporter: Main export interface
//   - Options: Export configuration options
//
// # Supported Formats
//
//   - JSON: Machine-readable with full conversation data
//   - Markdown: Human-readable with YAML frontmatter
//   - HTML: Styled for viewing in browsers, with syntax-highlighted code
//
// # Usage
//
// Export a conversation to Markdown:
//
//	path, err := export.ExportMarkdown(conv, export.DefaultOptions())
//
// Or pick an exporter by format name:
//
//	exporter, err := export.ExporterFor("html", opts)
//	path, err := export.ExportToFile(conv, exporter, opts)
package export
