// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// export.go - Conversation export from the TUI.

package chat

import (
	"errors"

	"github.com/jeranaias/routerchat/internal/config"
	"github.com/jeranaias/routerchat/internal/export"
	"github.com/jeranaias/routerchat/internal/model"
)

// errNothingToExport is returned when the active conversation is empty.
var errNothingToExport = errors.New("no messages to export")

// exportOptions builds export options from configuration.
func exportOptions(cfg *config.Config) *export.Options {
	opts := export.DefaultOptions()
	if cfg.UI.Theme == "light" {
		opts.Theme = "light"
	}
	opts.HighlightTheme = cfg.Export.HighlightTheme
	if cfg.Export.Dir != "" {
		opts.OutputDir = cfg.Export.Dir
	}
	return opts
}

// exportMarkdown writes the conversation to a markdown file and returns
// the output path.
func exportMarkdown(conv *model.Conversation, opts *export.Options) (string, error) {
	return export.ExportMarkdown(conv, opts)
}
