// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import "strings"

// FreeModelSuffix marks OpenRouter model ids that route to the free tier.
// The relay refuses ids without it.
const FreeModelSuffix = ":free"

// DefaultModelID is the model selected when nothing has been persisted yet.
const DefaultModelID = "meta-llama/llama-3.2-3b-instruct:free"

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo contains display information about a selectable model.
type ModelInfo struct {
	// ID is the OpenRouter model identifier used in API calls
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`
}

// =============================================================================
// MODEL CATALOG
// =============================================================================

// SupportedModels is the catalog of models offered in the selector.
// All entries are OpenRouter free-tier models.
var SupportedModels = []ModelInfo{
	{ID: "meta-llama/llama-3.2-3b-instruct:free", Name: "Llama 3.2 3B Instruct"},
	{ID: "google/gemma-3-1b-it:free", Name: "Gemma 3 1B"},
	{ID: "deepseek/deepseek-chat-v3-0324:free", Name: "DeepSeek V3 0324"},
	{ID: "deepseek/deepseek-r1:free", Name: "DeepSeek R1"},
}

// =============================================================================
// MODEL LOOKUP FUNCTIONS
// =============================================================================

// IsFreeModel reports whether the id carries the free-tier suffix.
func IsFreeModel(id string) bool {
	return strings.HasSuffix(id, FreeModelSuffix)
}

// GetModelInfo looks up a catalog entry by id.
// Returns the ModelInfo and true if found, otherwise empty ModelInfo and false.
func GetModelInfo(id string) (ModelInfo, bool) {
	for _, info := range SupportedModels {
		if info.ID == id {
			return info, true
		}
	}
	return ModelInfo{}, false
}

// ModelDisplayName returns the catalog display name for an id, or the id
// itself when it is not in the catalog.
func ModelDisplayName(id string) string {
	if info, ok := GetModelInfo(id); ok {
		return info.Name
	}
	return id
}

// ModelIDs returns the catalog ids in display order.
func ModelIDs() []string {
	ids := make([]string, 0, len(SupportedModels))
	for _, info := range SupportedModels {
		ids = append(ids, info.ID)
	}
	return ids
}
