// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndTotals(t *testing.T) {
	store := openTestStore(t)

	exchanges := []Exchange{
		{ConversationID: "c1", ModelID: "meta-llama/llama-3.2-3b-instruct:free", PromptChars: 10, ReplyChars: 100, Duration: time.Second},
		{ConversationID: "c1", ModelID: "meta-llama/llama-3.2-3b-instruct:free", PromptChars: 20, ReplyChars: 200, Duration: 2 * time.Second},
		{ConversationID: "c2", ModelID: "deepseek/deepseek-r1:free", PromptChars: 5, ReplyChars: 0, Duration: time.Second, Failed: true},
	}
	for _, ex := range exchanges {
		if err := store.Record(ex); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	total, failures, err := store.Totals()
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}
}

func TestByModel_AggregatesAndOrders(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 3; i++ {
		if err := store.Record(Exchange{ModelID: "a:free", PromptChars: 10, ReplyChars: 50, Duration: time.Second}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Record(Exchange{ModelID: "b:free", PromptChars: 1, ReplyChars: 2, Duration: time.Second}); err != nil {
		t.Fatal(err)
	}

	usage, err := store.ByModel()
	if err != nil {
		t.Fatalf("ByModel: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("models = %d, want 2", len(usage))
	}
	if usage[0].ModelID != "a:free" {
		t.Errorf("first model = %q, want most used first", usage[0].ModelID)
	}
	if usage[0].Exchanges != 3 {
		t.Errorf("exchanges = %d, want 3", usage[0].Exchanges)
	}
	if usage[0].PromptChars != 30 || usage[0].ReplyChars != 150 {
		t.Errorf("chars = %d/%d, want 30/150", usage[0].PromptChars, usage[0].ReplyChars)
	}
	if usage[0].TotalTime != 3*time.Second {
		t.Errorf("total time = %v, want 3s", usage[0].TotalTime)
	}
}

func TestSince_FiltersOldEntries(t *testing.T) {
	store := openTestStore(t)

	old := Exchange{ModelID: "a:free", RecordedAt: time.Now().Add(-48 * time.Hour)}
	recent := Exchange{ModelID: "b:free", RecordedAt: time.Now()}
	if err := store.Record(old); err != nil {
		t.Fatal(err)
	}
	if err := store.Record(recent); err != nil {
		t.Fatal(err)
	}

	got, err := store.Since(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(got) != 1 || got[0].ModelID != "b:free" {
		t.Errorf("got %d entries, want only the recent one", len(got))
	}
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	store := openTestStore(t)
	store.Close()

	if err := store.Record(Exchange{ModelID: "a:free"}); err != ErrClosed {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if _, err := store.ByModel(); err != ErrClosed {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}
