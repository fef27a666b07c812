// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	entry := json.RawMessage(`{"runId":"abc123","packages":["pip:requests"]}`)
	if err := s.Save(entry); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(got) != 1 || string(got[0]) != string(entry) {
		t.Fatalf("Load() = %s, want [%s]", got, entry)
	}
}

func TestSavePrependsNewestFirst(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Save(json.RawMessage(fmt.Sprintf(`{"runId":"run-%d"}`, i))); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	want := []string{`{"runId":"run-2"}`, `{"runId":"run-1"}`, `{"runId":"run-0"}`}
	if len(got) != len(want) {
		t.Fatalf("Load() returned %d entries, want %d", len(got), len(want))
	}
	for i, w := range want {
		if string(got[i]) != w {
			t.Errorf("entry %d = %s, want %s", i, got[i], w)
		}
	}
}

func TestSaveCapsAtMaxEntries(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	for i := 0; i < MaxEntries+10; i++ {
		if err := s.Save(json.RawMessage(fmt.Sprintf(`{"runId":"run-%d"}`, i))); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(got) != MaxEntries {
		t.Fatalf("Load() returned %d entries, want %d", len(got), MaxEntries)
	}
	if string(got[0]) != fmt.Sprintf(`{"runId":"run-%d"}`, MaxEntries+9) {
		t.Errorf("newest entry = %s, want run-%d", got[0], MaxEntries+9)
	}
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "sub", "history.json"))
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Load() = %v, want empty", got)
	}
}
