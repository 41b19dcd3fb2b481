package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mkdir(t *testing.T, root, name string) {
	t.Helper()
	if err := os.Mkdir(filepath.Join(root, name), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
}

func TestNames(t *testing.T) {
	at := time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)

	if got := FullName(at); got != "2025-01-02-backup-full" {
		t.Errorf("FullName = %q", got)
	}
	if got := IncrementalName(at); got != "2025-01-02-backup-inc-093000" {
		t.Errorf("IncrementalName = %q", got)
	}
}

func TestParseName(t *testing.T) {
	t.Run("Full", func(t *testing.T) {
		s, ok := ParseName("/storage", "2025-01-01-backup-full")
		if !ok {
			t.Fatal("expected full name to parse")
		}
		if s.Kind != Full {
			t.Errorf("kind = %v, want full", s.Kind)
		}
		if s.Path != filepath.Join("/storage", "2025-01-01-backup-full") {
			t.Errorf("unexpected path %q", s.Path)
		}
		want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		if !s.CreatedAt.Equal(want) {
			t.Errorf("createdAt = %v, want %v", s.CreatedAt, want)
		}
	})

	t.Run("Incremental", func(t *testing.T) {
		s, ok := ParseName("/storage", "2025-01-02-backup-inc-093000")
		if !ok {
			t.Fatal("expected incremental name to parse")
		}
		if s.Kind != Incremental {
			t.Errorf("kind = %v, want incremental", s.Kind)
		}
		want := time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)
		if !s.CreatedAt.Equal(want) {
			t.Errorf("createdAt = %v, want %v", s.CreatedAt, want)
		}
	})

	t.Run("Foreign names are ignored", func(t *testing.T) {
		foreign := []string{
			"notes",
			"2025-01-01-backup",
			"2025-01-01-backup-full-old",
			"backup-full",
			"2025-1-1-backup-full",
			"2025-01-02-backup-inc-9300",
			"2025-01-02-backup-inc-093000x",
		}
		for _, name := range foreign {
			if _, ok := ParseName("/storage", name); ok {
				t.Errorf("expected %q to be rejected", name)
			}
		}
	})

	t.Run("Shape matches but date is invalid", func(t *testing.T) {
		if _, ok := ParseName("/storage", "2025-13-40-backup-full"); ok {
			t.Error("expected impossible date to be rejected")
		}
		if _, ok := ParseName("/storage", "2025-01-02-backup-inc-256161"); ok {
			t.Error("expected impossible time to be rejected")
		}
	})
}

func TestListing(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, "2025-02-01-backup-full")
	mkdir(t, root, "2025-01-01-backup-full")
	mkdir(t, root, "2025-01-02-backup-inc-093000")
	mkdir(t, root, "2025-01-02-backup-inc-070000")
	mkdir(t, root, "random-dir")
	// A file with a matching name must not be picked up.
	if err := os.WriteFile(filepath.Join(root, "2025-03-01-backup-full"), []byte{}, 0644); err != nil {
		t.Fatalf("failed to create decoy file: %v", err)
	}

	t.Run("ListFulls sorted ascending", func(t *testing.T) {
		fulls, err := ListFulls(root)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(fulls) != 2 {
			t.Fatalf("expected 2 fulls, got %d", len(fulls))
		}
		if fulls[0].Name != "2025-01-01-backup-full" || fulls[1].Name != "2025-02-01-backup-full" {
			t.Errorf("unexpected order: %s, %s", fulls[0].Name, fulls[1].Name)
		}
	})

	t.Run("ListIncrementals sorted ascending", func(t *testing.T) {
		incs, err := ListIncrementals(root)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(incs) != 2 {
			t.Fatalf("expected 2 incrementals, got %d", len(incs))
		}
		if incs[0].Name != "2025-01-02-backup-inc-070000" || incs[1].Name != "2025-01-02-backup-inc-093000" {
			t.Errorf("unexpected order: %s, %s", incs[0].Name, incs[1].Name)
		}
	})

	t.Run("LatestFull", func(t *testing.T) {
		latest, err := LatestFull(root)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if latest.Name != "2025-02-01-backup-full" {
			t.Errorf("latest = %s", latest.Name)
		}
	})

	t.Run("LatestFull without any full", func(t *testing.T) {
		empty := t.TempDir()
		_, err := LatestFull(empty)
		if !errors.Is(err, ErrNoFullFound) {
			t.Errorf("expected ErrNoFullFound, got %v", err)
		}
	})

	t.Run("Missing root is an error", func(t *testing.T) {
		if _, err := ListFulls(filepath.Join(root, "missing")); err == nil {
			t.Error("expected an error for a missing storage root")
		}
	})
}
