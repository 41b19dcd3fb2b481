package ledger

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

type fakeReporter struct {
	paths []string
	err   error
}

func (f *fakeReporter) ReportDeletions(ctx context.Context, source, referenceBase string, excludes []string) ([]string, error) {
	return f.paths, f.err
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"etc/passwd":      "/etc/passwd",
		"/etc/passwd":     "/etc/passwd",
		"var/log/":        "/var/log",
		"":                "",
		".":               "",
		"home/user/a.txt": "/home/user/a.txt",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompute(t *testing.T) {
	t.Run("Normalizes, dedupes, and sorts", func(t *testing.T) {
		reporter := &fakeReporter{paths: []string{
			"var/log/old.log",
			"etc/dropped.conf",
			"var/log/old.log",
			"var/cache/",
		}}
		paths, err := Compute(context.Background(), reporter, "/src", "/base", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"/etc/dropped.conf", "/var/cache", "/var/log/old.log"}
		if !reflect.DeepEqual(paths, want) {
			t.Errorf("paths = %v, want %v", paths, want)
		}
	})

	t.Run("Reporter failure is wrapped", func(t *testing.T) {
		reporter := &fakeReporter{err: os.ErrPermission}
		_, err := Compute(context.Background(), reporter, "/src", "/base", nil)
		if err == nil || !strings.Contains(err.Error(), "deletion report") {
			t.Errorf("expected wrapped report error, got %v", err)
		}
	})
}

func TestWriteRead(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		dir := t.TempDir()
		paths := []string{"/etc/dropped.conf", "/var/log/old.log"}
		if err := Write(dir, paths); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		got, err := Read(filepath.Join(dir, FileName))
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if !reflect.DeepEqual(got, paths) {
			t.Errorf("read = %v, want %v", got, paths)
		}
	})

	t.Run("Empty ledger still writes the file", func(t *testing.T) {
		dir := t.TempDir()
		if err := Write(dir, nil); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
			t.Errorf("expected ledger file to exist: %v", err)
		}
	})

	t.Run("Missing file reads as empty", func(t *testing.T) {
		got, err := Read(filepath.Join(t.TempDir(), FileName))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})
}

func TestApply(t *testing.T) {
	setup := func(t *testing.T) (ledgerPath, target string) {
		t.Helper()
		target = t.TempDir()
		if err := os.MkdirAll(filepath.Join(target, "var", "log"), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(target, "var", "log", "old.log"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(target, "keep.txt"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		ledgerDir := t.TempDir()
		if err := Write(ledgerDir, []string{"/var/log/old.log", "/already-gone"}); err != nil {
			t.Fatal(err)
		}
		return filepath.Join(ledgerDir, FileName), target
	}

	t.Run("Removes listed entries, keeps the rest", func(t *testing.T) {
		ledgerPath, target := setup(t)
		removed, err := Apply(ledgerPath, target)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if removed != 1 {
			t.Errorf("removed = %d, want 1", removed)
		}
		if _, err := os.Lstat(filepath.Join(target, "var", "log", "old.log")); !os.IsNotExist(err) {
			t.Error("expected old.log to be removed")
		}
		if _, err := os.Lstat(filepath.Join(target, "keep.txt")); err != nil {
			t.Errorf("expected keep.txt to survive: %v", err)
		}
	})

	t.Run("Applying twice behaves like applying once", func(t *testing.T) {
		ledgerPath, target := setup(t)
		if _, err := Apply(ledgerPath, target); err != nil {
			t.Fatalf("first apply failed: %v", err)
		}
		removed, err := Apply(ledgerPath, target)
		if err != nil {
			t.Fatalf("second apply failed: %v", err)
		}
		if removed != 0 {
			t.Errorf("second apply removed = %d, want 0", removed)
		}
	})

	t.Run("Entries escaping the target root are skipped", func(t *testing.T) {
		target := t.TempDir()
		victim := filepath.Join(t.TempDir(), "victim.txt")
		if err := os.WriteFile(victim, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		ledgerDir := t.TempDir()
		rel, err := filepath.Rel(target, victim)
		if err != nil {
			t.Fatal(err)
		}
		if err := Write(ledgerDir, []string{"/" + filepath.ToSlash(rel)}); err != nil {
			t.Fatal(err)
		}

		removed, err := Apply(filepath.Join(ledgerDir, FileName), target)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if removed != 0 {
			t.Errorf("removed = %d, want 0", removed)
		}
		if _, err := os.Lstat(victim); err != nil {
			t.Errorf("expected file outside the root to survive: %v", err)
		}
	})
}
