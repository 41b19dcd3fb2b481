package recovery

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func readScript(t *testing.T, dir string) (string, os.FileInfo) {
	t.Helper()
	scriptPath := filepath.Join(dir, ScriptName)
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		t.Fatalf("could not read generated script: %v", err)
	}
	info, err := os.Stat(scriptPath)
	if err != nil {
		t.Fatalf("could not stat generated script: %v", err)
	}
	return string(data), info
}

func TestWriteFull(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFull(dir); err != nil {
		t.Fatalf("WriteFull failed: %v", err)
	}

	script, info := readScript(t, dir)

	if !strings.HasPrefix(script, "#!/bin/sh") {
		t.Error("expected a POSIX shell shebang")
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0755 {
		t.Errorf("script mode = %v, want 0755", info.Mode().Perm())
	}
	for _, want := range []string{
		"rsync -aHAXS --numeric-ids --delete",
		"--exclude=/recovery.sh",
		"--exclude=/skip-files.txt",
		"bootloader",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("expected script to contain %q", want)
		}
	}
	if strings.Contains(script, "BASE=") {
		t.Error("full script must not reference a base backup")
	}
}

func TestWriteIncremental(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(t.TempDir(), "2025-01-01-backup-full")

	if err := WriteIncremental(dir, base); err != nil {
		t.Fatalf("WriteIncremental failed: %v", err)
	}

	script, info := readScript(t, dir)

	if runtime.GOOS != "windows" && info.Mode().Perm() != 0755 {
		t.Errorf("script mode = %v, want 0755", info.Mode().Perm())
	}
	if !strings.Contains(script, `BASE="`+base+`"`) {
		t.Errorf("expected hardcoded base path %q in script", base)
	}
	for _, want := range []string{
		"skip-files.txt",
		"rm -rf",
		"while IFS= read -r entry",
		"2025-01-01-backup-full",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("expected script to contain %q", want)
		}
	}
}

func TestWriteOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, ScriptName)
	if err := os.WriteFile(scriptPath, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := WriteFull(dir); err != nil {
		t.Fatalf("WriteFull failed: %v", err)
	}
	script, _ := readScript(t, dir)
	if script == "stale" {
		t.Error("expected the stale script to be replaced")
	}
}
