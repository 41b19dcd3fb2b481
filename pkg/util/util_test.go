package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory available: %v", err)
	}

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "No tilde",
			input:    "/var/backups",
			expected: "/var/backups",
		},
		{
			name:     "Bare tilde",
			input:    "~",
			expected: home,
		},
		{
			name:     "Tilde with path",
			input:    "~/backups/drive",
			expected: filepath.Join(home, "backups", "drive"),
		},
		{
			name:     "Relative path untouched",
			input:    "backups/drive",
			expected: "backups/drive",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ExpandPath(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tc.expected {
				t.Errorf("expected %q, but got %q", tc.expected, result)
			}
		})
	}
}

func TestExpandedAbsPath(t *testing.T) {
	result, err := ExpandedAbsPath("some/relative/../path")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(result) {
		t.Errorf("expected an absolute path, got %q", result)
	}
	if strings.Contains(result, "..") {
		t.Errorf("expected a cleaned path, got %q", result)
	}
}

func TestMergeAndDeduplicate(t *testing.T) {
	result := MergeAndDeduplicate(
		[]string{"/proc", "/sys"},
		[]string{"/sys", "*.iso"},
		nil,
		[]string{"/proc"},
	)

	sort.Strings(result)
	expected := []string{"*.iso", "/proc", "/sys"}
	if len(result) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, result)
	}
	for i := range expected {
		if result[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, result)
			break
		}
	}
}

func TestInvertMap(t *testing.T) {
	forward := map[int]string{1: "one", 2: "two"}
	inverted := InvertMap(forward)
	if len(inverted) != 2 || inverted["one"] != 1 || inverted["two"] != 2 {
		t.Errorf("InvertMap = %v", inverted)
	}
}

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		input    uint64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
	}

	for _, tc := range testCases {
		if got := FormatBytes(tc.input); got != tc.expected {
			t.Errorf("FormatBytes(%d) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
