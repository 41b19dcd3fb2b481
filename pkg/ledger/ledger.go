// Package ledger persists and replays the deletion ledger of an incremental
// snapshot: the list of paths that existed in the base full backup but were
// gone from the source when the incremental was created.
//
// The ledger lets an incremental represent deletions as well as changes.
// During recovery it is applied after the incremental's contents have been
// copied over the restored base, removing what the source had deleted.
package ledger

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chainsync/chainsync/pkg/plog"
	"github.com/chainsync/chainsync/pkg/util"
)

// FileName is the name of the ledger file inside an incremental snapshot.
const FileName = "skip-files.txt"

// DeletionReporter reports the paths the copy engine would delete from
// referenceBase to make it match source, without mutating anything.
type DeletionReporter interface {
	ReportDeletions(ctx context.Context, source, referenceBase string, excludes []string) ([]string, error)
}

// Compute builds the deletion ledger for a new incremental: the set of paths
// present in referenceBase (the latest full backup) but absent from source,
// minus the exclusion globs. The diff always runs against the full, never
// against a previous incremental, so every ledger is base-relative.
func Compute(ctx context.Context, reporter DeletionReporter, source, referenceBase string, excludes []string) ([]string, error) {
	reported, err := reporter.ReportDeletions(ctx, source, referenceBase, excludes)
	if err != nil {
		return nil, fmt.Errorf("deletion report against %s failed: %w", referenceBase, err)
	}

	seen := make(map[string]struct{}, len(reported))
	var paths []string
	for _, rel := range reported {
		p := Normalize(rel)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// Normalize converts an engine-reported path (relative to the tree root)
// into the ledger's canonical form: an absolute path rooted at the
// filesystem root, forward slashes, no trailing separator.
func Normalize(rel string) string {
	rel = strings.TrimSuffix(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return ""
	}
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return rel
}

// Write persists the ledger entries into dir as one path per line. An empty
// ledger still produces the file so the snapshot records "no deletions"
// explicitly.
func Write(dir string, paths []string) error {
	ledgerPath := filepath.Join(dir, FileName)

	var b strings.Builder
	for _, p := range paths {
		if p == "" {
			continue
		}
		b.WriteString(p)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(ledgerPath, []byte(b.String()), util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("could not write deletion ledger %s: %w", ledgerPath, err)
	}
	return nil
}

// Read loads a ledger file. A missing file is not an error: it reads as an
// empty ledger, so snapshots written before deletion tracking existed (or
// with the ledger manually removed) still recover cleanly.
func Read(ledgerPath string) ([]string, error) {
	f, err := os.Open(ledgerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not open deletion ledger %s: %w", ledgerPath, err)
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read deletion ledger %s: %w", ledgerPath, err)
	}
	return paths, nil
}

// Apply removes every ledger entry from targetRoot. It is idempotent:
// entries already absent are skipped, not errors. It returns the number of
// entries that actually existed and were removed.
func Apply(ledgerPath, targetRoot string) (int, error) {
	paths, err := Read(ledgerPath)
	if err != nil {
		return 0, err
	}

	cleanRoot := filepath.Clean(targetRoot)
	removed := 0
	for _, p := range paths {
		full := filepath.Join(cleanRoot, p)

		// A ledger entry must stay inside the target tree. Entries that
		// escape via ".." are refused, not followed.
		if full != cleanRoot && !strings.HasPrefix(full, cleanRoot+string(os.PathSeparator)) {
			plog.Warn("Skipping ledger entry outside the target root", "entry", p, "target", targetRoot)
			continue
		}

		if _, err := os.Lstat(full); err != nil {
			if os.IsNotExist(err) {
				continue // Already absent; applying twice must behave like applying once.
			}
			return removed, fmt.Errorf("could not stat %s: %w", full, err)
		}

		if err := os.RemoveAll(full); err != nil {
			return removed, fmt.Errorf("could not remove %s: %w", full, err)
		}
		plog.Debug("Removed ledger entry", "path", full)
		removed++
	}
	return removed, nil
}
