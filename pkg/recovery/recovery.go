// Package recovery generates the self-contained recovery procedure stored
// inside every snapshot.
//
// The generated script depends only on a POSIX shell and rsync. It has no
// knowledge of the orchestrator: a snapshot directory carried to another
// machine on removable media restores itself with `sh recovery.sh [TARGET]`.
// For incrementals, the absolute path of the base full backup is embedded as
// a literal at generation time.
package recovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/chainsync/chainsync/pkg/ledger"
	"github.com/chainsync/chainsync/pkg/util"
)

// ScriptName is the name of the recovery procedure file inside a snapshot.
const ScriptName = "recovery.sh"

// scriptData feeds both templates.
type scriptData struct {
	ScriptName  string
	LedgerName  string
	ArchiveArgs string
	BasePath    string // Incremental only: absolute path of the base full.
	BaseName    string
}

// archiveArgs mirrors the fidelity flags the orchestrator itself passes to
// rsync, so a script-driven restore preserves the same metadata.
const archiveArgs = "-aHAXS --numeric-ids"

var fullTemplate = template.Must(template.New("full").Parse(`#!/bin/sh
# Self-contained recovery procedure for this full backup.
# Usage: {{.ScriptName}} [TARGET]   (TARGET defaults to /)
set -eu

TARGET="${1:-/}"
SELF_DIR=$(CDPATH= cd -- "$(dirname -- "$0")" && pwd)

echo "Restoring full backup $SELF_DIR into $TARGET"
rsync {{.ArchiveArgs}} --delete \
  --exclude=/{{.ScriptName}} --exclude=/{{.LedgerName}} \
  "$SELF_DIR/" "$TARGET/"

echo "Restore complete."
echo "Manual steps remaining:"
echo "  - recreate the virtual filesystem mount points (dev proc sys tmp run) in $TARGET"
echo "  - reinstall the bootloader before rebooting into the restored system"
`))

var incrementalTemplate = template.Must(template.New("incremental").Parse(`#!/bin/sh
# Self-contained recovery procedure for this incremental backup.
# Replays the {{.BaseName}} full backup, then this delta, then the recorded deletions.
# Usage: {{.ScriptName}} [TARGET]   (TARGET defaults to /)
set -eu

TARGET="${1:-/}"
SELF_DIR=$(CDPATH= cd -- "$(dirname -- "$0")" && pwd)
BASE="{{.BasePath}}"

if [ ! -d "$BASE" ]; then
  echo "base full backup not found: $BASE" >&2
  exit 1
fi

echo "Restoring base full backup $BASE into $TARGET"
rsync {{.ArchiveArgs}} --delete \
  --exclude=/{{.ScriptName}} --exclude=/{{.LedgerName}} \
  "$BASE/" "$TARGET/"

echo "Applying incremental $SELF_DIR"
rsync {{.ArchiveArgs}} \
  --exclude=/{{.ScriptName}} --exclude=/{{.LedgerName}} \
  "$SELF_DIR/" "$TARGET/"

if [ -f "$SELF_DIR/{{.LedgerName}}" ]; then
  echo "Replaying recorded deletions"
  while IFS= read -r entry; do
    [ -n "$entry" ] || continue
    rm -rf "$TARGET$entry"
  done < "$SELF_DIR/{{.LedgerName}}"
fi

echo "Restore complete."
echo "Manual steps remaining:"
echo "  - recreate the virtual filesystem mount points (dev proc sys tmp run) in $TARGET"
echo "  - reinstall the bootloader before rebooting into the restored system"
`))

// WriteFull emits the recovery procedure for a full snapshot into its
// directory. An existing procedure is overwritten, which is how a sync
// operation regenerates it.
func WriteFull(snapshotDir string) error {
	return write(snapshotDir, fullTemplate, scriptData{
		ScriptName:  ScriptName,
		LedgerName:  ledger.FileName,
		ArchiveArgs: archiveArgs,
	})
}

// WriteIncremental emits the recovery procedure for an incremental snapshot.
// The base full's absolute path is baked into the script, so the procedure
// works without the orchestrator present.
func WriteIncremental(snapshotDir, basePath string) error {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return fmt.Errorf("could not resolve base path %s: %w", basePath, err)
	}
	return write(snapshotDir, incrementalTemplate, scriptData{
		ScriptName:  ScriptName,
		LedgerName:  ledger.FileName,
		ArchiveArgs: archiveArgs,
		BasePath:    absBase,
		BaseName:    filepath.Base(absBase),
	})
}

func write(snapshotDir string, tmpl *template.Template, data scriptData) error {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return fmt.Errorf("could not render recovery procedure: %w", err)
	}

	scriptPath := filepath.Join(snapshotDir, ScriptName)
	if err := os.WriteFile(scriptPath, []byte(b.String()), util.ExecutableFilePerms); err != nil {
		return fmt.Errorf("could not write recovery procedure %s: %w", scriptPath, err)
	}
	return nil
}
