// Package rsync adapts the external rsync binary as the copy engine.
//
// The orchestrator never copies bytes itself; every tree operation is one
// rsync invocation with a well-defined mode:
//
//   - Copy: archive copy, no deletions.
//   - Mirror: archive copy with --delete, making dest match source exactly.
//   - LinkAgainst: archive copy that hard-links unchanged files from a
//     reference tree (--link-dest), so an incremental only stores deltas.
//   - ReportDeletions: --dry-run --delete, parsing the paths rsync would
//     delete from the reference to make it match the source. Nothing is
//     mutated.
//
// rsync's exit code is the trustworthy outcome: zero means the transfer
// completed, anything else is treated as terminal by the caller.
package rsync

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/chainsync/chainsync/pkg/plog"
)

// DefaultBinary is the rsync executable looked up on PATH when the
// configuration does not name one explicitly.
const DefaultBinary = "rsync"

// archiveArgs request full fidelity: -a (recursive archive), -H (hard
// links), -A (ACLs), -X (extended attributes), -S (sparse files), plus
// numeric uid/gid so backups restore identically on systems with different
// name tables.
var archiveArgs = []string{"-aHAXS", "--numeric-ids"}

// deletingPrefix marks the lines of a verbose --delete run that name a
// would-be-deleted path.
const deletingPrefix = "deleting "

// Client invokes the rsync binary.
type Client struct {
	binary string
	// commandContext allows mocking os/exec for testing.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// New creates a Client for the given binary. An empty binary selects
// DefaultBinary.
func New(binary string) *Client {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Client{
		binary:         binary,
		commandContext: exec.CommandContext,
	}
}

// NewWithCommandContext creates a Client whose command construction is
// injectable, for tests.
func NewWithCommandContext(binary string, commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *Client {
	c := New(binary)
	c.commandContext = commandContext
	return c
}

// Available reports whether the rsync binary can be found. It is a
// pre-flight check: every operation depends on the engine being present.
func (c *Client) Available() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return fmt.Errorf("copy engine %q not found: %w", c.binary, err)
	}
	return nil
}

// Copy performs an archive copy of source's contents into dest without
// deleting anything already present in dest.
func (c *Client) Copy(ctx context.Context, source, dest string, excludes []string) error {
	args := buildArgs(nil, excludes, source, dest)
	return c.run(ctx, args, nil)
}

// Mirror performs an archive copy with --delete: after it returns, dest
// matches source exactly (modulo exclusions).
func (c *Client) Mirror(ctx context.Context, source, dest string, excludes []string) error {
	args := buildArgs([]string{"--delete"}, excludes, source, dest)
	return c.run(ctx, args, nil)
}

// LinkAgainst performs an archive copy of source into dest, hard-linking
// files unchanged relative to the reference tree instead of copying them.
func (c *Client) LinkAgainst(ctx context.Context, source, dest, reference string, excludes []string) error {
	args := buildArgs([]string{"--link-dest=" + contentsOf(reference)}, excludes, source, dest)
	return c.run(ctx, args, nil)
}

// ReportDeletions runs a dry-run delete-sync of source against reference and
// returns the paths (relative to the tree root) rsync would delete from
// reference to make it match source. The reference tree is not modified.
func (c *Client) ReportDeletions(ctx context.Context, source, reference string, excludes []string) ([]string, error) {
	args := buildArgs([]string{"--delete", "--dry-run", "-v"}, excludes, source, reference)

	var stdout bytes.Buffer
	if err := c.run(ctx, args, &stdout); err != nil {
		return nil, err
	}

	var deletions []string
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, deletingPrefix) {
			continue
		}
		path := strings.TrimSpace(strings.TrimPrefix(line, deletingPrefix))
		if path != "" {
			deletions = append(deletions, path)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not parse rsync deletion report: %w", err)
	}
	return deletions, nil
}

// run executes a single rsync invocation. If stdout is nil, rsync's output
// goes to the process stdout; otherwise it is captured there.
func (c *Client) run(ctx context.Context, args []string, stdout *bytes.Buffer) error {
	plog.Debug("Invoking copy engine", "binary", c.binary, "args", strings.Join(args, " "))

	cmd := c.commandContext(ctx, c.binary, args...)
	if stdout != nil {
		cmd.Stdout = stdout
	} else {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("rsync %s failed: %w", strings.Join(args, " "), err)
	}
	return nil
}

// buildArgs assembles the final argument list: archive flags, mode flags,
// exclusions, then source (contents) and destination.
func buildArgs(modeArgs []string, excludes []string, source, dest string) []string {
	args := make([]string, 0, len(archiveArgs)+len(modeArgs)+len(excludes)+2)
	args = append(args, archiveArgs...)
	args = append(args, modeArgs...)
	for _, pattern := range excludes {
		args = append(args, "--exclude="+pattern)
	}
	args = append(args, contentsOf(source), contentsOf(dest))
	return args
}

// contentsOf appends the trailing slash that tells rsync to transfer a
// directory's contents rather than the directory itself.
func contentsOf(path string) string {
	return strings.TrimRight(path, "/") + "/"
}
