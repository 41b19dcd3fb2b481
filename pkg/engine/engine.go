// Package engine executes operation plans. The engine owns sequencing and
// the filesystem state of the storage root; all byte movement is delegated
// to the copy engine.
//
// Failed operations leave their partially written snapshot directory in
// place. A partial directory is diagnosable and resumable by a later sync,
// while an automatic rollback could destroy the only copy of earlier data.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainsync/chainsync/pkg/hook"
	"github.com/chainsync/chainsync/pkg/ledger"
	"github.com/chainsync/chainsync/pkg/planner"
	"github.com/chainsync/chainsync/pkg/plog"
	"github.com/chainsync/chainsync/pkg/recovery"
	"github.com/chainsync/chainsync/pkg/util"
)

// CopyEngine is the transfer backend. The production implementation shells
// out to rsync; tests substitute a fake.
type CopyEngine interface {
	Copy(ctx context.Context, source, dest string, excludes []string) error
	Mirror(ctx context.Context, source, dest string, excludes []string) error
	LinkAgainst(ctx context.Context, source, dest, reference string, excludes []string) error
	ReportDeletions(ctx context.Context, source, reference string, excludes []string) ([]string, error)
}

// Runner executes plans against a copy engine.
type Runner struct {
	copier CopyEngine
	hooks  *hook.HookExecutor
}

// NewRunner creates a Runner.
func NewRunner(copier CopyEngine, hooks *hook.HookExecutor) *Runner {
	return &Runner{
		copier: copier,
		hooks:  hooks,
	}
}

// ExecuteFull creates a new full backup snapshot.
func (r *Runner) ExecuteFull(ctx context.Context, plan *planner.FullPlan) error {
	if err := r.runPreHooks(ctx, "full", plan.Hooks); err != nil {
		return err
	}

	if plan.DryRun {
		plog.Info("[DRY RUN] Would create full backup", "destination", plan.DestPath)
		return r.runPostHooks(ctx, "full", plan.Hooks)
	}

	if err := os.MkdirAll(plan.DestPath, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("could not create snapshot directory %s: %w", plan.DestPath, err)
	}

	plog.Info("Creating full backup", "source", plan.Source, "destination", plan.DestPath)
	if err := r.copier.Mirror(ctx, plan.Source, plan.DestPath, plan.Excludes); err != nil {
		return fmt.Errorf("full backup transfer failed, partial data remains in %s: %w", plan.DestPath, err)
	}

	if err := recovery.WriteFull(plan.DestPath); err != nil {
		return err
	}

	plog.Notice("Full backup complete", "snapshot", plan.DestName)
	return r.runPostHooks(ctx, "full", plan.Hooks)
}

// ExecuteSync refreshes the latest full backup in place and renames it to
// carry today's date. The snapshot keeps its identity as the chain's base;
// only its content and name move forward.
func (r *Runner) ExecuteSync(ctx context.Context, plan *planner.SyncPlan) error {
	if err := r.runPreHooks(ctx, "sync", plan.Hooks); err != nil {
		return err
	}

	if plan.DryRun {
		plog.Info("[DRY RUN] Would refresh full backup", "snapshot", plan.Latest.Path, "renamed_to", plan.RenamedName)
		return r.runPostHooks(ctx, "sync", plan.Hooks)
	}

	plog.Info("Refreshing full backup", "source", plan.Source, "snapshot", plan.Latest.Path)
	if err := r.copier.Mirror(ctx, plan.Source, plan.Latest.Path, plan.Excludes); err != nil {
		return fmt.Errorf("sync transfer failed, snapshot %s may be partially updated: %w", plan.Latest.Path, err)
	}

	if err := recovery.WriteFull(plan.Latest.Path); err != nil {
		return err
	}

	finalName := plan.Latest.Name
	if plan.RenamedName != plan.Latest.Name {
		newPath := filepath.Join(plan.StorageRoot, plan.RenamedName)
		if err := os.Rename(plan.Latest.Path, newPath); err != nil {
			return fmt.Errorf("could not rename refreshed snapshot to %s: %w", newPath, err)
		}
		finalName = plan.RenamedName
	}

	plog.Notice("Sync complete", "snapshot", finalName)
	return r.runPostHooks(ctx, "sync", plan.Hooks)
}

// ExecuteIncremental creates a new incremental snapshot against the plan's
// base full. Unchanged files are hard-linked from the base, the deletion
// ledger records what vanished from the source, and the recovery procedure
// binds the snapshot to its base.
func (r *Runner) ExecuteIncremental(ctx context.Context, plan *planner.IncrementalPlan) error {
	if err := r.runPreHooks(ctx, "inc", plan.Hooks); err != nil {
		return err
	}

	if plan.DryRun {
		plog.Info("[DRY RUN] Would create incremental backup", "base", plan.Base.Path, "destination", plan.DestPath)
		return r.runPostHooks(ctx, "inc", plan.Hooks)
	}

	if err := os.MkdirAll(plan.DestPath, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("could not create snapshot directory %s: %w", plan.DestPath, err)
	}

	plog.Info("Creating incremental backup", "source", plan.Source, "base", plan.Base.Name, "destination", plan.DestPath)
	if err := r.copier.LinkAgainst(ctx, plan.Source, plan.DestPath, plan.Base.Path, plan.Excludes); err != nil {
		return fmt.Errorf("incremental transfer failed, partial data remains in %s: %w", plan.DestPath, err)
	}

	// The ledger diff always runs against the base full, never a previous
	// incremental, so each snapshot's deletions stand on their own.
	deletions, err := ledger.Compute(ctx, r.copier, plan.Source, plan.Base.Path, plan.Excludes)
	if err != nil {
		return err
	}
	if err := ledger.Write(plan.DestPath, deletions); err != nil {
		return err
	}

	if err := recovery.WriteIncremental(plan.DestPath, plan.Base.Path); err != nil {
		return err
	}

	plog.Notice("Incremental backup complete", "snapshot", plan.DestName, "recorded_deletions", len(deletions))
	return r.runPostHooks(ctx, "inc", plan.Hooks)
}

// ExecuteRecover reconstructs the source as of the plan's date inside the
// target directory: restore the base full, then replay each incremental's
// contents and deletion ledger in order.
func (r *Runner) ExecuteRecover(ctx context.Context, plan *planner.RecoverPlan) error {
	if plan.DryRun {
		plog.Info("[DRY RUN] Would recover", plan.Summary()...)
		return nil
	}

	if err := os.MkdirAll(plan.Target, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("could not create restore target %s: %w", plan.Target, err)
	}

	plog.Info("Restoring base full backup", "base", plan.Chain.Base.Name, "target", plan.Target)
	if err := r.copier.Mirror(ctx, plan.Chain.Base.Path, plan.Target, artifactExcludes()); err != nil {
		return fmt.Errorf("restore of base %s failed: %w", plan.Chain.Base.Name, err)
	}

	for _, inc := range plan.Chain.Increments {
		plog.Info("Replaying incremental", "snapshot", inc.Name)
		if err := r.copier.Copy(ctx, inc.Path, plan.Target, artifactExcludes()); err != nil {
			return fmt.Errorf("replay of %s failed: %w", inc.Name, err)
		}

		removed, err := ledger.Apply(filepath.Join(inc.Path, ledger.FileName), plan.Target)
		if err != nil {
			return fmt.Errorf("applying deletion ledger of %s failed: %w", inc.Name, err)
		}
		if removed > 0 {
			plog.Info("Applied deletion ledger", "snapshot", inc.Name, "removed", removed)
		}
	}

	plog.Notice("Recovery complete", "target", plan.Target, "replayed_increments", len(plan.Chain.Increments))
	return nil
}

// artifactExcludes keeps the per-snapshot orchestrator files out of restored
// trees.
func artifactExcludes() []string {
	return []string{"/" + recovery.ScriptName, "/" + ledger.FileName}
}

func (r *Runner) runPreHooks(ctx context.Context, operation string, p *hook.Plan) error {
	if p == nil {
		return nil
	}
	if err := r.hooks.RunPreHook(ctx, operation, p); err != nil {
		if errors.Is(err, hook.ErrDisabled) || errors.Is(err, hook.ErrNothingToExecute) {
			return nil
		}
		return err
	}
	return nil
}

func (r *Runner) runPostHooks(ctx context.Context, operation string, p *hook.Plan) error {
	if p == nil {
		return nil
	}
	if err := r.hooks.RunPostHook(ctx, operation, p); err != nil {
		if errors.Is(err, hook.ErrDisabled) || errors.Is(err, hook.ErrNothingToExecute) {
			return nil
		}
		return err
	}
	return nil
}
