// Package planner turns a validated configuration plus the current catalog
// state into an executable operation plan. Planning is read-only: every plan
// describes exactly what the engine will do, so the confirmation prompt shown
// to the operator is truthful.
package planner

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/chainsync/chainsync/pkg/catalog"
	"github.com/chainsync/chainsync/pkg/chain"
	"github.com/chainsync/chainsync/pkg/config"
	"github.com/chainsync/chainsync/pkg/hook"
	"github.com/chainsync/chainsync/pkg/ledger"
	"github.com/chainsync/chainsync/pkg/preflight"
	"github.com/chainsync/chainsync/pkg/recovery"
)

// checkSpace allows mocking the capacity gate for testing.
var checkSpace = preflight.CheckSpaceForFull

// artifactExcludes protect the orchestrator's per-snapshot files during any
// transfer that touches a snapshot directory. They are harmless on the source
// side, so every plan carries them.
var artifactExcludes = []string{"/" + recovery.ScriptName, "/" + ledger.FileName}

// FullPlan describes the creation of a new full backup.
type FullPlan struct {
	Source      string
	StorageRoot string
	// DestName is the snapshot directory name, derived from today's date.
	DestName string
	DestPath string
	Excludes []string
	Space    preflight.SpaceCheck
	Hooks    *hook.Plan
	DryRun   bool
}

// SyncPlan describes refreshing the latest full backup in place and renaming
// it to today's date.
type SyncPlan struct {
	Source      string
	StorageRoot string
	Latest      catalog.Snapshot
	// RenamedName is the name the refreshed full will carry afterwards.
	// Equal to Latest.Name when the latest full is already today's.
	RenamedName string
	Excludes    []string
	Hooks       *hook.Plan
	DryRun      bool
}

// IncrementalPlan describes the creation of a new incremental backup against
// the latest full.
type IncrementalPlan struct {
	Source      string
	StorageRoot string
	Base        catalog.Snapshot
	DestName    string
	DestPath    string
	Excludes    []string
	Hooks       *hook.Plan
	DryRun      bool
}

// RecoverPlan describes a point-in-time restore.
type RecoverPlan struct {
	StorageRoot string
	Target      string
	Date        time.Time
	Chain       chain.BackupChain
	DryRun      bool
}

// GenerateFullPlan validates the environment and plans a new full backup.
// The space gate runs here: a plan is only returned when the storage side can
// hold a complete copy of the source.
func GenerateFullPlan(cfg config.Config, now time.Time) (*FullPlan, error) {
	if err := preflight.CheckSourceAccessible(cfg.Source); err != nil {
		return nil, err
	}
	if err := preflight.CheckStorageRootAccessible(cfg.StorageRoot); err != nil {
		return nil, err
	}

	// The space gate precedes the writability probe: an aborted-for-space
	// run must leave the filesystem untouched, and the probe creates the
	// storage root.
	space, err := checkSpace(cfg.Source, cfg.StorageRoot)
	if err != nil {
		return nil, err
	}

	if err := preflight.CheckStorageRootWritable(cfg.StorageRoot); err != nil {
		return nil, err
	}

	destName := catalog.FullName(now)
	return &FullPlan{
		Source:      cfg.Source,
		StorageRoot: cfg.StorageRoot,
		DestName:    destName,
		DestPath:    filepath.Join(cfg.StorageRoot, destName),
		Excludes:    planExcludes(cfg),
		Space:       space,
		Hooks:       hooksPlan(cfg),
		DryRun:      cfg.Runtime.DryRun,
	}, nil
}

// GenerateSyncPlan plans an in-place refresh of the latest full backup.
func GenerateSyncPlan(cfg config.Config, now time.Time) (*SyncPlan, error) {
	if err := runBackupPreflight(cfg); err != nil {
		return nil, err
	}

	latest, err := catalog.LatestFull(cfg.StorageRoot)
	if err != nil {
		return nil, err
	}

	return &SyncPlan{
		Source:      cfg.Source,
		StorageRoot: cfg.StorageRoot,
		Latest:      latest,
		RenamedName: catalog.FullName(now),
		Excludes:    planExcludes(cfg),
		Hooks:       hooksPlan(cfg),
		DryRun:      cfg.Runtime.DryRun,
	}, nil
}

// GenerateIncrementalPlan plans a new incremental backup against the latest
// full.
func GenerateIncrementalPlan(cfg config.Config, now time.Time) (*IncrementalPlan, error) {
	if err := runBackupPreflight(cfg); err != nil {
		return nil, err
	}

	base, err := catalog.LatestFull(cfg.StorageRoot)
	if err != nil {
		return nil, err
	}

	destName := catalog.IncrementalName(now)
	destPath := filepath.Join(cfg.StorageRoot, destName)
	if destPath == base.Path {
		return nil, fmt.Errorf("incremental destination %s collides with its base", destPath)
	}

	return &IncrementalPlan{
		Source:      cfg.Source,
		StorageRoot: cfg.StorageRoot,
		Base:        base,
		DestName:    destName,
		DestPath:    destPath,
		Excludes:    planExcludes(cfg),
		Hooks:       hooksPlan(cfg),
		DryRun:      cfg.Runtime.DryRun,
	}, nil
}

// GenerateRecoverPlan resolves the backup chain for the requested date and
// plans the restore. The date is mandatory: a restore must name the
// point-in-time it reconstructs.
func GenerateRecoverPlan(cfg config.Config) (*RecoverPlan, error) {
	if cfg.Runtime.Date == "" {
		return nil, fmt.Errorf("recovery requires a date in YYYY-MM-DD form; use today's date for the latest state")
	}
	targetDate, err := time.Parse(catalog.DateLayout, cfg.Runtime.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", cfg.Runtime.Date, err)
	}

	if err := preflight.CheckStorageRootAccessible(cfg.StorageRoot); err != nil {
		return nil, err
	}

	backupChain, err := chain.Resolve(cfg.StorageRoot, targetDate)
	if err != nil {
		return nil, err
	}

	return &RecoverPlan{
		StorageRoot: cfg.StorageRoot,
		Target:      cfg.Runtime.RestoreTarget,
		Date:        targetDate,
		Chain:       backupChain,
		DryRun:      cfg.Runtime.DryRun,
	}, nil
}

// Summary returns the log arguments describing this plan to the operator.
func (p *FullPlan) Summary() []interface{} {
	return []interface{}{
		"operation", "full",
		"source", p.Source,
		"destination", p.DestPath,
		"required_space", p.Space.RequiredBytes,
		"available_space", p.Space.AvailableBytes,
		"excludes", strings.Join(p.Excludes, ", "),
		"dry_run", p.DryRun,
	}
}

func (p *SyncPlan) Summary() []interface{} {
	return []interface{}{
		"operation", "sync",
		"source", p.Source,
		"refreshing", p.Latest.Path,
		"renamed_to", p.RenamedName,
		"excludes", strings.Join(p.Excludes, ", "),
		"dry_run", p.DryRun,
	}
}

func (p *IncrementalPlan) Summary() []interface{} {
	return []interface{}{
		"operation", "inc",
		"source", p.Source,
		"base", p.Base.Path,
		"destination", p.DestPath,
		"excludes", strings.Join(p.Excludes, ", "),
		"dry_run", p.DryRun,
	}
}

func (p *RecoverPlan) Summary() []interface{} {
	incNames := make([]string, 0, len(p.Chain.Increments))
	for _, inc := range p.Chain.Increments {
		incNames = append(incNames, inc.Name)
	}
	return []interface{}{
		"operation", "recover",
		"date", p.Date.Format(catalog.DateLayout),
		"base", p.Chain.Base.Name,
		"increments", strings.Join(incNames, ", "),
		"target", p.Target,
		"dry_run", p.DryRun,
	}
}

// runBackupPreflight performs the environment checks shared by all backup
// operations.
func runBackupPreflight(cfg config.Config) error {
	if err := preflight.CheckSourceAccessible(cfg.Source); err != nil {
		return err
	}
	if err := preflight.CheckStorageRootAccessible(cfg.StorageRoot); err != nil {
		return err
	}
	return preflight.CheckStorageRootWritable(cfg.StorageRoot)
}

// planExcludes combines the configured exclusions with the storage root's
// self-exclusion and the snapshot artifact protection.
//
// When the storage root lives inside the source tree, backing it up would
// recursively copy the backups themselves. The root is excluded by its
// source-relative path in that case.
func planExcludes(cfg config.Config) []string {
	excludes := append([]string{}, cfg.Excludes()...)
	excludes = append(excludes, artifactExcludes...)

	rel, err := filepath.Rel(cfg.Source, cfg.StorageRoot)
	if err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		excludes = append(excludes, "/"+filepath.ToSlash(rel))
	}
	return excludes
}

// hooksPlan builds the hook execution plan for a backup operation.
func hooksPlan(cfg config.Config) *hook.Plan {
	return &hook.Plan{
		Enabled:          true,
		PreHookCommands:  cfg.Hooks.PreOperation,
		PostHookCommands: cfg.Hooks.PostOperation,
		DryRun:           cfg.Runtime.DryRun,
		FailFast:         cfg.Runtime.FailFast,
	}
}
