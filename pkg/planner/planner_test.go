package planner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chainsync/chainsync/pkg/catalog"
	"github.com/chainsync/chainsync/pkg/chain"
	"github.com/chainsync/chainsync/pkg/config"
	"github.com/chainsync/chainsync/pkg/preflight"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.NewDefault()
	cfg.Source = t.TempDir()
	cfg.StorageRoot = t.TempDir()
	return cfg
}

func withSpace(t *testing.T, check preflight.SpaceCheck, err error) {
	t.Helper()
	original := checkSpace
	checkSpace = func(sourcePath, storageRoot string) (preflight.SpaceCheck, error) {
		return check, err
	}
	t.Cleanup(func() { checkSpace = original })
}

func mkSnapshot(t *testing.T, root, name string) {
	t.Helper()
	if err := os.Mkdir(filepath.Join(root, name), 0755); err != nil {
		t.Fatal(err)
	}
}

var noon = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestGenerateFullPlan(t *testing.T) {
	t.Run("Happy path", func(t *testing.T) {
		cfg := testConfig(t)
		withSpace(t, preflight.SpaceCheck{RequiredBytes: 100, AvailableBytes: 500}, nil)

		plan, err := GenerateFullPlan(cfg, noon)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan.DestName != "2025-03-10-backup-full" {
			t.Errorf("dest name = %q", plan.DestName)
		}
		if plan.DestPath != filepath.Join(cfg.StorageRoot, plan.DestName) {
			t.Errorf("dest path = %q", plan.DestPath)
		}
		if plan.Space.RequiredBytes != 100 {
			t.Errorf("space = %+v", plan.Space)
		}
	})

	t.Run("Space gate failure blocks the plan", func(t *testing.T) {
		cfg := testConfig(t)
		spaceErr := &preflight.InsufficientSpaceError{Required: 10, Available: 1, Target: cfg.StorageRoot}
		withSpace(t, preflight.SpaceCheck{}, spaceErr)

		_, err := GenerateFullPlan(cfg, noon)
		var insufficient *preflight.InsufficientSpaceError
		if !errors.As(err, &insufficient) {
			t.Fatalf("expected InsufficientSpaceError, got %v", err)
		}
	})

	t.Run("Space gate failure creates nothing", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.StorageRoot = filepath.Join(cfg.StorageRoot, "backups")
		spaceErr := &preflight.InsufficientSpaceError{Required: 10, Available: 1, Target: cfg.StorageRoot}
		withSpace(t, preflight.SpaceCheck{}, spaceErr)

		if _, err := GenerateFullPlan(cfg, noon); err == nil {
			t.Fatal("expected the space gate to block the plan")
		}
		if _, err := os.Stat(cfg.StorageRoot); !os.IsNotExist(err) {
			t.Error("an aborted-for-space run must not create the storage root")
		}
	})

	t.Run("Missing source blocks the plan", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Source = filepath.Join(cfg.Source, "gone")
		withSpace(t, preflight.SpaceCheck{}, nil)

		if _, err := GenerateFullPlan(cfg, noon); err == nil {
			t.Error("expected an error for a missing source")
		}
	})
}

func TestGenerateSyncPlan(t *testing.T) {
	t.Run("Targets the latest full", func(t *testing.T) {
		cfg := testConfig(t)
		mkSnapshot(t, cfg.StorageRoot, "2025-01-01-backup-full")
		mkSnapshot(t, cfg.StorageRoot, "2025-02-01-backup-full")

		plan, err := GenerateSyncPlan(cfg, noon)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan.Latest.Name != "2025-02-01-backup-full" {
			t.Errorf("latest = %q", plan.Latest.Name)
		}
		if plan.RenamedName != "2025-03-10-backup-full" {
			t.Errorf("renamed = %q", plan.RenamedName)
		}
	})

	t.Run("No full to refresh", func(t *testing.T) {
		cfg := testConfig(t)
		_, err := GenerateSyncPlan(cfg, noon)
		if !errors.Is(err, catalog.ErrNoFullFound) {
			t.Errorf("expected ErrNoFullFound, got %v", err)
		}
	})
}

func TestGenerateIncrementalPlan(t *testing.T) {
	t.Run("Based on the latest full", func(t *testing.T) {
		cfg := testConfig(t)
		mkSnapshot(t, cfg.StorageRoot, "2025-02-01-backup-full")

		plan, err := GenerateIncrementalPlan(cfg, noon)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan.Base.Name != "2025-02-01-backup-full" {
			t.Errorf("base = %q", plan.Base.Name)
		}
		if plan.DestName != "2025-03-10-backup-inc-120000" {
			t.Errorf("dest = %q", plan.DestName)
		}
	})

	t.Run("No full to build on", func(t *testing.T) {
		cfg := testConfig(t)
		_, err := GenerateIncrementalPlan(cfg, noon)
		if !errors.Is(err, catalog.ErrNoFullFound) {
			t.Errorf("expected ErrNoFullFound, got %v", err)
		}
	})
}

func TestGenerateRecoverPlan(t *testing.T) {
	t.Run("Resolves the chain for the requested date", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Runtime.Date = "2025-01-02"
		cfg.Runtime.RestoreTarget = filepath.Join(t.TempDir(), "restore")
		mkSnapshot(t, cfg.StorageRoot, "2025-01-01-backup-full")
		mkSnapshot(t, cfg.StorageRoot, "2025-01-02-backup-inc-093000")

		plan, err := GenerateRecoverPlan(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan.Chain.Base.Name != "2025-01-01-backup-full" {
			t.Errorf("base = %q", plan.Chain.Base.Name)
		}
		if len(plan.Chain.Increments) != 1 {
			t.Errorf("increments = %v", plan.Chain.Increments)
		}
	})

	t.Run("Missing date", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Runtime.RestoreTarget = t.TempDir()
		mkSnapshot(t, cfg.StorageRoot, "2025-01-01-backup-full")

		_, err := GenerateRecoverPlan(cfg)
		if err == nil || !strings.Contains(err.Error(), "date") {
			t.Errorf("expected a missing-date error, got %v", err)
		}
	})

	t.Run("Malformed date", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Runtime.Date = "02.01.2025"
		cfg.Runtime.RestoreTarget = t.TempDir()

		if _, err := GenerateRecoverPlan(cfg); err == nil {
			t.Error("expected an error for a malformed date")
		}
	})

	t.Run("No chain available", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Runtime.Date = "2025-03-10"
		cfg.Runtime.RestoreTarget = t.TempDir()

		_, err := GenerateRecoverPlan(cfg)
		var noFull *chain.NoFullError
		if !errors.As(err, &noFull) {
			t.Errorf("expected NoFullError, got %v", err)
		}
	})
}

func TestPlanExcludes(t *testing.T) {
	t.Run("Storage root inside the source is excluded", func(t *testing.T) {
		source := t.TempDir()
		storage := filepath.Join(source, "backups", "drive")
		if err := os.MkdirAll(storage, 0755); err != nil {
			t.Fatal(err)
		}

		cfg := config.NewDefault()
		cfg.Source = source
		cfg.StorageRoot = storage

		excludes := planExcludes(cfg)
		found := false
		for _, pattern := range excludes {
			if pattern == "/backups/drive" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected storage self-exclusion in %v", excludes)
		}
	})

	t.Run("Storage root outside the source adds nothing", func(t *testing.T) {
		cfg := testConfig(t)
		excludes := planExcludes(cfg)
		for _, pattern := range excludes {
			if strings.Contains(pattern, "..") {
				t.Errorf("unexpected relative exclusion %q", pattern)
			}
		}
	})

	t.Run("Snapshot artifacts are always protected", func(t *testing.T) {
		cfg := testConfig(t)
		excludes := planExcludes(cfg)
		foundScript, foundLedger := false, false
		for _, pattern := range excludes {
			if pattern == "/recovery.sh" {
				foundScript = true
			}
			if pattern == "/skip-files.txt" {
				foundLedger = true
			}
		}
		if !foundScript || !foundLedger {
			t.Errorf("expected artifact protection in %v", excludes)
		}
	})
}
