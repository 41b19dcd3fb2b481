package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chainsync/chainsync/pkg/buildinfo"
	"github.com/chainsync/chainsync/pkg/config"
	"github.com/chainsync/chainsync/pkg/flagparse"
	"github.com/chainsync/chainsync/pkg/plog"
	"github.com/chainsync/chainsync/pkg/preflight"
)

// RunInit handles the 'init' command: write a configuration file into the
// storage root so later operations run without repeating flags.
func RunInit(ctx context.Context, flagMap map[string]interface{}) error {
	storageRoot := "."
	if v, ok := flagMap["storage"].(string); ok && v != "" {
		storageRoot = v
	}

	absStorageRoot, err := filepath.Abs(storageRoot)
	if err != nil {
		return fmt.Errorf("could not determine absolute path for %s: %w", storageRoot, err)
	}

	force := false
	if f, ok := flagMap["force"]; ok {
		force = f.(bool)
	}

	configPath := filepath.Join(absStorageRoot, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		fmt.Printf("WARNING: Configuration file already exists at %s.\n", configPath)
		fmt.Printf("Continuing will overwrite it with the merged settings. Unset custom values will be lost.\n")
		if !PromptForConfirmation("Are you sure you want to continue?", false) {
			return ErrAborted
		}
	}

	runConfig := config.MergeConfigWithFlags(flagparse.Init, config.NewDefault(), flagMap)
	runConfig.StorageRoot = absStorageRoot

	if err := runConfig.Validate(); err != nil {
		return err
	}
	plog.SetLevel(plog.LevelFromString(runConfig.LogLevel))

	if err := preflight.CheckStorageRootAccessible(runConfig.StorageRoot); err != nil {
		return fmt.Errorf("initialization preflight failed: %w", err)
	}
	if err := preflight.CheckStorageRootWritable(runConfig.StorageRoot); err != nil {
		return fmt.Errorf("initialization preflight failed: %w", err)
	}

	if runConfig.Runtime.DryRun {
		plog.Info("[DRY RUN] Initialization complete. No changes made.")
		return nil
	}

	startTime := time.Now()
	if err := config.Generate(runConfig); err != nil {
		return fmt.Errorf("failed to generate config file: %w", err)
	}
	duration := time.Since(startTime).Round(time.Millisecond)
	plog.Info(buildinfo.Name+" storage root successfully initialized.", "duration", duration)
	return nil
}
