package cmd

import (
	"fmt"
	"os/exec"

	"github.com/chainsync/chainsync/pkg/config"
	"github.com/chainsync/chainsync/pkg/engine"
	"github.com/chainsync/chainsync/pkg/flagparse"
	"github.com/chainsync/chainsync/pkg/hook"
	"github.com/chainsync/chainsync/pkg/plog"
	"github.com/chainsync/chainsync/pkg/rsync"
)

// loadRunConfig resolves the storage root, loads the persisted configuration
// from it, overlays the explicitly set flags, and validates the result.
// The storage root defaults to the current directory: running the tool from
// inside a backup drive is the common case.
func loadRunConfig(command flagparse.Command, flagMap map[string]interface{}) (config.Config, error) {
	storageRoot := "."
	if v, ok := flagMap["storage"].(string); ok && v != "" {
		storageRoot = v
	}

	loadedConfig, err := config.Load(storageRoot)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load configuration from storage root: %w", err)
	}

	runConfig := config.MergeConfigWithFlags(command, loadedConfig, flagMap)

	if err := runConfig.Validate(); err != nil {
		return config.Config{}, err
	}

	plog.SetLevel(plog.LevelFromString(runConfig.LogLevel))
	runConfig.LogSummary()
	return runConfig, nil
}

// newRunner wires the copy engine and the hook executor into an operation
// runner. The rsync binary must be present; every operation depends on it.
func newRunner(cfg config.Config) (*engine.Runner, error) {
	client := rsync.New(cfg.RsyncPath)
	if err := client.Available(); err != nil {
		return nil, err
	}
	return engine.NewRunner(client, hook.NewHookExecutor(exec.CommandContext)), nil
}
