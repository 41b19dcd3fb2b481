package cmd

import (
	"context"
	"time"

	"github.com/chainsync/chainsync/pkg/buildinfo"
	"github.com/chainsync/chainsync/pkg/flagparse"
	"github.com/chainsync/chainsync/pkg/planner"
	"github.com/chainsync/chainsync/pkg/plog"
)

// RunSync handles the 'sync' command: refresh the latest full backup in
// place and rename it to today's date.
func RunSync(ctx context.Context, flagMap map[string]interface{}) error {
	runConfig, err := loadRunConfig(flagparse.Sync, flagMap)
	if err != nil {
		return err
	}

	runner, err := newRunner(runConfig)
	if err != nil {
		return err
	}

	syncPlan, err := planner.GenerateSyncPlan(runConfig, time.Now())
	if err != nil {
		return err
	}
	plog.Notice("Planned operation", syncPlan.Summary()...)

	// Sync rewrites the chain's base; incrementals older than the refresh
	// lose their point-in-time meaning. Make sure the operator knows.
	if !runConfig.Runtime.Force && !syncPlan.DryRun {
		if !PromptForConfirmation("Refresh "+syncPlan.Latest.Name+" in place? Existing incrementals will no longer restore older states", false) {
			return ErrAborted
		}
	}

	startTime := time.Now()
	err = runner.ExecuteSync(ctx, syncPlan)
	duration := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		return err
	}
	plog.Info(buildinfo.Name+" finished successfully.", "duration", duration)
	return nil
}
