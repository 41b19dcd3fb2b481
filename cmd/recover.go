package cmd

import (
	"context"
	"time"

	"github.com/chainsync/chainsync/pkg/buildinfo"
	"github.com/chainsync/chainsync/pkg/flagparse"
	"github.com/chainsync/chainsync/pkg/planner"
	"github.com/chainsync/chainsync/pkg/plog"
)

// RunRecover handles the 'recover' command: restore the source as of a given
// date into a target directory.
func RunRecover(ctx context.Context, flagMap map[string]interface{}) error {
	runConfig, err := loadRunConfig(flagparse.Recover, flagMap)
	if err != nil {
		return err
	}

	runner, err := newRunner(runConfig)
	if err != nil {
		return err
	}

	recoverPlan, err := planner.GenerateRecoverPlan(runConfig)
	if err != nil {
		return err
	}
	plog.Notice("Planned operation", recoverPlan.Summary()...)

	if !runConfig.Runtime.Force && !recoverPlan.DryRun {
		if !PromptForConfirmation("Restore into "+recoverPlan.Target+"? Existing contents will be overwritten", false) {
			return ErrAborted
		}
	}

	startTime := time.Now()
	err = runner.ExecuteRecover(ctx, recoverPlan)
	duration := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		return err
	}
	plog.Info(buildinfo.Name+" finished successfully.", "duration", duration)
	return nil
}
