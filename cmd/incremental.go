package cmd

import (
	"context"
	"time"

	"github.com/chainsync/chainsync/pkg/buildinfo"
	"github.com/chainsync/chainsync/pkg/flagparse"
	"github.com/chainsync/chainsync/pkg/planner"
	"github.com/chainsync/chainsync/pkg/plog"
)

// RunIncremental handles the 'inc' command: create an incremental backup
// against the latest full.
func RunIncremental(ctx context.Context, flagMap map[string]interface{}) error {
	runConfig, err := loadRunConfig(flagparse.Incremental, flagMap)
	if err != nil {
		return err
	}

	runner, err := newRunner(runConfig)
	if err != nil {
		return err
	}

	incPlan, err := planner.GenerateIncrementalPlan(runConfig, time.Now())
	if err != nil {
		return err
	}
	plog.Notice("Planned operation", incPlan.Summary()...)

	if !runConfig.Runtime.Force && !incPlan.DryRun {
		if !PromptForConfirmation("Create incremental backup "+incPlan.DestName+" against "+incPlan.Base.Name+"?", false) {
			return ErrAborted
		}
	}

	startTime := time.Now()
	err = runner.ExecuteIncremental(ctx, incPlan)
	duration := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		return err
	}
	plog.Info(buildinfo.Name+" finished successfully.", "duration", duration)
	return nil
}
