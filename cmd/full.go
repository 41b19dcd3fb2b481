package cmd

import (
	"context"
	"time"

	"github.com/chainsync/chainsync/pkg/buildinfo"
	"github.com/chainsync/chainsync/pkg/flagparse"
	"github.com/chainsync/chainsync/pkg/planner"
	"github.com/chainsync/chainsync/pkg/plog"
	"github.com/chainsync/chainsync/pkg/util"
)

// RunFull handles the 'full' command: create a new full backup snapshot.
func RunFull(ctx context.Context, flagMap map[string]interface{}) error {
	runConfig, err := loadRunConfig(flagparse.Full, flagMap)
	if err != nil {
		return err
	}

	runner, err := newRunner(runConfig)
	if err != nil {
		return err
	}

	fullPlan, err := planner.GenerateFullPlan(runConfig, time.Now())
	if err != nil {
		return err
	}
	plog.Notice("Planned operation", fullPlan.Summary()...)
	plog.Info("Space check passed",
		"required", util.FormatBytes(fullPlan.Space.RequiredBytes),
		"available", util.FormatBytes(fullPlan.Space.AvailableBytes))

	if !runConfig.Runtime.Force && !fullPlan.DryRun {
		if !PromptForConfirmation("Create full backup "+fullPlan.DestName+"?", false) {
			return ErrAborted
		}
	}

	startTime := time.Now()
	err = runner.ExecuteFull(ctx, fullPlan)
	duration := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		return err // The error will be logged with full details by main()
	}
	plog.Info(buildinfo.Name+" finished successfully.", "duration", duration)
	return nil
}
