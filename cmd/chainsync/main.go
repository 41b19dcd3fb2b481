package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/chainsync/chainsync/cmd"
	"github.com/chainsync/chainsync/pkg/buildinfo"
	"github.com/chainsync/chainsync/pkg/flagparse"
	"github.com/chainsync/chainsync/pkg/hints"
	"github.com/chainsync/chainsync/pkg/plog"
)

// run encapsulates the main application logic and returns an error if
// something goes wrong, allowing the main function to handle exit codes.
func run(ctx context.Context) error {
	command, flagMap, err := flagparse.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	switch command {
	case flagparse.Full:
		return cmd.RunFull(ctx, flagMap)
	case flagparse.Sync:
		return cmd.RunSync(ctx, flagMap)
	case flagparse.Incremental:
		return cmd.RunIncremental(ctx, flagMap)
	case flagparse.Recover:
		return cmd.RunRecover(ctx, flagMap)
	case flagparse.Init:
		return cmd.RunInit(ctx, flagMap)
	case flagparse.Version:
		return cmd.RunVersion(buildinfo.Name, buildinfo.Version)
	case flagparse.None:
		return nil // Help was printed.
	default:
		return nil
	}
}

func main() {
	// Cancel the context on interrupt so a running rsync or hook command is
	// terminated instead of orphaned.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx); err != nil {
		// Hints are expected outcomes (e.g. a declined confirmation): exit
		// non-zero, but without an error trace.
		if hints.IsHint(err) {
			plog.Info(buildinfo.Name + " stopped: " + err.Error())
			os.Exit(1)
		}
		plog.Error(buildinfo.Name+" exited with error", "error", err)
		os.Exit(1)
	}
}
