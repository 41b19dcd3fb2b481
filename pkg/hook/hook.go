// Package hook runs user-supplied shell commands before and after a backup
// operation, e.g. stopping a database before a full and starting it again
// afterwards.
package hook

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/chainsync/chainsync/pkg/hints"
	"github.com/chainsync/chainsync/pkg/plog"
)

var ErrNothingToExecute = hints.New("nothing to execute")
var ErrDisabled = hints.New("hook execution is disabled")

type HookExecutor struct {
	// commandContext allows mocking os/exec for testing hooks.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewHookExecutor creates a new HookExecutor. Pass exec.CommandContext for
// production use.
func NewHookExecutor(commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *HookExecutor {
	return &HookExecutor{
		commandContext: commandContext,
	}
}

// RunPreHook executes the plan's pre-operation commands in order.
func (e *HookExecutor) RunPreHook(ctx context.Context, operation string, p *Plan) error {
	if !p.Enabled {
		return ErrDisabled
	}
	if len(p.PreHookCommands) == 0 {
		return ErrNothingToExecute
	}

	// A failed pre-hook means the environment never reached the state the
	// operator asked for; running the operation anyway would capture or
	// overwrite inconsistent data.
	plog.Info(fmt.Sprintf("Running pre-%s hook commands", operation))
	return e.runCommands(ctx, p, p.PreHookCommands, true)
}

// RunPostHook executes the plan's post-operation commands in order.
func (e *HookExecutor) RunPostHook(ctx context.Context, operation string, p *Plan) error {
	if !p.Enabled {
		return ErrDisabled
	}
	if len(p.PostHookCommands) == 0 {
		return ErrNothingToExecute
	}

	// The operation itself already succeeded at this point, so a failed
	// post-hook only warns unless the plan asks for fail-fast behavior.
	plog.Info(fmt.Sprintf("Running post-%s hook commands", operation))
	return e.runCommands(ctx, p, p.PostHookCommands, p.FailFast)
}

func (e *HookExecutor) runCommands(ctx context.Context, p *Plan, commands []string, fatal bool) error {
	for _, hookCommand := range commands {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p.DryRun {
			plog.Info("[DRY RUN] Executing command", "command", hookCommand)
			continue
		}
		plog.Info("Executing command", "command", hookCommand)

		cmd := e.createCommand(ctx, hookCommand)

		// Pipe output through so hook commands stay visible.
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			// cmd.Wait can surface the cancellation as a generic exec error;
			// prefer the context's own error in that case.
			if ctx.Err() == context.Canceled {
				return context.Canceled
			}
			if fatal {
				return fmt.Errorf("command '%s' failed: %w", hookCommand, err)
			}
			plog.Warn("Hook command failed", "command", hookCommand, "error", err)
		}
	}
	return nil
}
