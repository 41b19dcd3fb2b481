// Package flagparse turns the command line into a Command plus a map of the
// flags the user explicitly set. The map is later overlaid on the persisted
// configuration, so only flags actually typed override the config file.
package flagparse

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainsync/chainsync/pkg/buildinfo"
)

// cliFlags holds pointers to all possible command-line flags.
// Fields are pointers so we can distinguish between "not registered for this
// command" (nil) and "registered but not set by user" (non-nil pointer to
// zero value).
type cliFlags struct {
	// Global
	LogLevel *string
	DryRun   *bool

	// Shared: backup operations / init
	Source      *string
	Storage     *string
	RsyncPath   *string
	FailFast    *bool
	UserExclude *string
	PreHooks    *string
	PostHooks   *string

	// Recover specific
	Date   *string
	Target *string

	// Confirmation bypass (full, sync, recover, init)
	Force *bool
}

func registerGlobalFlags(fs *flag.FlagSet, f *cliFlags) {
	f.LogLevel = fs.String("log-level", "info", "Set the logging level: 'debug', 'notice', 'info', 'warn', 'error'.")
	f.DryRun = fs.Bool("dry-run", false, "Show what would be done without making any changes.")
}

func registerBackupFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Source = fs.String("source", "", "Source directory to back up. Defaults to '/'.")
	f.Storage = fs.String("storage", "", "Storage root holding the backup chain. Defaults to the current directory.")
	f.RsyncPath = fs.String("rsync-path", "", "Path to the rsync binary. Defaults to the one on PATH.")
	f.FailFast = fs.Bool("fail-fast", false, "Treat post-hook command failures as errors. Pre-hook failures always abort.")
	f.UserExclude = fs.String("user-exclude", "", "Comma-separated list of additional rsync exclude patterns.")
	f.PreHooks = fs.String("pre-hooks", "", "Comma-separated list of commands to run before the operation.")
	f.PostHooks = fs.String("post-hooks", "", "Comma-separated list of commands to run after the operation.")
	f.Force = fs.Bool("force", false, "Bypass confirmation prompts.")
}

func registerRecoverFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Storage = fs.String("storage", "", "Storage root holding the backup chain. Defaults to the current directory.")
	f.Date = fs.String("date", "", "Point-in-time to recover, as YYYY-MM-DD. (Required)")
	f.Target = fs.String("target", "", "Directory to restore into. (Required)")
	f.RsyncPath = fs.String("rsync-path", "", "Path to the rsync binary. Defaults to the one on PATH.")
	f.Force = fs.Bool("force", false, "Bypass confirmation prompts.")
}

func registerInitFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Source = fs.String("source", "", "Source directory to back up. Defaults to '/'.")
	f.Storage = fs.String("storage", "", "Storage root to initialize. Defaults to the current directory.")
	f.RsyncPath = fs.String("rsync-path", "", "Path to the rsync binary. Defaults to the one on PATH.")
	f.UserExclude = fs.String("user-exclude", "", "Comma-separated list of additional rsync exclude patterns.")
	f.PreHooks = fs.String("pre-hooks", "", "Comma-separated list of commands to run before each operation.")
	f.PostHooks = fs.String("post-hooks", "", "Comma-separated list of commands to run after each operation.")
	f.Force = fs.Bool("force", false, "Overwrite an existing configuration file.")
}

// Parse parses the provided arguments (usually os.Args[1:]) and returns the
// command and the map of explicitly set flags.
func Parse(args []string) (Command, map[string]interface{}, error) {
	if len(args) == 0 {
		fs := flag.NewFlagSet("main", flag.ContinueOnError)
		printTopLevelUsage(fs)
		return None, nil, nil
	}

	cmdStr := strings.ToLower(args[0])

	if cmdStr == "help" || cmdStr == "-h" || cmdStr == "-help" || cmdStr == "--help" {
		fs := flag.NewFlagSet("main", flag.ContinueOnError)
		printTopLevelUsage(fs)
		return None, nil, nil
	}

	f := &cliFlags{}

	command, err := ParseCommand(cmdStr)
	if err != nil {
		return None, nil, err
	}

	switch command {
	case Full, Sync, Incremental:
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, f)
		registerBackupFlags(fs, f)

		desc := map[Command]string{
			Full:        "Create a full backup of the source.",
			Sync:        "Refresh the latest full backup in place and rename it to today.",
			Incremental: "Create an incremental backup against the latest full.",
		}[command]
		fs.Usage = func() {
			printSubcommandUsage(command, desc, fs)
		}

		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		flagMap, err := flagsToMap(fs, f)
		return command, flagMap, err

	case Recover:
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, f)
		registerRecoverFlags(fs, f)

		fs.Usage = func() {
			printSubcommandUsage(command, "Restore the source as of a given date into a target directory.", fs)
		}

		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		flagMap, err := flagsToMap(fs, f)
		return command, flagMap, err

	case Init:
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, f)
		registerInitFlags(fs, f)

		fs.Usage = func() {
			printSubcommandUsage(command, "Write a default configuration file into the storage root.", fs)
		}

		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		flagMap, err := flagsToMap(fs, f)
		return command, flagMap, err

	case Version:
		return command, nil, nil

	default:
		return None, nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

func flagsToMap(fs *flag.FlagSet, f *cliFlags) (map[string]interface{}, error) {
	// Only flags explicitly set by the user may override the base
	// configuration later.
	usedFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { usedFlags[f.Name] = true })

	flagMap := make(map[string]any)

	addIfUsed(flagMap, usedFlags, "log-level", f.LogLevel)
	addIfUsed(flagMap, usedFlags, "dry-run", f.DryRun)

	addIfUsed(flagMap, usedFlags, "source", f.Source)
	addIfUsed(flagMap, usedFlags, "storage", f.Storage)
	addIfUsed(flagMap, usedFlags, "rsync-path", f.RsyncPath)
	addIfUsed(flagMap, usedFlags, "fail-fast", f.FailFast)
	addIfUsed(flagMap, usedFlags, "date", f.Date)
	addIfUsed(flagMap, usedFlags, "target", f.Target)
	addIfUsed(flagMap, usedFlags, "force", f.Force)

	addParsedIfUsed(flagMap, usedFlags, "user-exclude", f.UserExclude, ParseExcludeList)
	addParsedIfUsed(flagMap, usedFlags, "pre-hooks", f.PreHooks, ParseCmdList)
	addParsedIfUsed(flagMap, usedFlags, "post-hooks", f.PostHooks, ParseCmdList)

	return flagMap, nil
}

// addIfUsed adds the value of ptr to flagMap if ptr is not nil and the flag was set.
func addIfUsed[T any](flagMap map[string]interface{}, usedFlags map[string]bool, name string, ptr *T) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = *ptr
	}
}

// addParsedIfUsed adds the parsed value of ptr to flagMap if ptr is not nil and the flag was set.
func addParsedIfUsed(flagMap map[string]interface{}, usedFlags map[string]bool, name string, ptr *string, parser func(string) []string) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = parser(*ptr)
	}
}

// printTopLevelUsage prints the main help message.
func printTopLevelUsage(fs *flag.FlagSet) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(fs.Output(), "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(fs.Output(), "A full/incremental backup chain orchestrator built on rsync.\n\n")
	fmt.Fprintf(fs.Output(), "Usage: %s <command> [flags]\n\n", execName)
	fmt.Fprintf(fs.Output(), "Commands:\n")
	fmt.Fprintf(fs.Output(), "  full        Create a full backup\n")
	fmt.Fprintf(fs.Output(), "  sync        Refresh the latest full backup in place\n")
	fmt.Fprintf(fs.Output(), "  inc         Create an incremental backup\n")
	fmt.Fprintf(fs.Output(), "  recover     Restore the source as of a given date\n")
	fmt.Fprintf(fs.Output(), "  init        Write a default configuration file\n")
	fmt.Fprintf(fs.Output(), "  version     Print the application version\n")
	fmt.Fprintf(fs.Output(), "\nRun '%s <command> -help' for more information on a command.\n", execName)
}

// printSubcommandUsage prints the help message for a specific subcommand.
func printSubcommandUsage(command Command, desc string, fs *flag.FlagSet) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(fs.Output(), "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(fs.Output(), "A full/incremental backup chain orchestrator built on rsync.\n\n")
	fmt.Fprintf(fs.Output(), "Usage of the %s command: %s %s [flags]\n\n", command, execName, command)
	fmt.Fprintf(fs.Output(), "%s\n\n", desc)
	fmt.Fprintf(fs.Output(), "Flags:\n")
	fs.PrintDefaults()
}

// ParseCmdList parses a comma-separated list of shell-like commands.
// It preserves quotes and handles backslash escapes so they can be interpreted by the shell.
func ParseCmdList(s string) []string {
	return parseListInternal(s, true, true)
}

// ParseExcludeList parses a comma-separated list of exclude patterns.
// It removes quotes, as they are only used for grouping items with spaces.
// It treats backslashes as literal characters for Windows path compatibility.
func ParseExcludeList(s string) []string {
	return parseListInternal(s, false, false)
}

// parseListInternal is the core implementation for parsing a comma-separated list. It supports
// both single (') and double (") quotes to allow items to contain commas or spaces.
// - `keepQuotes`: Preserves quote characters in the output.
// - `handleEscapes`: Treats backslashes as escape characters.
func parseListInternal(s string, keepQuotes, handleEscapes bool) []string {
	var list []string
	var current strings.Builder
	var quoteChar rune

	appendItem := func() {
		trimmed := strings.TrimSpace(current.String())
		if trimmed != "" {
			list = append(list, trimmed)
		}
		current.Reset()
	}

	var isEscaped bool
	for _, r := range s {
		if isEscaped {
			current.WriteRune(r)
			isEscaped = false
			continue
		}

		switch {
		case r == '\\' && handleEscapes:
			isEscaped = true
			// For commands, keep the backslash for the shell to interpret.
			current.WriteRune(r)
		case r == '\'' || r == '"':
			if quoteChar == 0 { // Start of a new quoted section.
				quoteChar = r
				if keepQuotes {
					current.WriteRune(r)
				}
			} else if quoteChar == r { // End of the current quoted section.
				quoteChar = 0
				if keepQuotes {
					current.WriteRune(r)
				}
			} else { // A different quote character inside an existing quoted section.
				current.WriteRune(r)
			}
		case r == ',' && quoteChar == 0: // Comma outside of any quotes.
			appendItem()
		default:
			current.WriteRune(r)
		}
	}
	appendItem()
	return list
}
