// Package config persists the operator-facing settings of a storage root and
// merges them with command-line flags. The configuration file lives inside
// the storage root itself, so a backup drive carries its own settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainsync/chainsync/pkg/buildinfo"
	"github.com/chainsync/chainsync/pkg/flagparse"
	"github.com/chainsync/chainsync/pkg/plog"
	"github.com/chainsync/chainsync/pkg/util"
)

// ConfigFileName is the name of the configuration file.
const ConfigFileName = "chainsync.config.json"

// systemExcludePatterns are always excluded from synchronization for the
// system to function correctly: the orchestrator's own artifacts must never
// be treated as source data.
var systemExcludePatterns = []string{"/" + ConfigFileName}

type HooksConfig struct {
	// Note: omitempty is intentionally not used so that the hook fields
	// appear in the generated config file for better discoverability.
	// PreOperation is a list of shell commands to execute before an operation begins.
	// SECURITY: These commands are executed as provided. Ensure they are from a trusted source.
	PreOperation []string `json:"preOperation"`
	// PostOperation is a list of shell commands to execute after an operation finishes.
	// SECURITY: These commands are executed as provided. Ensure they are from a trusted source.
	PostOperation []string `json:"postOperation"`
}

// RuntimeConfig carries per-invocation state that must never be persisted.
type RuntimeConfig struct {
	Operation flagparse.Command
	// Date is the requested point-in-time for recovery, as YYYY-MM-DD.
	// Empty means today.
	Date string
	// RestoreTarget is the directory a recovery restores into.
	RestoreTarget string
	Force         bool
	DryRun        bool
	FailFast      bool
}

type Config struct {
	Version     string        `json:"version"`
	Source      string        `json:"source"`
	StorageRoot string        `json:"-"` // Never added to config file
	Runtime     RuntimeConfig `json:"-"` // Never added to config file
	LogLevel    string        `json:"logLevel"`
	RsyncPath   string        `json:"rsyncPath"`
	// DefaultExcludes keeps virtual and volatile filesystems out of a
	// whole-system backup.
	DefaultExcludes []string `json:"defaultExcludes,omitempty"`
	// Note: omitempty is intentionally not used for user-configurable slices
	// so that they appear in the generated config file for better discoverability.
	UserExcludes []string    `json:"userExcludes"`
	Hooks        HooksConfig `json:"hooks"`
}

// NewDefault creates and returns a Config struct with sensible default
// values for a whole-system backup.
func NewDefault() Config {
	return Config{
		Version:     buildinfo.Version,
		Source:      "/", // Whole-system backup unless the operator narrows it.
		StorageRoot: "",  // Resolved from the command line, defaults to ".".
		LogLevel:    "info",
		RsyncPath:   "", // Empty selects the rsync found on PATH.
		Runtime: RuntimeConfig{
			Operation: flagparse.None,
			DryRun:    false,
		},
		DefaultExcludes: []string{
			"/dev",
			"/proc",
			"/sys",
			"/tmp",
			"/run",
			"/mnt",
			"/media",
			"/lost+found",
		},
		UserExcludes: []string{},
		Hooks: HooksConfig{
			PreOperation:  []string{},
			PostOperation: []string{},
		},
	}
}

// Load attempts to load a configuration from the storage root.
// If the file doesn't exist, it returns the default config without an error.
// If the file exists but fails to parse, it returns an error and a zero-value config.
func Load(storageRoot string) (Config, error) {
	absStorageRoot, err := filepath.Abs(storageRoot)
	if err != nil {
		return Config{}, fmt.Errorf("could not determine absolute path for storage root %s: %w", storageRoot, err)
	}

	configPath := filepath.Join(absStorageRoot, ConfigFileName)

	file, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := NewDefault()
			cfg.StorageRoot = absStorageRoot
			return cfg, nil // Config file doesn't exist, which is a normal case.
		}
		return Config{}, fmt.Errorf("error opening config file %s: %w", configPath, err)
	}
	defer file.Close()

	plog.Info("Loading configuration", "path", configPath)
	// Start with default values, then overwrite with the file's content.
	// This makes the config loading resilient to missing fields in the JSON file.
	config := NewDefault()
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", configPath, err)
	}
	config.StorageRoot = absStorageRoot

	// A config written by an older build is fine; the version in memory
	// always reflects the running binary.
	if config.Version != buildinfo.Version {
		config.Version = buildinfo.Version
	}
	return config, nil
}

// Generate creates or overwrites the configuration file in the storage root.
func Generate(configToGenerate Config) error {
	configPath := filepath.Join(configToGenerate.StorageRoot, ConfigFileName)
	jsonData, err := json.MarshalIndent(configToGenerate, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config to JSON: %w", err)
	}

	if err := os.WriteFile(configPath, jsonData, util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	plog.Info("Successfully saved config file", "path", configPath)
	return nil
}

// Validate checks the configuration for logical errors and inconsistencies.
// It also canonicalizes the source and storage paths.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source path cannot be empty")
	}
	if c.StorageRoot == "" {
		return fmt.Errorf("storage root cannot be empty")
	}

	var err error

	c.Source, err = util.ExpandPath(c.Source)
	if err != nil {
		return fmt.Errorf("could not expand source path: %w", err)
	}
	c.Source = filepath.Clean(c.Source)

	c.StorageRoot, err = util.ExpandPath(c.StorageRoot)
	if err != nil {
		return fmt.Errorf("could not expand storage root: %w", err)
	}
	c.StorageRoot = filepath.Clean(c.StorageRoot)

	if c.Runtime.Operation == flagparse.Recover {
		if c.Runtime.Date == "" {
			return fmt.Errorf("recovery requires a date (YYYY-MM-DD)")
		}
		if c.Runtime.RestoreTarget == "" {
			return fmt.Errorf("recovery requires a target directory")
		}
	}

	for _, pattern := range c.DefaultExcludes {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("defaultExcludes must not contain empty patterns")
		}
	}
	for _, pattern := range c.UserExcludes {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("userExcludes must not contain empty patterns")
		}
	}
	return nil
}

// LogSummary prints a user-friendly summary of the configuration.
func (c *Config) LogSummary() {
	logArgs := []interface{}{
		"operation", c.Runtime.Operation.String(),
		"log_level", c.LogLevel,
		"source", c.Source,
		"storage", c.StorageRoot,
		"dry_run", c.Runtime.DryRun,
	}
	if c.RsyncPath != "" {
		logArgs = append(logArgs, "rsync_path", c.RsyncPath)
	}
	if c.Runtime.Date != "" {
		logArgs = append(logArgs, "date", c.Runtime.Date)
	}
	if c.Runtime.RestoreTarget != "" {
		logArgs = append(logArgs, "restore_target", c.Runtime.RestoreTarget)
	}
	if excludes := c.Excludes(); len(excludes) > 0 {
		logArgs = append(logArgs, "excludes", strings.Join(excludes, ", "))
	}
	if len(c.Hooks.PreOperation) > 0 {
		logArgs = append(logArgs, "pre_hooks", strings.Join(c.Hooks.PreOperation, "; "))
	}
	if len(c.Hooks.PostOperation) > 0 {
		logArgs = append(logArgs, "post_hooks", strings.Join(c.Hooks.PostOperation, "; "))
	}
	plog.Info("Configuration loaded", logArgs...)
}

// Excludes returns the final, combined slice of exclusion patterns, including
// non-overridable system patterns, default patterns, and user-configured
// patterns. It automatically handles deduplication.
func (c *Config) Excludes() []string {
	return util.MergeAndDeduplicate(systemExcludePatterns, c.DefaultExcludes, c.UserExcludes)
}

// MergeConfigWithFlags overlays the configuration values from flags on top of
// a base configuration. It iterates over the setFlags map, which contains
// only the flags explicitly provided by the user on the command line.
func MergeConfigWithFlags(command flagparse.Command, base Config, setFlags map[string]any) Config {
	merged := base
	merged.Runtime.Operation = command

	for name, value := range setFlags {
		switch name {
		case "source":
			merged.Source = value.(string)
		case "storage":
			merged.StorageRoot = value.(string)
		case "log-level":
			merged.LogLevel = value.(string)
		case "rsync-path":
			merged.RsyncPath = value.(string)
		case "fail-fast":
			merged.Runtime.FailFast = value.(bool)
		case "dry-run":
			merged.Runtime.DryRun = value.(bool)
		case "force":
			merged.Runtime.Force = value.(bool)
		case "date":
			merged.Runtime.Date = value.(string)
		case "target":
			merged.Runtime.RestoreTarget = value.(string)
		case "user-exclude":
			merged.UserExcludes = value.([]string)
		case "pre-hooks":
			merged.Hooks.PreOperation = value.([]string)
		case "post-hooks":
			merged.Hooks.PostOperation = value.([]string)
		default:
			plog.Debug("unhandled flag in MergeConfigWithFlags", "flag", name)
		}
	}
	return merged
}
