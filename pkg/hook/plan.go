package hook

// Plan describes the hook commands surrounding one backup operation.
type Plan struct {
	Enabled bool

	PreHookCommands  []string
	PostHookCommands []string

	// Global Flags
	DryRun bool
	// FailFast promotes post-hook command failures to errors. Pre-hook
	// failures are always fatal.
	FailFast bool
}
