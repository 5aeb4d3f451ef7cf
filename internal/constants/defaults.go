package constants

// Execution environment defaults. Jobs inherit these unless the table sets
// its own SHELL / PATH lines or a manifest overrides them per job.

// DefaultShell is the command interpreter used to run job command lines.
const DefaultShell = "/bin/sh"

// DefaultPath is the search path handed to dispatched jobs.
const DefaultPath = "/usr/bin:/bin"

// ShellVar and PathVar are the environment variable names recognized as
// process-wide job configuration.
const (
	ShellVar = "SHELL"
	PathVar  = "PATH"
)

// Dispatch pool defaults.
const (
	DefaultPoolSize  = 4
	DefaultQueueSize = 64
)
