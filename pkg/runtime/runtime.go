// Located in pkg/runtime/runtime.go
package runtime

import (
	"context"
	"os"
)

// Command is an external invocation. Args[0] is the executable, looked up in PATH.
type Command struct {
	Args []string
	// Env is added to the current process environment.
	Env map[string]string
	// Stdin, when set, replaces the inherited standard input.
	Stdin *os.File
}

// Name returns the executable of the command.
func (c Command) Name() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

// Launcher defines the contract for starting external tools.
type Launcher interface {
	// Run blocks until the command finishes and returns its exit status.
	Run(ctx context.Context, cmd Command) (int, error)
	// Exec replaces the current process with cmd. It only returns on failure,
	// or on platforms without exec after the command has finished.
	Exec(cmd Command) error
}

// ImageInspector answers questions about images known to the container engine.
type ImageInspector interface {
	ImageExists(ctx context.Context, ref string) (bool, error)
}
