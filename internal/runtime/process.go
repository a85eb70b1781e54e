package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"

	dterrors "dtools/internal/errors"
	"dtools/pkg/runtime"
)

// ProcessLauncher implements the Launcher interface with host processes that
// share this process's stdout and stderr.
type ProcessLauncher struct{}

// NewProcessLauncher creates a new ProcessLauncher.
func NewProcessLauncher() *ProcessLauncher {
	return &ProcessLauncher{}
}

// Run starts cmd, waits for it and returns its exit status. A non-zero status
// is not an error; err is only set when the command could not be run at all.
func (p *ProcessLauncher) Run(ctx context.Context, cmd runtime.Command) (int, error) {
	if len(cmd.Args) == 0 {
		return -1, errors.New("empty command")
	}

	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Stdin = os.Stdin
	if cmd.Stdin != nil {
		c.Stdin = cmd.Stdin
	}
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Env = environ(cmd.Env)

	slog.Info("Running command", "command", cmd.Args)
	err := c.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := dterrors.ProcessStatus(exitErr)
		slog.Info("Command finished", "command", cmd.Name(), "status", code)
		return code, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return -1, notInstalled(cmd.Name(), err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, fmt.Errorf("command %s interrupted: %w", cmd.Name(), ctxErr)
	}
	return -1, dterrors.NewRuntimeError(
		fmt.Sprintf("Failed to run '%s'", cmd.Name()),
		err.Error(),
		"",
		fmt.Errorf("failed to run %s: %w", cmd.Name(), err),
	)
}

// environ returns the current environment with the keys of extra replaced,
// followed by extra in key order. execve passes duplicate keys through and
// most readers take the first one, so every key appears once.
func environ(extra map[string]string) []string {
	current := os.Environ()
	env := make([]string, 0, len(current)+len(extra))
	for _, kv := range current {
		key, _, _ := strings.Cut(kv, "=")
		if _, replaced := extra[key]; replaced {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func notInstalled(name string, err error) error {
	return dterrors.NewNotFoundError(
		fmt.Sprintf("'%s' was not found in PATH", name),
		"The external tool is not installed or not on PATH",
		fmt.Sprintf("Install %s or set docker_binary / gpu_binary in the dtools config", name),
		fmt.Errorf("executable %s not found: %w", name, err),
	)
}
