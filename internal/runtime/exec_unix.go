//go:build linux || darwin || freebsd || netbsd || openbsd

package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"golang.org/x/sys/unix"

	dterrors "dtools/internal/errors"
	"dtools/pkg/runtime"
)

// Exec replaces the current process image with cmd. On success it never returns.
// When exec fails the original standard input is restored.
func (p *ProcessLauncher) Exec(cmd runtime.Command) error {
	if len(cmd.Args) == 0 {
		return errors.New("empty command")
	}

	path, err := exec.LookPath(cmd.Args[0])
	if err != nil {
		return notInstalled(cmd.Name(), err)
	}

	if cmd.Stdin != nil {
		restore, err := redirectStdin(cmd.Stdin.Fd())
		if err != nil {
			return dterrors.NewRuntimeError(
				"Failed to redirect standard input",
				err.Error(),
				"",
				fmt.Errorf("redirect %s to stdin: %w", cmd.Stdin.Name(), err),
			)
		}
		defer restore()
	}

	slog.Info("Replacing process", "command", cmd.Args)
	if err := unix.Exec(path, cmd.Args, environ(cmd.Env)); err != nil {
		return dterrors.NewRuntimeError(
			fmt.Sprintf("Failed to execute '%s'", path),
			err.Error(),
			"",
			fmt.Errorf("exec %s: %w", path, err),
		)
	}
	return nil
}

// redirectStdin points fd 0 at fd. The returned func undoes it; the saved
// descriptor is close-on-exec so a successful exec does not inherit it.
func redirectStdin(fd uintptr) (func(), error) {
	saved, err := unix.FcntlInt(uintptr(unix.Stdin), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("save stdin: %w", err)
	}

	if err := unix.Dup2(int(fd), unix.Stdin); err != nil {
		unix.Close(saved)
		return nil, fmt.Errorf("dup2: %w", err)
	}

	return func() {
		if err := unix.Dup2(saved, unix.Stdin); err != nil {
			slog.Warn("Failed to restore stdin", "error", err)
		}
		unix.Close(saved)
	}, nil
}
