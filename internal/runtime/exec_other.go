//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package runtime

import (
	"context"

	dterrors "dtools/internal/errors"
	"dtools/pkg/runtime"
)

// Exec runs cmd as a child process because this platform cannot replace the
// running process. A non-zero exit status is returned as an ExitError.
func (p *ProcessLauncher) Exec(cmd runtime.Command) error {
	code, err := p.Run(context.Background(), cmd)
	if err != nil {
		return err
	}
	if code != 0 {
		return &dterrors.ExitError{Command: cmd.Name(), Code: code}
	}
	return nil
}
