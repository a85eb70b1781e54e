package errors

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

var (
	ErrFormat        = errors.New("invalid format")
	ErrSyntax        = errors.New("invalid syntax")
	ErrRange         = errors.New("value out of range")
	ErrNotFound      = errors.New("not found")
	ErrConfigInvalid = errors.New("configuration invalid")
	ErrRuntimeFailed = errors.New("runtime operation failed")
)

type DtoolsError struct {
	Type        error
	Context     string
	Cause       string
	Suggestion  string
	OriginalErr error
}

func (e *DtoolsError) Error() string {
	return e.OriginalErr.Error()
}

func (e *DtoolsError) Unwrap() error {
	return e.OriginalErr
}

// Is matches the error category as well as anything in the wrapped chain.
func (e *DtoolsError) Is(target error) bool {
	return target == e.Type
}

func NewDtoolsError(errorType error, context, cause, suggestion string, originalErr error) *DtoolsError {
	return &DtoolsError{
		Type:        errorType,
		Context:     context,
		Cause:       cause,
		Suggestion:  suggestion,
		OriginalErr: originalErr,
	}
}

func NewFormatError(context, cause, suggestion string, originalErr error) *DtoolsError {
	return NewDtoolsError(ErrFormat, context, cause, suggestion, originalErr)
}

func NewSyntaxError(context, cause, suggestion string, originalErr error) *DtoolsError {
	return NewDtoolsError(ErrSyntax, context, cause, suggestion, originalErr)
}

func NewRangeError(context, cause, suggestion string, originalErr error) *DtoolsError {
	return NewDtoolsError(ErrRange, context, cause, suggestion, originalErr)
}

func NewNotFoundError(context, cause, suggestion string, originalErr error) *DtoolsError {
	return NewDtoolsError(ErrNotFound, context, cause, suggestion, originalErr)
}

func NewConfigError(context, cause, suggestion string, originalErr error) *DtoolsError {
	return NewDtoolsError(ErrConfigInvalid, context, cause, suggestion, originalErr)
}

func NewRuntimeError(context, cause, suggestion string, originalErr error) *DtoolsError {
	return NewDtoolsError(ErrRuntimeFailed, context, cause, suggestion, originalErr)
}

// ExitError reports that an external tool finished with a non-zero status.
// The status is passed through as this process's exit code.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
}

// ExitCode maps an error returned by a command to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}

	var execErr *exec.ExitError
	if errors.As(err, &execErr) {
		if code := ProcessStatus(execErr); code > 0 {
			return code
		}
	}

	return 1
}

// ProcessStatus returns the exit status of a finished process the way a
// shell reports it: the exit code, or 128+N when it was killed by signal N.
func ProcessStatus(err *exec.ExitError) int {
	if code := err.ExitCode(); code >= 0 {
		return code
	}
	if status, ok := err.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return err.ExitCode()
}
