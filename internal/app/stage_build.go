package app

import (
	"context"
	"fmt"
	"log/slog"

	"dtools/internal/command"
	dterrors "dtools/internal/errors"
	"dtools/internal/identity"
	"dtools/internal/overlay"
	"dtools/internal/ui"
	"dtools/pkg/runtime"
)

// BaseImageStage builds the image from the user's Dockerfile and waits for it.
type BaseImageStage struct {
	docker   string
	spec     command.BuildSpec
	launcher runtime.Launcher
	console  *ui.Console
}

// NewBaseImageStage creates a new base image stage instance
func NewBaseImageStage(docker string, spec command.BuildSpec, launcher runtime.Launcher, console *ui.Console) *BaseImageStage {
	return &BaseImageStage{
		docker:   docker,
		spec:     spec,
		launcher: launcher,
		console:  console,
	}
}

// Name returns the name of the stage
func (s *BaseImageStage) Name() string {
	return string(StageBaseImage)
}

// Execute runs `docker build` and turns a non-zero status into an ExitError.
func (s *BaseImageStage) Execute(ctx context.Context, state *ExecutionState) error {
	cmd := command.Build(s.docker, s.spec)

	if state.DryRun {
		s.console.PrintCommand(cmd.Args)
		return nil
	}

	code, err := s.launcher.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if code != 0 {
		return &dterrors.ExitError{Command: cmd.Name(), Code: code}
	}

	slog.Info("Base image built", "tag", s.spec.Tag.String())
	return nil
}

// UserLayerStage rebuilds the tag with the invoking user added on top.
type UserLayerStage struct {
	docker   string
	host     identity.Identity
	launcher runtime.Launcher
	console  *ui.Console
}

// NewUserLayerStage creates a new user layer stage instance
func NewUserLayerStage(docker string, host identity.Identity, launcher runtime.Launcher, console *ui.Console) *UserLayerStage {
	return &UserLayerStage{
		docker:   docker,
		host:     host,
		launcher: launcher,
		console:  console,
	}
}

// Name returns the name of the stage
func (s *UserLayerStage) Name() string {
	return string(StageUserLayer)
}

// Execute feeds the user layer Dockerfile to `docker build -` and replaces
// the current process with it.
func (s *UserLayerStage) Execute(ctx context.Context, state *ExecutionState) error {
	dockerfile := overlay.UserLayer(state.Tag.String())

	if state.DryRun {
		s.console.PrintBlock(dockerfile)
		s.console.PrintCommand(command.UserLayer(s.docker, state.Tag, s.host, nil).Args)
		return nil
	}

	f, err := overlay.WriteTemp(dockerfile)
	if err != nil {
		return dterrors.NewRuntimeError(
			"Failed to prepare the user layer",
			err.Error(),
			"Check that the temporary directory is writable",
			err,
		)
	}
	defer overlay.Cleanup(f)

	cmd := command.UserLayer(s.docker, state.Tag, s.host, f)
	slog.Info("Adding user layer", "tag", state.Tag.String(), "user", s.host.Name, "uid", s.host.UID, "gid", s.host.GID)
	if err := s.launcher.Exec(cmd); err != nil {
		return fmt.Errorf("user layer build failed: %w", err)
	}
	return nil
}
