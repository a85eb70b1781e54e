package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"dtools/internal/command"
	dterrors "dtools/internal/errors"
	"dtools/internal/ui"
	"dtools/pkg/runtime"
)

// CheckImageStage makes sure the image exists before a container is started.
// Problems reaching the daemon are reported as warnings only.
type CheckImageStage struct {
	factory Factory
	console *ui.Console
}

// NewCheckImageStage creates a new check image stage instance
func NewCheckImageStage(factory Factory, console *ui.Console) *CheckImageStage {
	return &CheckImageStage{
		factory: factory,
		console: console,
	}
}

// Name returns the name of the stage
func (s *CheckImageStage) Name() string {
	return string(StageCheckImage)
}

// Execute asks the Docker daemon whether the image exists.
func (s *CheckImageStage) Execute(ctx context.Context, state *ExecutionState) error {
	if state.DryRun {
		return nil
	}

	ref, err := state.Tag.Reference()
	if err != nil {
		s.console.PrintWarning(fmt.Sprintf("skipping image check: %v", err))
		return nil
	}

	inspector, err := s.factory.Inspector(ctx)
	if err != nil {
		s.console.PrintWarning(fmt.Sprintf("skipping image check: %v", err))
		return nil
	}
	if closer, ok := inspector.(io.Closer); ok {
		defer closer.Close()
	}

	exists, err := inspector.ImageExists(ctx, ref.String())
	if err != nil {
		s.console.PrintWarning(fmt.Sprintf("skipping image check: %v", err))
		return nil
	}
	if !exists {
		return dterrors.NewNotFoundError(
			fmt.Sprintf("Image '%s' not found", state.Tag),
			"The Docker daemon has no image with this tag",
			fmt.Sprintf("Build it first: dbuild -t %s", state.Tag),
			fmt.Errorf("image %s not found", ref),
		)
	}

	slog.Info("Image found", "image", ref.String())
	return nil
}

// ContainerStage replaces the current process with `docker run`.
type ContainerStage struct {
	spec     command.RunSpec
	launcher runtime.Launcher
	console  *ui.Console
}

// NewContainerStage creates a new container stage instance
func NewContainerStage(spec command.RunSpec, launcher runtime.Launcher, console *ui.Console) *ContainerStage {
	return &ContainerStage{
		spec:     spec,
		launcher: launcher,
		console:  console,
	}
}

// Name returns the name of the stage
func (s *ContainerStage) Name() string {
	return string(StageContainer)
}

// Execute launches the container.
func (s *ContainerStage) Execute(ctx context.Context, state *ExecutionState) error {
	cmd := command.Run(s.spec)

	if state.DryRun {
		s.console.PrintCommand(append(envAssignments(cmd.Env), cmd.Args...))
		return nil
	}

	slog.Info("Starting container", "tag", state.Tag.String(), "executable", cmd.Name())
	if err := s.launcher.Exec(cmd); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

// envAssignments renders env as sorted KEY=value words.
func envAssignments(env map[string]string) []string {
	words := make([]string, 0, len(env))
	for k, v := range env {
		words = append(words, k+"="+v)
	}
	sort.Strings(words)
	return words
}
