package app

import (
	"context"
	"fmt"

	internalruntime "dtools/internal/runtime"
	"dtools/pkg/runtime"
)

// Factory provides the process launcher and the image inspector used by the
// stages, decoupling the orchestrators from concrete runtimes.
type Factory interface {
	Launcher() runtime.Launcher
	Inspector(ctx context.Context) (runtime.ImageInspector, error)
}

// RuntimeFactory is the Factory backed by host processes and the Docker daemon.
type RuntimeFactory struct{}

// NewRuntimeFactory creates a new instance of RuntimeFactory.
func NewRuntimeFactory() *RuntimeFactory {
	return &RuntimeFactory{}
}

// Launcher returns a launcher that starts host processes.
func (f *RuntimeFactory) Launcher() runtime.Launcher {
	return internalruntime.NewProcessLauncher()
}

// Inspector connects to the Docker daemon configured in the environment.
func (f *RuntimeFactory) Inspector(ctx context.Context) (runtime.ImageInspector, error) {
	dockerRuntime, err := internalruntime.NewDockerRuntime(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker runtime: %w", err)
	}
	return dockerRuntime, nil
}
