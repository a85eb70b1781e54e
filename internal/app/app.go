// Package app orchestrates dbuild and drun: options are validated and
// normalized, then turned into stages that drive the docker CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"dtools/internal/command"
	"dtools/internal/config"
	dterrors "dtools/internal/errors"
	"dtools/internal/identity"
	"dtools/internal/parser"
	"dtools/internal/ui"
	"dtools/internal/vcs"
	"dtools/pkg/image"
	"dtools/pkg/options"
	"dtools/pkg/runtime"
)

// RevisionLabel is the OCI annotation carrying the build context commit.
const RevisionLabel = "org.opencontainers.image.revision"

// Builder implements dbuild.
type Builder struct {
	cfg      *config.Config
	factory  Factory
	console  *ui.Console
	host     func() (identity.Identity, error)
	revision func(path string) (string, error)
}

// NewBuilder creates a Builder for the host user running this process.
func NewBuilder(cfg *config.Config, factory Factory, console *ui.Console) *Builder {
	return &Builder{
		cfg:      cfg,
		factory:  factory,
		console:  console,
		host:     identity.Current,
		revision: vcs.Revision,
	}
}

// Build builds opts.Tag and, unless opts.Root is set, adds the host user on top.
func (b *Builder) Build(ctx context.Context, opts options.BuildOptions) error {
	slog.Info("Starting dbuild", "tag", opts.Tag, "file", opts.File, "path", opts.ContextPath, "root", opts.Root, "dryRun", opts.DryRun)

	// tag and build args are reported before the Dockerfile and context path
	if err := parser.RequireFlag("tag", opts.Tag); err != nil {
		return err
	}

	host, err := currentHost(b.host)
	if err != nil {
		return err
	}

	tag, err := image.ParseTag(opts.Tag, host.Name)
	if err != nil {
		return err
	}

	buildArgs, err := parser.ParseBuildArgs(opts.BuildArgs)
	if err != nil {
		return err
	}

	if err := parser.ValidateOptions(&opts); err != nil {
		return err
	}

	spec := command.BuildSpec{
		Tag:         tag,
		BuildArgs:   buildArgs,
		Labels:      b.labels(opts.ContextPath),
		File:        opts.File,
		ContextPath: opts.ContextPath,
	}

	state := newState("dbuild", tag, opts.DryRun)
	launcher := b.factory.Launcher()
	return runStages(ctx, buildStages(b.cfg, spec, host, opts.Root, launcher, b.console), state)
}

func (b *Builder) labels(contextPath string) []command.Label {
	if !b.cfg.RevisionLabel {
		return nil
	}

	rev, err := b.revision(contextPath)
	if err != nil {
		slog.Debug("No revision label", "path", contextPath, "reason", err)
		return nil
	}
	return []command.Label{{Key: RevisionLabel, Value: rev}}
}

// buildStages returns the base image stage, followed by the user layer stage
// unless the image is built for root.
func buildStages(cfg *config.Config, spec command.BuildSpec, host identity.Identity, root bool, launcher runtime.Launcher, console *ui.Console) []Stage {
	stages := []Stage{NewBaseImageStage(cfg.DockerBinary, spec, launcher, console)}
	if !root {
		stages = append(stages, NewUserLayerStage(cfg.DockerBinary, host, launcher, console))
	}
	return stages
}

// Runner implements drun.
type Runner struct {
	cfg     *config.Config
	factory Factory
	console *ui.Console
	host    func() (identity.Identity, error)
}

// NewRunner creates a Runner for the host user running this process.
func NewRunner(cfg *config.Config, factory Factory, console *ui.Console) *Runner {
	return &Runner{
		cfg:     cfg,
		factory: factory,
		console: console,
		host:    identity.Current,
	}
}

// Run starts a container of opts.Tag in place of the current process.
func (r *Runner) Run(ctx context.Context, opts options.RunOptions) error {
	slog.Info("Starting drun", "tag", opts.Tag, "gpu", opts.GPU, "mounts", opts.Mounts, "ports", opts.Ports, "shmSize", opts.ShmSize, "root", opts.Root, "dryRun", opts.DryRun)

	if err := parser.ValidateOptions(&opts); err != nil {
		return err
	}

	host, err := currentHost(r.host)
	if err != nil {
		return err
	}

	tag, err := image.ParseTag(opts.Tag, host.Name)
	if err != nil {
		return err
	}

	spec := command.RunSpec{
		Executable:  r.cfg.DockerBinary,
		Interactive: r.cfg.Interactive,
		Remove:      r.cfg.Remove,
		Tag:         tag,
		Command:     r.cfg.DefaultCommand,
	}

	if opts.GPU != "" {
		gpus, err := parser.ParseGPUs(opts.GPU)
		if err != nil {
			return err
		}
		spec.Executable = r.cfg.GPUBinary
		spec.Env = map[string]string{r.cfg.GPUEnv: gpus}
	}

	mounts, err := parser.ParseMounts(opts.Mounts)
	if err != nil {
		return err
	}
	spec.Mounts = parser.MountArgs(mounts)

	ports, err := parser.ParsePorts(opts.Ports)
	if err != nil {
		return err
	}
	for _, port := range parser.DuplicatePublicPorts(ports) {
		r.console.PrintWarning(fmt.Sprintf("host port %s is published more than once", port))
	}
	spec.Ports = parser.PortArgs(ports)

	if spec.ShmSize, err = parser.ParseShmSize(opts.ShmSize); err != nil {
		return err
	}

	if !opts.Root {
		spec.User = host.UserSpec()
	}
	if len(opts.Command) > 0 {
		spec.Command = opts.Command
	}

	var stages []Stage
	if opts.CheckImage || r.cfg.CheckImage {
		stages = append(stages, NewCheckImageStage(r.factory, r.console))
	}
	stages = append(stages, NewContainerStage(spec, r.factory.Launcher(), r.console))

	return runStages(ctx, stages, newState("drun", tag, opts.DryRun))
}

func currentHost(lookup func() (identity.Identity, error)) (identity.Identity, error) {
	host, err := lookup()
	if err != nil {
		return identity.Identity{}, dterrors.NewRuntimeError(
			"Failed to determine the invoking user",
			err.Error(),
			"Set LOGNAME or USER",
			err,
		)
	}
	return host, nil
}
