package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dtools/internal/app"
	"dtools/internal/config"
	dterrors "dtools/internal/errors"
	"dtools/internal/ui"
	"dtools/pkg/options"
)

// version is set at build time via ldflags
var version = "dev"

func newRootCmd(factory app.Factory, console *ui.Console) *cobra.Command {
	var opts options.BuildOptions
	var configPath string

	cmd := &cobra.Command{
		Use:     "dbuild -t <tag> [flags]",
		Short:   "Build a docker image with your user baked in",
		Version: version,
		Long: `dbuild builds an image from a Dockerfile and then adds a layer on top that
creates the invoking host user (same name, uid and gid) with password-less sudo
and makes it the image's default user. Files written to bind mounts by drun
containers are then owned by you instead of root.

Use --root to skip the user layer.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return app.NewBuilder(cfg, factory, console).Build(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Tag, "tag", "t", "", "Image tag '[<user>/]<name>[:<version>]', user defaults to your login name (required)")
	flags.StringVarP(&opts.File, "file", "f", "Dockerfile", "Path to the Dockerfile")
	flags.StringVarP(&opts.ContextPath, "path", "p", ".", "Build context directory")
	flags.StringArrayVar(&opts.BuildArgs, "build-arg", nil, "Build-time variable 'key=value' (repeatable)")
	flags.BoolVar(&opts.Root, "root", false, "Keep root as the image user and skip the user layer")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "Print the docker commands instead of running them")
	flags.StringVar(&configPath, "config", "", "Path to a dtools config file")
	if err := cmd.MarkFlagRequired("tag"); err != nil {
		slog.Error("Failed to mark tag flag as required", "error", err)
	}

	return cmd
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.InitLogging("dbuild")

	cmd := newRootCmd(app.NewRuntimeFactory(), ui.NewConsole())
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		dterrors.HandleError(err)
		return dterrors.ExitCode(err)
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:]))
}
