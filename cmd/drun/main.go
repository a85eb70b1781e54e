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
	var opts options.RunOptions
	var configPath string

	cmd := &cobra.Command{
		Use:     "drun -t <tag> [flags] [command [args...]]",
		Short:   "Run a docker container as yourself",
		Version: version,
		Long: `drun starts an interactive, self-removing container of an image built with
dbuild. It runs as your uid:gid unless --root is given and runs bash unless a
command is given after the flags.

--gpu switches to the GPU-enabled docker wrapper and exposes the listed GPUs.`,
		Example: `  drun -t torch -g 0,1 -m ~/data:/data:ro -p 8888 -s 8g
  drun -t torch python train.py --epochs 3`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = args

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return app.NewRunner(cfg, factory, console).Run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	// everything after the first positional belongs to the container command
	flags.SetInterspersed(false)
	flags.StringVarP(&opts.Tag, "tag", "t", "", "Image tag '[<user>/]<name>[:<version>]', user defaults to your login name (required)")
	flags.StringVarP(&opts.GPU, "gpu", "g", "", "Comma-separated GPU ids to expose, e.g. '0' or '0,1'")
	flags.StringArrayVarP(&opts.Mounts, "mount", "m", nil, "Bind mount '<host dir>:<container dir>[:ro]' (repeatable)")
	flags.StringVarP(&opts.ShmSize, "shm-size", "s", "", "Size of /dev/shm, e.g. '8g'")
	flags.StringArrayVarP(&opts.Ports, "port", "p", nil, "Publish '<host port>[:<container port>]' (repeatable)")
	flags.BoolVar(&opts.Root, "root", false, "Run as the image's default user instead of your uid:gid")
	flags.BoolVar(&opts.CheckImage, "check-image", false, "Fail early if the image does not exist")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "Print the docker command instead of running it")
	flags.StringVar(&configPath, "config", "", "Path to a dtools config file")
	if err := cmd.MarkFlagRequired("tag"); err != nil {
		slog.Error("Failed to mark tag flag as required", "error", err)
	}

	return cmd
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.InitLogging("drun")

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
