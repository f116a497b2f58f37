package main

import (
	"context"
	"fmt"
	"os"

	"github.com/moby/isoserve/daemon/config"
	"github.com/moby/isoserve/version"
	"github.com/moby/term"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type daemonOptions struct {
	version      bool
	configFile   string
	daemonConfig *config.Config
	flags        *pflag.FlagSet
}

func newDaemonOptions(conf *config.Config) *daemonOptions {
	return &daemonOptions{
		daemonConfig: conf,
	}
}

// installFlags adds the flags that are not part of the configuration.
func (o *daemonOptions) installFlags(flags *pflag.FlagSet) {
	flags.BoolVarP(&o.version, "version", "v", false, "Print version information and quit")
	flags.StringVar(&o.configFile, "config-file", "", "Daemon configuration file (JSON, TOML or YAML)")
}

func newDaemonCommand() *cobra.Command {
	opts := newDaemonOptions(config.New())

	cmd := &cobra.Command{
		Use:           "isoserved [OPTIONS]",
		Short:         "Serve a directory of static files with cross-origin isolation headers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.flags = cmd.Flags()
			return runDaemon(cmd.Context(), opts)
		},
		DisableFlagsInUseLine: true,
	}

	flags := cmd.Flags()
	opts.installFlags(flags)
	installConfigFlags(opts.daemonConfig, flags)

	return cmd
}

func runDaemon(ctx context.Context, opts *daemonOptions) error {
	if opts.version {
		showVersion()
		return nil
	}
	return NewDaemonCli().start(ctx, opts)
}

func showVersion() {
	fmt.Printf("%s version %s, build %s\n", version.PlatformName, version.Version, version.GitCommit)
}

func main() {
	// Set terminal emulation based on platform as required.
	_, stdout, stderr := term.StdStreams()
	logrus.SetOutput(stderr)

	cmd := newDaemonCommand()
	cmd.SetOut(stdout)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		os.Exit(1)
	}
}
