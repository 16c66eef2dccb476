package terminal

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/de-tools/linkmind/pkg/runtime/app"
	"github.com/de-tools/linkmind/pkg/runtime/terminal/commands"
	"github.com/de-tools/linkmind/pkg/runtime/terminal/export"
	"github.com/de-tools/linkmind/pkg/services/config"
	"github.com/spf13/cobra"
)

// CLI represents the command-line interface
type CLI struct {
	configPath string
	options    app.Options
	output     io.Writer
	logOutput  io.Writer
	rootCmd    *cobra.Command
}

// Options contain configuration for the CLI
type Options struct {
	Output io.Writer
	// LogOutput receives structured logs; stderr by default.
	LogOutput io.Writer
	// App is passed to every engine the CLI builds.
	App app.Options
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	cli := &CLI{
		options:   opts.App,
		output:    opts.Output,
		logOutput: opts.LogOutput,
	}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

func (cli *CLI) Execute() error {
	return cli.rootCmd.Execute()
}

func (cli *CLI) ExecuteContext(ctx context.Context, args ...string) error {
	cli.rootCmd.SetArgs(args)
	return cli.rootCmd.ExecuteContext(ctx)
}

// open loads the configuration and builds the engine, replaying the offense journal.
func (cli *CLI) open(ctx context.Context) (context.Context, *app.App, error) {
	cfg, err := config.LoadConfig(cli.configPath)
	if err != nil {
		return ctx, nil, err
	}
	logger := app.NewLogger(cfg.Log, cli.logOutput)
	ctx = logger.WithContext(ctx)

	opts := cli.options
	opts.ConfigPath = cli.configPath
	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to start engine: %w", err)
	}
	return ctx, a, nil
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "linkmind",
		Short:         "Judicial lifecycle and RICO remediation for microwave network resources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(cli.output)
	cmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "",
		"Path to the LinkMind config file; thresholds and rates have no defaults")

	reporter := export.NewReporter(cli.output)
	summaries := NewReporter(cli.output)

	cmd.AddCommand(commands.NewIngestCmd(cli.open, reporter))
	cmd.AddCommand(commands.NewDetectCmd(cli.open, reporter))
	cmd.AddCommand(commands.NewCycleCmd(cli.open, summaries))
	cmd.AddCommand(commands.NewResourcesCmd(cli.open, reporter))
	cmd.AddCommand(commands.NewAuditCmd(cli.open, reporter))

	return cmd
}
