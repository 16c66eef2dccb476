package commands

import (
	"context"
	"fmt"

	"github.com/de-tools/linkmind/pkg/adapters"
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/runtime/app"
	"github.com/spf13/cobra"
)

type CycleCmd struct {
	mode     string
	scope    string
	format   string
	open     Opener
	reporter SummaryReporter
}

func NewCycleCmd(open Opener, reporter SummaryReporter) *cobra.Command {
	cc := &CycleCmd{open: open, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Aggregate convicted resources into RICO cases and remediate them",
		RunE:  cc.run,
	}

	cmd.Flags().StringVar(&cc.mode, "mode", string(domain.ModeDryRun), "Cycle mode: dry-run or live")
	cmd.Flags().StringVar(&cc.scope, "scope", "", "Restrict the cycle to one scope, e.g. site=DJELFA")
	cmd.Flags().StringVarP(&cc.format, "output", "o", "text", "Output format: text or json")

	return cmd
}

func (cc *CycleCmd) run(cmd *cobra.Command, args []string) error {
	mode, err := domain.ParseMode(cc.mode)
	if err != nil {
		return err
	}
	scope, err := domain.ParseScopeFilter(cc.scope)
	if err != nil {
		return err
	}
	if cc.format != "text" && cc.format != "json" {
		return fmt.Errorf("unknown output format %q", cc.format)
	}

	return withApp(cmd, cc.open, func(ctx context.Context, a *app.App) error {
		summary, cycleErr := a.Cycles.RunCycle(ctx, domain.CycleRequest{Mode: mode, Scope: scope})
		if summary.ID == "" {
			return cycleErr
		}

		out := adapters.MapDomainCycleSummaryToAPI(summary)
		if cc.format == "json" {
			err = writeJSON(cmd.OutOrStdout(), out)
		} else {
			err = cc.reporter.Handle(out)
		}
		if err != nil {
			return err
		}
		return cycleErr
	})
}
