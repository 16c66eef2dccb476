package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/de-tools/linkmind/pkg/adapters"
	"github.com/de-tools/linkmind/pkg/models/api"
	"github.com/de-tools/linkmind/pkg/runtime/app"
	"github.com/de-tools/linkmind/pkg/runtime/terminal/export"
	"github.com/de-tools/linkmind/pkg/store/audit"
	"github.com/spf13/cobra"
)

type AuditCmd struct {
	filter   audit.Filter
	format   string
	open     Opener
	reporter *export.Reporter
}

func NewAuditCmd(open Opener, reporter *export.Reporter) *cobra.Command {
	ac := &AuditCmd{open: open, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the remediation audit trail",
		RunE:  ac.run,
	}

	cmd.Flags().StringVar(&ac.filter.CaseID, "case", "", "Only entries of this RICO case")
	cmd.Flags().StringVar(&ac.filter.ResourceID, "resource", "", "Only entries touching this resource")
	cmd.Flags().StringVar(&ac.filter.Mode, "mode", "", "Only entries of this mode (dry-run or live)")
	cmd.Flags().IntVar(&ac.filter.Limit, "limit", 50, "Number of most recent entries to show")
	formatFlag(cmd, &ac.format)

	return cmd
}

func (ac *AuditCmd) run(cmd *cobra.Command, args []string) error {
	return withApp(cmd, ac.open, func(ctx context.Context, a *app.App) error {
		entries, err := a.Auditor.Trail(ctx, ac.filter)
		if err != nil {
			return fmt.Errorf("failed to read audit trail: %w", err)
		}
		out := make([]api.AuditEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, adapters.MapDomainAuditEntryToAPI(e))
		}

		return render(cmd.OutOrStdout(), ac.format, out, func() export.Table {
			return auditTable(out)
		}, ac.reporter)
	})
}

func auditTable(entries []api.AuditEntry) export.Table {
	table := export.Table{
		Title:   "Audit trail",
		Columns: []export.Column{{Name: "Seq"}, {Name: "Time"}, {Name: "Phase"}, {Name: "Mode"}, {Name: "Resource"}, {Name: "Action"}, {Name: "Result"}, {Name: "Note"}},
	}
	for _, e := range entries {
		table.Rows = append(table.Rows, []string{strconv.FormatInt(e.Seq, 10), e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Phase, e.Mode, e.ResourceID, e.Action, e.Result, e.Note})
	}
	return table
}
