package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/de-tools/linkmind/pkg/adapters"
	"github.com/de-tools/linkmind/pkg/models/api"
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/runtime/app"
	"github.com/de-tools/linkmind/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

type IngestCmd struct {
	file     string
	format   string
	open     Opener
	reporter *export.Reporter
}

func NewIngestCmd(open Opener, reporter *export.Reporter) *cobra.Command {
	ic := &IngestCmd{open: open, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Record a batch of offense records in the ledger",
		RunE:  ic.run,
	}

	cmd.Flags().StringVarP(&ic.file, "file", "f", "", "YAML or JSON list of offense records (- for stdin)")
	formatFlag(cmd, &ic.format)

	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (ic *IngestCmd) run(cmd *cobra.Command, args []string) error {
	var inputs []domain.OffenseInput
	if err := decodeFile(cmd, ic.file, &inputs); err != nil {
		return err
	}

	return withApp(cmd, ic.open, func(ctx context.Context, a *app.App) error {
		results, err := a.Intake.Ingest(ctx, inputs)
		if err != nil {
			return fmt.Errorf("failed to journal offenses: %w", err)
		}
		response := adapters.MapDomainIngestResultsToAPI(results)
		return render(cmd.OutOrStdout(), ic.format, response, func() export.Table {
			return ingestTable(response)
		}, ic.reporter)
	})
}

func ingestTable(response api.IngestResponse) export.Table {
	table := export.Table{
		Title: "Ingested offenses",
		Summary: []string{fmt.Sprintf("Accepted: %d, duplicates: %d, rejected: %d",
			response.Accepted, response.Duplicates, response.Rejected)},
		Columns: []export.Column{{Name: "#"}, {Name: "Status"}, {Name: "Offense"}, {Name: "Error"}},
	}
	for _, r := range response.Results {
		table.Rows = append(table.Rows, []string{strconv.Itoa(r.Index), r.Status, r.OffenseID, r.Error})
	}
	return table
}
