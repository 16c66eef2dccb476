package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/de-tools/linkmind/pkg/adapters"
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/runtime/app"
	"github.com/de-tools/linkmind/pkg/runtime/terminal/export"
	"github.com/de-tools/linkmind/pkg/services/detector"
	"github.com/spf13/cobra"
)

type DetectCmd struct {
	file     string
	ingest   bool
	format   string
	open     Opener
	reporter *export.Reporter
}

func NewDetectCmd(open Opener, reporter *export.Reporter) *cobra.Command {
	dc := &DetectCmd{open: open, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Derive offense records from link telemetry snapshots",
		RunE:  dc.run,
	}

	cmd.Flags().StringVarP(&dc.file, "file", "f", "", "YAML or JSON list of link snapshots (- for stdin)")
	cmd.Flags().BoolVar(&dc.ingest, "ingest", false, "Record the detected offenses in the ledger")
	formatFlag(cmd, &dc.format)

	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (dc *DetectCmd) run(cmd *cobra.Command, args []string) error {
	var snapshots []detector.LinkSnapshot
	if err := decodeFile(cmd, dc.file, &snapshots); err != nil {
		return err
	}

	return withApp(cmd, dc.open, func(ctx context.Context, a *app.App) error {
		var found []domain.OffenseInput
		for i, s := range snapshots {
			offenses, err := a.Detector.Detect(s)
			if err != nil {
				return fmt.Errorf("snapshot %d: %w", i, err)
			}
			found = append(found, offenses...)
		}

		if !dc.ingest {
			return render(cmd.OutOrStdout(), dc.format, found, func() export.Table {
				return detectTable(found)
			}, dc.reporter)
		}

		results, err := a.Intake.Ingest(ctx, found)
		if err != nil {
			return fmt.Errorf("failed to journal offenses: %w", err)
		}
		response := adapters.MapDomainIngestResultsToAPI(results)
		return render(cmd.OutOrStdout(), dc.format, response, func() export.Table {
			return ingestTable(response)
		}, dc.reporter)
	})
}

func detectTable(found []domain.OffenseInput) export.Table {
	table := export.Table{
		Title:   "Detected offenses",
		Summary: []string{fmt.Sprintf("Offenses: %d", len(found))},
		Columns: []export.Column{{Name: "Resource"}, {Name: "Kind"}, {Name: "Magnitude"}, {Name: "Site"}, {Name: "Evidence"}},
	}
	for _, o := range found {
		magnitude := ""
		if o.Magnitude != nil {
			magnitude = strconv.FormatFloat(*o.Magnitude, 'f', -1, 64)
		}
		table.Rows = append(table.Rows, []string{o.ResourceID, o.Kind, magnitude, o.Site, o.Evidence})
	}
	return table
}
