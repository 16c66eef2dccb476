package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/de-tools/linkmind/pkg/adapters"
	"github.com/de-tools/linkmind/pkg/models/api"
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/runtime/app"
	"github.com/de-tools/linkmind/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

type ResourcesCmd struct {
	status   string
	site     string
	format   string
	open     Opener
	reporter *export.Reporter
}

func NewResourcesCmd(open Opener, reporter *export.Reporter) *cobra.Command {
	rc := &ResourcesCmd{open: open, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "List tracked resources and their lifecycle status",
		RunE:  rc.run,
	}

	cmd.Flags().StringVar(&rc.status, "status", "", "Only resources in this status (e.g. convicted)")
	cmd.Flags().StringVar(&rc.site, "site", "", "Only resources at this site")
	formatFlag(cmd, &rc.format)

	return cmd
}

func (rc *ResourcesCmd) run(cmd *cobra.Command, args []string) error {
	var status *domain.Status
	if rc.status != "" {
		s, err := domain.ParseStatus(rc.status)
		if err != nil {
			return err
		}
		status = &s
	}

	return withApp(cmd, rc.open, func(ctx context.Context, a *app.App) error {
		resources := make([]api.Resource, 0)
		for _, r := range a.Ledger.Resources() {
			if status != nil && r.Status != *status {
				continue
			}
			if rc.site != "" && r.Scope.Site != rc.site {
				continue
			}
			resources = append(resources, adapters.MapDomainResourceToAPI(r))
		}
		sort.Slice(resources, func(i, j int) bool { return resources[i].ID < resources[j].ID })

		return render(cmd.OutOrStdout(), rc.format, resources, func() export.Table {
			return resourcesTable(resources)
		}, rc.reporter)
	})
}

func resourcesTable(resources []api.Resource) export.Table {
	table := export.Table{
		Title:   "Resources",
		Summary: []string{fmt.Sprintf("Tracked: %d", len(resources))},
		Columns: []export.Column{{Name: "ID"}, {Name: "Kind"}, {Name: "Status"}, {Name: "Site"}, {Name: "Since"}},
	}
	for _, r := range resources {
		table.Rows = append(table.Rows, []string{r.ID, r.Kind, r.Status, r.Scope.Site,
			r.StatusSince.Format("2006-01-02 15:04")})
	}
	return table
}
