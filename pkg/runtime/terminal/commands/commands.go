package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/de-tools/linkmind/pkg/models/api"
	"github.com/de-tools/linkmind/pkg/runtime/app"
	"github.com/de-tools/linkmind/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Opener builds the engine for one command invocation and returns the context carrying its logger.
type Opener func(ctx context.Context) (context.Context, *app.App, error)

// SummaryReporter renders a cycle summary.
type SummaryReporter interface {
	Handle(summary api.CycleSummary) error
}

func withApp(cmd *cobra.Command, open Opener, fn func(ctx context.Context, a *app.App) error) error {
	ctx, a, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// decodeFile reads a YAML or JSON document into v. A path of "-" reads stdin.
func decodeFile(cmd *cobra.Command, path string, v any) error {
	var (
		r   io.Reader
		ext = strings.ToLower(filepath.Ext(path))
	)
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	switch ext {
	case ".json":
		if err := json.NewDecoder(r).Decode(v); err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
	default:
		// YAML is a superset of JSON, so stdin accepts either.
		if err := yaml.NewDecoder(r).Decode(v); err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", "table", "Output format: table or json")
}

func render(w io.Writer, format string, v any, table func() export.Table, reporter *export.Reporter) error {
	switch format {
	case "json":
		return writeJSON(w, v)
	case "table", "":
		return reporter.Handle(table())
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
