package terminal

import (
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/de-tools/linkmind/pkg/models/api"
)

// Reporter outputs cycle summaries to the console in a formatted text form
type Reporter struct {
	writer io.Writer
	tmpl   *template.Template
}

const summaryTemplate = `
Cycle {{.ID}} ({{.Mode}})
Finished: {{.FinishedAt.Format "2006-01-02 15:04:05Z07:00"}}
Convicted resources: {{.ResourcesConvicted}}, pending aggregation: {{.PendingResources}}
Cases formed: {{.CasesFormed}}, rejected: {{.CasesRejected}}
Actions: {{.ActionsApplied}} applied, {{.ActionsFailed}} failed, {{.ActionsSkipped}} skipped
Estimated savings: {{.Currency}} {{printf "%.2f" .TotalSavings}}
Recovered value: {{.Currency}} {{printf "%.2f" .RecoveredValue}}
{{- if .UnpricedOffenses}}
Unpriced offenses: {{.UnpricedOffenses}}{{end}}
{{- if .MalformedOffenses}}
Malformed offenses since last cycle: {{.MalformedOffenses}}{{end}}
{{range .Cases}}
=== Case {{.Case.ID}} [{{.Case.Scope}}] {{.Case.Status}}{{if .Case.Partial}} (partial){{end}} ===
{{- if .Case.RejectReason}}
Rejected: {{.Case.RejectReason}}{{end}}
{{- if .Error}}
Error: {{.Error}}{{end}}
{{range .Actions}}- {{.ResourceID}} {{.Kind}}: {{.Result}}{{if .Savings}} ({{.Currency}} {{printf "%.2f" (deref .Savings)}}){{end}}{{if .Note}}
    {{.Note}}{{end}}
{{end}}{{end}}
{{- range .Errors}}
! {{.}}{{end}}
`

// NewReporter creates a new console reporter
func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	funcs := template.FuncMap{
		"deref": func(v *float64) float64 { return *v },
	}
	return &Reporter{
		writer: writer,
		tmpl:   template.Must(template.New("summary").Funcs(funcs).Parse(summaryTemplate)),
	}
}

func (c *Reporter) Handle(summary api.CycleSummary) error {
	if err := c.tmpl.Execute(c.writer, summary); err != nil {
		return fmt.Errorf("failed to render cycle summary: %w", err)
	}
	return nil
}
