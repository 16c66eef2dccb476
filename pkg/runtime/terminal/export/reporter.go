package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"unicode/utf8"
)

// Column describes one table column. A zero Width sizes the column to its widest cell.
type Column struct {
	Name  string
	Width int
}

type Table struct {
	Title   string
	Summary []string
	Columns []Column
	Rows    [][]string
}

type TableConfig struct {
	// MaxWidth truncates cells of auto-sized columns.
	MaxWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		MaxWidth: 60,
	}
}

type Reporter struct {
	writer io.Writer
	config TableConfig
}

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

func (c *Reporter) widths(table Table) []int {
	widths := make([]int, len(table.Columns))
	for i, col := range table.Columns {
		if col.Width > 0 {
			widths[i] = col.Width
			continue
		}
		widths[i] = utf8.RuneCountInString(col.Name)
		for _, row := range table.Rows {
			if i < len(row) {
				widths[i] = max(widths[i], utf8.RuneCountInString(row[i]))
			}
		}
		widths[i] = min(widths[i], c.config.MaxWidth)
	}
	return widths
}

func fit(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	if width <= 1 {
		return string([]rune(s)[:width])
	}
	return string([]rune(s)[:width-1]) + "~"
}

func (c *Reporter) Handle(table Table) error {
	widths := c.widths(table)

	funcMap := template.FuncMap{
		"formatRow": func(cells []string) string {
			var b strings.Builder
			b.WriteString("|")
			for i, w := range widths {
				cell := ""
				if i < len(cells) {
					cell = cells[i]
				}
				fmt.Fprintf(&b, " %-*s |", w, fit(cell, w))
			}
			return b.String()
		},
		"header": func() []string {
			names := make([]string, len(table.Columns))
			for i, col := range table.Columns {
				names[i] = col.Name
			}
			return names
		},
		"separator": func() string {
			var b strings.Builder
			b.WriteString("+")
			for _, w := range widths {
				b.WriteString(strings.Repeat("-", w+2))
				b.WriteString("+")
			}
			return b.String()
		},
	}

	tmpl := `
{{.Title}}
{{range .Summary}}{{.}}
{{end}}
{{- if .Rows}}
{{separator}}
{{formatRow header}}
{{separator}}
{{range .Rows}}{{formatRow .}}
{{end}}{{separator}}
{{else}}
(none)
{{end}}`

	t, err := template.New("table").Funcs(funcMap).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return t.Execute(c.writer, table)
}
