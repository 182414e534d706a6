package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// column is one table column; numeric columns are right-aligned.
type column struct {
	title   string
	numeric bool
}

// listing is tabular command output. With --json the records are printed
// instead of the rendered rows.
type listing struct {
	columns []column
	rows    [][]string
	records any
	// empty replaces the table when there are no rows.
	empty string
}

func (l listing) write(cmd *cobra.Command, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		return encodeJSON(out, l.records)
	}
	if len(l.rows) == 0 && l.empty != "" {
		_, err := fmt.Fprintln(out, l.empty)
		return err
	}
	_, err := fmt.Fprintln(out, renderTable(l.columns, l.rows, isTerminal(out)))
	return err
}

// encodeJSON writes v indented. Titles and speakers are often Cyrillic and
// may contain quotes or angle brackets, so HTML escaping is off.
func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderTable draws rows under columns. Short rows are padded. Box drawing
// characters are used only on a terminal so piped output stays plain ASCII.
func renderTable(columns []column, rows [][]string, terminal bool) string {
	if len(columns) == 0 {
		return ""
	}
	tw := table.NewWriter()
	if terminal {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.title
		align := text.AlignLeft
		if c.numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}
