package formatter

import (
	"strings"

	"github.com/alevsk/gwbundle/internal/types"
	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(title string, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(nil)
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateColumns = true
	t.SetTitle(title)
	t.AppendHeader(header)
	return t
}

// buildTables builds the tables for the given data. Tables without rows are
// left out, except for the counts.
func buildTables(data ParsedData) []table.Writer {
	var tables []table.Writer

	if data.Metadata != nil {
		metadataTable := newTable("METADATA", table.Row{"KEY", "VALUE"})
		metadataTable.AppendRow(table.Row{"VERSION", data.Metadata.Version})
		metadataTable.AppendRow(table.Row{"OPERATION", data.Metadata.Operation})
		metadataTable.AppendRow(table.Row{"SOURCE", data.Metadata.Source})
		if data.Metadata.Target != "" {
			metadataTable.AppendRow(table.Row{"TARGET", data.Metadata.Target})
		}
		if data.Metadata.BundleType != "" {
			metadataTable.AppendRow(table.Row{"BUNDLE TYPE", data.Metadata.BundleType})
		}
		metadataTable.AppendRow(table.Row{"TIMESTAMP", data.Metadata.Timestamp})
		tables = append(tables, metadataTable)
	}

	countTable := newTable("ENTITIES BY TYPE", table.Row{"TYPE", "COUNT"})
	for _, c := range data.Counts {
		countTable.AppendRow(table.Row{c.Type, c.Count})
	}
	countTable.AppendFooter(table.Row{"TOTAL", data.Total})
	tables = append(tables, countTable)

	if len(data.Entities) > 0 {
		entityTable := newTable("ENTITIES", table.Row{"TYPE", "NAME", "ID", "PATH", "ACTION"})
		for _, e := range data.Entities {
			action := e.Action
			if e.MappingOnly {
				action = strings.TrimSpace(action + " (mapping only)")
			}
			entityTable.AppendRow(table.Row{e.Type, e.Name, e.ID, e.Path, action})
		}
		tables = append(tables, entityTable)
	}

	if len(data.Files) > 0 {
		fileTable := newTable("FILES", table.Row{"PATH"})
		for _, f := range data.Files {
			fileTable.AppendRow(table.Row{f})
		}
		tables = append(tables, fileTable)
	}

	if len(data.Warnings) > 0 {
		warningTable := newTable("WARNINGS", table.Row{"WARNING"})
		for _, w := range data.Warnings {
			warningTable.AppendRow(table.Row{w})
		}
		tables = append(tables, warningTable)
	}

	return tables
}

// Format formats data as a table using go-pretty/v6/table
func (t *Table) Format(data types.Result) (string, error) {
	var rendered []string
	for _, tw := range buildTables(parse(data, t.opts)) {
		rendered = append(rendered, tw.Render())
	}
	return strings.Join(rendered, "\n\n") + "\n", nil
}

// Format formats data as markdown tables
func (m *Markdown) Format(data types.Result) (string, error) {
	var rendered []string
	for _, tw := range buildTables(parse(data, m.opts)) {
		rendered = append(rendered, tw.RenderMarkdown())
	}
	return strings.Join(rendered, "\n\n") + "\n", nil
}
