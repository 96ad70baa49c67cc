package etl

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Render prints every frequency table of r as a terminal table
func Render(w io.Writer, r *Result) {
	fmt.Fprintf(w, "Respondents: %d\n\n", r.Respondents)

	for _, q := range sortedKeys(r.Simple) {
		fmt.Fprintf(w, "%s\n%s\n\n", q, renderTable(r.Simple[q]))
	}
	for _, q := range sortedKeys(r.Multi) {
		fmt.Fprintf(w, "%s (multiple response)\n%s\n\n", q, renderTable(r.Multi[q]))
	}
	for _, group := range []map[string]map[string]Table{r.Matrix, r.Scores} {
		for _, q := range sortedKeys(group) {
			for _, item := range sortedKeys(group[q]) {
				fmt.Fprintf(w, "%s [%s]\n%s\n\n", q, item, renderTable(group[q][item]))
			}
		}
	}
}

func renderTable(t Table) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Value", "Count", "%"})
	for _, row := range t {
		tw.AppendRow(table.Row{row.Value, row.Count, strconv.FormatFloat(row.Percent, 'f', 1, 64)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
