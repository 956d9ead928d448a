package scan

import (
	"bufio"
	"fmt"
	"github.com/jedib0t/go-pretty/v6/table"
	"io"
	"strings"
)

// Render writes the text report of a scan:
//
//	Reading data for row phone#4c410523#20190501
//	Column Family cell_plan
//		data_plan_01gb:  @1556712000000000
//		data_plan_05gb: 1 @1556712000000000 [passed-filter]
//
// Rows are separated by a blank line. Nothing is written for an empty result.
func Render(w io.Writer, r *Result) error {
	bw := bufio.NewWriter(w)
	for i, row := range r.Rows {
		if i > 0 {
			bw.WriteString("\n")
		}
		fmt.Fprintf(bw, "Reading data for row %s\n", row.Key)
		for _, fam := range row.Families {
			fmt.Fprintf(bw, "Column Family %s\n", fam.Family)
			for _, c := range fam.Cells {
				fmt.Fprintf(bw, "\t%s: %s @%d%s\n", c.Qualifier, c.Value, c.Timestamp,
					labelSuffix(c.Labels))
			}
		}
	}
	return bw.Flush()
}

// RenderTable writes the result as a table with one line per cell.
func RenderTable(w io.Writer, r *Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Row", "Family", "Qualifier", "Value", "Timestamp", "Labels"})

	for _, row := range r.Rows {
		for _, fam := range row.Families {
			for _, c := range fam.Cells {
				t.AppendRow(table.Row{
					string(row.Key),
					fam.Family,
					string(c.Qualifier),
					string(c.Value),
					c.Timestamp,
					strings.Join(c.Labels, ","),
				})
			}
		}
		t.AppendSeparator()
	}
	t.Render()
}

func labelSuffix(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return " [" + strings.Join(labels, ",") + "]"
}
