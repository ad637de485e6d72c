package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// writeTable prints rows under headers as aligned columns. Cells are
// flattened to one line so prompts and responses do not break the layout.
func writeTable(out io.Writer, headers []string, rows [][]string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if len(headers) > 0 {
		fmt.Fprintln(w, strings.Join(headers, "\t"))
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = oneLine(cell)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func formatYesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate flattens s to one line of at most n runes.
func truncate(s string, n int) string {
	s = oneLine(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
