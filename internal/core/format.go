package core

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// FormatItems writes up to top items (all when top <= 0) as an aligned text
// table. Columns default to the keys of the first item, identifiers first.
// Missing values print as empty cells and nil as NULL.
func FormatItems(w io.Writer, items []*Item, columns []string, top int) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "(no rows)")
		return err
	}
	if len(columns) == 0 {
		columns = items[0].Keys()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for idx, item := range items {
		if top > 0 && idx == top {
			break
		}
		cells := make([]string, len(columns))
		for c, col := range columns {
			v, ok := item.Get(col)
			switch {
			case !ok:
			case v == nil:
				cells[c] = "NULL"
			default:
				cells[c] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if top > 0 && len(items) > top {
		_, err := fmt.Fprintf(w, "... %d more rows\n", len(items)-top)
		return err
	}
	return nil
}
