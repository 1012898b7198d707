package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable(markdown bool) table.Writer {
	w := table.NewWriter()
	if !markdown {
		w.SetStyle(table.StyleLight)
	}
	return w
}

// rightAlign right-aligns the given 1-based columns.
func rightAlign(w table.Writer, cols ...int) {
	cfgs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		cfgs[i] = table.ColumnConfig{Number: c, Align: text.AlignRight}
	}
	w.SetColumnConfigs(cfgs)
}

func render(out io.Writer, w table.Writer, markdown bool) {
	if markdown {
		fmt.Fprintln(out, w.RenderMarkdown())
		return
	}
	fmt.Fprintln(out, w.Render())
}

func num(v float64) string {
	return fmt.Sprintf("%.4g", v)
}
