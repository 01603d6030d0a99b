package app

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"ReviewScraper/utils"
)

// PrintSummary renders one row per page run.
func PrintSummary(w io.Writer, results []PageResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Page", "Status", "Records", "Elapsed", "Output", "Error"})

	total := 0
	for _, r := range results {
		errMsg := ""
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		total += r.Records
		t.AppendRow(table.Row{
			utils.PageSlug(r.Page.Name, r.Page.URL),
			r.Status,
			r.Records,
			r.Elapsed.Round(time.Millisecond),
			r.CSVPath,
			errMsg,
		})
	}
	t.AppendFooter(table.Row{"", "", total})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
