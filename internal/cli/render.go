package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/vvka-141/dynis/internal/job"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	return t
}

func renderReport(w io.Writer, report job.Report) {
	if len(report.Outcomes) > 0 {
		t := newTable(w)
		t.AppendHeader(table.Row{"Item set", "Status", "Attached", "New", "Detached", "Failures", "Reason"})
		for _, o := range report.Outcomes {
			t.AppendRow(table.Row{
				"#" + strconv.FormatInt(o.ItemSetID, 10),
				string(o.Status),
				o.Attached,
				o.NewlyAttached,
				o.Detached,
				len(o.Failures),
				o.Reason,
			})
		}
		t.Render()
	}
	fmt.Fprintf(w, "Job %s %s: %d applied, %d skipped, %d stopped\n",
		report.JobID, report.Status(),
		report.Count(job.StatusApplied), report.Count(job.StatusSkipped), report.Count(job.StatusStopped))
}
