package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"socialsync/internal/core/reconcile"
	"socialsync/internal/core/record"
	"socialsync/internal/core/report"
)

// render prints the run summary as tables: per kind counts, actions, findings and failures
func render(w io.Writer, s report.Summary, took time.Duration) {
	_, _ = fmt.Fprintf(w, "run %s (%s)\n", s.RunID, took.Round(time.Millisecond))

	kinds := table.NewWriter()
	kinds.SetOutputMirror(w)
	kinds.SetStyle(table.StyleLight)
	kinds.AppendHeader(table.Row{"Kind", "Received", "Extracted", "Failed", "Filtered"})
	for _, k := range record.Kinds() {
		c, ok := s.Kinds[k]
		if !ok {
			continue
		}
		kinds.AppendRow(table.Row{k, c.Received, c.Extracted, c.Failed, c.Filtered})
	}
	kinds.Render()
	_, _ = fmt.Fprintf(w, "insert %d, update %d, noop %d\n",
		s.Actions[reconcile.Insert], s.Actions[reconcile.Update], s.Actions[reconcile.Noop])

	if len(s.Findings) > 0 {
		f := table.NewWriter()
		f.SetOutputMirror(w)
		f.SetStyle(table.StyleLight)
		f.AppendHeader(table.Row{"Severity", "Code", "Kind", "Field", "Keys", "Message"})
		for _, x := range s.Findings {
			f.AppendRow(table.Row{x.Severity, x.Code, x.Kind, x.Field, keys(x.Keys, 3), x.Message})
		}
		f.Render()
	}

	if len(s.Failures) > 0 {
		f := table.NewWriter()
		f.SetOutputMirror(w)
		f.SetStyle(table.StyleLight)
		f.AppendHeader(table.Row{"Stage", "Index", "Kind", "Key", "Code", "Error"})
		for _, x := range s.Failures {
			f.AppendRow(table.Row{x.Stage, x.Index, x.Kind, x.Key, x.CodeName, x.Error})
		}
		f.Render()
	}
}

func keys(ks []string, n int) string {
	if len(ks) <= n {
		return strings.Join(ks, ",")
	}
	return fmt.Sprintf("%s +%d", strings.Join(ks[:n], ","), len(ks)-n)
}
