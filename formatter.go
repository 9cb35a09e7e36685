package juxr

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/cloudbees-oss/juxr/types"
)

// FormatSuite renders the per-case results of a suite as a console table
func FormatSuite(out io.Writer, s *types.TestSuite) {
	st := s.Stats()
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("%s (%s)", s.Name, formatDuration(st.Duration)))
	t.AppendHeader(table.Row{"Test", "Status", "Duration", "Message"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Message", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, c := range s.Cases {
		t.AppendRow(table.Row{c.Name, statusLabel(c.Status), formatDuration(c.Duration), c.Message})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d tests", st.Tests), "",
		formatDuration(st.Duration),
		fmt.Sprintf("%d failed, %d errored, %d skipped", st.Failures, st.Errors, st.Skipped),
	})
	t.Render()
	for _, d := range s.Diagnostics {
		fmt.Fprintf(out, "# %s\n", d)
	}
}

func statusLabel(s types.TestStatus) string {
	switch s {
	case types.TestStatusPass:
		return "ok"
	case types.TestStatusFail:
		return "FAIL"
	case types.TestStatusError:
		return "ERROR"
	case types.TestStatusSkip:
		return "skipped"
	default:
		return string(s)
	}
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
