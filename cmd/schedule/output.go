package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/muesli/termenv"

	"github.com/buildwright/cpmschedule/internal/task"
)

// printCriticalPathSummary prints the critical tasks in schedule order,
// highlighted when w is a real terminal. Non-critical tasks and summary
// rows are omitted; this is a human-facing digest, not the machine-readable
// output written by emit.
func printCriticalPathSummary(w io.Writer, tasks []task.Task) {
	output := termenv.NewOutput(w)
	profile := output.ColorProfile()

	critical := make([]task.Task, 0)
	for _, t := range tasks {
		if t.IsParent() || t.IsBlank() {
			continue
		}
		if t.IsCritical {
			critical = append(critical, t)
		}
	}
	sort.Slice(critical, func(i, j int) bool { return critical[i].Start.Before(critical[j].Start) })

	if len(critical) == 0 {
		fmt.Fprintln(w, "critical path: none (no scheduled tasks)")
		return
	}

	header := "critical path"
	if profile != termenv.Ascii {
		header = output.String(header).Bold().Foreground(profile.Color("9")).String()
	}
	fmt.Fprintln(w, header)

	for _, t := range critical {
		line := fmt.Sprintf("  %-24s %s -> %s (float %dd)", t.Name, t.Start.Format("2006-01-02"), t.End.Format("2006-01-02"), t.TotalFloat)
		if profile != termenv.Ascii {
			line = output.String(line).Foreground(profile.Color("9")).String()
		}
		fmt.Fprintln(w, line)
	}
}
