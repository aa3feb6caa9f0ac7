package orchestrator

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ShowHistory prints the most recent runs, newest first.
func (o *Orchestrator) ShowHistory(limit int) error {
	if o.state == nil {
		return fmt.Errorf("run history is disabled")
	}
	runs, err := o.state.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(o.out, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(o.out, "%-36s  %-19s  %-8s  %8s  %8s  %s\n", "RUN ID", "STARTED", "STATUS", "CSV", "JSON", "LOADED")
	for _, r := range runs {
		fmt.Fprintf(o.out, "%-36s  %-19s  %-8s  %8d  %8d  %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.CSVRows, r.JSONRows, formatLoads(r.Loads))
	}
	return nil
}

// ShowRun prints the details of one run.
func (o *Orchestrator) ShowRun(runID string) error {
	if o.state == nil {
		return fmt.Errorf("run history is disabled")
	}
	r, err := o.state.GetRun(runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(o.out, "Run:       %s\n", r.ID)
	fmt.Fprintf(o.out, "Status:    %s\n", r.Status)
	fmt.Fprintf(o.out, "Data dir:  %s\n", r.DataDir)
	fmt.Fprintf(o.out, "Started:   %s\n", r.StartedAt.Local().Format(time.RFC3339))
	if r.CompletedAt != nil {
		fmt.Fprintf(o.out, "Duration:  %s\n", r.Duration().Round(time.Millisecond))
	}
	fmt.Fprintf(o.out, "CSV rows:  %d\n", r.CSVRows)
	fmt.Fprintf(o.out, "JSON rows: %d\n", r.JSONRows)
	fmt.Fprintf(o.out, "Loaded:    %s\n", formatLoads(r.Loads))
	if r.Error != "" {
		fmt.Fprintf(o.out, "Error:     %s\n", r.Error)
	}
	return nil
}

func formatLoads(loads map[string]int64) string {
	if len(loads) == 0 {
		return "-"
	}
	names := make([]string, 0, len(loads))
	for n := range loads {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%d", n, loads[n])
	}
	return strings.Join(parts, " ")
}

