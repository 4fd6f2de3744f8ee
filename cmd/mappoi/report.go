package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/onemotre/MapPOI/pkg/scheduler"
)

// printSummary writes the per-query report and run totals.
func printSummary(w io.Writer, sum scheduler.Summary) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("REGION", "CATEGORY", "STATE", "REASON", "RECORDS", "PAGES", "RETRIES", "STORED")
	for _, q := range sum.Queries {
		t.Row(
			q.Query.Region,
			q.Query.Category,
			q.State.String(),
			string(q.Reason),
			strconv.Itoa(q.Records),
			strconv.Itoa(q.Pages),
			strconv.Itoa(q.Retries),
			strconv.FormatBool(q.Stored),
		)
	}
	fmt.Fprintln(w, t.String())

	exhausted, aborted := sum.Counts()
	fmt.Fprintf(w, "queries: %d exhausted, %d aborted, %d abandoned\n",
		exhausted, aborted, len(sum.Abandoned()))
	fmt.Fprintf(w, "records: %d\n", sum.Records())
	fmt.Fprintf(w, "requests: %d (peak in flight %d of %d, waited %s for admission)\n",
		sum.Gate.Admitted, sum.GatePeak, sum.Gate.Limit, sum.Gate.TotalWait.Round(time.Millisecond))
	fmt.Fprintf(w, "duration: %s\n", sum.Duration.Round(time.Millisecond))

	for _, f := range sum.StorageFailures {
		fmt.Fprintf(w, "storage failure: %s: %v\n", f.Query, f.Err)
	}
	for _, wr := range sum.Workers {
		if wr.Err != nil {
			fmt.Fprintf(w, "worker %d failed: %v (%d queries abandoned)\n", wr.Worker, wr.Err, len(wr.Abandoned))
		}
	}
}
