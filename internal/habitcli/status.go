package habitcli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/phillip-england/habitlog/internal/eventlog"
	"github.com/phillip-england/habitlog/internal/tracker"
)

func writeStatus(out io.Writer, views []tracker.View) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSTATE\tLAST\tELAPSED\tREMAINING\tEVENTS")
	for _, v := range views {
		state := string(v.Status.State)
		if v.Degraded {
			state = "unavailable"
		}
		last, elapsed, remaining := "-", "-", "-"
		if v.Last != nil {
			last = eventlog.FormatTimestamp(v.Last.Time)
			elapsed = tracker.FormatDuration(v.Status.Elapsed)
		}
		if v.Category.HasCooldown() {
			remaining = tracker.FormatDuration(v.Status.Remaining)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", v.Category.Key, state, last, elapsed, remaining, v.Total)
	}
	_ = tw.Flush()
}
