package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/liamashdown/polywatch/internal/model"
)

const maxDrivers = 4

// topDrivers joins the summaries of triggered results, strongest first
func topDrivers(results []model.DetectorResult) string {
	var triggered []model.DetectorResult
	for _, r := range results {
		if r.Triggered {
			triggered = append(triggered, r)
		}
	}
	sort.SliceStable(triggered, func(i, j int) bool { return triggered[i].Intensity > triggered[j].Intensity })

	var drivers []string
	for i := 0; i < len(triggered) && i < maxDrivers; i++ {
		drivers = append(drivers, triggered[i].Summary)
	}
	return strings.Join(drivers, ", ")
}

// RenderText produces the human-readable report
func RenderText(result *model.AggregateScore, lookback time.Duration) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Event: %s (slug=%s, id=%d) | Window: last %.1fh | Trades: %d\n",
		result.Event.Title, result.Event.Slug, result.Event.ID, lookback.Hours(), len(result.Trades))
	fmt.Fprintf(&b, "Overall suspicion score: %.1f → %s\n", result.Score, result.Label)
	if len(result.Rationale) > 0 {
		fmt.Fprintf(&b, "Rationale: %s\n", strings.Join(result.Rationale, "; "))
	}
	drivers := topDrivers(result.Results)
	if drivers == "" {
		drivers = "None"
	}
	fmt.Fprintf(&b, "Top drivers: %s\n", drivers)
	b.WriteString("\nBy outcome:")

	for _, o := range result.Outcomes {
		fmt.Fprintf(&b, "\n- %-25s score %5.1f → %-10s trades=%4d", o.Label, o.Score, o.Verdict, len(o.Trades))
		if d := topDrivers(o.Results); d != "" {
			fmt.Fprintf(&b, " | %s", d)
		}
	}
	return b.String()
}
