package optimizer

import (
	"fmt"
	"strings"
	"time"
)

// GenerateReport renders a plain text summary of completed searches
func GenerateReport(results []*RunResult) string {
	var sb strings.Builder

	sb.WriteString(`
================================================================================
HYBRID OPTIMIZATION REPORT
================================================================================
`)

	for _, r := range results {
		if r == nil {
			continue
		}

		fmt.Fprintf(&sb, "\n%s\n%s\n", r.Algorithm, strings.Repeat("-", len(r.Algorithm)))
		fmt.Fprintf(&sb, "Run ID:           %s\n", r.ID)
		fmt.Fprintf(&sb, "Duration:         %s\n", r.Duration.Round(time.Millisecond))
		fmt.Fprintf(&sb, "Iterations:       %d\n", r.Iterations)
		fmt.Fprintf(&sb, "Evaluations:      %d (%d failed)\n", r.Evaluations, r.Failures)

		if r.Err != nil {
			fmt.Fprintf(&sb, "Error:            %v\n", r.Err)
		}
		if !r.Found() {
			sb.WriteString("Best Score:       n/a\n")
			continue
		}

		scoring := "backtest"
		if r.Heuristic {
			scoring = "heuristic"
		}
		fmt.Fprintf(&sb, "Best Score:       %.4f (%s)\n", r.BestScore, scoring)
		sb.WriteString("Parameters:\n")
		for i, v := range r.BestCandidate {
			name := fmt.Sprintf("x%d", i)
			if i < len(r.Names) {
				name = r.Names[i]
			}
			fmt.Fprintf(&sb, "  %-22s %.6f\n", name, v)
		}
	}

	sb.WriteString("\n================================================================================\n")
	return sb.String()
}
