// Package report turns the aggregator outputs into human-facing artifacts:
// a templated markdown narrative and the multi-sheet spreadsheet export. The
// narrative is plain string formatting over already-computed numbers.
package report

import (
	"fmt"
	"strings"

	"github.com/pbandeira/solmon/internal/dataset"
	"github.com/pbandeira/solmon/internal/indicators"
)

// Input gathers everything the narrative reads.
type Input struct {
	Executive  indicators.Executive
	Advanced   indicators.Advanced
	Funnel     []indicators.FunnelRow
	Dimensions []indicators.DistributionRow
	Critical   []dataset.Record
	Detailed   bool
}

var statusLabels = map[dataset.Status]string{
	dataset.StatusCancelled:  "cancelled",
	dataset.StatusCompleted:  "completed",
	dataset.StatusInProgress: "in progress",
	dataset.StatusOther:      "other",
	dataset.StatusUndefined:  "undefined",
}

// Narrative renders the markdown report.
func Narrative(in Input) string {
	var b strings.Builder

	b.WriteString("## Request monitoring report\n\n")
	writeOverview(&b, in)
	writeFunnel(&b, in)
	writeRisk(&b, in)
	writeCritical(&b, in)

	return b.String()
}

func writeOverview(b *strings.Builder, in Input) {
	ex := in.Executive
	b.WriteString("### 1. Overview\n\n")
	fmt.Fprintf(b, "- Volume analyzed: **%d** requests in the current base.\n", ex.Total)
	if ex.Completed > 0 {
		fmt.Fprintf(b, "- **%d** are completed, roughly **%.1f%%** of the total.\n",
			ex.Completed, ex.CompletionRate)
	} else {
		b.WriteString("- No requests are marked as completed in the current cut.\n")
	}
	fmt.Fprintf(b, "- The breach rate stands at **%.1f%%**.\n", ex.BreachRate)

	switch {
	case ex.BreachRate < 5:
		b.WriteString("- **Reading:** breach levels are low, suggesting good adherence to the defined targets.\n")
	case ex.BreachRate < 15:
		b.WriteString("- **Reading:** breach levels are moderate; bottlenecks are worth continuous monitoring.\n")
	case ex.BreachRate < 30:
		b.WriteString("- **Reading:** the breach share is already significant; flow review and capacity reinforcement should be prioritized.\n")
	default:
		b.WriteString("- **Reading:** breaches are high, pointing at overloaded teams, undersized targets or governance gaps.\n")
	}

	if in.Detailed {
		b.WriteString("- Track these indicators month over month to tell one-off swings from structural trends.\n")
	}
	b.WriteString("\n")
}

func writeFunnel(b *strings.Builder, in Input) {
	b.WriteString("### 2. Operational funnel\n\n")
	if len(in.Funnel) == 0 {
		b.WriteString("- The funnel could not be computed: the base carries no structured status information.\n\n")
		return
	}
	for _, row := range in.Funnel {
		label, ok := statusLabels[row.Status]
		if !ok {
			label = string(row.Status)
		}
		fmt.Fprintf(b, "- **%s**: %d requests (%.1f%%).\n", label, row.Count, row.Percent)
	}
	b.WriteString("\n")
}

func writeRisk(b *strings.Builder, in Input) {
	b.WriteString("### 3. Risk profile\n\n")
	fmt.Fprintf(b, "- Lead time: mean **%.1f** days, median **%.1f**, p90 **%d**, p95 **%d**.\n",
		in.Advanced.LeadMean, in.Advanced.LeadMedian, in.Advanced.LeadP90, in.Advanced.LeadP95)
	if in.Advanced.VeryOld > 0 {
		fmt.Fprintf(b, "- **%d** requests are older than a year and deserve individual review.\n", in.Advanced.VeryOld)
	}
	if in.Advanced.MissingLog > 0 || in.Advanced.MissingOwner > 0 {
		fmt.Fprintf(b, "- Operational gaps: %d requests without a progress log, %d without an assigned owner.\n",
			in.Advanced.MissingLog, in.Advanced.MissingOwner)
	}

	for _, d := range in.Dimensions {
		if d.Label == string(dataset.DimensionMixed) && d.Count > 0 {
			fmt.Fprintf(b, "- **%d** requests (%.1f%%) combine risk factors across more than one dimension.\n",
				d.Count, d.Percent)
		}
	}
	b.WriteString("\n")
}

func writeCritical(b *strings.Builder, in Input) {
	if len(in.Critical) == 0 {
		return
	}
	b.WriteString("### 4. Oldest open items\n\n")
	b.WriteString("| # | Org unit | Type | Lead time (days) | Risk |\n")
	b.WriteString("|---|----------|------|------------------|------|\n")
	for _, r := range in.Critical {
		org := r.OrgUnit
		if org == "" {
			org = indicators.Unassigned
		}
		fmt.Fprintf(b, "| %d | %s | %s | %d | %s |\n",
			r.Row, org, r.TypeSimplified, r.LeadTime, r.RiskCategory)
	}
	b.WriteString("\n")
}
