// Package indicators is pure read-side aggregation over the enriched table.
// Every function tolerates an empty input and returns an empty or zero result.
package indicators

import (
	"math"
	"sort"

	"github.com/pbandeira/solmon/internal/dataset"
)

// Unassigned labels rows whose grouping value is blank.
const Unassigned = "(unassigned)"

// Executive holds the headline KPIs.
type Executive struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Breached       int     `json:"breached"`
	Cancelled      int     `json:"cancelled"`
	CompletionRate float64 `json:"completion_rate"`
	BreachRate     float64 `json:"breach_rate"`
}

// ExecutiveKPIs computes totals and rates over the whole table.
func ExecutiveKPIs(recs []dataset.Record) Executive {
	var e Executive
	e.Total = len(recs)
	for _, r := range recs {
		switch r.StatusMacro {
		case dataset.StatusCompleted:
			e.Completed++
		case dataset.StatusCancelled:
			e.Cancelled++
		}
		if r.Breached {
			e.Breached++
		}
	}
	if e.Total > 0 {
		e.CompletionRate = round2(float64(e.Completed) / float64(e.Total) * 100)
		e.BreachRate = round2(float64(e.Breached) / float64(e.Total) * 100)
	}
	return e
}

// Advanced holds the lead-time distribution and critical-volume KPIs.
type Advanced struct {
	LeadMean     float64 `json:"lead_mean"`
	LeadMedian   float64 `json:"lead_median"`
	LeadP75      int     `json:"lead_p75"`
	LeadP90      int     `json:"lead_p90"`
	LeadP95      int     `json:"lead_p95"`
	VeryOld      int     `json:"very_old"`
	MissingLog   int     `json:"missing_log"`
	MissingOwner int     `json:"missing_owner"`
}

// AdvancedKPIs computes lead-time statistics and critical counts.
func AdvancedKPIs(recs []dataset.Record) Advanced {
	var a Advanced
	if len(recs) == 0 {
		return a
	}

	lead := make([]float64, len(recs))
	for i, r := range recs {
		lead[i] = float64(r.LeadTime)
		if r.VeryOld {
			a.VeryOld++
		}
		if !r.HasProgressLog {
			a.MissingLog++
		}
		if r.Owner == "" {
			a.MissingOwner++
		}
	}
	sort.Float64s(lead)

	a.LeadMean = round1(mean(lead))
	a.LeadMedian = round1(percentile(lead, 0.5))
	a.LeadP75 = int(percentile(lead, 0.75))
	a.LeadP90 = int(percentile(lead, 0.90))
	a.LeadP95 = int(percentile(lead, 0.95))
	return a
}

// FunnelRow is one status bucket of the operational funnel.
type FunnelRow struct {
	Status  dataset.Status `json:"status"`
	Count   int            `json:"count"`
	Percent float64        `json:"percent"`
}

// Funnel counts records per macro status, largest bucket first.
func Funnel(recs []dataset.Record) []FunnelRow {
	counts := map[dataset.Status]int{}
	for _, r := range recs {
		counts[r.StatusMacro]++
	}

	rows := make([]FunnelRow, 0, len(counts))
	for status, count := range counts {
		row := FunnelRow{Status: status, Count: count}
		if len(recs) > 0 {
			row.Percent = round2(float64(count) / float64(len(recs)) * 100)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Status < rows[j].Status
	})
	return rows
}

// GroupKey extracts the grouping value from a record.
type GroupKey func(dataset.Record) string

// Standard grouping keys.
var (
	ByOrgUnit GroupKey = func(r dataset.Record) string { return orDefault(r.OrgUnit) }
	ByGroup   GroupKey = func(r dataset.Record) string { return orDefault(r.Group) }
	ByOwner   GroupKey = func(r dataset.Record) string { return orDefault(r.Owner) }
)

// BreachRow is the breach-rate summary for one group.
type BreachRow struct {
	Group    string  `json:"group"`
	Total    int     `json:"total"`
	Breached int     `json:"breached"`
	Rate     float64 `json:"rate"`
}

// BreachRateBy computes total/breached/rate per group, worst rate first.
func BreachRateBy(recs []dataset.Record, key GroupKey) []BreachRow {
	totals := map[string]*BreachRow{}
	for _, r := range recs {
		g := key(r)
		row, ok := totals[g]
		if !ok {
			row = &BreachRow{Group: g}
			totals[g] = row
		}
		row.Total++
		if r.Breached {
			row.Breached++
		}
	}

	rows := make([]BreachRow, 0, len(totals))
	for _, row := range totals {
		row.Rate = round2(float64(row.Breached) / float64(row.Total) * 100)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Rate != rows[j].Rate {
			return rows[i].Rate > rows[j].Rate
		}
		return rows[i].Group < rows[j].Group
	})
	return rows
}

// LeadTimeRow is the lead-time distribution summary for one group.
type LeadTimeRow struct {
	Group  string  `json:"group"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
}

// LeadTimeBy computes lead-time statistics per group, sorted by group name.
func LeadTimeBy(recs []dataset.Record, key GroupKey) []LeadTimeRow {
	groups := map[string][]float64{}
	for _, r := range recs {
		g := key(r)
		groups[g] = append(groups[g], float64(r.LeadTime))
	}

	rows := make([]LeadTimeRow, 0, len(groups))
	for g, lead := range groups {
		sort.Float64s(lead)
		rows = append(rows, LeadTimeRow{
			Group:  g,
			Count:  len(lead),
			Mean:   round1(mean(lead)),
			Median: round1(percentile(lead, 0.5)),
			P75:    round1(percentile(lead, 0.75)),
			P90:    round1(percentile(lead, 0.90)),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Group < rows[j].Group })
	return rows
}

// CompletionRow is the per-group status breakdown with completion rate.
type CompletionRow struct {
	Group          string  `json:"group"`
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	InProgress     int     `json:"in_progress"`
	Cancelled      int     `json:"cancelled"`
	Other          int     `json:"other"`
	CompletionRate float64 `json:"completion_rate"`
}

// CompletionBy breaks status counts down per group, sorted by group name.
func CompletionBy(recs []dataset.Record, key GroupKey) []CompletionRow {
	totals := map[string]*CompletionRow{}
	for _, r := range recs {
		g := key(r)
		row, ok := totals[g]
		if !ok {
			row = &CompletionRow{Group: g}
			totals[g] = row
		}
		row.Total++
		switch r.StatusMacro {
		case dataset.StatusCompleted:
			row.Completed++
		case dataset.StatusInProgress:
			row.InProgress++
		case dataset.StatusCancelled:
			row.Cancelled++
		default:
			row.Other++
		}
	}

	rows := make([]CompletionRow, 0, len(totals))
	for _, row := range totals {
		row.CompletionRate = round2(float64(row.Completed) / float64(row.Total) * 100)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Group < rows[j].Group })
	return rows
}

// TopCritical returns the n oldest records by lead time, descending. Ordering
// by age rather than risk score is the report's documented behavior.
func TopCritical(recs []dataset.Record, n int) []dataset.Record {
	if n <= 0 || len(recs) == 0 {
		return nil
	}
	sorted := make([]dataset.Record, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].LeadTime > sorted[j].LeadTime })
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// DistributionRow is a generic labeled count with percentage.
type DistributionRow struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// AgingDistribution counts records per aging bucket in bucket order.
func AgingDistribution(recs []dataset.Record) []DistributionRow {
	order := []dataset.AgingBucket{
		dataset.Aging0to30, dataset.Aging31to60, dataset.Aging61to90,
		dataset.Aging91to180, dataset.Aging181to365, dataset.AgingOver365,
	}
	counts := map[dataset.AgingBucket]int{}
	for _, r := range recs {
		counts[r.AgingBucket]++
	}

	rows := make([]DistributionRow, 0, len(order))
	for _, b := range order {
		row := DistributionRow{Label: string(b), Count: counts[b]}
		if len(recs) > 0 {
			row.Percent = round2(float64(counts[b]) / float64(len(recs)) * 100)
		}
		rows = append(rows, row)
	}
	return rows
}

// DimensionDistribution counts records per dominant risk dimension.
func DimensionDistribution(recs []dataset.Record) []DistributionRow {
	order := []dataset.RiskDimension{
		dataset.DimensionNone, dataset.DimensionTime, dataset.DimensionOperational,
		dataset.DimensionGovernance, dataset.DimensionMixed,
	}
	counts := map[dataset.RiskDimension]int{}
	for _, r := range recs {
		counts[r.RiskDimension]++
	}

	rows := make([]DistributionRow, 0, len(order))
	for _, d := range order {
		row := DistributionRow{Label: string(d), Count: counts[d]}
		if len(recs) > 0 {
			row.Percent = round2(float64(counts[d]) / float64(len(recs)) * 100)
		}
		rows = append(rows, row)
	}
	return rows
}

// RiskDistribution counts records per risk category.
func RiskDistribution(recs []dataset.Record) []DistributionRow {
	order := []dataset.RiskCategory{
		dataset.RiskLow, dataset.RiskModerate, dataset.RiskHigh, dataset.RiskUndefined,
	}
	counts := map[dataset.RiskCategory]int{}
	for _, r := range recs {
		counts[r.RiskCategory]++
	}

	rows := make([]DistributionRow, 0, len(order))
	for _, c := range order {
		if counts[c] == 0 && c == dataset.RiskUndefined {
			continue
		}
		row := DistributionRow{Label: string(c), Count: counts[c]}
		if len(recs) > 0 {
			row.Percent = round2(float64(counts[c]) / float64(len(recs)) * 100)
		}
		rows = append(rows, row)
	}
	return rows
}

// percentile computes the q-quantile with linear interpolation over a sorted
// slice, matching the convention of the historical reports.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

func orDefault(s string) string {
	if s == "" {
		return Unassigned
	}
	return s
}
