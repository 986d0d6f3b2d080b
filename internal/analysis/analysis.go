// Package analysis profiles the raw input table: column structure, missing
// values, categorical distributions and the monthly intake series. It feeds
// the analyze command and the profiling sheets of the exported report.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pbandeira/solmon/internal/dataset"
	"github.com/pbandeira/solmon/internal/schema"
)

// ColumnProfile summarizes one raw column.
type ColumnProfile struct {
	Column   string `json:"column"`
	NonEmpty int    `json:"non_empty"`
	Empty    int    `json:"empty"`
	Distinct int    `json:"distinct"`
}

// Structure profiles every column in input order.
func Structure(t *dataset.Table) []ColumnProfile {
	profiles := make([]ColumnProfile, 0, len(t.Columns))
	for c, name := range t.Columns {
		p := ColumnProfile{Column: name}
		seen := map[string]bool{}
		for r := 0; r < t.Len(); r++ {
			v := strings.TrimSpace(t.Cell(r, c))
			if isMissing(v) {
				p.Empty++
				continue
			}
			p.NonEmpty++
			seen[v] = true
		}
		p.Distinct = len(seen)
		profiles = append(profiles, p)
	}
	return profiles
}

// MissingRow reports missing values for one column.
type MissingRow struct {
	Column  string  `json:"column"`
	Missing int     `json:"missing"`
	Percent float64 `json:"percent"`
}

// Missing counts missing values per column, worst first. Blank cells and the
// literals "nan"/"none" count as missing, matching how text exports encode
// absent values.
func Missing(t *dataset.Table) []MissingRow {
	rows := make([]MissingRow, 0, len(t.Columns))
	for c, name := range t.Columns {
		row := MissingRow{Column: name}
		for r := 0; r < t.Len(); r++ {
			if isMissing(strings.TrimSpace(t.Cell(r, c))) {
				row.Missing++
			}
		}
		if t.Len() > 0 {
			row.Percent = math.Round(float64(row.Missing)/float64(t.Len())*10000) / 100
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Missing > rows[j].Missing })
	return rows
}

// CategoryCount is one value of a categorical column.
type CategoryCount struct {
	Column  string  `json:"column"`
	Value   string  `json:"value"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Categories lists the top maxPerColumn values of every column.
func Categories(t *dataset.Table, maxPerColumn int) []CategoryCount {
	if maxPerColumn <= 0 {
		maxPerColumn = 20
	}
	var out []CategoryCount
	total := t.Len()
	for c, name := range t.Columns {
		counts := map[string]int{}
		for r := 0; r < total; r++ {
			v := strings.TrimSpace(t.Cell(r, c))
			if isMissing(v) {
				v = "(missing)"
			}
			counts[v]++
		}

		values := make([]CategoryCount, 0, len(counts))
		for v, n := range counts {
			cc := CategoryCount{Column: name, Value: v, Count: n}
			if total > 0 {
				cc.Percent = math.Round(float64(n)/float64(total)*10000) / 100
			}
			values = append(values, cc)
		}
		sort.Slice(values, func(i, j int) bool {
			if values[i].Count != values[j].Count {
				return values[i].Count > values[j].Count
			}
			return values[i].Value < values[j].Value
		})
		if len(values) > maxPerColumn {
			values = values[:maxPerColumn]
		}
		out = append(out, values...)
	}
	return out
}

// MonthCount is the intake volume for one calendar month.
type MonthCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}

// MonthlyIntake groups rows by submission month. Rows whose date cannot be
// parsed are skipped, not defaulted: profiling reports what the base actually
// contains. Returns nil when no submission-date column resolves.
func MonthlyIntake(t *dataset.Table) []MonthCount {
	mapping := schema.MapColumns(t.Columns)
	col, ok := mapping.Index(schema.FieldSubmissionDate)
	if !ok {
		return nil
	}

	counts := map[string]int{}
	for r := 0; r < t.Len(); r++ {
		date, parsed := dataset.ParseDate(t.Cell(r, col))
		if !parsed {
			continue
		}
		counts[fmt.Sprintf("%04d-%02d", date.Year(), int(date.Month()))]++
	}

	months := make([]MonthCount, 0, len(counts))
	for m, n := range counts {
		months = append(months, MonthCount{Month: m, Count: n})
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })
	return months
}

func isMissing(v string) bool {
	switch strings.ToLower(v) {
	case "", "nan", "none":
		return true
	}
	return false
}
