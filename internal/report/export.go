package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/pbandeira/solmon/internal/analysis"
	"github.com/pbandeira/solmon/internal/dataset"
	"github.com/pbandeira/solmon/internal/indicators"
)

// WriteWorkbook writes the multi-sheet analysis report. raw may be nil (a
// snapshot-served run has no raw table); the profiling sheets are then
// skipped.
func WriteWorkbook(path string, raw *dataset.Table, frame *dataset.Frame) error {
	recs := frame.Records

	wb := excelize.NewFile()
	defer wb.Close()

	const first = "Records"
	wb.SetSheetName(wb.GetSheetName(0), first)
	writeRecordsSheet(wb, first, recs)

	writeKPISheet(wb, indicators.ExecutiveKPIs(recs), indicators.AdvancedKPIs(recs))

	writeRowsSheet(wb, "Funnel", []string{"status", "count", "percent"},
		rowsOf(indicators.Funnel(recs), func(r indicators.FunnelRow) []any {
			return []any{string(r.Status), r.Count, r.Percent}
		}))

	writeRowsSheet(wb, "Breach by org", []string{"org_unit", "total", "breached", "rate"},
		rowsOf(indicators.BreachRateBy(recs, indicators.ByOrgUnit), func(r indicators.BreachRow) []any {
			return []any{r.Group, r.Total, r.Breached, r.Rate}
		}))

	writeRowsSheet(wb, "Lead time by group", []string{"group", "count", "mean", "median", "p75", "p90"},
		rowsOf(indicators.LeadTimeBy(recs, indicators.ByGroup), func(r indicators.LeadTimeRow) []any {
			return []any{r.Group, r.Count, r.Mean, r.Median, r.P75, r.P90}
		}))

	writeRowsSheet(wb, "Completion by group", []string{"group", "total", "completed", "in_progress", "cancelled", "other", "completion_rate"},
		rowsOf(indicators.CompletionBy(recs, indicators.ByGroup), func(r indicators.CompletionRow) []any {
			return []any{r.Group, r.Total, r.Completed, r.InProgress, r.Cancelled, r.Other, r.CompletionRate}
		}))

	writeRowsSheet(wb, "Breach by owner", []string{"owner", "total", "breached", "rate"},
		rowsOf(indicators.BreachRateBy(recs, indicators.ByOwner), func(r indicators.BreachRow) []any {
			return []any{r.Group, r.Total, r.Breached, r.Rate}
		}))

	writeRowsSheet(wb, "Aging", []string{"bucket", "count", "percent"},
		rowsOf(indicators.AgingDistribution(recs), distRow))
	writeRowsSheet(wb, "Risk dimensions", []string{"dimension", "count", "percent"},
		rowsOf(indicators.DimensionDistribution(recs), distRow))
	writeRowsSheet(wb, "Risk categories", []string{"category", "count", "percent"},
		rowsOf(indicators.RiskDistribution(recs), distRow))

	writeRowsSheet(wb, "Top critical", []string{"row", "org_unit", "owner", "type", "lead_time", "risk_score", "risk_category"},
		rowsOf(indicators.TopCritical(recs, 20), func(r dataset.Record) []any {
			return []any{r.Row, r.OrgUnit, r.Owner, string(r.TypeSimplified), r.LeadTime, r.RiskScore, string(r.RiskCategory)}
		}))

	if raw != nil {
		writeRowsSheet(wb, "Structure", []string{"column", "non_empty", "empty", "distinct"},
			rowsOf(analysis.Structure(raw), func(p analysis.ColumnProfile) []any {
				return []any{p.Column, p.NonEmpty, p.Empty, p.Distinct}
			}))
		writeRowsSheet(wb, "Missing", []string{"column", "missing", "percent"},
			rowsOf(analysis.Missing(raw), func(m analysis.MissingRow) []any {
				return []any{m.Column, m.Missing, m.Percent}
			}))
		writeRowsSheet(wb, "Monthly intake", []string{"month", "count"},
			rowsOf(analysis.MonthlyIntake(raw), func(m analysis.MonthCount) []any {
				return []any{m.Month, m.Count}
			}))
	}

	if err := wb.SaveAs(path); err != nil {
		return fmt.Errorf("writing workbook %s: %w", path, err)
	}
	return nil
}

var recordHeader = []string{
	"row", "submission_date", "org_unit", "group", "owner", "reference_id",
	"raw_type", "type_simplified", "complexity", "status_macro", "lead_time",
	"sla_target", "sla_margin", "breached", "severity_breach", "sla_category",
	"aging_bucket", "very_old", "risk_score", "risk_category", "risk_dimension",
}

func recordRow(r dataset.Record) []any {
	submitted := ""
	if r.HasSubmissionDate {
		submitted = r.SubmissionDate.Format("2006-01-02")
	}
	return []any{
		r.Row, submitted, r.OrgUnit, r.Group, r.Owner, r.ReferenceID,
		r.RawType, string(r.TypeSimplified), string(r.Complexity), string(r.StatusMacro), r.LeadTime,
		r.SLATarget, r.SLAMargin, r.Breached, r.SevereBreach, string(r.SLACategory),
		string(r.AgingBucket), r.VeryOld, r.RiskScore, string(r.RiskCategory), string(r.RiskDimension),
	}
}

func writeRecordsSheet(wb *excelize.File, sheet string, recs []dataset.Record) {
	setRow(wb, sheet, 1, toAny(recordHeader))
	for i, r := range recs {
		setRow(wb, sheet, i+2, recordRow(r))
	}
}

func writeKPISheet(wb *excelize.File, ex indicators.Executive, adv indicators.Advanced) {
	const sheet = "KPIs"
	wb.NewSheet(sheet)
	rows := [][]any{
		{"metric", "value"},
		{"total", ex.Total},
		{"completed", ex.Completed},
		{"breached", ex.Breached},
		{"cancelled", ex.Cancelled},
		{"completion_rate", ex.CompletionRate},
		{"breach_rate", ex.BreachRate},
		{"lead_mean", adv.LeadMean},
		{"lead_median", adv.LeadMedian},
		{"lead_p75", adv.LeadP75},
		{"lead_p90", adv.LeadP90},
		{"lead_p95", adv.LeadP95},
		{"very_old", adv.VeryOld},
		{"missing_log", adv.MissingLog},
		{"missing_owner", adv.MissingOwner},
	}
	for i, row := range rows {
		setRow(wb, sheet, i+1, row)
	}
}

func writeRowsSheet(wb *excelize.File, sheet string, header []string, rows [][]any) {
	wb.NewSheet(sheet)
	setRow(wb, sheet, 1, toAny(header))
	for i, row := range rows {
		setRow(wb, sheet, i+2, row)
	}
}

func setRow(wb *excelize.File, sheet string, row int, values []any) {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return
	}
	// Best effort; a cell that fails to write leaves a blank, not a torn file.
	_ = wb.SetSheetRow(sheet, cell, &values)
}

func rowsOf[T any](items []T, f func(T) []any) [][]any {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, f(it))
	}
	return rows
}

func distRow(r indicators.DistributionRow) []any {
	return []any{r.Label, r.Count, r.Percent}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// WriteCSV writes the enriched table as a flat CSV export.
func WriteCSV(path string, frame *dataset.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv export: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(recordHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range frame.Records {
		row := recordRow(r)
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		if err := w.Write(cells); err != nil {
			return fmt.Errorf("writing csv row %d: %w", r.Row, err)
		}
	}
	w.Flush()
	return w.Error()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}
