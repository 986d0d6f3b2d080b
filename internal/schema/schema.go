// Package schema resolves the logical fields of the request base against the
// arbitrary column headings of a concrete spreadsheet. Resolution is the only
// place that touches raw column names; every later stage works on the typed
// record built from a Mapping.
package schema

import "strings"

// Field is a logical column of the request base.
type Field string

const (
	FieldSubmissionDate Field = "submission_date"
	FieldStatus         Field = "status"
	FieldRequestType    Field = "request_type"
	FieldReferenceID    Field = "reference_id"
	FieldProgressLog    Field = "progress_log"
	FieldOwner          Field = "owner"
	FieldOrgUnit        Field = "org_unit"
	FieldGroup          Field = "group"
	FieldSLAOverride    Field = "sla_override"
)

// Aliases lists the accepted spellings for each logical field, in the order
// they were observed in real exports. Matching is case- and whitespace-
// insensitive but otherwise exact.
var Aliases = map[Field][]string{
	FieldSubmissionDate: {"Data da solicitação", "Data da Solicitação", "Data Solicitação"},
	FieldStatus:         {"Situação  do Processo", "Situação do Processo", "Situação Processo"},
	FieldRequestType:    {"Tipo da solicitação", "Tipo da Solicitação", "Tipo Solicitação"},
	FieldReferenceID:    {"SEI"},
	FieldProgressLog:    {"Andamento SEI"},
	FieldOwner:          {"Responsável", "Responsável Técnico", "Responsavel Técnico", "Responsavel Tecnico"},
	FieldOrgUnit:        {"Orgão", "Órgão", "Órgão/UG", "Orgao"},
	FieldGroup:          {"Núcleo Pertencente", "Núcleo", "Nucleo"},
	FieldSLAOverride:    {"SLA (dias)", "Prazo SLA (dias)", "Prazo SLA"},
}

// Resolve returns the first column whose normalized form matches one of the
// normalized candidates. Absence is a valid result, never an error; callers
// substitute a default instead of failing.
func Resolve(candidates, columns []string) (string, bool) {
	normalized := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		normalized[normalize(c)] = true
	}
	for _, col := range columns {
		if normalized[normalize(col)] {
			return col, true
		}
	}
	return "", false
}

// Mapping holds the resolved column index for each logical field present in
// the input. Fields with no matching column are simply absent.
type Mapping map[Field]int

// MapColumns resolves every logical field against the given header row.
func MapColumns(columns []string) Mapping {
	m := make(Mapping)
	for field, candidates := range Aliases {
		name, ok := Resolve(candidates, columns)
		if !ok {
			continue
		}
		for i, col := range columns {
			if col == name {
				m[field] = i
				break
			}
		}
	}
	return m
}

// Index returns the column index for a field and whether it was resolved.
func (m Mapping) Index(f Field) (int, bool) {
	i, ok := m[f]
	return i, ok
}

// Has reports whether the field was resolved to a source column.
func (m Mapping) Has(f Field) bool {
	_, ok := m[f]
	return ok
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
