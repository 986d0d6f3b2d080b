package dataset

import (
	"time"

	"github.com/pbandeira/solmon/internal/schema"
)

// Status is the coarse bucket derived from the free-text process situation.
type Status string

const (
	StatusCancelled  Status = "cancelled"
	StatusCompleted  Status = "completed"
	StatusInProgress Status = "in_progress"
	StatusOther      Status = "other"
	StatusUndefined  Status = "undefined"
)

// RequestType is the simplified request category.
type RequestType string

const (
	TypeAdesao   RequestType = "adesao"
	TypeARP      RequestType = "arp"
	TypeRegistro RequestType = "registro"
	TypeOutros   RequestType = "outros"
)

// Complexity is a rough effort estimate from the request-type text. It is
// enrichment only; the risk engine never reads it.
type Complexity string

const (
	ComplexityLow       Complexity = "low"
	ComplexityMedium    Complexity = "medium"
	ComplexityHigh      Complexity = "high"
	ComplexityUndefined Complexity = "undefined"
)

// SLACategory is the friendly turnaround label.
type SLACategory string

const (
	SLAOnTrack  SLACategory = "on_track"
	SLABreached SLACategory = "breached"
	SLASevere   SLACategory = "severe"
)

// AgingBucket is the fixed day-range classification of lead time.
type AgingBucket string

const (
	Aging0to30    AgingBucket = "0-30"
	Aging31to60   AgingBucket = "31-60"
	Aging61to90   AgingBucket = "61-90"
	Aging91to180  AgingBucket = "91-180"
	Aging181to365 AgingBucket = "181-365"
	AgingOver365  AgingBucket = ">365"
)

// BucketFor classifies a lead time into its aging bucket. The 365 boundary
// deliberately matches the very-old threshold.
func BucketFor(leadTime int) AgingBucket {
	switch {
	case leadTime <= 30:
		return Aging0to30
	case leadTime <= 60:
		return Aging31to60
	case leadTime <= 90:
		return Aging61to90
	case leadTime <= 180:
		return Aging91to180
	case leadTime <= 365:
		return Aging181to365
	default:
		return AgingOver365
	}
}

// RiskCategory buckets the composite risk score.
type RiskCategory string

const (
	RiskLow       RiskCategory = "low"
	RiskModerate  RiskCategory = "moderate"
	RiskHigh      RiskCategory = "high"
	RiskUndefined RiskCategory = "undefined"
)

// RiskDimension names the flag group driving a record's risk.
type RiskDimension string

const (
	DimensionNone        RiskDimension = "none"
	DimensionTime        RiskDimension = "time"
	DimensionOperational RiskDimension = "operational"
	DimensionGovernance  RiskDimension = "governance"
	DimensionMixed       RiskDimension = "mixed"
)

// Record is one request of the working table. Source fields are copied from
// the resolved columns; everything else is derived by the pipeline stages and
// recomputed on every run.
type Record struct {
	Row int `json:"row"`

	// Source fields.
	SubmissionDate    time.Time `json:"submission_date"`
	HasSubmissionDate bool      `json:"has_submission_date"`
	RawStatus         string    `json:"raw_status"`
	RawType           string    `json:"raw_type"`
	ReferenceID       string    `json:"reference_id"`
	ProgressLog       string    `json:"progress_log"`
	Owner             string    `json:"owner"`
	OrgUnit           string    `json:"org_unit"`
	Group             string    `json:"group"`
	RawSLAOverride    string    `json:"raw_sla_override,omitempty"`

	// Loader/normalizer.
	LeadTime       int        `json:"lead_time"`
	StatusMacro    Status     `json:"status_macro"`
	HasReferenceID bool       `json:"has_reference_id"`
	HasProgressLog bool       `json:"has_progress_log"`
	Complexity     Complexity `json:"complexity_estimate"`

	// SLA engine.
	TypeSimplified RequestType `json:"type_simplified"`
	SLATarget      float64     `json:"sla_target"`
	SLAOverridden  bool        `json:"sla_overridden"`
	Breached       bool        `json:"breached"`
	SevereBreach   bool        `json:"severity_breach"`
	SLAMargin      int         `json:"sla_margin"`
	AgingBucket    AgingBucket `json:"aging_bucket"`
	VeryOld        bool        `json:"very_old"`
	SLACategory    SLACategory `json:"sla_category"`

	// Risk engine.
	RiskScore       int           `json:"risk_score"`
	RiskCategory    RiskCategory  `json:"risk_category"`
	TimeRisk        bool          `json:"time_risk"`
	OperationalRisk bool          `json:"operational_risk"`
	GovernanceRisk  bool          `json:"governance_risk"`
	RiskDimension   RiskDimension `json:"risk_dimension"`
}

// Frame is the working table plus the schema resolution it was built with.
// Stages never mutate a frame they received; they return a fresh copy so a
// caller holding the pre-stage value is never surprised.
type Frame struct {
	Records []Record
	Mapping schema.Mapping
}

// Has reports whether a logical field was present in the source. A frame
// restored from the cache has no mapping and reports false for everything,
// which is fine: restored frames are never re-enriched.
func (f *Frame) Has(field schema.Field) bool {
	return f.Mapping != nil && f.Mapping.Has(field)
}

// Clone returns a frame with copied records sharing the same mapping.
func (f *Frame) Clone() *Frame {
	out := &Frame{Mapping: f.Mapping}
	out.Records = make([]Record, len(f.Records))
	copy(out.Records, f.Records)
	return out
}
