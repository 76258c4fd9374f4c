// internal/data/models.go
package data

import "time"

// Side identifies which half of a paired observation a reading represents.
type Side string

const (
	SideInlet  Side = "inlet"  // pre-treatment
	SideOutlet Side = "outlet" // post-treatment
)

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == SideInlet || s == SideOutlet
}

// Opposite returns the counterpart side.
func (s Side) Opposite() Side {
	if s == SideInlet {
		return SideOutlet
	}
	return SideInlet
}

// Violation locations.
const (
	LocationInlet      = "inlet"
	LocationOutlet     = "outlet"
	LocationComparison = "comparison"
)

// Violation conditions.
const (
	ConditionBelowMinimum          = "below_minimum"
	ConditionAboveMaximum          = "above_maximum"
	ConditionInsufficientReduction = "insufficient_reduction"
)

// Violation / alert severities, ordered low to critical.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

var severityRank = map[string]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// SeverityAtLeast reports whether severity s ranks at or above threshold.
func SeverityAtLeast(s, threshold string) bool {
	return severityRank[s] >= severityRank[threshold]
}

// Alert lifecycle statuses. Transitions past "active" are made by operators.
const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
)

// Overall quality status buckets.
const (
	QualityExcellent = "excellent"
	QualityGood      = "good"
	QualityFair      = "fair"
	QualityPoor      = "poor"
	QualityCritical  = "critical"
)

// Monitored parameter names.
const (
	ParamPH          = "ph"
	ParamTDS         = "tds"
	ParamTurbidity   = "turbidity"
	ParamTemperature = "temperature"
)

// Parameters holds one complete set of sensor values for a single side.
type Parameters struct {
	PH          float64 `json:"ph" bson:"ph"`
	TDS         float64 `json:"tds" bson:"tds"`                 // mg/L
	Turbidity   float64 `json:"turbidity" bson:"turbidity"`     // NTU
	Temperature float64 `json:"temperature" bson:"temperature"` // Celsius
}

// PendingEntry is one half-reading waiting for its counterpart.
// Once Merged flips to true the entry is immutable and excluded from
// future merge attempts; only the janitor deletes expired unmerged rows.
type PendingEntry struct {
	ID            string            `json:"id" bson:"_id,omitempty"`
	FacilityID    string            `json:"facility_id" bson:"facilityId"`
	Side          Side              `json:"side" bson:"side"`
	DeviceID      string            `json:"device_id" bson:"deviceId"`
	Parameters    Parameters        `json:"parameters" bson:"parameters"`
	SensorMapping map[string]string `json:"sensor_mapping,omitempty" bson:"sensorMapping,omitempty"`
	ReceivedAt    time.Time         `json:"received_at" bson:"receivedAt"`
	Merged        bool              `json:"merged" bson:"merged"`
	ExpiresAt     time.Time         `json:"expires_at" bson:"expiresAt"`
	// Seq is the store-assigned write order, the deterministic tie-break
	// when two candidates share the same ReceivedAt.
	Seq int64 `json:"-" bson:"seq"`
}

// DeviceIDs records which physical device produced each side of a reading.
type DeviceIDs struct {
	Inlet  string `json:"inlet" bson:"inlet"`
	Outlet string `json:"outlet" bson:"outlet"`
}

// Violation is a single hard-threshold breach, detected independently of
// the weighted quality score.
type Violation struct {
	Parameter string  `json:"parameter" bson:"parameter"`
	Location  string  `json:"location" bson:"location"` // inlet | outlet | comparison
	Value     float64 `json:"value" bson:"value"`
	Threshold float64 `json:"threshold" bson:"threshold"`
	Condition string  `json:"condition" bson:"condition"`
	Severity  string  `json:"severity" bson:"severity"`
	Message   string  `json:"message" bson:"message"`
}

// QualityAnalysis is the scorer's verdict on a complete reading.
type QualityAnalysis struct {
	Score           int         `json:"score" bson:"score"` // 0-100
	Status          string      `json:"status" bson:"status"`
	Violations      []Violation `json:"violations" bson:"violations"`
	Recommendations []string    `json:"recommendations" bson:"recommendations"`
}

// CompleteReading is the reconciled, scored observation. Append-only:
// created once per successful merge and never updated.
type CompleteReading struct {
	ID            string            `json:"id" bson:"_id,omitempty"`
	FacilityID    string            `json:"facility_id" bson:"facilityId"`
	Inlet         Parameters        `json:"inlet" bson:"inlet"`
	Outlet        Parameters        `json:"outlet" bson:"outlet"`
	DeviceIDs     DeviceIDs         `json:"device_ids" bson:"deviceIds"`
	SensorMapping map[string]string `json:"sensor_mapping,omitempty" bson:"sensorMapping,omitempty"`
	ObservedAt    time.Time         `json:"observed_at" bson:"observedAt"` // outlet ReceivedAt
	Quality       QualityAnalysis   `json:"quality_analysis" bson:"qualityAnalysis"`
	CreatedAt     time.Time         `json:"created_at" bson:"createdAt"`
}

// Alert is the persisted, actionable record derived 1:1 from a Violation.
type Alert struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	FacilityID string    `json:"facility_id" bson:"facilityId"`
	ReadingID  string    `json:"reading_id" bson:"readingId"`
	Parameter  string    `json:"parameter" bson:"parameter"`
	Location   string    `json:"location" bson:"location"`
	Value      float64   `json:"value" bson:"value"`
	Threshold  float64   `json:"threshold" bson:"threshold"`
	Severity   string    `json:"severity" bson:"severity"`
	Status     string    `json:"status" bson:"status"`
	Rule       string    `json:"rule" bson:"rule"`
	Message    string    `json:"message" bson:"message"`
	CreatedAt  time.Time `json:"created_at" bson:"createdAt"`
}

// BufferStats is the read-only diagnostic snapshot of the ingest buffer.
type BufferStats struct {
	Total    int64          `json:"total"`
	Merged   int64          `json:"merged"`
	Unmerged int64          `json:"unmerged"`
	BySide   map[Side]int64 `json:"by_side"`
}
