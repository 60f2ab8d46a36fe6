// Package schema defines all canonical data types for the driftgate analysis
// and gating output format.
package schema

import "fmt"

// Action represents the change action reported for a single resource.
type Action string

const (
	ActionCreate   Action = "Create"
	ActionModify   Action = "Modify"
	ActionDelete   Action = "Delete"
	ActionDeploy   Action = "Deploy"
	ActionNoChange Action = "NoChange"
	ActionIgnore   Action = "Ignore"
)

// ParseAction converts a string to an Action constant.
// Returns an error for unrecognized values.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionCreate, ActionModify, ActionDelete,
		ActionDeploy, ActionNoChange, ActionIgnore:
		return Action(s), nil
	}
	return "", fmt.Errorf("schema: unknown action %q", s)
}

// RiskLevel is the ordinal risk scale used for per-resource risk, bucket
// risk, and gate thresholds. The total order is
// none < low < medium < high < critical.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskOrdinal returns the numeric ordinal for a risk level, used for
// threshold comparison. none=0, low=1, medium=2, high=3, critical=4.
// Unrecognized values return -1.
func RiskOrdinal(r RiskLevel) int {
	switch r {
	case RiskNone:
		return 0
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return -1
	}
}

// ParseRiskLevel converts a string to a RiskLevel constant.
// Returns an error for unrecognized values.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch RiskLevel(s) {
	case RiskNone, RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return RiskLevel(s), nil
	}
	return "", fmt.Errorf("schema: unknown risk level %q", s)
}

// NormalizeRiskLevel returns the risk level if it is recognized and RiskLow
// otherwise. Oracle output occasionally contains values outside the scale;
// the gate treats those as low rather than failing the whole run.
func NormalizeRiskLevel(s string) RiskLevel {
	if r, err := ParseRiskLevel(s); err == nil {
		return r
	}
	return RiskLow
}

// Confidence represents the per-change likelihood that a reported change is a
// real modification rather than a comparison artifact.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// EffectiveConfidence returns the confidence to use for partitioning.
// An absent or unrecognized value is treated as medium so that unclassified
// changes stay in scope instead of being discarded as noise.
func EffectiveConfidence(c Confidence) Confidence {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return c
	}
	return ConfidenceMedium
}

// ResourceChange is one reported infrastructure change. Changes are created
// once from the oracle response and never mutated; re-assessment produces a
// wholly new list.
type ResourceChange struct {
	Name             string     `json:"resource_name"`
	Type             string     `json:"resource_type"`
	Action           Action     `json:"action"`
	Summary          string     `json:"summary"`
	RiskLevel        RiskLevel  `json:"risk_level,omitempty"`
	RiskReason       string     `json:"risk_reason,omitempty"`
	ConfidenceLevel  Confidence `json:"confidence_level,omitempty"`
	ConfidenceReason string     `json:"confidence_reason,omitempty"`
}

// BucketName identifies one gate risk category.
type BucketName string

const (
	BucketDrift      BucketName = "drift"
	BucketIntent     BucketName = "intent"
	BucketOperations BucketName = "operations"
	// BucketNone is used for Verdict.HighestRiskBucket when every evaluated
	// bucket sits at the bottom of the scale.
	BucketNone BucketName = "none"
)

// BucketPriority is the fixed priority order used for reporting and
// tie-breaking: drift before intent before operations.
var BucketPriority = []BucketName{BucketDrift, BucketIntent, BucketOperations}

// RiskBucket is one assessed risk category.
type RiskBucket struct {
	RiskLevel RiskLevel `json:"risk_level"`
	Concerns  []string  `json:"concerns"`
	Reasoning string    `json:"reasoning"`
}

// RiskAssessment holds the per-bucket assessment from a CI-mode oracle call.
// Intent is nil when no pull-request metadata was available; a nil bucket is
// structurally distinct from a low-risk evaluation and is never gated on.
type RiskAssessment struct {
	Drift      RiskBucket  `json:"drift"`
	Intent     *RiskBucket `json:"intent,omitempty"`
	Operations RiskBucket  `json:"operations"`
}

// OracleVerdict is the oracle's self-reported verdict. It is informational
// only: the gate verdict is always recomputed locally (see Verdict).
type OracleVerdict struct {
	Safe            bool      `json:"safe"`
	RiskLevel       RiskLevel `json:"risk_level,omitempty"`
	Reasoning       string    `json:"reasoning,omitempty"`
	Concerns        []string  `json:"concerns,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
}

// Analysis is the structured oracle response for one assessment call.
type Analysis struct {
	Resources      []ResourceChange `json:"resources"`
	OverallSummary string           `json:"overall_summary"`
	RiskAssessment *RiskAssessment  `json:"risk_assessment,omitempty"`
	OracleVerdict  *OracleVerdict   `json:"verdict,omitempty"`
}

// Verdict is the authoritative gate decision, derived locally from bucket
// outcomes and never copied from the oracle's self-reported verdict.
type Verdict struct {
	Safe              bool       `json:"safe"`
	HighestRiskBucket BucketName `json:"highest_risk_bucket"`
	OverallRiskLevel  RiskLevel  `json:"overall_risk_level"`
	Reasoning         string     `json:"reasoning"`
}

// Report is the top-level output document for a run.
type Report struct {
	Tool           string           `json:"tool"`
	Version        string           `json:"version"`
	Resources      []ResourceChange `json:"resources"`
	Noise          []ResourceChange `json:"noise,omitempty"`
	OverallSummary string           `json:"overall_summary"`
	RiskAssessment *RiskAssessment  `json:"risk_assessment,omitempty"`
	FailedBuckets  []BucketName     `json:"failed_buckets,omitempty"`
	Verdict        *Verdict         `json:"verdict,omitempty"`
	Reassessed     bool             `json:"reassessed"`
}
