// Package riskbucket provides deterministic local logic for threshold
// evaluation of assessed risk buckets. Risk judgment itself comes from the
// assessment oracle; this package only compares levels. No LLM calls are
// made here.
package riskbucket

import (
	"fmt"

	"github.com/iacops/driftgate/internal/schema"
)

// Thresholds holds the per-bucket gate thresholds. Each bucket fails when
// its assessed risk level is ordinally greater than or equal to its
// threshold.
type Thresholds struct {
	Drift      schema.RiskLevel
	Intent     schema.RiskLevel
	Operations schema.RiskLevel
}

// DefaultThresholds returns the default gate configuration: high for every
// bucket.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Drift:      schema.RiskHigh,
		Intent:     schema.RiskHigh,
		Operations: schema.RiskHigh,
	}
}

// Validate rejects threshold values outside low|medium|high. The full risk
// scale includes none and critical, but a threshold of none would fail every
// deployment and critical comes only from per-resource classification, so
// neither is accepted as a gate setting. Called at configuration time,
// before any oracle call.
func (t Thresholds) Validate() error {
	for _, b := range []struct {
		name  schema.BucketName
		level schema.RiskLevel
	}{
		{schema.BucketDrift, t.Drift},
		{schema.BucketIntent, t.Intent},
		{schema.BucketOperations, t.Operations},
	} {
		switch b.level {
		case schema.RiskLow, schema.RiskMedium, schema.RiskHigh:
			// valid
		default:
			return fmt.Errorf("riskbucket: invalid %s threshold %q (valid: low, medium, high)",
				b.name, b.level)
		}
	}
	return nil
}

// Exceeds reports whether risk meets or exceeds threshold on the ordinal
// scale.
func Exceeds(risk, threshold schema.RiskLevel) bool {
	return schema.RiskOrdinal(risk) >= schema.RiskOrdinal(threshold)
}

// Evaluate compares each assessed bucket against its threshold and returns
// the names of failing buckets in fixed priority order (drift, intent,
// operations). A nil assessment is treated as all-clear: the oracle did not
// produce bucket data, and there is nothing to gate on. The intent bucket is
// gated on hasIntent — whether pull-request metadata existed for this run —
// not on the oracle's output: an intent bucket the oracle volunteered
// without metadata can never appear in the failing list.
func Evaluate(assessment *schema.RiskAssessment, hasIntent bool, thresholds Thresholds) []schema.BucketName {
	var failing []schema.BucketName
	if assessment == nil {
		return failing
	}

	if Exceeds(schema.NormalizeRiskLevel(string(assessment.Drift.RiskLevel)), thresholds.Drift) {
		failing = append(failing, schema.BucketDrift)
	}
	if hasIntent && assessment.Intent != nil {
		if Exceeds(schema.NormalizeRiskLevel(string(assessment.Intent.RiskLevel)), thresholds.Intent) {
			failing = append(failing, schema.BucketIntent)
		}
	}
	if Exceeds(schema.NormalizeRiskLevel(string(assessment.Operations.RiskLevel)), thresholds.Operations) {
		failing = append(failing, schema.BucketOperations)
	}
	return failing
}
