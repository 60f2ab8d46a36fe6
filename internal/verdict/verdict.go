// Package verdict provides deterministic local logic for the aggregate gate
// decision. The verdict is always recomputed from bucket outcomes; the
// oracle's self-reported verdict is never consulted. No LLM calls are made
// here.
package verdict

import (
	"fmt"
	"strings"

	"github.com/iacops/driftgate/internal/schema"
)

// noElevatedRisk is the reasoning used when no bucket meets its threshold.
const noElevatedRisk = "No risk bucket met its configured threshold; no elevated deployment risk detected."

// Aggregate combines bucket outcomes into the authoritative Verdict.
//
// Rules:
//  1. safe is true exactly when failing is empty.
//  2. highest_risk_bucket is the evaluated bucket with the ordinally
//     greatest risk level; ties break in fixed priority order
//     drift > intent > operations. When every evaluated bucket sits at the
//     bottom of the scale the result is none.
//  3. overall_risk_level is the highest bucket's level, or the lowest scale
//     value when highest_risk_bucket is none.
//  4. reasoning joins the reasoning of failing buckets, falling back to a
//     generic no-elevated-risk message.
func Aggregate(assessment *schema.RiskAssessment, failing []schema.BucketName) schema.Verdict {
	v := schema.Verdict{
		Safe:              len(failing) == 0,
		HighestRiskBucket: schema.BucketNone,
		OverallRiskLevel:  schema.RiskNone,
	}
	if assessment == nil {
		v.Reasoning = noElevatedRisk
		return v
	}

	// Highest evaluated bucket, priority order breaking ties. A strict
	// greater-than comparison keeps the earlier (higher priority) bucket on
	// equal levels.
	best := schema.BucketNone
	bestOrd := schema.RiskOrdinal(schema.RiskNone)
	for _, name := range schema.BucketPriority {
		b, ok := lookup(assessment, name)
		if !ok {
			continue
		}
		ord := schema.RiskOrdinal(schema.NormalizeRiskLevel(string(b.RiskLevel)))
		if ord > bestOrd {
			best = name
			bestOrd = ord
		}
	}
	if best != schema.BucketNone {
		v.HighestRiskBucket = best
		b, _ := lookup(assessment, best)
		v.OverallRiskLevel = schema.NormalizeRiskLevel(string(b.RiskLevel))
	}

	v.Reasoning = reasoning(assessment, failing)
	return v
}

// lookup returns the named bucket from the assessment. The second return is
// false for the intent bucket when it was not evaluated.
func lookup(a *schema.RiskAssessment, name schema.BucketName) (schema.RiskBucket, bool) {
	switch name {
	case schema.BucketDrift:
		return a.Drift, true
	case schema.BucketIntent:
		if a.Intent == nil {
			return schema.RiskBucket{}, false
		}
		return *a.Intent, true
	case schema.BucketOperations:
		return a.Operations, true
	}
	return schema.RiskBucket{}, false
}

// reasoning builds the verdict explanation from failing buckets.
func reasoning(a *schema.RiskAssessment, failing []schema.BucketName) string {
	if len(failing) == 0 {
		return noElevatedRisk
	}
	parts := make([]string, 0, len(failing))
	for _, name := range failing {
		b, ok := lookup(a, name)
		if !ok {
			continue
		}
		if b.Reasoning != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", name, b.Reasoning))
		} else {
			parts = append(parts, fmt.Sprintf("%s risk %s met its threshold", name, b.RiskLevel))
		}
	}
	return strings.Join(parts, " ")
}
