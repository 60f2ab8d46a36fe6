// Package reeval decides whether a first-pass assessment remains valid after
// confidence partitioning and drives the single corrective oracle call when
// it does not.
//
// Bucket results are only valid for the exact change set they were computed
// over. Once any change is partitioned out as noise, the first pass is stale:
// it is superseded entirely by a fresh assessment of the signal changes, or
// — if that corrective call fails — by a fail-closed error. The stale verdict
// is never reused.
package reeval

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/iacops/driftgate/internal/confidence"
	"github.com/iacops/driftgate/internal/oracle"
	"github.com/iacops/driftgate/internal/schema"
)

var logger = log.WithField("package", "reeval")

// ErrReassessFailed is returned when the corrective second pass could not
// produce a usable assessment. Callers must fail closed: report unsafe, do
// not fall back to the stale first-pass result.
var ErrReassessFailed = errors.New("reeval: corrective re-assessment failed")

// Outcome is the final assessment after at most one corrective pass.
type Outcome struct {
	// Analysis is the authoritative assessment: the first pass when no noise
	// was found, otherwise the corrective pass.
	Analysis *schema.Analysis
	// Partition is the signal/noise split of the first-pass change list.
	Partition confidence.Partition
	// Reassessed reports whether the corrective call was made.
	Reassessed bool
}

// Resolve partitions the first-pass changes and, when noise is present,
// performs exactly one corrective oracle call over the signal changes with
// the same request context. The corrective pass's own output never triggers
// a further pass, regardless of its confidence content.
func Resolve(ctx context.Context, first *schema.Analysis, req oracle.Request, opts oracle.Options) (Outcome, error) {
	part := confidence.Split(first.Resources)
	if !part.HasNoise() {
		return Outcome{Analysis: first, Partition: part}, nil
	}

	logger.WithField("noise", len(part.Noise)).WithField("signal", len(part.Signal)).
		Info("low-confidence changes filtered; re-assessing signal set")

	second, err := oracle.Reassess(ctx, req, part.Signal, opts)
	if err != nil {
		// Fail closed: the first-pass verdict was computed over
		// noise-contaminated input and must not be reported.
		return Outcome{Partition: part, Reassessed: true},
			fmt.Errorf("%w: %v", ErrReassessFailed, err)
	}

	// The corrective results supersede the first pass entirely. The noise
	// partition keeps the first-pass split since that is what triggered the
	// corrective call.
	return Outcome{Analysis: second, Partition: part, Reassessed: true}, nil
}
