// Package confidence splits reported resource changes into signal and noise
// based on the per-change confidence label. No LLM calls are made here.
package confidence

import (
	"github.com/iacops/driftgate/internal/schema"
)

// Partition is the result of splitting a change list by confidence.
// Signal and Noise are disjoint and their union is the input list, each
// element exactly once, in input order.
type Partition struct {
	Signal []schema.ResourceChange
	Noise  []schema.ResourceChange
}

// HasNoise reports whether any change was classified as noise. When true,
// bucket results computed over the unfiltered list are stale and must not be
// reported as final.
func (p Partition) HasNoise() bool {
	return len(p.Noise) > 0
}

// Split partitions changes by confidence. Noise is exactly the changes with
// low confidence; medium and high both land in Signal. An absent or
// unrecognized confidence counts as medium, so unclassified changes are kept
// in scope rather than silently dropped.
func Split(changes []schema.ResourceChange) Partition {
	p := Partition{
		Signal: make([]schema.ResourceChange, 0, len(changes)),
		Noise:  make([]schema.ResourceChange, 0),
	}
	for _, c := range changes {
		if schema.EffectiveConfidence(c.ConfidenceLevel) == schema.ConfidenceLow {
			p.Noise = append(p.Noise, c)
		} else {
			p.Signal = append(p.Signal, c)
		}
	}
	return p
}
