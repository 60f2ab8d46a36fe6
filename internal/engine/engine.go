// Package engine runs the single sequential assessment pipeline: one oracle
// pass, confidence partitioning, at most one corrective pass, threshold
// evaluation, and the aggregate verdict. The resolved platform context is
// built by the caller and threaded through unchanged.
package engine

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/iacops/driftgate/internal/config"
	"github.com/iacops/driftgate/internal/oracle"
	"github.com/iacops/driftgate/internal/platform"
	"github.com/iacops/driftgate/internal/reeval"
	"github.com/iacops/driftgate/internal/riskbucket"
	"github.com/iacops/driftgate/internal/schema"
	"github.com/iacops/driftgate/internal/verdict"
)

var logger = log.WithField("package", "engine")

// Tool and Version identify the report producer.
const (
	Tool    = "driftgate"
	Version = "0.1.0"
)

// Exit codes. Code 2 (input validation) is assigned by the CLI layer before
// the engine runs.
const (
	ExitSafe   = 0
	ExitUnsafe = 1
)

// Result is the outcome of one pipeline run.
type Result struct {
	Report   *schema.Report
	ExitCode int
}

// Params carries everything a run needs.
type Params struct {
	Config   config.Config
	Platform platform.Context
	WhatIf   string
	Diff     string
	Sources  string
}

// Run executes the pipeline. A returned error means the run aborted with no
// usable report (first-pass oracle failure); a fail-closed corrective
// failure instead returns a Result with an unsafe verdict.
func Run(ctx context.Context, p Params) (Result, error) {
	opts := oracle.Options{
		Provider:    p.Config.Provider,
		Model:       p.Config.Model,
		MaxTokens:   4096,
		Temperature: 0,
		Verbose:     p.Config.Verbose,
		CIMode:      p.Config.CIMode,
	}
	req := oracle.Request{
		WhatIfText: p.WhatIf,
		DiffText:   p.Diff,
		SourceText: p.Sources,
		Platform:   p.Platform,
	}

	first, err := oracle.Assess(ctx, req, opts)
	if err != nil {
		return Result{}, fmt.Errorf("engine: assessment failed: %w", err)
	}

	if !p.Config.CIMode {
		return Result{
			Report: &schema.Report{
				Tool:           Tool,
				Version:        Version,
				Resources:      first.Resources,
				OverallSummary: first.OverallSummary,
			},
			ExitCode: ExitSafe,
		}, nil
	}

	out, err := reeval.Resolve(ctx, first, req, opts)
	if errors.Is(err, reeval.ErrReassessFailed) {
		// Fail closed: the stale first-pass buckets are discarded and the
		// run reports unsafe with the failure as its reasoning.
		logger.WithField("error", err).Error("corrective re-assessment failed; failing closed")
		return Result{
			Report: &schema.Report{
				Tool:           Tool,
				Version:        Version,
				Resources:      out.Partition.Signal,
				Noise:          out.Partition.Noise,
				OverallSummary: first.OverallSummary,
				Reassessed:     true,
				Verdict: &schema.Verdict{
					Safe:              false,
					HighestRiskBucket: schema.BucketNone,
					OverallRiskLevel:  schema.RiskNone,
					Reasoning: "Corrective re-assessment after noise filtering failed; " +
						"blocking deployment because the prior assessment covered a noise-contaminated change set: " +
						err.Error(),
				},
			},
			ExitCode: ExitUnsafe,
		}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("engine: %w", err)
	}

	final := out.Analysis
	hasIntent := p.Platform.HasPRMetadata()
	if final.RiskAssessment == nil {
		logger.Warn("oracle response missing risk_assessment; assuming safe")
		final.RiskAssessment = &schema.RiskAssessment{
			Drift:      schema.RiskBucket{RiskLevel: schema.RiskLow, Concerns: []string{}, Reasoning: "No risk assessment provided"},
			Operations: schema.RiskBucket{RiskLevel: schema.RiskLow, Concerns: []string{}, Reasoning: "No risk assessment provided"},
		}
	}
	if !hasIntent && final.RiskAssessment.Intent != nil {
		// The intent bucket exists only when PR metadata was supplied. An
		// oracle that volunteers one anyway must not widen the gate.
		logger.Warn("oracle returned an intent bucket without pull-request metadata; discarding it")
		final.RiskAssessment.Intent = nil
	}
	failing := riskbucket.Evaluate(final.RiskAssessment, hasIntent, p.Config.Thresholds)
	v := verdict.Aggregate(final.RiskAssessment, failing)

	report := &schema.Report{
		Tool:           Tool,
		Version:        Version,
		Resources:      final.Resources,
		Noise:          out.Partition.Noise,
		OverallSummary: final.OverallSummary,
		RiskAssessment: final.RiskAssessment,
		FailedBuckets:  failing,
		Verdict:        &v,
		Reassessed:     out.Reassessed,
	}

	code := ExitSafe
	if !v.Safe {
		code = ExitUnsafe
	}
	return Result{Report: report, ExitCode: code}, nil
}
