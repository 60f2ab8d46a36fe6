package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iacops/driftgate/internal/schema"
)

func sampleReport() *schema.Report {
	intent := schema.RiskBucket{
		RiskLevel: schema.RiskMedium,
		Concerns:  []string{"sku change not mentioned in PR"},
		Reasoning: "partially aligned with stated purpose",
	}
	return &schema.Report{
		Tool:    "driftgate",
		Version: "0.1.0",
		Resources: []schema.ResourceChange{
			{
				Name:            "stacct01",
				Type:            "Storage Account",
				Action:          schema.ActionCreate,
				Summary:         "New storage account for diagnostics",
				RiskLevel:       schema.RiskLow,
				ConfidenceLevel: schema.ConfidenceHigh,
			},
			{
				Name:            "kv-prod",
				Type:            "Key Vault",
				Action:          schema.ActionDelete,
				Summary:         "Deletes the production key vault",
				RiskLevel:       schema.RiskCritical,
				RiskReason:      "stateful resource deletion",
				ConfidenceLevel: schema.ConfidenceHigh,
			},
		},
		Noise: []schema.ResourceChange{
			{
				Name:             "vnet-main",
				Action:           schema.ActionModify,
				ConfidenceLevel:  schema.ConfidenceLow,
				ConfidenceReason: "property reorder artifact",
			},
		},
		OverallSummary: "1 create, 1 delete.",
		RiskAssessment: &schema.RiskAssessment{
			Drift:      schema.RiskBucket{RiskLevel: schema.RiskLow, Concerns: []string{}, Reasoning: "diff matches"},
			Intent:     &intent,
			Operations: schema.RiskBucket{RiskLevel: schema.RiskHigh, Concerns: []string{"key vault deletion"}, Reasoning: "destructive action"},
		},
		FailedBuckets: []schema.BucketName{schema.BucketOperations},
		Verdict: &schema.Verdict{
			Safe:              false,
			HighestRiskBucket: schema.BucketOperations,
			OverallRiskLevel:  schema.RiskHigh,
			Reasoning:         "operations: destructive action",
		},
		Reassessed: true,
	}
}

func TestRenderJSON_RoundTrip(t *testing.T) {
	report := sampleReport()
	b, err := RenderJSON(report)
	if err != nil {
		t.Fatalf("RenderJSON error: %v", err)
	}
	var got schema.Report
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	if got.Verdict == nil || got.Verdict.Safe != report.Verdict.Safe {
		t.Errorf("verdict mismatch after round trip: %+v", got.Verdict)
	}
	if len(got.Resources) != len(report.Resources) {
		t.Errorf("resource count mismatch: got %d, want %d", len(got.Resources), len(report.Resources))
	}
	if len(got.Noise) != 1 {
		t.Errorf("noise count mismatch: got %d, want 1", len(got.Noise))
	}
}

func TestRenderJSON_NilReport(t *testing.T) {
	if _, err := RenderJSON(nil); err == nil {
		t.Error("RenderJSON(nil) = nil error, want error")
	}
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(sampleReport())

	for _, want := range []string{
		"🔴 BLOCKED",
		"| drift |",
		"| intent |",
		"| operations |",
		"❌ fail",
		"kv-prod",
		"low-confidence change(s) filtered as noise",
		"re-assessed after noise filtering",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderMarkdown_AbsentIntentNotRendered(t *testing.T) {
	report := sampleReport()
	report.RiskAssessment.Intent = nil
	md := RenderMarkdown(report)
	if strings.Contains(md, "| intent |") {
		t.Error("absent intent bucket rendered in bucket table")
	}
}

func TestRenderMarkdown_EscapesPipes(t *testing.T) {
	report := sampleReport()
	report.Resources[0].Summary = "uses a|b syntax"
	md := RenderMarkdown(report)
	if !strings.Contains(md, `a\|b`) {
		t.Error("pipe in summary not escaped for table cell")
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, sampleReport(), TableOptions{})
	out := buf.String()
	for _, want := range []string{"stacct01", "kv-prod", "Gate: safe=false", "filtered as noise"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q", want)
		}
	}
}

func TestRenderTable_NoColor(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, sampleReport(), TableOptions{NoColor: true})
	if out := buf.String(); strings.Contains(out, "🔴") || strings.Contains(out, "✅") {
		t.Error("glyphs present in no-color output")
	}
}
