package schema

import (
	"encoding/json"
	"testing"
)

func TestRiskOrdinal_StrictOrder(t *testing.T) {
	scale := []RiskLevel{RiskNone, RiskLow, RiskMedium, RiskHigh, RiskCritical}
	for i := 1; i < len(scale); i++ {
		if RiskOrdinal(scale[i-1]) >= RiskOrdinal(scale[i]) {
			t.Errorf("RiskOrdinal(%q) >= RiskOrdinal(%q): not strictly ascending",
				scale[i-1], scale[i])
		}
	}
	if got := RiskOrdinal(RiskLevel("extreme")); got != -1 {
		t.Errorf("RiskOrdinal(unknown) = %d, want -1", got)
	}
}

func TestParseRiskLevel(t *testing.T) {
	for _, s := range []string{"none", "low", "medium", "high", "critical"} {
		if _, err := ParseRiskLevel(s); err != nil {
			t.Errorf("ParseRiskLevel(%q) returned error: %v", s, err)
		}
	}
	if _, err := ParseRiskLevel("Low"); err == nil {
		t.Error("ParseRiskLevel(\"Low\") = nil error, want error (values are lowercase)")
	}
}

func TestNormalizeRiskLevel(t *testing.T) {
	cases := []struct {
		in   string
		want RiskLevel
	}{
		{"high", RiskHigh},
		{"none", RiskNone},
		{"severe", RiskLow},
		{"", RiskLow},
	}
	for _, c := range cases {
		if got := NormalizeRiskLevel(c.in); got != c.want {
			t.Errorf("NormalizeRiskLevel(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseAction(t *testing.T) {
	for _, s := range []string{"Create", "Modify", "Delete", "Deploy", "NoChange", "Ignore"} {
		if _, err := ParseAction(s); err != nil {
			t.Errorf("ParseAction(%q) returned error: %v", s, err)
		}
	}
	if _, err := ParseAction("Destroy"); err == nil {
		t.Error("ParseAction(\"Destroy\") = nil error, want error")
	}
}

func TestEffectiveConfidence_DefaultsToMedium(t *testing.T) {
	cases := []struct {
		in   Confidence
		want Confidence
	}{
		{ConfidenceLow, ConfidenceLow},
		{ConfidenceMedium, ConfidenceMedium},
		{ConfidenceHigh, ConfidenceHigh},
		{"", ConfidenceMedium},
		{"certain", ConfidenceMedium},
	}
	for _, c := range cases {
		if got := EffectiveConfidence(c.in); got != c.want {
			t.Errorf("EffectiveConfidence(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestAnalysis_IntentAbsenceIsStructural(t *testing.T) {
	// An assessment without an intent bucket must decode with Intent == nil,
	// not a zero-valued bucket.
	raw := `{
		"resources": [],
		"overall_summary": "no changes",
		"risk_assessment": {
			"drift": {"risk_level": "low", "concerns": [], "reasoning": "diff matches"},
			"operations": {"risk_level": "low", "concerns": [], "reasoning": "additive only"}
		}
	}`
	var a Analysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.RiskAssessment == nil {
		t.Fatal("RiskAssessment is nil")
	}
	if a.RiskAssessment.Intent != nil {
		t.Errorf("Intent = %+v, want nil when absent from the response", a.RiskAssessment.Intent)
	}
	if a.RiskAssessment.Drift.RiskLevel != RiskLow {
		t.Errorf("Drift.RiskLevel = %q, want low", a.RiskAssessment.Drift.RiskLevel)
	}
}
