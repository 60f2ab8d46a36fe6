package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/iacops/driftgate/internal/platform"
	"github.com/iacops/driftgate/internal/schema"
)

// mockProvider is a test double for Provider. Entries in responses are
// returned in order; an entry beginning with "ERR:" is returned as an error.
type mockProvider struct {
	responses []string
	calls     int
	lastUser  string
}

func (m *mockProvider) Complete(_ context.Context, _, user string, _ int, _ float64) (string, error) {
	m.lastUser = user
	idx := m.calls
	m.calls++
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	r := m.responses[idx]
	if strings.HasPrefix(r, "ERR:") {
		return "", errors.New(strings.TrimPrefix(r, "ERR:"))
	}
	return r, nil
}

// installMock replaces the provider factory for the test's lifetime.
func installMock(t *testing.T, m *mockProvider) {
	t.Helper()
	orig := NewProvider
	origDelay := RetryDelay
	NewProvider = func(_, _ string) (Provider, error) { return m, nil }
	RetryDelay = 0
	t.Cleanup(func() {
		NewProvider = orig
		RetryDelay = origDelay
	})
}

func validCIResponse() string {
	a := schema.Analysis{
		Resources: []schema.ResourceChange{{
			Name:            "stacct01",
			Type:            "Microsoft.Storage/storageAccounts",
			Action:          schema.ActionCreate,
			Summary:         "New storage account",
			RiskLevel:       schema.RiskLow,
			ConfidenceLevel: schema.ConfidenceHigh,
		}},
		OverallSummary: "1 resource created.",
		RiskAssessment: &schema.RiskAssessment{
			Drift:      schema.RiskBucket{RiskLevel: schema.RiskLow, Concerns: []string{}, Reasoning: "matches diff"},
			Operations: schema.RiskBucket{RiskLevel: schema.RiskLow, Concerns: []string{}, Reasoning: "additive"},
		},
	}
	b, _ := json.Marshal(a)
	return string(b)
}

func TestAssess_ValidResponse(t *testing.T) {
	m := &mockProvider{responses: []string{validCIResponse()}}
	installMock(t, m)

	a, err := Assess(context.Background(), Request{WhatIfText: "Resource changes: 1"}, Options{CIMode: true})
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if len(a.Resources) != 1 || a.Resources[0].Name != "stacct01" {
		t.Errorf("Resources = %+v, want one stacct01 entry", a.Resources)
	}
	if m.calls != 1 {
		t.Errorf("provider calls = %d, want 1", m.calls)
	}
}

func TestAssess_RetriesExactlyOnce(t *testing.T) {
	m := &mockProvider{responses: []string{"ERR:connection reset", validCIResponse()}}
	installMock(t, m)

	if _, err := Assess(context.Background(), Request{}, Options{CIMode: true}); err != nil {
		t.Fatalf("Assess after one transient failure: %v", err)
	}
	if m.calls != 2 {
		t.Errorf("provider calls = %d, want 2 (one retry)", m.calls)
	}
}

func TestAssess_SecondFailureIsFatal(t *testing.T) {
	m := &mockProvider{responses: []string{"ERR:down", "ERR:still down"}}
	installMock(t, m)

	_, err := Assess(context.Background(), Request{}, Options{CIMode: true})
	if err == nil {
		t.Fatal("Assess = nil error after two failures, want error")
	}
	if m.calls != 2 {
		t.Errorf("provider calls = %d, want 2 (no second retry)", m.calls)
	}
}

func TestParseResponse_FencedJSON(t *testing.T) {
	raw := "```json\n" + validCIResponse() + "\n```"
	a, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse(fenced): %v", err)
	}
	if a.OverallSummary != "1 resource created." {
		t.Errorf("OverallSummary = %q", a.OverallSummary)
	}
}

func TestParseResponse_JSONEmbeddedInProse(t *testing.T) {
	raw := "Here is my assessment:\n" + validCIResponse() + "\nLet me know if you need more."
	if _, err := ParseResponse(raw); err != nil {
		t.Fatalf("ParseResponse(embedded): %v", err)
	}
}

func TestParseResponse_BracesInsideStrings(t *testing.T) {
	raw := `{"resources": [], "overall_summary": "uses {placeholders} and \"quotes\" safely"}`
	a, err := ParseResponse("noise before " + raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if !strings.Contains(a.OverallSummary, "{placeholders}") {
		t.Errorf("OverallSummary = %q", a.OverallSummary)
	}
}

func TestParseResponse_NoJSON(t *testing.T) {
	_, err := ParseResponse("I could not produce a structured answer.")
	if !errors.Is(err, ErrInvalidOracleOutput) {
		t.Errorf("err = %v, want ErrInvalidOracleOutput", err)
	}
}

func TestParseResponse_MissingFieldsDegrade(t *testing.T) {
	a, err := ParseResponse(`{"something_else": 1}`)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if a.Resources == nil || len(a.Resources) != 0 {
		t.Errorf("Resources = %+v, want empty non-nil list", a.Resources)
	}
	if a.OverallSummary == "" {
		t.Error("OverallSummary empty, want placeholder")
	}
}

func TestReassess_PromptCarriesSignalOnly(t *testing.T) {
	m := &mockProvider{responses: []string{validCIResponse()}}
	installMock(t, m)

	signal := []schema.ResourceChange{
		{Name: "kept", Action: schema.ActionModify, ConfidenceLevel: schema.ConfidenceHigh},
	}
	req := Request{
		DiffText: "diff --git a/main.bicep b/main.bicep",
		Platform: platform.Context{PRTitle: "Scale out app plan"},
	}
	if _, err := Reassess(context.Background(), req, signal, Options{CIMode: true}); err != nil {
		t.Fatalf("Reassess: %v", err)
	}
	if !strings.Contains(m.lastUser, `"kept"`) {
		t.Error("corrective prompt does not contain the signal change")
	}
	if strings.Contains(m.lastUser, "whatif_output") {
		t.Error("corrective prompt still carries raw what-if text")
	}
	if !strings.Contains(m.lastUser, "Scale out app plan") {
		t.Error("corrective prompt lost the PR context")
	}
	if !strings.Contains(m.lastUser, "code_diff") {
		t.Error("corrective prompt lost the diff context")
	}
}

func TestBuildSystemPrompt_IntentSection(t *testing.T) {
	withPR := buildCISystemPrompt(platform.Context{PRTitle: "Add VNet"})
	if !strings.Contains(withPR, "Intent Analysis") {
		t.Error("CI prompt with PR metadata lacks intent instructions")
	}
	withoutPR := buildCISystemPrompt(platform.Context{})
	if strings.Contains(withoutPR, "Intent Analysis") {
		t.Error("CI prompt without PR metadata still has intent instructions")
	}
	if !strings.Contains(withoutPR, "Omit the \"intent\" key") {
		t.Error("CI prompt without PR metadata does not tell the model to omit the intent bucket")
	}
}

func TestDefaultNewProvider_Unknown(t *testing.T) {
	if _, err := defaultNewProvider("cohere", ""); err == nil {
		t.Error("defaultNewProvider(\"cohere\") = nil error, want error")
	}
}

func TestDefaultNewProvider_MissingKey(t *testing.T) {
	orig := lookupEnv
	lookupEnv = func(string) string { return "" }
	t.Cleanup(func() { lookupEnv = orig })

	for _, name := range []string{"anthropic", "openai", "google"} {
		if _, err := defaultNewProvider(name, ""); err == nil {
			t.Errorf("defaultNewProvider(%q) with no API key = nil error, want error", name)
		}
	}
}
