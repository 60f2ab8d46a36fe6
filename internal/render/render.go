// Package render produces output from a fully assembled schema.Report.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/iacops/driftgate/internal/schema"
)

// actionGlyphs decorate actions in markdown and table output.
var actionGlyphs = map[schema.Action]string{
	schema.ActionCreate:   "✅",
	schema.ActionModify:   "✏️",
	schema.ActionDelete:   "❌",
	schema.ActionDeploy:   "🔄",
	schema.ActionNoChange: "➖",
	schema.ActionIgnore:   "⬜",
}

// riskGlyphs decorate risk levels in markdown and table output.
var riskGlyphs = map[schema.RiskLevel]string{
	schema.RiskNone:     "⚪",
	schema.RiskLow:      "🟢",
	schema.RiskMedium:   "🟡",
	schema.RiskHigh:     "🔴",
	schema.RiskCritical: "🛑",
}

// RenderJSON produces a pretty-printed JSON representation of the report.
func RenderJSON(report *schema.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("render: nil report")
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// RenderMarkdown produces a GitHub-flavoured Markdown summary of the report,
// suitable for PR comments or terminal output.
func RenderMarkdown(report *schema.Report) string {
	if report == nil {
		return ""
	}
	var sb strings.Builder

	sb.WriteString("## Deployment Risk Report\n\n")

	if report.Verdict != nil {
		v := report.Verdict
		status := "🔴 BLOCKED"
		if v.Safe {
			status = "🟢 SAFE TO DEPLOY"
		}
		fmt.Fprintf(&sb, "**Gate:** %s  \n", status)
		fmt.Fprintf(&sb, "**Highest risk bucket:** %s (%s)  \n", v.HighestRiskBucket, v.OverallRiskLevel)
		fmt.Fprintf(&sb, "**Reasoning:** %s\n\n", mdEscape(v.Reasoning))
	}

	if report.RiskAssessment != nil {
		sb.WriteString("## Risk Buckets\n\n")
		sb.WriteString("| Bucket | Risk | Status | Key Concerns |\n")
		sb.WriteString("|---|---|---|---|\n")
		failed := map[schema.BucketName]bool{}
		for _, name := range report.FailedBuckets {
			failed[name] = true
		}
		writeBucketRow(&sb, schema.BucketDrift, &report.RiskAssessment.Drift, failed)
		writeBucketRow(&sb, schema.BucketIntent, report.RiskAssessment.Intent, failed)
		writeBucketRow(&sb, schema.BucketOperations, &report.RiskAssessment.Operations, failed)
		sb.WriteString("\n")
	}

	if len(report.Resources) > 0 {
		sb.WriteString("## Resource Changes\n\n")
		sb.WriteString("| Resource | Type | Action | Risk | Summary |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, r := range report.Resources {
			fmt.Fprintf(&sb, "| %s | %s | %s %s | %s %s | %s |\n",
				mdEscape(r.Name), mdEscape(r.Type),
				actionGlyphs[r.Action], r.Action,
				riskGlyphs[r.RiskLevel], r.RiskLevel,
				mdEscape(r.Summary))
		}
		sb.WriteString("\n")
	}

	if len(report.Noise) > 0 {
		fmt.Fprintf(&sb, "<details>\n<summary>%d low-confidence change(s) filtered as noise</summary>\n\n", len(report.Noise))
		for _, r := range report.Noise {
			reason := r.ConfidenceReason
			if reason == "" {
				reason = "no reason given"
			}
			fmt.Fprintf(&sb, "- `%s` (%s): %s\n", r.Name, r.Action, mdEscape(reason))
		}
		sb.WriteString("\n</details>\n\n")
	}

	if report.OverallSummary != "" {
		fmt.Fprintf(&sb, "**Summary:** %s\n", mdEscape(report.OverallSummary))
	}
	if report.Reassessed {
		sb.WriteString("\n_Risk buckets were re-assessed after noise filtering._\n")
	}

	return sb.String()
}

// writeBucketRow renders one bucket table row; nil buckets (intent without
// PR metadata) are skipped entirely rather than shown as skipped.
func writeBucketRow(sb *strings.Builder, name schema.BucketName, b *schema.RiskBucket, failed map[schema.BucketName]bool) {
	if b == nil {
		return
	}
	status := "✅ pass"
	if failed[name] {
		status = "❌ fail"
	}
	concern := "None"
	if len(b.Concerns) > 0 {
		concern = mdEscape(b.Concerns[0])
	}
	fmt.Fprintf(sb, "| %s | %s %s | %s | %s |\n",
		name, riskGlyphs[schema.NormalizeRiskLevel(string(b.RiskLevel))], b.RiskLevel, status, concern)
}

// TableOptions controls terminal table rendering.
type TableOptions struct {
	// NoColor suppresses the action and risk glyphs.
	NoColor bool
}

// RenderTable writes a plain-text table of the report to w for terminal use.
func RenderTable(w io.Writer, report *schema.Report, opts TableOptions) {
	if report == nil {
		return
	}
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tRESOURCE\tTYPE\tACTION\tRISK\tSUMMARY")
	for i, r := range report.Resources {
		action := string(r.Action)
		risk := string(r.RiskLevel)
		if !opts.NoColor {
			action = actionGlyphs[r.Action] + " " + action
			if r.RiskLevel != "" {
				risk = riskGlyphs[schema.NormalizeRiskLevel(string(r.RiskLevel))] + " " + risk
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, r.Name, r.Type, action, risk, r.Summary)
	}
	tw.Flush()

	if report.OverallSummary != "" {
		fmt.Fprintf(w, "\nSummary: %s\n", report.OverallSummary)
	}
	if report.RiskAssessment != nil && report.Verdict != nil {
		v := report.Verdict
		fmt.Fprintf(w, "\nGate: safe=%v highest=%s overall=%s\n", v.Safe, v.HighestRiskBucket, v.OverallRiskLevel)
		fmt.Fprintf(w, "Reasoning: %s\n", v.Reasoning)
	}
	if len(report.Noise) > 0 {
		fmt.Fprintf(w, "\n%d low-confidence change(s) filtered as noise.\n", len(report.Noise))
	}
}

// mdEscape replaces characters that would break Markdown table cells.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
