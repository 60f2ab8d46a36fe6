package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iacops/driftgate/internal/platform"
	"github.com/iacops/driftgate/internal/schema"
)

// buildSystemPrompt assembles the system prompt for an assessment call.
func buildSystemPrompt(opts Options, ctx platform.Context) string {
	if opts.CIMode {
		return buildCISystemPrompt(ctx)
	}
	return buildStandardSystemPrompt(opts.Verbose)
}

const standardSchema = `{
  "resources": [
    {
      "resource_name": "string — the short resource name",
      "resource_type": "string — the Azure resource type, abbreviated for readability",
      "action": "string — one of: Create, Modify, Delete, Deploy, NoChange, Ignore",
      "summary": "string — 1-2 sentence plain English explanation of what this resource is and what the change does"
    }
  ],
  "overall_summary": "string — a brief overall summary of the deployment, including counts by action type and the overall intent"
}`

func buildStandardSystemPrompt(verbose bool) string {
	var sb strings.Builder
	sb.WriteString("You are an Azure infrastructure expert. You analyze Azure Resource Manager\n")
	sb.WriteString("What-If deployment output and produce concise, accurate summaries.\n\n")
	sb.WriteString("You must respond with ONLY valid JSON matching this schema, no other text:\n\n")
	sb.WriteString(standardSchema)
	if verbose {
		sb.WriteString("\n\nFor resources with action \"Modify\", also include a \"changes\" field:\n")
		sb.WriteString("an array of strings describing each property-level change.\n")
	}
	return sb.String()
}

// ciSchema is the JSON schema fragment shown to the model in CI mode. The
// confidence fields drive noise partitioning; the verdict block is
// informational only and is recomputed locally.
const ciSchema = `{
  "resources": [
    {
      "resource_name": "string",
      "resource_type": "string",
      "action": "string — Create, Modify, Delete, Deploy, NoChange, Ignore",
      "summary": "string — what this change does",
      "risk_level": "string — none, low, medium, high, critical",
      "risk_reason": "string or null — why this is risky, if applicable",
      "confidence_level": "string — low, medium, high: likelihood this is a real change rather than a What-If comparison artifact",
      "confidence_reason": "string — why you believe this change is real or noise"
    }
  ],
  "overall_summary": "string",
  "risk_assessment": {
    "drift": {
      "risk_level": "string — low, medium, high",
      "concerns": ["string — changes present in the What-If output but absent from the code diff"],
      "reasoning": "string"
    },
    "intent": {
      "risk_level": "string — low, medium, high",
      "concerns": ["string — changes unaligned with the stated pull request purpose"],
      "reasoning": "string"
    },
    "operations": {
      "risk_level": "string — low, medium, high",
      "concerns": ["string — inherently dangerous actions or resource types"],
      "reasoning": "string"
    }
  },
  "verdict": {
    "safe": true,
    "risk_level": "string — none, low, medium, high, critical (highest individual risk)",
    "reasoning": "string — 2-3 sentence explanation of the verdict",
    "concerns": ["string"],
    "recommendations": ["string"]
  }
}`

const riskClassifications = `Apply these risk classifications:

- critical: Deletion of stateful resources (databases, storage accounts, key vaults),
  deletion of identity/RBAC resources, changes to network security rules that open
  broad access, modifications to encryption settings
- high: Deletion of any production resource, modifications to authentication/authorization
  config, changes to firewall rules, SKU downgrades on critical services
- medium: Modifications to existing resources that change behavior (policy changes,
  scaling config, diagnostic settings), new public endpoints
- low: Adding new resources, adding tags, adding diagnostic/monitoring resources,
  modifying descriptions or display names
- none: NoChange, Ignore, cosmetic-only changes`

func buildCISystemPrompt(ctx platform.Context) string {
	var sb strings.Builder
	sb.WriteString("You are an Azure infrastructure deployment safety reviewer. You are given:\n")
	sb.WriteString("1. The Azure What-If output showing planned infrastructure changes\n")
	sb.WriteString("2. The source code diff (Bicep/ARM template changes) that produced these changes")
	if ctx.HasPRMetadata() {
		sb.WriteString("\n3. The pull request title and description stating the INTENDED purpose of this change")
	}
	sb.WriteString("\n\nEvaluate the deployment for safety and correctness.\n")

	if ctx.HasPRMetadata() {
		sb.WriteString(`
IMPORTANT - Intent Analysis:
You have been provided with the pull request title and/or description. Use this to understand
the STATED INTENT of the change. Flag any changes in the What-If output that:
- Are NOT mentioned in the PR description
- Do not align with the stated purpose
- Seem unrelated or unexpected given the PR intent
- Are destructive (Delete actions) but not explicitly mentioned

Treat intent mismatches as elevated risk:
- Destructive changes (Delete) not mentioned in PR = CRITICAL risk
- Security/auth changes not mentioned in PR = HIGH risk
- Resource modifications not aligned with PR intent = MEDIUM risk
- New resources not mentioned but aligned with intent = LOW risk
`)
	} else {
		sb.WriteString("\nNo pull request metadata is available. Omit the \"intent\" key from risk_assessment entirely.\n")
	}

	sb.WriteString(`
For every resource, rate your confidence that the reported change is a real
modification and not an artifact of the What-If comparison (noisy diffs on
unchanged properties, provider-side reordering, recomputed defaults).
Changes you believe are artifacts get confidence_level "low".

Respond with ONLY valid JSON matching this schema:

`)
	sb.WriteString(ciSchema)
	sb.WriteString("\n\n")
	sb.WriteString(riskClassifications)
	return sb.String()
}

// buildUserPrompt wraps the what-if text and optional context in tagged
// blocks.
func buildUserPrompt(req Request, ciMode bool) string {
	var sb strings.Builder
	if !ciMode {
		sb.WriteString("Analyze the following Azure What-If output:\n\n")
		writeBlock(&sb, "whatif_output", req.WhatIfText)
		return sb.String()
	}

	sb.WriteString("Review this Azure deployment for safety.\n")
	writeIntent(&sb, req.Platform)
	writeBlock(&sb, "whatif_output", req.WhatIfText)
	writeBlock(&sb, "code_diff", req.DiffText)
	if req.SourceText != "" {
		writeBlock(&sb, "bicep_source", req.SourceText)
	}
	return sb.String()
}

// buildReassessPrompt builds the corrective-pass user prompt. The signal
// changes are serialized as structured JSON in place of the raw what-if
// text; diff and PR context are identical to the first call.
func buildReassessPrompt(req Request, signal []schema.ResourceChange) (string, error) {
	encoded, err := json.MarshalIndent(signal, "", "  ")
	if err != nil {
		return "", fmt.Errorf("oracle: encode signal changes: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Review this Azure deployment for safety.\n\n")
	sb.WriteString("The resource changes below have already been extracted and filtered;\n")
	sb.WriteString("treat them as the complete set of planned changes. Re-assess the risk\n")
	sb.WriteString("buckets against this change set.\n")
	writeIntent(&sb, req.Platform)
	writeBlock(&sb, "resource_changes", string(encoded))
	writeBlock(&sb, "code_diff", req.DiffText)
	if req.SourceText != "" {
		writeBlock(&sb, "bicep_source", req.SourceText)
	}
	return sb.String(), nil
}

func writeIntent(sb *strings.Builder, ctx platform.Context) {
	if !ctx.HasPRMetadata() {
		return
	}
	title := ctx.PRTitle
	if title == "" {
		title = "Not provided"
	}
	desc := ctx.PRDescription
	if desc == "" {
		desc = "Not provided"
	}
	fmt.Fprintf(sb, "\n<pull_request_intent>\nTitle: %s\nDescription: %s\n</pull_request_intent>\n", title, desc)
}

func writeBlock(sb *strings.Builder, tag, content string) {
	fmt.Fprintf(sb, "\n<%s>\n%s\n</%s>\n", tag, content, tag)
}
