// Package oracle handles assessment provider communication, prompt
// construction, response extraction, and the single transient retry per
// call. The oracle annotates changes and assesses risk buckets; all gating
// decisions are made locally by riskbucket and verdict.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	log "github.com/sirupsen/logrus"

	"github.com/iacops/driftgate/internal/platform"
	"github.com/iacops/driftgate/internal/schema"
)

var logger = log.WithField("package", "oracle")

// ErrInvalidOracleOutput is returned when no valid JSON document could be
// extracted from the oracle response.
var ErrInvalidOracleOutput = errors.New("oracle: could not extract valid JSON from response")

// Provider is the interface for assessment backends.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// NewProvider is the factory for creating providers. It is a package-level
// variable so tests can replace it with a mock without modifying the call
// site. Tests must restore the original value; use t.Cleanup to do so safely.
var NewProvider func(providerName, model string) (Provider, error) = defaultNewProvider

// RetryDelay is the pause before the single transient retry. It is a
// package-level variable, like NewProvider, so tests in any package can
// zero it; restore it with t.Cleanup.
var RetryDelay = time.Second

// lookupEnv is os.Getenv, replaceable in tests.
var lookupEnv = os.Getenv

// Options configures an Assess call.
type Options struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	Verbose     bool
	CIMode      bool
}

// Request carries the change data and context for one assessment call.
// Platform is the immutable resolved context; the same Request is reused for
// the corrective pass so both oracle calls see identical context.
type Request struct {
	WhatIfText string
	DiffText   string
	SourceText string
	Platform   platform.Context
}

// Assess builds prompts from the raw what-if text, calls the provider with
// the single-retry policy, and extracts the structured analysis.
func Assess(ctx context.Context, req Request, opts Options) (*schema.Analysis, error) {
	p, err := NewProvider(opts.Provider, opts.Model)
	if err != nil {
		return nil, fmt.Errorf("oracle: create provider: %w", err)
	}
	sys := buildSystemPrompt(opts, req.Platform)
	user := buildUserPrompt(req, opts.CIMode)
	return complete(ctx, p, sys, user, opts)
}

// Reassess performs the corrective second pass: the signal changes are
// re-serialized as structured input, as if the noise changes had never
// existed, with the same platform, diff, and PR context as the first call.
func Reassess(ctx context.Context, req Request, signal []schema.ResourceChange, opts Options) (*schema.Analysis, error) {
	p, err := NewProvider(opts.Provider, opts.Model)
	if err != nil {
		return nil, fmt.Errorf("oracle: create provider: %w", err)
	}
	sys := buildSystemPrompt(opts, req.Platform)
	user, err := buildReassessPrompt(req, signal)
	if err != nil {
		return nil, err
	}
	return complete(ctx, p, sys, user, opts)
}

// complete runs one provider call under the fixed retry policy — attempt
// once, on failure retry exactly once, then fail — and parses the response.
func complete(ctx context.Context, p Provider, sys, user string, opts Options) (*schema.Analysis, error) {
	raw, err := p.Complete(ctx, sys, user, opts.MaxTokens, opts.Temperature)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("oracle: complete: %w", err)
		}
		logger.WithField("error", err).Warn("provider call failed, retrying once")
		time.Sleep(RetryDelay)
		raw, err = p.Complete(ctx, sys, user, opts.MaxTokens, opts.Temperature)
		if err != nil {
			return nil, fmt.Errorf("oracle: complete after retry: %w", err)
		}
	}
	return ParseResponse(raw)
}

// ParseResponse extracts and decodes the JSON analysis from a raw oracle
// response. Markdown fences are stripped and a balanced-brace scan recovers
// JSON embedded in surrounding prose. Missing resources or overall_summary
// degrade with a warning rather than failing the run.
func ParseResponse(raw string) (*schema.Analysis, error) {
	jsonText, ok := extractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOracleOutput, truncate(raw, 500))
	}
	var a schema.Analysis
	if err := json.Unmarshal([]byte(jsonText), &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOracleOutput, err)
	}
	if a.Resources == nil {
		logger.Warn("oracle response missing resources field; using empty list")
		a.Resources = []schema.ResourceChange{}
	}
	if a.OverallSummary == "" {
		logger.Warn("oracle response missing overall_summary field")
		a.OverallSummary = "No summary provided."
	}
	return &a, nil
}

// fenceRe matches a markdown code fence block with an optional language tag
// and captures the content between the fences.
var fenceRe = regexp.MustCompile("(?s)^(?:`{3}|~{3})[^\\n]*\\n(.*?)(?:`{3}|~{3})\\s*$")

// stripMarkdownFences removes leading/trailing markdown code fences that
// models sometimes wrap around JSON output.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// extractJSON pulls a JSON object out of text. The whole text is tried
// first; otherwise a balanced-brace scan finds the outermost object,
// skipping braces inside strings and escape sequences.
func extractJSON(text string) (string, bool) {
	text = stripMarkdownFences(text)
	if json.Valid([]byte(text)) && strings.HasPrefix(strings.TrimSpace(text), "{") {
		return text, true
	}

	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
			// inside a string literal: braces do not count
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, true
				}
				return "", false
			}
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ── Provider dispatch ─────────────────────────────────────────────────────────

// Default models per provider, used when no model is configured.
const (
	defaultAnthropicModel = "claude-sonnet-4-20250514"
	defaultOpenAIModel    = "gpt-4o"
	defaultGoogleModel    = "gemini-1.5-pro"
)

// defaultNewProvider dispatches to the appropriate provider implementation.
func defaultNewProvider(providerName, model string) (Provider, error) {
	switch strings.ToLower(providerName) {
	case "anthropic", "":
		if model == "" {
			model = defaultAnthropicModel
		}
		return newAnthropicProvider(model)
	case "openai":
		if model == "" {
			model = defaultOpenAIModel
		}
		return newOpenAIProvider(model)
	case "google":
		if model == "" {
			model = defaultGoogleModel
		}
		return newGoogleProvider(model)
	default:
		return nil, fmt.Errorf("oracle: unknown provider %q (valid: anthropic, openai, google)", providerName)
	}
}

// ── Anthropic provider ───────────────────────────────────────────────────────

// anthropicProvider implements Provider using the Anthropic SDK.
// anthropic.Client is a value type; the SDK's NewClient returns it by value.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(model string) (Provider, error) {
	apiKey := lookupEnv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("oracle: ANTHROPIC_API_KEY environment variable not set")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &anthropicProvider{client: client, model: model}, nil
}

func (p *anthropicProvider) Complete(
	ctx context.Context,
	systemPrompt, userPrompt string,
	maxTokens int,
	temperature float64,
) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: messages.new: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		// "text" is the only content type that carries assistant text output.
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("anthropic: response contained no text content blocks")
	}
	return strings.Join(parts, ""), nil
}
