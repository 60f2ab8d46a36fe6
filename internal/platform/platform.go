// Package platform detects the CI environment a run executes in and resolves
// an immutable PlatformContext consumed by the rest of the pipeline. The
// context is built exactly once per run; manual overrides win over detected
// values field by field. Detection never fails a run: a missing or
// unparsable event file degrades to unset fields.
package platform

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "platform")

// Variant identifies the CI platform a run executes in.
type Variant string

const (
	VariantLocal       Variant = "local"
	VariantGitHub      Variant = "github"
	VariantAzureDevOps Variant = "azuredevops"
)

// Context is the resolved platform context. Built once per run and passed by
// value; no downstream stage mutates it.
type Context struct {
	Variant       Variant
	PRNumber      string
	PRTitle       string
	PRDescription string
	BaseBranch    string
	SourceBranch  string
	Repository    string
	// HasCommentCredential reports whether a token suitable for posting PR
	// comments was present in the environment at detection time.
	HasCommentCredential bool
}

// Overrides carries caller-supplied values that take precedence over
// detected ones. Empty fields defer to detection.
type Overrides struct {
	PRNumber      string
	PRTitle       string
	PRDescription string
	Repository    string
}

// HasPRMetadata reports whether intent analysis is possible: a PR title or
// description is present. The intent risk bucket exists only when this is
// true.
func (c Context) HasPRMetadata() bool {
	return c.PRTitle != "" || c.PRDescription != ""
}

// DiffRef returns the git reference to diff against: the remote-qualified
// base branch when known, otherwise the previous commit.
func (c Context) DiffRef() string {
	if c.BaseBranch != "" {
		branch := strings.TrimPrefix(c.BaseBranch, "refs/heads/")
		return "origin/" + branch
	}
	return "HEAD~1"
}

// Env is an environment lookup, os.Getenv-shaped. Injectable for tests.
type Env func(key string) string

// Detect resolves the platform context from the process environment.
func Detect() Context {
	return DetectEnv(os.Getenv, os.ReadFile)
}

// ReadFile is a file reader, os.ReadFile-shaped. Injectable for tests.
type ReadFile func(name string) ([]byte, error)

// DetectEnv resolves the platform context from the given environment lookup
// and file reader.
func DetectEnv(env Env, readFile ReadFile) Context {
	switch {
	case env("GITHUB_ACTIONS") == "true":
		return detectGitHub(env, readFile)
	case env("TF_BUILD") == "True" || env("AGENT_ID") != "":
		return detectAzureDevOps(env)
	default:
		return Context{Variant: VariantLocal}
	}
}

// Apply returns a copy of the context with overrides applied field by field.
// An override always wins over a detected value; detected wins over default.
func (c Context) Apply(o Overrides) Context {
	if o.PRNumber != "" {
		c.PRNumber = o.PRNumber
	}
	if o.PRTitle != "" {
		c.PRTitle = o.PRTitle
	}
	if o.PRDescription != "" {
		c.PRDescription = o.PRDescription
	}
	if o.Repository != "" {
		c.Repository = o.Repository
	}
	return c
}

// githubEvent models the subset of the GitHub Actions event payload the
// resolver needs.
type githubEvent struct {
	PullRequest struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		Body   string `json:"body"`
	} `json:"pull_request"`
}

func detectGitHub(env Env, readFile ReadFile) Context {
	ctx := Context{
		Variant:              VariantGitHub,
		Repository:           env("GITHUB_REPOSITORY"),
		BaseBranch:           env("GITHUB_BASE_REF"),
		SourceBranch:         env("GITHUB_HEAD_REF"),
		HasCommentCredential: env("GITHUB_TOKEN") != "",
	}

	eventName := env("GITHUB_EVENT_NAME")
	if eventName != "pull_request" && eventName != "pull_request_target" {
		return ctx
	}
	eventPath := env("GITHUB_EVENT_PATH")
	if eventPath == "" {
		return ctx
	}
	data, err := readFile(eventPath)
	if err != nil {
		logger.WithField("path", eventPath).WithField("error", err).
			Warn("could not read GitHub event file; PR metadata unavailable")
		return ctx
	}
	var ev githubEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.WithField("path", eventPath).WithField("error", err).
			Warn("could not parse GitHub event file; PR metadata unavailable")
		return ctx
	}
	if ev.PullRequest.Number != 0 {
		ctx.PRNumber = strconv.Itoa(ev.PullRequest.Number)
	}
	ctx.PRTitle = ev.PullRequest.Title
	ctx.PRDescription = ev.PullRequest.Body
	return ctx
}

// detectAzureDevOps reads PR and branch information from pipeline variables.
// Azure DevOps does not expose PR title or description in the environment;
// those fields stay unset unless overridden.
func detectAzureDevOps(env Env) Context {
	return Context{
		Variant:              VariantAzureDevOps,
		PRNumber:             env("SYSTEM_PULLREQUEST_PULLREQUESTID"),
		BaseBranch:           env("SYSTEM_PULLREQUEST_TARGETBRANCH"),
		SourceBranch:         env("SYSTEM_PULLREQUEST_SOURCEBRANCH"),
		Repository:           env("BUILD_REPOSITORY_NAME"),
		HasCommentCredential: env("SYSTEM_ACCESSTOKEN") != "",
	}
}
