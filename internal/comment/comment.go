// Package comment posts the markdown report as a pull-request comment.
// Comment posting is best-effort: failures are logged and surfaced to the
// caller as errors, but never change the gate verdict.
package comment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/iacops/driftgate/internal/platform"
)

var logger = log.WithField("package", "comment")

// marker identifies driftgate comments so repeated runs update a single
// comment instead of stacking new ones.
const marker = "<!-- driftgate-report -->"

// Post publishes markdown as a PR comment for the given platform context.
// The platform variant selects the backend; local runs are an error.
func Post(ctx context.Context, pctx platform.Context, prURL, markdown string) error {
	body := marker + "\n" + markdown
	switch pctx.Variant {
	case platform.VariantGitHub:
		return postGitHub(ctx, pctx, prURL, body)
	case platform.VariantAzureDevOps:
		return postAzureDevOps(ctx, pctx, body)
	default:
		return fmt.Errorf("comment: no pull request to comment on outside a CI platform")
	}
}

var prURLRe = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/pull/(\d+)`)

// postGitHub creates or updates the driftgate comment on a GitHub PR using
// the go-github client.
func postGitHub(ctx context.Context, pctx platform.Context, prURL, body string) error {
	token := lookupEnv("GITHUB_TOKEN")
	if token == "" {
		return fmt.Errorf("comment: GITHUB_TOKEN not set; cannot post PR comment")
	}

	var owner, repo string
	var number int
	if prURL != "" {
		m := prURLRe.FindStringSubmatch(prURL)
		if m == nil {
			return fmt.Errorf("comment: invalid GitHub PR URL %q", prURL)
		}
		owner, repo = m[1], m[2]
		number, _ = strconv.Atoi(m[3])
	} else {
		parts := strings.Split(pctx.Repository, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("comment: repository %q is not owner/repo", pctx.Repository)
		}
		if pctx.PRNumber == "" {
			return fmt.Errorf("comment: no PR number detected; provide --pr-url")
		}
		n, err := strconv.Atoi(pctx.PRNumber)
		if err != nil {
			return fmt.Errorf("comment: PR number %q is not numeric", pctx.PRNumber)
		}
		owner, repo, number = parts[0], parts[1], n
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	// Update the existing driftgate comment when present.
	existing, err := findMarkedComment(ctx, client, owner, repo, number)
	if err != nil {
		logger.WithField("error", err).Warn("could not list existing comments; posting a new one")
	}
	if existing != nil {
		_, _, err := client.Issues.EditComment(ctx, owner, repo, existing.GetID(),
			&github.IssueComment{Body: github.String(body)})
		if err != nil {
			return fmt.Errorf("comment: update comment: %w", err)
		}
		return nil
	}

	_, _, err = client.Issues.CreateComment(ctx, owner, repo, number,
		&github.IssueComment{Body: github.String(body)})
	if err != nil {
		return fmt.Errorf("comment: create comment: %w", err)
	}
	return nil
}

// findMarkedComment returns the first existing comment carrying the
// driftgate marker, or nil.
func findMarkedComment(ctx context.Context, client *github.Client, owner, repo string, number int) (*github.IssueComment, error) {
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := client.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("comment: list comments: %w", err)
		}
		for _, c := range comments {
			if strings.Contains(c.GetBody(), marker) {
				return c, nil
			}
		}
		if resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}

// lookupEnv is os.Getenv, replaceable in tests.
var lookupEnv = os.Getenv

// httpClient is the client used for the Azure DevOps REST call, replaceable
// in tests.
var httpClient = &http.Client{Timeout: 30 * time.Second}

// postAzureDevOps creates a new comment thread on an Azure DevOps PR via the
// REST API. There is no Go SDK equivalent of go-github in use here; the
// endpoint is a single authenticated POST.
func postAzureDevOps(ctx context.Context, pctx platform.Context, body string) error {
	token := lookupEnv("SYSTEM_ACCESSTOKEN")
	if token == "" {
		return fmt.Errorf("comment: SYSTEM_ACCESSTOKEN not set; cannot post PR comment")
	}
	collection := lookupEnv("SYSTEM_COLLECTIONURI")
	project := lookupEnv("SYSTEM_TEAMPROJECT")
	repoID := lookupEnv("BUILD_REPOSITORY_ID")
	if collection == "" || project == "" || repoID == "" || pctx.PRNumber == "" {
		return fmt.Errorf("comment: missing Azure DevOps pipeline variables for PR comment")
	}

	endpoint := fmt.Sprintf("%s%s/_apis/git/repositories/%s/pullRequests/%s/threads?api-version=7.0",
		strings.TrimSuffix(collection, "/")+"/", url.PathEscape(project), repoID, pctx.PRNumber)

	payload := map[string]any{
		"comments": []map[string]any{
			{"parentCommentId": 0, "content": body, "commentType": 1},
		},
		"status": 1,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("comment: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("comment: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("comment: post thread: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("comment: azure devops api returned %s", resp.Status)
	}
	return nil
}
