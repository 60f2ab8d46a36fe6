// Package gitdiff collects the source-code diff and optional template source
// files used as assessment context. The diff is an opaque string to the rest
// of the pipeline.
package gitdiff

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "gitdiff")

// gitTimeout bounds the git diff subprocess.
const gitTimeout = 30 * time.Second

// maxSourceFiles caps the number of template files loaded as context.
const maxSourceFiles = 5

// Collect returns diff content for an assessment call. When diffPath is
// non-empty the file is read (a missing file is an error); otherwise
// `git diff <diffRef>` is run. A failing git invocation degrades to an empty
// diff with a warning, since the repository state may legitimately lack the
// ref.
func Collect(ctx context.Context, diffPath, diffRef string) (string, error) {
	if diffPath != "" {
		data, err := os.ReadFile(diffPath)
		if err != nil {
			return "", fmt.Errorf("gitdiff: read diff file %s: %w", diffPath, err)
		}
		return string(data), nil
	}

	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "diff", diffRef)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("gitdiff: git diff timed out after %s", gitTimeout)
		}
		if _, ok := err.(*exec.ExitError); ok {
			logger.WithField("ref", diffRef).WithField("error", err).
				Warn("git diff failed; proceeding without diff context")
			return "", nil
		}
		return "", fmt.Errorf("gitdiff: run git diff: %w", err)
	}
	return string(out), nil
}

// LoadSources loads up to maxSourceFiles Bicep files under dir, joined with
// file headers, for prompt context. A missing or unreadable directory
// degrades to empty content with a warning. Symlinks and paths escaping dir
// are skipped.
func LoadSources(dir string) string {
	base, err := filepath.Abs(dir)
	if err != nil {
		logger.WithField("dir", dir).WithField("error", err).Warn("could not resolve source directory")
		return ""
	}
	info, err := os.Stat(base)
	if err != nil || !info.IsDir() {
		logger.WithField("dir", dir).Warn("source directory does not exist or is not a directory")
		return ""
	}

	var files []string
	err = filepath.Walk(base, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable subtree: skip, keep walking
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			logger.WithField("path", path).Warn("skipping symbolic link")
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if fi.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".bicep") {
			return nil
		}
		rel, relErr := filepath.Rel(base, path)
		if relErr != nil || strings.HasPrefix(rel, "..") {
			logger.WithField("path", path).Warn("skipping file outside source directory")
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		logger.WithField("dir", dir).WithField("error", err).Warn("error scanning source directory")
		return ""
	}
	if len(files) == 0 {
		return ""
	}
	sort.Strings(files)
	if len(files) > maxSourceFiles {
		files = files[:maxSourceFiles]
	}

	var parts []string
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.WithField("path", path).WithField("error", err).Warn("could not read source file")
			continue
		}
		rel, _ := filepath.Rel(base, path)
		parts = append(parts, fmt.Sprintf("// File: %s\n%s", rel, data))
	}
	return strings.Join(parts, "\n\n")
}
