// Package input reads and validates the What-If text piped to the command.
package input

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "input")

// MaxChars is the input size cap; longer input is truncated with a warning.
const MaxChars = 100000

// whatifMarkers are substrings expected in genuine What-If output. The check
// is soft: absence produces a warning, not an error.
var whatifMarkers = []string{
	"Resource changes:",
	"+ Create",
	"~ Modify",
	"- Delete",
	"Resource and property changes",
	"Scope:",
}

// ReadStdin reads What-If output from os.Stdin.
func ReadStdin() (string, error) {
	stat, err := os.Stdin.Stat()
	if err == nil && stat.Mode()&os.ModeCharDevice != 0 {
		return "", fmt.Errorf("input: no input detected; pipe Azure What-If output to this command:\n" +
			"  az deployment group what-if ... | driftgate")
	}
	return Read(os.Stdin)
}

// Read reads and validates What-If content from r.
func Read(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("input: read: %w", err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("input: no What-If output received; input is empty")
	}
	if len(content) > MaxChars {
		logger.WithField("original", len(content)).WithField("truncated", MaxChars).
			Warn("input truncated")
		content = content[:MaxChars]
	}

	hasMarker := false
	for _, m := range whatifMarkers {
		if strings.Contains(content, m) {
			hasMarker = true
			break
		}
	}
	if !hasMarker {
		logger.Warn("input may not be Azure What-If output; expected markers like " +
			"'Resource changes:' or '+ Create'; proceeding anyway")
	}
	return content, nil
}
