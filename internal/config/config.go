// Package config resolves run configuration from an optional YAML file and
// command-line flag values. Precedence is flag > file > default, applied per
// field. Threshold validation happens here, before any oracle call is made.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iacops/driftgate/internal/riskbucket"
	"github.com/iacops/driftgate/internal/schema"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = ".driftgate.yml"

// File models the optional YAML configuration file.
type File struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Format     string `yaml:"format"`
	Thresholds struct {
		Drift      string `yaml:"drift"`
		Intent     string `yaml:"intent"`
		Operations string `yaml:"operations"`
	} `yaml:"thresholds"`
}

// Config is the fully resolved run configuration.
type Config struct {
	Provider    string
	Model       string
	Format      string
	Verbose     bool
	CIMode      bool
	DiffPath    string
	DiffRef     string
	SourceDir   string
	PostComment bool
	PRURL       string
	Thresholds  riskbucket.Thresholds
}

// LoadFile reads and parses the YAML config at path. A missing file is not
// an error and returns a zero File; a malformed file is an error.
func LoadFile(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return f, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f, nil
}

// Merge applies file values underneath flag values: a non-empty flag value
// wins, then the file value, then the default.
func Merge(flags Config, file File, flagThresholds [3]string) (Config, error) {
	cfg := flags
	if cfg.Provider == "" {
		cfg.Provider = file.Provider
	}
	if cfg.Provider == "" {
		cfg.Provider = "anthropic"
	}
	if cfg.Model == "" {
		cfg.Model = file.Model
	}
	if cfg.Format == "" {
		cfg.Format = file.Format
	}
	if cfg.Format == "" {
		cfg.Format = "table"
	}
	switch cfg.Format {
	case "table", "json", "markdown":
		// valid
	default:
		return cfg, fmt.Errorf("config: unknown format %q (valid: table, json, markdown)", cfg.Format)
	}

	th, err := resolveThresholds(flagThresholds, file)
	if err != nil {
		return cfg, err
	}
	cfg.Thresholds = th
	return cfg, nil
}

// resolveThresholds builds the threshold set from flag values [drift,
// intent, operations], file values, and the high default, then validates.
func resolveThresholds(flags [3]string, file File) (riskbucket.Thresholds, error) {
	pick := func(flag, fromFile string) schema.RiskLevel {
		if flag != "" {
			return schema.RiskLevel(flag)
		}
		if fromFile != "" {
			return schema.RiskLevel(fromFile)
		}
		return schema.RiskHigh
	}
	th := riskbucket.Thresholds{
		Drift:      pick(flags[0], file.Thresholds.Drift),
		Intent:     pick(flags[1], file.Thresholds.Intent),
		Operations: pick(flags[2], file.Thresholds.Operations),
	}
	if err := th.Validate(); err != nil {
		return th, err
	}
	return th, nil
}
