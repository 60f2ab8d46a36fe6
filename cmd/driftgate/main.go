package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iacops/driftgate/internal/comment"
	"github.com/iacops/driftgate/internal/config"
	"github.com/iacops/driftgate/internal/engine"
	"github.com/iacops/driftgate/internal/gitdiff"
	"github.com/iacops/driftgate/internal/input"
	"github.com/iacops/driftgate/internal/platform"
	"github.com/iacops/driftgate/internal/render"
)

var logger = log.WithField("package", "main")

// exitInvalidInput is returned for input and configuration problems, before
// any assessment runs. It is distinct from an unsafe verdict (exit 1).
const exitInvalidInput = 2

type flags struct {
	provider    string
	model       string
	format      string
	verbose     bool
	noColor     bool
	ci          bool
	diffPath    string
	diffRef     string
	sourceDir   string
	postComment bool
	prURL       string
	prNumber    string
	prTitle     string
	prDesc      string
	repository  string
	configPath  string
	thresholds  [3]string
}

func main() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	code, err := newRootCmd().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if code == 0 {
			code = exitInvalidInput
		}
	}
	os.Exit(code)
}

// rootCmd wraps cobra so run can return an exit code alongside the error.
type rootCmd struct {
	*cobra.Command
	code int
}

func (r *rootCmd) ExecuteContext(ctx context.Context) (int, error) {
	err := r.Command.ExecuteContext(ctx)
	return r.code, err
}

func newRootCmd() *rootCmd {
	f := &flags{}
	r := &rootCmd{}

	cmd := &cobra.Command{
		Use:   "driftgate",
		Short: "Deployment gate for infrastructure what-if output",
		Long: `driftgate reads what-if output on stdin, has an LLM assess each change for
deployment risk, filters low-confidence noise with a corrective second pass,
and gates on per-bucket risk thresholds. Exit 0 means safe to deploy, 1 means
blocked, 2 means the input or configuration was invalid.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := run(cmd.Context(), cmd, f)
			r.code = code
			return err
		},
	}

	cmd.Flags().StringVarP(&f.provider, "provider", "p", "", "LLM provider: anthropic, openai, or google")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Model name (defaults to the provider's default)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Output format: table, json, or markdown")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Log prompts and raw responses")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable glyphs in table output")
	cmd.Flags().BoolVar(&f.ci, "ci", false, "CI gate mode: risk buckets, thresholds, and exit-code gating")
	cmd.Flags().StringVarP(&f.diffPath, "diff", "d", "", "Path to a code diff file to include as context")
	cmd.Flags().StringVar(&f.diffRef, "diff-ref", "HEAD~1", "Git ref to diff the working tree against")
	cmd.Flags().StringVar(&f.sourceDir, "source-dir", ".", "Directory to scan for infrastructure source files")
	cmd.Flags().BoolVar(&f.postComment, "post-comment", false, "Post the markdown report as a PR comment")
	cmd.Flags().StringVar(&f.prURL, "pr-url", "", "Pull request URL for comment posting")
	cmd.Flags().StringVar(&f.prNumber, "pr-number", "", "Pull request number (auto-detected in CI)")
	cmd.Flags().StringVar(&f.prTitle, "pr-title", "", "Pull request title for intent analysis")
	cmd.Flags().StringVar(&f.prDesc, "pr-description", "", "Pull request description for intent analysis")
	cmd.Flags().StringVar(&f.repository, "repository", "", "Repository as owner/repo (auto-detected in CI)")
	cmd.Flags().StringVar(&f.configPath, "config", config.DefaultFileName, "Path to the YAML config file")
	cmd.Flags().StringVar(&f.thresholds[0], "drift-threshold", "", "Risk level that fails the drift bucket (low, medium, high)")
	cmd.Flags().StringVar(&f.thresholds[1], "intent-threshold", "", "Risk level that fails the intent bucket (low, medium, high)")
	cmd.Flags().StringVar(&f.thresholds[2], "operations-threshold", "", "Risk level that fails the operations bucket (low, medium, high)")

	r.Command = cmd
	return r
}

func run(ctx context.Context, cmd *cobra.Command, f *flags) (int, error) {
	if f.verbose {
		log.SetLevel(log.DebugLevel)
	}

	file, err := config.LoadFile(f.configPath)
	if err != nil {
		return exitInvalidInput, err
	}
	cfg, err := config.Merge(config.Config{
		Provider:    f.provider,
		Model:       f.model,
		Format:      f.format,
		Verbose:     f.verbose,
		CIMode:      f.ci,
		DiffPath:    f.diffPath,
		DiffRef:     f.diffRef,
		SourceDir:   f.sourceDir,
		PostComment: f.postComment,
		PRURL:       f.prURL,
	}, file, f.thresholds)
	if err != nil {
		return exitInvalidInput, err
	}

	whatif, err := input.ReadStdin()
	if err != nil {
		return exitInvalidInput, err
	}

	pctx := platform.Detect().Apply(platform.Overrides{
		PRNumber:      f.prNumber,
		PRTitle:       f.prTitle,
		PRDescription: f.prDesc,
		Repository:    f.repository,
	})
	if pctx.Variant != platform.VariantLocal {
		cfg.CIMode = true
	}
	logger.WithFields(log.Fields{
		"platform": pctx.Variant,
		"ci":       cfg.CIMode,
	}).Debug("resolved run context")

	var diff, sources string
	if cfg.CIMode {
		ref := cfg.DiffRef
		if !cmd.Flags().Changed("diff-ref") {
			ref = pctx.DiffRef()
		}
		diff, err = gitdiff.Collect(ctx, cfg.DiffPath, ref)
		if err != nil {
			return exitInvalidInput, err
		}
		sources = gitdiff.LoadSources(cfg.SourceDir)
	}

	res, err := engine.Run(ctx, engine.Params{
		Config:   cfg,
		Platform: pctx,
		WhatIf:   whatif,
		Diff:     diff,
		Sources:  sources,
	})
	if err != nil {
		return engine.ExitUnsafe, err
	}

	if err := emit(cfg, f.noColor, res); err != nil {
		return engine.ExitUnsafe, err
	}

	if cfg.PostComment || (cfg.CIMode && pctx.HasCommentCredential && pctx.PRNumber != "") {
		md := render.RenderMarkdown(res.Report)
		if err := comment.Post(ctx, pctx, cfg.PRURL, md); err != nil {
			// Comment posting is best effort; the verdict already stands.
			logger.WithField("error", err).Warn("failed to post PR comment")
		}
	}

	return res.ExitCode, nil
}

func emit(cfg config.Config, noColor bool, res engine.Result) error {
	switch cfg.Format {
	case "json":
		b, err := render.RenderJSON(res.Report)
		if err != nil {
			return err
		}
		fmt.Println(string(b))
	case "markdown":
		fmt.Print(render.RenderMarkdown(res.Report))
	default:
		render.RenderTable(os.Stdout, res.Report, render.TableOptions{NoColor: noColor})
	}
	return nil
}
