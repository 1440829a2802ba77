package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appsurvey "github.com/bryanwahyu/survey-insight/internal/application/survey"
	"github.com/bryanwahyu/survey-insight/internal/bootstrap"
	"github.com/bryanwahyu/survey-insight/internal/config"
	"github.com/bryanwahyu/survey-insight/internal/domain/survey"
	"github.com/bryanwahyu/survey-insight/internal/infra/ai/prompt"
	"github.com/bryanwahyu/survey-insight/internal/infra/export"
	"github.com/bryanwahyu/survey-insight/internal/infra/tabular"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type runFlags struct {
	configPath    string
	concurrency   int
	failurePolicy string
	lenient       bool
	xlsxPath      string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "survey-analyze",
		Short:         "Analyze survey CSV answers question by question with an LLM",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newRunCmd(), newPromptCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <file.csv>",
		Short: "Run the full analysis and print the results as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAnalysis(ctx, f, args[0], cmd.OutOrStdout())
		},
	}
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cmd.Flags().StringVar(&f.configPath, "config", path, "config file (optional, env overrides apply)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "max in-flight model calls (0 keeps config value)")
	cmd.Flags().StringVar(&f.failurePolicy, "failure-policy", "", "isolate or abort (empty keeps config value)")
	cmd.Flags().BoolVar(&f.lenient, "lenient", false, "pad short rows and drop extra cells instead of rejecting the file")
	cmd.Flags().StringVar(&f.xlsxPath, "xlsx", "", "also write the results to this XLSX workbook")
	return cmd
}

func runAnalysis(ctx context.Context, f runFlags, file string, out io.Writer) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.concurrency > 0 {
		cfg.Pipeline.Concurrency = f.concurrency
	}
	if f.failurePolicy != "" {
		cfg.Pipeline.FailurePolicy = f.failurePolicy
	}
	if f.lenient {
		cfg.Pipeline.RowPolicy = string(tabular.Lenient)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	client, err := bootstrap.AIClient(cfg)
	if err != nil {
		return err
	}
	svc, _, err := bootstrap.Pipeline(ctx, cfg, client, nil, logger)
	if err != nil {
		return err
	}

	run, err := svc.Run(ctx, raw)
	if err != nil {
		return err
	}
	if run.Results.Failures() > 0 {
		logger.Warn("some questions failed", zap.Int("failed", run.Results.Failures()))
	}

	if f.xlsxPath != "" {
		book, err := export.XLSX(run.Results)
		if err != nil {
			return err
		}
		if err := os.WriteFile(f.xlsxPath, book, 0o644); err != nil {
			return err
		}
	}
	return writeJSON(out, run)
}

func writeJSON(w io.Writer, run *appsurvey.Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		RunID   string                  `json:"run_id"`
		Results survey.ResultCollection `json:"results"`
	}{run.ID, run.Results})
}

func newPromptCmd() *cobra.Command {
	var lenient bool
	cmd := &cobra.Command{
		Use:   "prompt <file.csv>",
		Short: "Print the prompt pair built for every question without calling the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			policy := tabular.Strict
			if lenient {
				policy = tabular.Lenient
			}
			return printPrompts(cmd.OutOrStdout(), tabular.NewDecoder(policy), raw)
		},
	}
	cmd.Flags().BoolVar(&lenient, "lenient", false, "pad short rows and drop extra cells instead of rejecting the file")
	return cmd
}

func printPrompts(w io.Writer, dec survey.Decoder, raw []byte) error {
	table, err := dec.Decode(raw)
	if err != nil {
		return err
	}
	questions, err := survey.ExtractQuestions(table)
	if err != nil {
		return err
	}
	for i, q := range questions {
		pair := prompt.Build(q, survey.AnswersFor(table, q))
		fmt.Fprintf(w, "=== system (question %d) ===\n%s\n\n", i+1, pair.System)
		fmt.Fprintf(w, "=== user (question %d) ===\n%s\n\n", i+1, pair.User)
	}
	return nil
}
