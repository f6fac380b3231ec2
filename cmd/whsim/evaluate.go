package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/evaluation"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/config"
)

type evaluateOptions struct {
	configPath  string
	experiments int
	seed        int64
	policy      string
	parallel    int
	jsonOutput  bool
}

func newEvaluateCmd() *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a policy over Monte-Carlo experiments",
		Long: `Run the configured policy over every experiment and print the expected
cost per experiment along with the accepted and rejected decision counts.

Examples:
  whsim evaluate --config config/config.yaml
  whsim evaluate --config config/config.yaml --policy oracle --experiments 100
  whsim evaluate --config config/config.yaml --seed 7 --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runEvaluate(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "config/config.yaml", "path to the evaluation config")
	cmd.Flags().IntVar(&opts.experiments, "experiments", 0, "number of experiments (overrides config)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "run seed (overrides config)")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "stochastic, expected_value, oracle or fallback (overrides config)")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 0, "concurrent experiments (overrides config)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the summary as JSON")
	return cmd
}

func runEvaluate(ctx context.Context, cmd *cobra.Command, opts *evaluateOptions) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("experiments") {
		cfg.Evaluation.Experiments = opts.experiments
	}
	if flags.Changed("seed") {
		cfg.Evaluation.Seed = opts.seed
	}
	if flags.Changed("policy") {
		cfg.Evaluation.Policy = opts.policy
	}
	if flags.Changed("parallel") {
		cfg.Evaluation.MaxParallel = opts.parallel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ev, err := evaluation.New(cfg, nil)
	if err != nil {
		return err
	}
	report, err := ev.Run(ctx)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		return writeReportJSON(out, report)
	}
	return writeReportTable(out, report)
}

func writeReportJSON(w io.Writer, report *evaluation.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"policy":        report.Policy,
		"seed":          report.Seed,
		"summary":       report.Summary,
		"fallback_rate": report.Summary.FallbackRate(),
		"duration_ms":   report.Duration.Milliseconds(),
	})
}

func writeReportTable(w io.Writer, report *evaluation.Report) error {
	s := report.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "policy\t%s\n", report.Policy)
	fmt.Fprintf(tw, "seed\t%d\n", report.Seed)
	fmt.Fprintf(tw, "experiments\t%d x %d periods\n", s.Experiments, s.Periods)
	fmt.Fprintf(tw, "std dev\t%.4f\n", s.StdDev)
	fmt.Fprintf(tw, "95%% CI\t±%.4f\n", s.CI95)
	fmt.Fprintf(tw, "min / p50 / p95 / max\t%.4f / %.4f / %.4f / %.4f\n", s.MinCost, s.P50Cost, s.P95Cost, s.MaxCost)
	fmt.Fprintf(tw, "accepted\t%d\n", s.Accepted)
	fmt.Fprintf(tw, "rejected (infeasible)\t%d\n", s.RejectedInfeasible)
	fmt.Fprintf(tw, "rejected (optimization failed)\t%d\n", s.RejectedOptimizationFailed)
	fmt.Fprintf(tw, "fallback rate\t%.2f%%\n", 100*s.FallbackRate())
	fmt.Fprintf(tw, "duration\t%s\n", report.Duration)
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nTHE FINAL POLICY EXPECTED COST IS %.4f\n", s.ExpectedCost)
	return err
}
