package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gridmix/internal/engine"
)

var (
	runOutput  string
	runPattern string
	runWorkers int
	runTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run [instance...]",
	Short: "Solve prepared instances with the external solver",
	Long: `Solve prepared scenario instances in daily mode.

With no arguments every instance under the output directory is solved.
Arguments may be instance names or paths inside the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, cfg, err := outputDir(runOutput)
		if err != nil {
			return err
		}
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}

		workers := cfg.Workers
		if runWorkers > 0 {
			workers = runWorkers
		}
		timeout := cfg.Solver.Timeout
		if runTimeout > 0 {
			timeout = runTimeout
		}

		eng, err := newEngine(cfg.Solver.Binary)
		if err != nil {
			return err
		}
		result, err := eng.Run(context.Background(), &engine.RunRequest{
			OutputDir: dir,
			CWD:       cwd,
			Instances: args,
			Pattern:   runPattern,
			Workers:   workers,
			Timeout:   timeout,
			Progress:  progressWriter(),
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			if err := outputJSON(result.Results); err != nil {
				return err
			}
		} else {
			printRun(result)
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d of %d instances did not converge", result.Failed, len(result.Results))
		}
		return nil
	},
}

func printRun(result *engine.RunBatchResult) {
	PrintSection("Solve Results")
	rows := make([][]string, 0, len(result.Results))
	for _, r := range result.Results {
		status := "converged"
		if !r.Converged {
			status = "failed"
			if r.Err != "" {
				status = r.Err
			}
		}
		elapsed := "-"
		if !r.Started.IsZero() && !r.Finished.IsZero() {
			elapsed = r.Finished.Sub(r.Started).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{r.Instance, fmt.Sprint(len(r.Exports)), elapsed, status})
	}
	PrintTable([]string{"INSTANCE", "EXPORTS", "TIME", "STATUS"}, rows)
	fmt.Fprintln(output)
	ok := len(result.Results) - result.Failed
	PrintSuccess(fmt.Sprintf("Solved %s", PrintCount(ok, "instance", "instances")))
}

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Output directory (overrides config)")
	runCmd.Flags().StringVarP(&runPattern, "pattern", "p", "", "Solve only instances matching this glob")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "Concurrent solves (overrides config)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-instance solve timeout (overrides config)")
}
