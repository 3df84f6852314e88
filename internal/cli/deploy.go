package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gridmix/internal/engine"
)

var (
	deployMixes      []string
	deployFeeders    []string
	deployWorkers    int
	deployMaxFeeders int
	deployDryRun     bool
	deployForce      bool
	deployRun        bool
)

// deployView is the JSON shape of a deploy result.
type deployView struct {
	BatchID    string            `json:"batch_id"`
	DryRun     bool              `json:"dry_run"`
	Planned    []string          `json:"planned"`
	Skipped    []conflictView    `json:"skipped"`
	Instances  []instanceView    `json:"instances"`
	Failures   map[string]string `json:"failures"`
	AuditFiles []string          `json:"audit_files"`
}

type conflictView struct {
	Instance string `json:"instance"`
	Path     string `json:"path"`
	Reason   string `json:"reason"`
}

type instanceView struct {
	Instance  string `json:"instance"`
	Dir       string `json:"dir"`
	Files     int    `json:"files"`
	Converged *bool  `json:"converged,omitempty"`
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Prepare scenario instances for every feeder and mix",
	Long: `Prepare one scenario instance per (feeder, mix) pair.

Feeders are discovered under the configured template root. Each instance is
written to <output_dir>/<substation>_circuit_<n>_<mix>/ together with its
scenario manifest and provenance. Existing instances are skipped unless
--force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if deployWorkers > 0 {
			cfg.Workers = deployWorkers
		}
		if deployMaxFeeders > 0 {
			cfg.MaxFeeders = deployMaxFeeders
		}

		eng, err := newEngine(cfg.Solver.Binary)
		if err != nil {
			return err
		}

		result, err := eng.Deploy(context.Background(), &engine.DeployRequest{
			Config:   cfg,
			Mixes:    deployMixes,
			Feeders:  deployFeeders,
			Force:    deployForce,
			DryRun:   deployDryRun,
			Run:      deployRun,
			Progress: progressWriter(),
		})
		if result == nil {
			return err
		}

		if jsonOutput {
			if jerr := outputJSON(newDeployView(result, deployDryRun)); jerr != nil {
				return jerr
			}
			return err
		}
		printDeploy(result, deployDryRun)
		return err
	},
}

func newDeployView(result *engine.DeployResult, dryRun bool) deployView {
	v := deployView{
		BatchID:    result.BatchID,
		DryRun:     dryRun,
		Planned:    []string{},
		Skipped:    []conflictView{},
		Instances:  []instanceView{},
		Failures:   map[string]string{},
		AuditFiles: result.AuditFiles,
	}
	if v.AuditFiles == nil {
		v.AuditFiles = []string{}
	}
	for _, job := range result.Plan.Jobs {
		v.Planned = append(v.Planned, job.Instance)
	}
	for _, c := range result.Plan.Conflicts {
		v.Skipped = append(v.Skipped, conflictView{Instance: c.Instance, Path: c.Path, Reason: c.Reason})
	}
	for _, inst := range result.Instances {
		iv := instanceView{Instance: inst.Instance, Dir: inst.Dir, Files: inst.Files}
		if inst.Run != nil {
			converged := inst.Run.Converged
			iv.Converged = &converged
		}
		v.Instances = append(v.Instances, iv)
	}
	for _, f := range result.Failures {
		v.Failures[f.Instance] = f.Err.Error()
	}
	return v
}

func printDeploy(result *engine.DeployResult, dryRun bool) {
	plan := result.Plan
	if len(plan.Conflicts) > 0 {
		PrintSection("Skipped")
		for _, c := range plan.Conflicts {
			PrintWarning(fmt.Sprintf("%s: %s (%s)", c.Instance, c.Reason, c.Path))
		}
		fmt.Fprintln(output)
		PrintInfo("Use --force to replace existing instances.")
	}

	if dryRun {
		PrintSection("Dry Run")
		PrintInfo(fmt.Sprintf("Would prepare %s", PrintCount(len(plan.Jobs), "instance", "instances")))
		names := make([]string, 0, len(plan.Jobs))
		for _, job := range plan.Jobs {
			names = append(names, job.Instance)
		}
		PrintList(names, 1)
		return
	}

	if len(result.Instances) > 0 {
		PrintSection("Prepared")
		rows := make([][]string, 0, len(result.Instances))
		for _, inst := range result.Instances {
			status := "-"
			if inst.Run != nil {
				status = "not converged"
				if inst.Run.Converged {
					status = "converged"
				}
			}
			rows = append(rows, []string{inst.Instance, fmt.Sprint(inst.Files), status})
		}
		PrintTable([]string{"INSTANCE", "FILES", "SOLVE"}, rows)
	}
	if len(result.Failures) > 0 {
		PrintSection("Failed")
		for _, f := range result.Failures {
			PrintError(fmt.Sprintf("%s: %v", f.Instance, f.Err))
		}
	}

	fmt.Fprintln(output)
	PrintSuccess(fmt.Sprintf("Prepared %s", PrintCount(len(result.Instances), "instance", "instances")))
	PrintLabelValue("Batch", result.BatchID)
	for _, f := range result.AuditFiles {
		PrintLabelValue("Audit", f)
	}
}

func init() {
	deployCmd.Flags().StringSliceVarP(&deployMixes, "mix", "m", nil, "Deploy only these mixes (repeatable)")
	deployCmd.Flags().StringSliceVar(&deployFeeders, "feeder", nil, "Deploy only these feeders (repeatable)")
	deployCmd.Flags().IntVarP(&deployWorkers, "workers", "w", 0, "Concurrent jobs (overrides config)")
	deployCmd.Flags().IntVar(&deployMaxFeeders, "max-feeders", 0, "Limit the number of feeders deployed (overrides config)")
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "Show what would be prepared without writing")
	deployCmd.Flags().BoolVarP(&deployForce, "force", "f", false, "Replace existing instance directories")
	deployCmd.Flags().BoolVar(&deployRun, "run", false, "Solve each instance after preparing it")
}
