package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gridmix/internal/engine"
	"github.com/danieljhkim/gridmix/internal/mix"
)

var (
	planSubstation string
	planFeeder     string
	planMix        string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Resolve one feeder's allocation without writing anything",
	Long: `Resolve the heating, EV, storage and PV allocation of one feeder under
one mix and print the manifest that deploy would write.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		eng, err := newEngine(cfg.Solver.Binary)
		if err != nil {
			return err
		}

		result, err := eng.Plan(context.Background(), &engine.PlanRequest{
			Config:     cfg,
			Substation: planSubstation,
			Feeder:     planFeeder,
			Mix:        planMix,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result.Manifest)
		}
		printPlan(result)
		return nil
	},
}

func printPlan(result *engine.PlanResult) {
	m := result.Manifest
	PrintSection(m.Instance)
	PrintLabelValue("Feeder", fmt.Sprintf("%s/%s (circuit %d)", m.Substation, m.Feeder, m.Circuit))
	PrintLabelValue("Curve bucket", m.Bucket)

	PrintSubsection("Heating")
	rows := make([][]string, 0, len(mix.Categories))
	for _, c := range mix.Categories {
		rows = append(rows, []string{
			c.Code(),
			percent(m.Heating.Shares.Of(c)),
			fmt.Sprint(m.Heating.BaseCounts[c.Code()]),
			fmt.Sprint(m.Heating.ShapeCounts[c.Code()]),
			fmt.Sprintf("%d/%d", result.Coverage[c], result.RequiredCurves),
		})
	}
	PrintTable([]string{"CATEGORY", "SHARE", "LOADS", "SHAPES", "CURVES"}, rows)

	PrintSubsection("Resources")
	PrintLabelValue("EV hosts", fmt.Sprintf("%d requested, %d uncontrolled loads, %d controlled loads",
		m.EV.Requested, len(m.EVLoadsUncontrolled), len(m.EVLoadsControlled)))
	PrintLabelValue("Storage", fmt.Sprintf("%d of %d eligible", len(m.Storage.Bases), m.Storage.Eligible))
	PrintLabelValue("PV", fmt.Sprintf("%d of %d eligible", len(m.PV.Bases), m.PV.Eligible))
	if m.DisjointRelaxed {
		PrintWarning("Storage and PV overlap: not enough three-phase customers to keep them disjoint")
	}

	if len(result.Skipped) > 0 {
		PrintSubsection("Skipped")
		items := make([]string, 0, len(result.Skipped))
		for _, s := range result.Skipped {
			items = append(items, fmt.Sprintf("%s %s: %s", s.Kind, s.Target, s.Reason))
		}
		sort.Strings(items)
		PrintList(items, 1)
	}
}

func init() {
	planCmd.Flags().StringVar(&planSubstation, "substation", "", "Substation of the feeder (first match when empty)")
	planCmd.Flags().StringVar(&planFeeder, "feeder", "", "Feeder name")
	planCmd.Flags().StringVarP(&planMix, "mix", "m", "", "Mix name")
	_ = planCmd.MarkFlagRequired("feeder")
	_ = planCmd.MarkFlagRequired("mix")
}
