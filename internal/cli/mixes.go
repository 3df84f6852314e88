package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gridmix/internal/config"
	"github.com/danieljhkim/gridmix/internal/engine"
)

var mixesFile string

var mixesCmd = &cobra.Command{
	Use:   "mixes",
	Short: "List the scenario mixes declared in the mix file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		file := mixesFile
		defaults := config.Default().MixDefaults
		if cfg, err := loadConfig(); err == nil {
			defaults = cfg.MixDefaults
			if file == "" {
				file = cfg.MixFile
			}
		} else if file == "" {
			return err
		}

		eng, err := newEngine("")
		if err != nil {
			return err
		}
		result, err := eng.Mixes(&engine.MixesRequest{MixFile: file, Defaults: defaults})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result.Mixes)
		}

		PrintSection("Mixes")
		if len(result.Mixes) == 0 {
			PrintEmptyState("No mixes declared.")
			return nil
		}
		rows := make([][]string, 0, len(result.Mixes))
		for _, m := range result.Mixes {
			rows = append(rows, []string{
				m.Name,
				fmt.Sprintf("%s/%s/%s", percent(m.Shares.Baseline), percent(m.Shares.DemandManaged), percent(m.Shares.Uncontrolled)),
				percent(m.EVPercentage),
				percent(m.StoragePercentage),
				percent(m.PVPercentage),
			})
		}
		PrintTable([]string{"MIX", "HEATING (BASE/DM/UN)", "EV", "STORAGE", "PV"}, rows)
		return nil
	},
}

func init() {
	mixesCmd.Flags().StringVarP(&mixesFile, "file", "f", "", "Mix declaration file (overrides config)")
}
