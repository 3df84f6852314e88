package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gridmix/internal/engine"
)

var (
	checkOutput  string
	checkPattern string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify every solved instance exported its monitor CSVs",
	Long: `Check that each instance's feeder directory holds exactly one m1 and
one m2 monitor export and that the m1 export is not truncated.

Writes circuit_check_report.csv and, when anything fails,
failing_circuits.txt to the output directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _, err := outputDir(checkOutput)
		if err != nil {
			return err
		}
		eng, err := newEngine("")
		if err != nil {
			return err
		}

		result, err := eng.Check(&engine.CheckRequest{OutputDir: dir, Pattern: checkPattern})
		if result == nil {
			return err
		}
		if jsonOutput {
			if jerr := outputJSON(result); jerr != nil {
				return jerr
			}
			return err
		}

		printCheck(result)
		if errors.Is(err, engine.ErrCheckFailed) {
			PrintWarning("Failing instances listed in " + result.FailingPath)
		}
		return err
	},
}

func printCheck(result *engine.CheckResult) {
	PrintSection("Export Check")
	if len(result.Rows) == 0 {
		PrintEmptyState("No instances found.")
		return
	}
	rows := make([][]string, 0, len(result.Rows))
	for _, r := range result.Rows {
		status := "PASS"
		if !r.Pass {
			status = "FAIL"
		}
		rows = append(rows, []string{r.Instance, status, strings.Join(r.Reasons, " ")})
	}
	PrintTable([]string{"INSTANCE", "STATUS", "REASONS"}, rows)
	PrintLabelValue("Report", result.ReportPath)
}

func init() {
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "", "Output directory (overrides config)")
	checkCmd.Flags().StringVarP(&checkPattern, "pattern", "p", "", "Check only instances matching this glob")
}
