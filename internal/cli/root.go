package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/danieljhkim/gridmix/internal/engine"
)

var (
	// Global flags
	jsonOutput bool
	configPath string
	verbose    bool

	// Colors for help output sections
	groupTitleColor   = color.New(color.FgCyan, color.Bold)
	sectionTitleColor = color.New(color.FgBlue, color.Bold)
)

// rootCmd is the root command for gridmix.
var rootCmd = &cobra.Command{
	Use:     "gridmix",
	Version: "dev",
	Short:   "Scenario deployment engine for distribution feeders",
	Long: `gridmix turns OpenDSS feeder templates into scenario instances.

Each instance carries a heating category mix, EV charging loads, and
battery storage and PV systems drawn from a mix declaration, plus a
manifest that records every allocation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// SetVersion sets the CLI version, which is also stamped into provenance.
func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	engine.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// customHelpFunc prints help with colored group titles and commands aligned
// to the longest visible name.
func customHelpFunc(cmd *cobra.Command, args []string) {
	var help strings.Builder

	if cmd.Long != "" {
		help.WriteString(cmd.Long)
		help.WriteString("\n\n")
	} else if cmd.Short != "" {
		help.WriteString(cmd.Short)
		help.WriteString("\n\n")
	}

	help.WriteString(sectionTitleColor.Sprint("Usage:"))
	fmt.Fprintf(&help, "\n  %s\n\n", cmd.UseLine())

	width := 0
	for _, c := range cmd.Commands() {
		if !c.Hidden && len(c.Name()) > width {
			width = len(c.Name())
		}
	}
	section := func(title string, cmds []*cobra.Command) {
		if len(cmds) == 0 {
			return
		}
		help.WriteString(title)
		help.WriteString("\n")
		for _, c := range cmds {
			fmt.Fprintf(&help, "  %-*s  %s\n", width, c.Name(), c.Short)
		}
		help.WriteString("\n")
	}

	// groups first, then anything without one
	byGroup := make(map[string][]*cobra.Command)
	for _, c := range cmd.Commands() {
		if !c.Hidden {
			byGroup[c.GroupID] = append(byGroup[c.GroupID], c)
		}
	}
	for _, group := range cmd.Groups() {
		section(groupTitleColor.Sprint(group.Title), byGroup[group.ID])
	}
	section(sectionTitleColor.Sprint("Additional Commands:"), byGroup[""])

	if cmd.HasAvailableLocalFlags() || cmd.HasAvailableInheritedFlags() {
		help.WriteString(sectionTitleColor.Sprint("Flags:"))
		help.WriteString("\n")
		help.WriteString(cmd.LocalFlags().FlagUsages())
		help.WriteString(cmd.InheritedFlags().FlagUsages())
		help.WriteString("\n")
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(&help, "Use \"%s [command] --help\" for more information about a command.\n", cmd.CommandPath())
	}
	fmt.Fprint(cmd.OutOrStdout(), help.String())
}

// completionShells maps each supported shell to its script generator.
var completionShells = []struct {
	name string
	gen  func(w io.Writer) error
}{
	{"bash", func(w io.Writer) error { return rootCmd.GenBashCompletionV2(w, true) }},
	{"zsh", rootCmd.GenZshCompletion},
	{"fish", func(w io.Writer) error { return rootCmd.GenFishCompletion(w, true) }},
	{"powershell", rootCmd.GenPowerShellCompletionWithDesc},
}

func init() {
	// Set custom help function to color group titles
	rootCmd.SetHelpFunc(customHelpFunc)

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Deploy config file (default ./gridmix.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log debug output to stderr")

	// Define command groups
	rootCmd.AddGroup(&cobra.Group{
		ID:    "deployment",
		Title: "Deployment:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "simulation",
		Title: "Simulation:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "inspection",
		Title: "Inspection:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "cli-tooling",
		Title: "CLI & Tooling:",
	})

	// CLI & Tooling commands
	rootCmd.AddCommand(&cobra.Command{
		Use:     "version",
		Short:   "Print the gridmix CLI version",
		Args:    cobra.NoArgs,
		GroupID: "cli-tooling",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), rootCmd.Version)
		},
	})

	rootCmd.SetHelpCommand(&cobra.Command{
		Use:     "help [command]",
		Short:   "Help about any command",
		GroupID: "cli-tooling",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _, err := rootCmd.Find(args)
			if err != nil {
				return err
			}
			return target.Help()
		},
	})

	completionCmd := &cobra.Command{
		Use:     "completion",
		Short:   "Generate the autocompletion script for the specified shell",
		GroupID: "cli-tooling",
		Long: `Generate the autocompletion script for gridmix for the specified shell.
See each sub-command's help for details on how to use the generated script.`,
	}
	for _, shell := range completionShells {
		completionCmd.AddCommand(&cobra.Command{
			Use:                   shell.name,
			Short:                 "Generate the autocompletion script for " + shell.name,
			Args:                  cobra.NoArgs,
			DisableFlagsInUseLine: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return shell.gen(os.Stdout)
			},
		})
	}
	rootCmd.AddCommand(completionCmd)

	// Deployment commands
	deployCmd.GroupID = "deployment"
	planCmd.GroupID = "deployment"
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(planCmd)

	// Simulation commands
	runCmd.GroupID = "simulation"
	checkCmd.GroupID = "simulation"
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)

	// Inspection commands
	mixesCmd.GroupID = "inspection"
	rootCmd.AddCommand(mixesCmd)
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}
