package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/danieljhkim/gridmix/internal/engine"
)

// execute runs the root command with args against a scratch gridmix root
// and returns everything written to the command output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GRIDMIX_ROOT", t.TempDir())
	resetFlags()

	var buf bytes.Buffer
	old := output
	output = &buf
	t.Cleanup(func() { output = old })

	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags() {
	jsonOutput, configPath, verbose = false, "", false
	deployMixes, deployFeeders = nil, nil
	deployWorkers, deployMaxFeeders = 0, 0
	deployDryRun, deployForce, deployRun = false, false, false
	planSubstation, planFeeder, planMix = "", "", ""
	runOutput, runPattern, runWorkers, runTimeout = "", "", 0, 0
	checkOutput, checkPattern = "", ""
	mixesFile = ""

	// cobra keeps parsed values between Execute calls
	for _, name := range []string{"help", "version"} {
		if f := rootCmd.Flags().Lookup(name); f != nil {
			_ = f.Value.Set("false")
			f.Changed = false
		}
	}
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"gridmix", "Deployment:", "Simulation:", "deploy", "check"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestRootCommand_Version(t *testing.T) {
	SetVersion("1.2.3")
	out, err := execute(t, "--version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "1.2.3") {
		t.Errorf("expected version output to contain 1.2.3, got %q", out)
	}
}

func TestRootCommand_InvalidCommand(t *testing.T) {
	if _, err := execute(t, "invalid-command"); err == nil {
		t.Error("expected error for invalid command")
	}
}

func TestSetVersion(t *testing.T) {
	oldRoot, oldEngine := rootCmd.Version, engine.Version
	t.Cleanup(func() {
		rootCmd.Version, engine.Version = oldRoot, oldEngine
	})

	SetVersion("")
	if rootCmd.Version != oldRoot {
		t.Errorf("SetVersion(\"\") changed version to %q", rootCmd.Version)
	}

	SetVersion("2.0.0")
	if rootCmd.Version != "2.0.0" {
		t.Errorf("rootCmd.Version = %q, want 2.0.0", rootCmd.Version)
	}
	if engine.Version != "2.0.0" {
		t.Errorf("engine.Version = %q, want 2.0.0", engine.Version)
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	groups := map[string]string{
		"deploy":     "deployment",
		"plan":       "deployment",
		"run":        "simulation",
		"check":      "simulation",
		"mixes":      "inspection",
		"version":    "cli-tooling",
		"completion": "cli-tooling",
	}

	for name, group := range groups {
		t.Run(name, func(t *testing.T) {
			sub, _, err := rootCmd.Find([]string{name})
			if err != nil {
				t.Fatalf("Find(%q) error = %v", name, err)
			}
			if sub.GroupID != group {
				t.Errorf("%s group = %q, want %q", name, sub.GroupID, group)
			}
		})
	}
}
