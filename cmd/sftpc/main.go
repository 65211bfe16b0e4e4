// Package main is the entrypoint for the sftpc CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	// Import actions to register them
	_ "github.com/codemonument/sftpc/internal/action/command"
	_ "github.com/codemonument/sftpc/internal/action/copy"
	_ "github.com/codemonument/sftpc/internal/action/file"
	_ "github.com/codemonument/sftpc/internal/action/listing"
	_ "github.com/codemonument/sftpc/internal/action/navigate"
	_ "github.com/codemonument/sftpc/internal/action/template"
	_ "github.com/codemonument/sftpc/internal/action/transfer"

	"github.com/codemonument/sftpc/internal/action"
	"github.com/codemonument/sftpc/internal/plan"
	"github.com/codemonument/sftpc/internal/runner"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	debug     bool
	noColor   bool
	logFormat string
	verbosity verbosityFlag
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sftpc",
	Short: "sftpc - scriptable sftp sessions",
	Long: `sftpc drives the OpenSSH sftp client over its interactive prompt.
Every command becomes an operation that settles once sftp confirms or
rejects it, so transfers can be scripted and checked.

Commands run ad hoc against a host or from yaml plans.`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	PersistentPreRunE: loadEnv,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output with step details and sftp output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Session log format (text, json)")
	rootCmd.PersistentFlags().Var(&verbosity, "verbosity", "Session diagnostics (normal, verbose, silent, only-unknown, unknown-and-error)")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(actionsCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(pwdCmd)
	rootCmd.AddCommand(lsCmd)
}

// runCmd executes a plan file
var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Run a plan",
	Long: `Execute every plan in a plan file, each in its own sftp session.

Examples:
  sftpc run publish.yaml
  sftpc run publish.yaml --debug
  sftpc run mirrors.yaml --parallel --max-parallel 4
  sftpc run publish.yaml --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

var (
	dryRun      bool
	parallel    bool
	maxParallel int
)

func init() {
	runCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would be done without starting sftp")
	runCmd.Flags().BoolVarP(&parallel, "parallel", "p", false, "Run the plans of the file concurrently")
	runCmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "Limit concurrent plans (0: no limit)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	planPath := args[0]

	if _, err := os.Stat(planPath); os.IsNotExist(err) {
		return fmt.Errorf("plan not found: %s", planPath)
	}

	f, err := plan.ParseFile(planPath)
	if err != nil {
		return fmt.Errorf("failed to parse plan: %w", err)
	}

	r := runner.New()
	r.Output = newOutput()
	r.DryRun = dryRun
	r.Parallel = parallel
	r.MaxParallel = maxParallel
	if verbosity.set {
		r.Verbosity = verbosity.mode.String()
	}
	if log := newLogger(); log != nil {
		r.Logger = log
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := r.Run(ctx, f)
	if err != nil {
		return err
	}

	if !result.Success {
		os.Exit(1)
	}

	return nil
}

// validateCmd validates plans without running them
var validateCmd = &cobra.Command{
	Use:   "validate <plan.yaml> [plan2.yaml ...]",
	Short: "Validate one or more plan files",
	Long: `Parse and validate plan files without starting sftp.

This checks for:
  - Valid YAML syntax
  - Required fields (host, steps)
  - Valid action names
  - Step structure

Examples:
  sftpc validate publish.yaml
  sftpc validate plans/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: validatePlans,
}

func validatePlans(cmd *cobra.Command, args []string) error {
	var hasErrors bool

	for _, planPath := range args {
		if err := validatePlan(planPath); err != nil {
			fmt.Printf("FAIL: %s - %v\n", planPath, err)
			hasErrors = true
		} else {
			fmt.Printf("OK: %s\n", planPath)
		}
	}

	if hasErrors {
		return fmt.Errorf("one or more plan files failed validation")
	}

	fmt.Printf("\nAll %d plan file(s) valid.\n", len(args))
	return nil
}

func validatePlan(planPath string) error {
	if _, err := os.Stat(planPath); os.IsNotExist(err) {
		return fmt.Errorf("not found")
	}

	f, err := plan.ParseFile(planPath)
	if err != nil {
		return err
	}

	var errors []string
	for _, p := range f.Plans {
		for _, step := range p.Steps {
			plan.ExpandShorthand(step)
			if err := plan.ResolveAction(step); err != nil {
				errors = append(errors, fmt.Sprintf("%s: %v", step.String(), err))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%d error(s): %s", len(errors), errors[0])
	}

	return nil
}

// actionsCmd lists available actions
var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List available actions",
	Long:  `Display a list of all actions that can be used in plan steps.`,
	Run: func(cmd *cobra.Command, args []string) {
		actions := action.List()
		if len(actions) == 0 {
			fmt.Println("No actions registered.")
			return
		}

		fmt.Println("Available actions:")
		fmt.Println()
		for _, name := range actions {
			fmt.Printf("  - %s\n", name)
		}
		fmt.Println()
		fmt.Printf("Total: %d actions\n", len(actions))
	},
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
