// Package main implements the stackctl CLI, which replays stack operation
// scripts and reports every step whose outcome differs from the script.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/715d/lifostack/pkg/script"
)

const (
	exitFailuresFound = 1
	exitError         = 2
)

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var (
	cfgFile string
	cfg     = &Config{}
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		_ = teardown(nil, nil)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		var cErr *codedError
		if errors.As(err, &cErr) {
			os.Exit(cErr.code)
		}
		os.Exit(exitError)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stackctl",
		Short: "Replay stack operation scripts",
		Long: `stackctl replays YAML scripts of stack operations against the plain and
synchronized stack containers and checks every step.

Each step is checked against the script's expectations and against the
container's postconditions (count changes for push and pop, an empty stack
after clear, to_array length equal to the count).`,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Version:            version,
	}

	// Set custom version template to include build info.
	rootCmd.SetVersionTemplate(fmt.Sprintf("stackctl version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: ./stackctl.yaml when present)")
	flags.BoolP("verbose", "v", false, "Enable verbose output")
	flags.Bool("json", false, "Output in JSON format")
	flags.String("format", formatText, "Output format: text, table or json")
	flags.Int("parallel", 0, "Scripts to run at once (0: one per CPU)")
	flags.StringSlice("variants", nil, "Only run these variants: plain, synchronized")
	flags.Bool("fail-fast", false, "Stop a script at its first failing step")
	flags.Bool("profile", false, "Enable CPU and memory profiling (writes cpu.prof and mem.prof to current directory)")

	runCmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run scripts from files or directories",
		Example: `  stackctl run ./scripts                    # Run every script below ./scripts
  stackctl run push.yaml pop.yaml           # Run specific files
  stackctl run --variants synchronized .    # Only the synchronized container
  stackctl run --format table ./scripts     # Summary table
  stackctl run --json . > report.json       # JSON output to file`,
		Args: cobra.ArbitraryArgs,
		RunE: runCommand,
	}
	rootCmd.AddCommand(runCmd)
	return rootCmd
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg.Paths = args
	if len(cfg.Paths) == 0 {
		cfg.Paths = []string{"./scripts"}
	}

	slog.Info("loading scripts", "paths", cfg.Paths)
	scripts, err := script.LoadScripts(cmd.Context(), script.LoaderOptions{Paths: cfg.Paths})
	if err != nil {
		return errWithCode(fmt.Errorf("load: %w", err), exitError)
	}
	slog.Info("loaded scripts", "num", len(scripts))

	runner := script.NewRunner(script.RunnerOptions{
		Parallelism: cfg.Parallel,
		Variants:    cfg.variants(),
		FailFast:    cfg.FailFast,
	})
	report, err := runner.Run(cmd.Context(), scripts)
	if err != nil {
		return errWithCode(fmt.Errorf("run: %w", err), exitError)
	}
	slog.Info("run completed", "runs", report.Stats.Runs, "failed", report.Stats.Failed, "dur", report.Stats.Duration)

	if err := writeReport(cmd.OutOrStdout(), report, cfg); err != nil {
		return errWithCode(fmt.Errorf("format results: %w", err), exitError)
	}

	if report.Failed() {
		return errWithCode(nil, exitFailuresFound)
	}
	return nil
}

var cpuProfile *os.File

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := loadConfig(cfgFile, cmd.Flags())
	if err != nil {
		return errWithCode(err, exitError)
	}
	*cfg = *loaded

	// Disable logger unless verbose flag is set.
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if cfg.Verbose {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.Format == formatJSON {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
	}

	if !cfg.Profile {
		return nil
	}

	// Start CPU profiling.
	cpuProfile, err = os.Create("cpu.prof")
	if err != nil {
		return fmt.Errorf("creating cpu.prof: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		_ = cpuProfile.Close()
		cpuProfile = nil
		return fmt.Errorf("starting CPU profile: %w", err)
	}
	slog.Info("cpu profiling started", "file", "cpu.prof")
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if !cfg.Profile || cpuProfile == nil {
		return nil
	}

	// Stop CPU profiling and close file.
	pprof.StopCPUProfile()
	defer func() {
		_ = cpuProfile.Close()
		cpuProfile = nil
	}()
	slog.Info("cpu profiling stopped", "file", "cpu.prof")

	// Write memory profile.
	memFile, err := os.Create("mem.prof")
	if err != nil {
		return fmt.Errorf("creating mem.prof: %w", err)
	}
	defer memFile.Close()
	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	slog.Info("memory profiling completed", "file", "mem.prof")
	return nil
}

func errWithCode(err error, code int) error {
	return &codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e *codedError) Unwrap() error {
	return e.err
}
