package harness

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/lifostack/pkg/script"
)

// scriptsDir is the subdirectory of a test case holding its scripts.
const scriptsDir = "scripts"

// TestHarness runs script cases found under a testdata root.
type TestHarness struct {
	root string
}

// NewHarness returns a harness reading cases relative to root.
func NewHarness(root string) *TestHarness {
	return &TestHarness{root: root}
}

// CaseResult is the outcome of every configuration of one test case.
type CaseResult struct {
	Case    *TestCase
	Configs []ConfigurationResult
	Success bool
	Message string
}

// ConfigurationResult is the outcome of a single configuration.
type ConfigurationResult struct {
	Configuration RunConfiguration
	Report        *script.Report // nil when the run ended with an expected error
	Success       bool
	Message       string
	Details       []string
}

// FailedStep is a failing step as reported by the runner.
type FailedStep struct {
	Script  string
	Variant script.Variant
	Step    int
	Message string
}

func stepKey(name string, v script.Variant, step int) string {
	return fmt.Sprintf("%s[%s]#%d", name, v, step)
}

// Run executes every configuration of tc.
func (h *TestHarness) Run(t *testing.T, tc *TestCase) *CaseResult {
	t.Helper()
	require.NotEmpty(t, tc.Configurations, "test case has no configurations")

	res := &CaseResult{Case: tc, Success: true}
	var failed []string
	for _, cfg := range tc.Configurations {
		cr := h.runConfiguration(t, tc, cfg)
		res.Configs = append(res.Configs, cr)
		if cr.Success {
			continue
		}
		res.Success = false
		failed = append(failed, fmt.Sprintf("[%s] %s:\n  %s",
			cfg.Name, cr.Message, strings.Join(cr.Details, "\n  ")))
	}

	if res.Success {
		res.Message = fmt.Sprintf("%d configurations passed", len(tc.Configurations))
	} else {
		res.Message = fmt.Sprintf("%d/%d configurations failed:\n%s",
			len(failed), len(tc.Configurations), strings.Join(failed, "\n"))
	}
	return res
}

func (h *TestHarness) runConfiguration(t *testing.T, tc *TestCase, cfg RunConfiguration) ConfigurationResult {
	t.Helper()
	cr := ConfigurationResult{Configuration: cfg}

	report, err := runScripts(t, filepath.Join(h.root, tc.Dir, scriptsDir), cfg)
	if err != nil {
		if i := slices.IndexFunc(cfg.ExpectedErrors, func(want string) bool {
			return strings.Contains(err.Error(), want)
		}); i >= 0 {
			cr.Success = true
			cr.Message = fmt.Sprintf("got expected error %q", cfg.ExpectedErrors[i])
			return cr
		}
		require.NoError(t, err)
	}
	cr.Report = report

	if len(cfg.ExpectedErrors) > 0 {
		cr.Message = fmt.Sprintf("expected an error containing one of %q, got none", cfg.ExpectedErrors)
		return cr
	}
	if err := validateExpectedFailures(cfg.ExpectedFailures); err != nil {
		cr.Message = "invalid expected.yaml"
		cr.Details = []string{err.Error()}
		return cr
	}

	validateResults(&cr, cfg.ExpectedFailures, failedSteps(report))
	if cfg.ExpectedRuns != 0 && cfg.ExpectedRuns != report.Stats.Runs {
		cr.Success = false
		cr.Details = append(cr.Details,
			fmt.Sprintf("run count: expected %d, got %d", cfg.ExpectedRuns, report.Stats.Runs))
	}
	return cr
}

func failedSteps(report *script.Report) []FailedStep {
	var out []FailedStep
	for _, res := range report.Results {
		for _, f := range res.Failures {
			out = append(out, FailedStep{Script: res.Script, Variant: res.Variant, Step: f.Step, Message: f.Message})
		}
	}
	return out
}

func validateExpectedFailures(expected []ExpectedFailure) error {
	for i, exp := range expected {
		switch {
		case strings.TrimSpace(exp.Script) == "":
			return fmt.Errorf("expected failure %d: missing script", i)
		case exp.Variant == "":
			return fmt.Errorf("expected failure %d: missing variant", i)
		}
	}
	return nil
}

// validateResults matches failing steps against the expected ones by
// script, variant and step number. An expected message must be a substring
// of the actual one.
func validateResults(cr *ConfigurationResult, expected []ExpectedFailure, actual []FailedStep) {
	want := make(map[string]ExpectedFailure, len(expected))
	for _, e := range expected {
		want[stepKey(e.Script, e.Variant, e.Step)] = e
	}
	got := make(map[string]FailedStep, len(actual))
	for _, a := range actual {
		got[stepKey(a.Script, a.Variant, a.Step)] = a
	}

	var missing, unexpected, mismatched []string
	for _, key := range slices.Sorted(maps.Keys(want)) {
		act, ok := got[key]
		switch {
		case !ok:
			missing = append(missing, "Should have failed: "+key)
		case !strings.Contains(act.Message, want[key].Message):
			mismatched = append(mismatched, fmt.Sprintf("Message mismatch for %s: expected to contain %q, got %q",
				key, want[key].Message, act.Message))
		}
	}
	for _, key := range slices.Sorted(maps.Keys(got)) {
		if _, ok := want[key]; !ok {
			unexpected = append(unexpected, fmt.Sprintf("Should have passed: %s (%s)", key, got[key].Message))
		}
	}

	cr.Details = slices.Concat(missing, unexpected, mismatched)
	cr.Success = len(cr.Details) == 0
	if cr.Success {
		cr.Message = fmt.Sprintf("all %d expected failures found", len(expected))
	} else {
		cr.Message = fmt.Sprintf("%d missing, %d unexpected, %d mismatched",
			len(missing), len(unexpected), len(mismatched))
	}
}
