// Package harness provides test harness infrastructure for replaying the
// testdata script cases against the stack containers.
package harness

import "github.com/715d/lifostack/pkg/script"

// TestCase represents a single test scenario: a directory holding a scripts/
// subdirectory and an expected.yaml describing the configurations to run.
type TestCase struct {
	// Dir is the directory containing the test scripts, relative to the testdata root.
	Dir string `yaml:"-"`

	// Configurations defines the runner configurations to test.
	Configurations []RunConfiguration `yaml:"configurations"`
}

// RunConfiguration represents a single runner configuration to test.
type RunConfiguration struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name"`

	// Variants restricts the container variants. Empty runs what each script asks for.
	Variants []script.Variant `yaml:"variants,omitempty"`

	// FailFast stops each script at its first failing step.
	FailFast bool `yaml:"fail_fast,omitempty"`

	// ExpectedRuns is the number of script/variant runs, when non-zero.
	ExpectedRuns int `yaml:"expected_runs,omitempty"`

	// ExpectedFailures lists the failing steps expected for this configuration.
	ExpectedFailures []ExpectedFailure `yaml:"expected_failures"`

	// ExpectedErrors lists error substrings that make a load or run error a pass.
	ExpectedErrors []string `yaml:"expected_errors"`
}

// ExpectedFailure represents a step expected to be reported as failing.
type ExpectedFailure struct {
	// Script is the script name.
	Script string `yaml:"script"`

	// Variant is the variant the failure occurs on.
	Variant script.Variant `yaml:"variant"`

	// Step is the 1-based step number; 0 means construction.
	Step int `yaml:"step"`

	// Message is an optional substring of the failure message.
	Message string `yaml:"message,omitempty"`
}
