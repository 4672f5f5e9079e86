package script

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const exampleTrace = `
name: example-trace
steps:
  - op: push
    value: "1"
  - op: push
    value: "2"
  - op: peek
    expect: "2"
  - op: pop
    expect: "2"
  - op: count
    expect: "1"
  - op: pop
    expect: "1"
  - op: count
    expect: "0"
  - op: pop
    error: empty
`

func TestRunner_NewRunner(t *testing.T) {
	r := NewRunner(RunnerOptions{Parallelism: 3})
	require.NotNil(t, r)
	require.Equal(t, 3, r.opts.Parallelism)
}

func TestRunner_Validation(t *testing.T) {
	r := NewRunner(RunnerOptions{})

	_, err := r.Run(t.Context(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no scripts")

	_, err = r.Run(t.Context(), []*Script{nil})
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil script")
}

func TestRunner_ExampleTrace(t *testing.T) {
	report, err := NewRunner(RunnerOptions{}).Run(t.Context(), mustParse(t, exampleTrace))
	require.NoError(t, err)

	require.False(t, report.Failed())
	require.Equal(t, 1, report.Stats.Scripts)
	require.Equal(t, 2, report.Stats.Runs)
	require.Equal(t, 2, report.Stats.Passed)
	require.EqualValues(t, 16, report.Stats.Steps)

	require.Len(t, report.Results, 2)
	require.Equal(t, VariantPlain, report.Results[0].Variant)
	require.Equal(t, VariantSynchronized, report.Results[1].Variant)
	for _, res := range report.Results {
		require.True(t, res.Passed, "failures: %v", res.Failures)
		require.Equal(t, 8, res.Steps)
	}
}

func TestRunner_Operations(t *testing.T) {
	src := `
name: operations
seed: ["a", "b", "c"]
steps:
  - op: to_array
    items: ["c", "b", "a"]
  - op: enumerate
    items: ["c", "b", "a"]
  - op: contains
    value: "b"
    expect: "true"
  - op: contains
    value: "z"
    expect: "false"
  - op: copy_to
    length: 5
    index: 1
    items: ["", "c", "b", "a", ""]
  - op: copy_to
    length: 3
    index: 1
    error: destination_too_small
  - op: copy_to
    length: 3
    index: 3
    error: index_out_of_range
  - op: clone
    into: copy
  - op: push
    stack: copy
    value: "d"
  - op: count
    stack: copy
    expect: "4"
  - op: count
    expect: "3"
  - op: trim
  - op: clear
  - op: count
    expect: "0"
  - op: to_array
    items: []
  - op: peek
    error: empty
  - op: peek
    stack: copy
    expect: "d"
`
	report, err := NewRunner(RunnerOptions{}).Run(t.Context(), mustParse(t, src))
	require.NoError(t, err)
	for _, res := range report.Results {
		require.True(t, res.Passed, "%s: failures: %v", res.Variant, res.Failures)
	}
}

func TestRunner_ReportsFailures(t *testing.T) {
	src := `
name: wrong
variants: [plain]
steps:
  - op: push
    value: "a"
  - op: peek
    expect: "b"
  - op: pop
    error: empty
  - op: count
    expect: "7"
  - op: pop
  - op: count
    stack: nowhere
    expect: "0"
`
	scripts := mustParse(t, src)

	report, err := NewRunner(RunnerOptions{}).Run(t.Context(), scripts)
	require.NoError(t, err)
	require.True(t, report.Failed())
	require.Equal(t, 1, report.Stats.Failed)

	res := report.Results[0]
	require.False(t, res.Passed)
	require.Equal(t, 6, res.Steps)

	var steps []int
	for _, f := range res.Failures {
		steps = append(steps, f.Step)
	}
	require.Equal(t, []int{2, 3, 4, 5, 6}, steps)
	require.Contains(t, res.Failures[0].Message, `got "a", want "b"`)
	require.Contains(t, res.Failures[1].Message, "expected empty error, got none")
	require.Contains(t, res.Failures[2].Message, `got "0", want "7"`)
	require.Contains(t, res.Failures[3].Message, "unexpected error")
	require.Contains(t, res.Failures[4].Message, `no stack named "nowhere"`)
}

func TestRunner_FailFast(t *testing.T) {
	src := `
variants: [plain]
steps:
  - op: pop
  - op: push
    value: "a"
  - op: pop
    expect: "b"
`
	report, err := NewRunner(RunnerOptions{FailFast: true}).Run(t.Context(), mustParse(t, src))
	require.NoError(t, err)
	res := report.Results[0]
	require.Equal(t, 1, res.Steps)
	require.Len(t, res.Failures, 1)
	require.Equal(t, OpPop, res.Failures[0].Op)
}

func TestRunner_Construction(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		passed   bool
		contains string
	}{
		{
			name:   "expected negative capacity",
			src:    "capacity: -1\nexpect_error: negative_capacity\nsteps: []\n",
			passed: true,
		},
		{
			name:     "unexpected negative capacity",
			src:      "capacity: -1\nsteps: []\n",
			contains: "construction",
		},
		{
			name:     "expected error not raised",
			src:      "capacity: 1\nexpect_error: negative_capacity\nsteps: []\n",
			contains: "construction succeeded",
		},
		{
			name:   "nil collection",
			src:    "construct: from_nil\nexpect_error: nil_collection\nsteps: []\n",
			passed: true,
		},
		{
			name:   "nil stack",
			src:    "construct: synchronized_nil\nvariants: [synchronized]\nexpect_error: nil_stack\nsteps: []\n",
			passed: true,
		},
		{
			name:     "nil collection without expect_error",
			src:      "construct: from_nil\nsteps: []\n",
			contains: "col != nil",
		},
		{
			name:   "capacity with seed",
			src:    "capacity: 1\nseed: [\"a\", \"b\"]\nsteps:\n  - op: pop\n    expect: \"b\"\n",
			passed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := NewRunner(RunnerOptions{}).Run(t.Context(), mustParse(t, tt.src))
			require.NoError(t, err)
			for _, res := range report.Results {
				require.Equal(t, tt.passed, res.Passed, "failures: %v", res.Failures)
				if !tt.passed {
					require.Equal(t, 0, res.Failures[0].Step)
					require.Contains(t, res.Failures[0].Message, tt.contains)
				}
			}
		})
	}
}

func TestRunner_VariantFilter(t *testing.T) {
	scripts := mustParse(t, exampleTrace+"---\nname: sync-only\nvariants: [synchronized]\nsteps: []\n")

	report, err := NewRunner(RunnerOptions{Variants: []Variant{VariantPlain}}).Run(t.Context(), scripts)
	require.NoError(t, err)
	require.Equal(t, 1, report.Stats.Scripts)
	require.Equal(t, 1, report.Stats.Runs)
	require.Equal(t, VariantPlain, report.Results[0].Variant)

	report, err = NewRunner(RunnerOptions{Variants: []Variant{VariantSynchronized}}).Run(t.Context(), scripts)
	require.NoError(t, err)
	require.Equal(t, 2, report.Stats.Scripts)
	require.Equal(t, 2, report.Stats.Runs)

	_, err = NewRunner(RunnerOptions{Variants: []Variant{VariantPlain}}).Run(t.Context(), scripts[1:])
	require.Error(t, err)
	require.Contains(t, err.Error(), "no script runs the selected variants")
}

func TestRunner_ParallelPush(t *testing.T) {
	var values []string
	for i := range 200 {
		values = append(values, fmt.Sprintf("%q", fmt.Sprint(i)))
	}
	src := fmt.Sprintf(`
variants: [synchronized]
seed: ["base"]
steps:
  - op: parallel_push
    values: [%s]
    workers: 8
  - op: count
    expect: "201"
  - op: clone
    into: snapshot
  - op: parallel_push
    stack: snapshot
    values: ["x", "y"]
  - op: count
    stack: snapshot
    expect: "203"
  - op: count
    expect: "201"
`, strings.Join(values, ", "))

	report, err := NewRunner(RunnerOptions{}).Run(t.Context(), mustParse(t, src))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.True(t, report.Results[0].Passed, "failures: %v", report.Results[0].Failures)
}

func TestRunner_ManyScriptsInParallel(t *testing.T) {
	var scripts []*Script
	for i := range 50 {
		s := mustParse(t, exampleTrace)[0]
		s.Name = fmt.Sprintf("trace-%d", i)
		scripts = append(scripts, s)
	}

	report, err := NewRunner(RunnerOptions{Parallelism: 4}).Run(t.Context(), scripts)
	require.NoError(t, err)
	require.Equal(t, 100, report.Stats.Runs)
	require.Equal(t, 100, report.Stats.Passed)
	require.EqualValues(t, 800, report.Stats.Steps)
	for i, res := range report.Results {
		require.Equal(t, fmt.Sprintf("trace-%d", i/2), res.Script, "results keep script order")
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := NewRunner(RunnerOptions{}).Run(ctx, mustParse(t, exampleTrace))
	require.ErrorIs(t, err, context.Canceled)
}
