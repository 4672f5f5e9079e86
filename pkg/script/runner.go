package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	goruntime "runtime"
	"slices"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
)

// RunnerOptions holds configuration options for the runner.
type RunnerOptions struct {
	Parallelism int       // Scripts in flight at once; <= 0 means one per CPU.
	Variants    []Variant // Only run these variants; empty runs what each script asks for.
	FailFast    bool      // Stop a run at its first failing step.
}

// Runner replays scripts against stack containers.
type Runner struct {
	opts RunnerOptions
}

// NewRunner creates a new runner with the given options.
func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{opts: opts}
}

type job struct {
	script  *Script
	variant Variant
}

// Run executes every script against each of its variants and collects the
// results in script order. The returned error is non-nil only when the run
// could not complete, e.g. because ctx was cancelled; failing steps are
// reported in the Report.
func (r *Runner) Run(ctx context.Context, scripts []*Script) (*Report, error) {
	if len(scripts) == 0 {
		return nil, fmt.Errorf("no scripts provided")
	}
	for _, s := range scripts {
		if s == nil {
			return nil, fmt.Errorf("nil script")
		}
	}
	start := time.Now()

	jobs, planned := r.plan(scripts)
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no script runs the selected variants %v", r.opts.Variants)
	}
	slog.Debug("planned script runs", "scripts", planned, "runs", len(jobs))

	// Each goroutine writes only to its own index.
	results := make([]Result, len(jobs))
	steps := xsync.NewCounter()

	limit := r.opts.Parallelism
	if limit <= 0 {
		limit = goruntime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for idx, j := range jobs {
		g.Go(func() error {
			res, err := r.runOne(gctx, j.script, j.variant, steps)
			if err != nil {
				return fmt.Errorf("script %s (%s): %w", j.script.Name, j.variant, err)
			}
			results[idx] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Results: results}
	report.Stats.Scripts = planned
	report.Stats.Runs = len(results)
	report.Stats.Steps = steps.Value()
	for _, res := range results {
		if res.Passed {
			report.Stats.Passed++
		} else {
			report.Stats.Failed++
		}
	}
	report.Stats.Duration = time.Since(start)
	return report, nil
}

// plan expands scripts into one job per selected variant. It also returns
// how many scripts got at least one job.
func (r *Runner) plan(scripts []*Script) ([]job, int) {
	var jobs []job
	planned := 0
	for _, s := range scripts {
		variants := s.Variants
		if len(variants) == 0 {
			variants = AllVariants
		}
		n := 0
		for _, v := range variants {
			if len(r.opts.Variants) > 0 && !slices.Contains(r.opts.Variants, v) {
				continue
			}
			jobs = append(jobs, job{script: s, variant: v})
			n++
		}
		if n == 0 {
			slog.Debug("no selected variant for script", "script", s.Name)
			continue
		}
		planned++
	}
	return jobs, planned
}

// runOne runs a single script against one variant.
func (r *Runner) runOne(ctx context.Context, s *Script, variant Variant, steps *xsync.Counter) (Result, error) {
	start := time.Now()
	res := Result{Script: s.Name, Path: s.Path, Variant: variant}
	fail := func(step int, op Op, err error) {
		res.Failures = append(res.Failures, StepFailure{Step: step, Op: op, Message: err.Error()})
	}

	ss, err := newSession(s, variant)
	switch {
	case s.ExpectError != "":
		if err == nil {
			fail(0, "", fmt.Errorf("construction succeeded, expected %s error", s.ExpectError))
		} else if !errors.Is(err, errorNames[s.ExpectError]) {
			fail(0, "", fmt.Errorf("expected %s error, got: %w", s.ExpectError, err))
		}
	case err != nil:
		fail(0, "", fmt.Errorf("construction: %w", err))
	default:
		for i, step := range s.Steps {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			steps.Inc()
			res.Steps++
			if err := ss.exec(ctx, step); err != nil {
				fail(i+1, step.Op, err)
				if r.opts.FailFast {
					break
				}
			}
		}
	}

	res.Passed = len(res.Failures) == 0
	res.Duration = time.Since(start)
	slog.Debug("script finished",
		"script", s.Name,
		"variant", variant,
		"passed", res.Passed,
		"steps", res.Steps,
		"dur", res.Duration)
	return res, nil
}
