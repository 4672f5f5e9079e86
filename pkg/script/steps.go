package script

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/715d/lifostack/pkg/stack"
)

// exec runs one step and checks its expectations and the container's
// postconditions. A nil error means the step behaved as scripted.
func (ss *session) exec(ctx context.Context, step Step) error {
	c, err := ss.lookup(step.target())
	if err != nil {
		return err
	}

	switch step.Op {
	case OpPush:
		before := c.Len()
		c.Push(step.Value)
		if err := checkLen(c, before+1, step.Op); err != nil {
			return err
		}
		return expectNoError(step)

	case OpPop:
		before := c.Len()
		v, err := c.Pop()
		failed, err := checkOutcome(step, err)
		if err != nil {
			return err
		}
		if failed {
			return checkLen(c, before, step.Op)
		}
		if err := checkLen(c, before-1, step.Op); err != nil {
			return err
		}
		return checkExpect(step, v)

	case OpPeek:
		before := c.Len()
		v, err := c.Peek()
		failed, err := checkOutcome(step, err)
		if err != nil {
			return err
		}
		if failed {
			return checkLen(c, before, step.Op)
		}
		if err := checkLen(c, before, step.Op); err != nil {
			return err
		}
		return checkExpect(step, v)

	case OpCount:
		return checkExpect(step, strconv.Itoa(c.Len()))

	case OpContains:
		return checkExpect(step, strconv.FormatBool(stack.Contains(c, step.Value)))

	case OpToArray:
		n := c.Len()
		items := c.ToSlice()
		if items == nil {
			return fmt.Errorf("postcondition: to_array returned nil")
		}
		if len(items) != n {
			return fmt.Errorf("postcondition: to_array returned %d elements, Len() = %d", len(items), n)
		}
		return checkItems(step, items)

	case OpEnumerate:
		n := c.Len()
		var items []string
		for e := c.Enumerator(); e.Next(); {
			items = append(items, e.Current())
		}
		if len(items) != n {
			return fmt.Errorf("enumerator yielded %d elements, Len() = %d", len(items), n)
		}
		return checkItems(step, items)

	case OpCopyTo:
		before := c.Len()
		dst := make([]string, step.Length)
		failed, err := checkOutcome(step, c.CopyTo(dst, step.Index))
		if err != nil {
			return err
		}
		if failed {
			if slices.ContainsFunc(dst, func(s string) bool { return s != "" }) {
				return fmt.Errorf("failed copy_to wrote to the destination")
			}
			return checkLen(c, before, step.Op)
		}
		if err := checkLen(c, before, step.Op); err != nil {
			return err
		}
		return checkItems(step, dst)

	case OpClear:
		c.Clear()
		if err := checkLen(c, 0, step.Op); err != nil {
			return err
		}
		return expectNoError(step)

	case OpClone:
		cl := stack.Clone(c)
		if err := ss.add(step.Into, cl); err != nil {
			return err
		}
		if cl.IsSynchronized() != c.IsSynchronized() {
			return fmt.Errorf("clone changed the variant")
		}
		if got, want := cl.ToSlice(), c.ToSlice(); !slices.Equal(got, want) {
			return fmt.Errorf("clone holds %v, source holds %v", got, want)
		}
		return expectNoError(step)

	case OpTrim:
		before := c.Len()
		if t, ok := c.(interface{ TrimExcess() }); ok {
			t.TrimExcess()
		}
		if err := checkLen(c, before, step.Op); err != nil {
			return err
		}
		return expectNoError(step)

	case OpParallelPush:
		return ss.parallelPush(ctx, c, step)
	}
	return fmt.Errorf("unknown op %q", step.Op)
}

// parallelPush pushes step.Values from several goroutines, each resolving the
// target stack by name.
func (ss *session) parallelPush(ctx context.Context, c stack.Container[string], step Step) error {
	if !c.IsSynchronized() {
		return fmt.Errorf("parallel_push needs a synchronized stack")
	}
	workers := step.Workers
	if workers == 0 {
		workers = defaultWorkers
	}

	before := c.Len()
	name := step.target()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, v := range step.Values {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			target, err := ss.lookup(name)
			if err != nil {
				return err
			}
			target.Push(v)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := checkLen(c, before+len(step.Values), step.Op); err != nil {
		return err
	}
	for _, v := range step.Values {
		if !stack.Contains(c, v) {
			return fmt.Errorf("value %q missing after parallel_push", v)
		}
	}
	return expectNoError(step)
}

// checkOutcome compares err with the failure the step expects. failed
// reports that the operation was rejected as scripted.
func checkOutcome(step Step, err error) (failed bool, _ error) {
	if step.Error == "" {
		if err != nil {
			return true, fmt.Errorf("unexpected error: %w", err)
		}
		return false, nil
	}
	if err == nil {
		return false, fmt.Errorf("expected %s error, got none", step.Error)
	}
	if !errors.Is(err, errorNames[step.Error]) {
		return true, fmt.Errorf("expected %s error, got: %w", step.Error, err)
	}
	return true, nil
}

func expectNoError(step Step) error {
	_, err := checkOutcome(step, nil)
	return err
}

func checkLen(c stack.Container[string], want int, op Op) error {
	if got := c.Len(); got != want {
		return fmt.Errorf("postcondition: Len() = %d after %s, want %d", got, op, want)
	}
	return nil
}

func checkExpect(step Step, got string) error {
	if step.Expect != nil && *step.Expect != got {
		return fmt.Errorf("got %q, want %q", got, *step.Expect)
	}
	return expectNoError(step)
}

func checkItems(step Step, got []string) error {
	if step.Items != nil && !slices.Equal(step.Items, got) {
		return fmt.Errorf("got %v, want %v", got, step.Items)
	}
	return expectNoError(step)
}
