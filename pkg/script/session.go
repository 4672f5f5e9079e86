package script

import (
	"fmt"
	"iter"
	"slices"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/lifostack/pkg/stack"
)

// session holds the named stacks of a single script run. parallel_push
// workers resolve their target concurrently, hence the concurrent map.
type session struct {
	variant Variant
	stacks  *xsync.Map[string, stack.Container[string]]
}

// newSession builds the main stack for s. A non-nil error is the
// precondition failure returned by construction.
func newSession(s *Script, variant Variant) (*session, error) {
	base, err := buildStack(s)
	if err != nil {
		return nil, err
	}

	var c stack.Container[string] = base
	switch {
	case s.Construct == ConstructSynchronizedNil:
		if _, err := stack.Synchronized[string](nil); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("synchronized wrapper over a nil stack built without error")
	case variant == VariantSynchronized:
		c, err = stack.Synchronized(base)
		if err != nil {
			return nil, err
		}
	}

	ss := &session{
		variant: variant,
		stacks:  xsync.NewMap[string, stack.Container[string]](),
	}
	ss.stacks.Store(DefaultStack, c)
	return ss, nil
}

func buildStack(s *Script) (*stack.Stack[string], error) {
	switch {
	case s.Construct == ConstructFromNil:
		return stack.NewFrom[string](nil)
	case s.Capacity != nil:
		st, err := stack.NewWithCapacity[string](*s.Capacity)
		if err != nil {
			return nil, err
		}
		for _, v := range s.Seed {
			st.Push(v)
		}
		return st, nil
	case s.Seed != nil:
		return stack.NewFrom[string](seedCollection(s.Seed))
	default:
		return stack.New[string](), nil
	}
}

// seedCollection adapts a slice to stack.Collection in slice order.
type seedCollection []string

func (c seedCollection) Len() int { return len(c) }

func (c seedCollection) All() iter.Seq[string] {
	return slices.Values(c)
}

func (ss *session) lookup(name string) (stack.Container[string], error) {
	c, ok := ss.stacks.Load(name)
	if !ok {
		return nil, fmt.Errorf("no stack named %q", name)
	}
	return c, nil
}

// add registers c under name. Names are never reused within a run.
func (ss *session) add(name string, c stack.Container[string]) error {
	if _, loaded := ss.stacks.LoadOrStore(name, c); loaded {
		return fmt.Errorf("stack %q already exists", name)
	}
	return nil
}
