// Package script replays YAML operation scripts against stack containers and
// checks the outcome of every step.
package script

import (
	"time"

	"github.com/715d/lifostack/pkg/stack"
)

// Variant selects which container a script runs against.
type Variant string

const (
	VariantPlain        Variant = "plain"        // *stack.Stack
	VariantSynchronized Variant = "synchronized" // *stack.SyncStack
)

// AllVariants lists every known variant in run order.
var AllVariants = []Variant{VariantPlain, VariantSynchronized}

// Op names a script step.
type Op string

const (
	OpPush         Op = "push"
	OpPop          Op = "pop"
	OpPeek         Op = "peek"
	OpCount        Op = "count"
	OpContains     Op = "contains"
	OpToArray      Op = "to_array"
	OpEnumerate    Op = "enumerate"
	OpCopyTo       Op = "copy_to"
	OpClear        Op = "clear"
	OpClone        Op = "clone"
	OpTrim         Op = "trim"
	OpParallelPush Op = "parallel_push"
)

var knownOps = map[Op]bool{
	OpPush: true, OpPop: true, OpPeek: true, OpCount: true, OpContains: true,
	OpToArray: true, OpEnumerate: true, OpCopyTo: true, OpClear: true,
	OpClone: true, OpTrim: true, OpParallelPush: true,
}

// errorNames maps the names scripts use in `error:` to stack sentinels.
var errorNames = map[string]error{
	"empty":                 stack.ErrEmpty,
	"nil_stack":             stack.ErrNilStack,
	"nil_collection":        stack.ErrNilCollection,
	"negative_capacity":     stack.ErrNegativeCapacity,
	"index_out_of_range":    stack.ErrIndexOutOfRange,
	"destination_too_small": stack.ErrDestinationTooSmall,
}

// Construction modes for the main stack.
const (
	ConstructNew             = "new"              // New, NewWithCapacity or NewFrom(seed)
	ConstructFromNil         = "from_nil"         // NewFrom(nil)
	ConstructSynchronizedNil = "synchronized_nil" // Synchronized(nil)
)

// DefaultStack is the name of the stack every script starts with.
const DefaultStack = "main"

// defaultWorkers is used by parallel_push when a step sets no worker count.
const defaultWorkers = 4

// Script is one parsed script document.
type Script struct {
	// Name identifies the script in reports. Defaults to the file name.
	Name string `yaml:"name" json:"name"`

	// Path is the file the script was read from.
	Path string `yaml:"-" json:"path"`

	// Variants restricts the containers the script runs against.
	// Empty means all variants.
	Variants []Variant `yaml:"variants,omitempty" json:"variants,omitempty"`

	// Capacity is an optional initial capacity hint for the main stack.
	Capacity *int `yaml:"capacity,omitempty" json:"capacity,omitempty"`

	// Seed pre-populates the main stack; the last element ends up on top.
	Seed []string `yaml:"seed,omitempty" json:"seed,omitempty"`

	// Construct selects how the main stack is built. Empty means
	// ConstructNew. The nil modes exist to reach the constructors'
	// nil-argument checks.
	Construct string `yaml:"construct,omitempty" json:"construct,omitempty"`

	// ExpectError names the precondition failure construction must hit.
	// When set, no steps run.
	ExpectError string `yaml:"expect_error,omitempty" json:"expect_error,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is a single operation with its expected outcome.
type Step struct {
	Op Op `yaml:"op" json:"op"`

	// Stack is the target stack name; empty means DefaultStack.
	Stack string `yaml:"stack,omitempty" json:"stack,omitempty"`

	// Value is the argument of push and contains.
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// Values are pushed concurrently by parallel_push.
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`

	// Workers bounds the goroutines used by parallel_push.
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty"`

	// Expect is the expected scalar result: the element for pop and peek,
	// the count for count, "true" or "false" for contains.
	Expect *string `yaml:"expect,omitempty" json:"expect,omitempty"`

	// Items is the expected element list for to_array, enumerate and copy_to.
	Items []string `yaml:"items,omitempty" json:"items,omitempty"`

	// Error names the precondition failure the step must hit.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`

	// Length and Index describe the copy_to destination.
	Length int `yaml:"length,omitempty" json:"length,omitempty"`
	Index  int `yaml:"index,omitempty" json:"index,omitempty"`

	// Into names the stack created by clone.
	Into string `yaml:"into,omitempty" json:"into,omitempty"`
}

func (s Step) target() string {
	if s.Stack == "" {
		return DefaultStack
	}
	return s.Stack
}

// StepFailure describes a step whose outcome did not match the script.
type StepFailure struct {
	Step    int    `json:"step"` // 1-based; 0 for construction
	Op      Op     `json:"op,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of running one script against one variant.
type Result struct {
	Script   string        `json:"script"`
	Path     string        `json:"path"`
	Variant  Variant       `json:"variant"`
	Passed   bool          `json:"passed"`
	Steps    int           `json:"steps"`
	Failures []StepFailure `json:"failures,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report aggregates the results of a run.
type Report struct {
	Results []Result `json:"results"`
	Stats   struct {
		Scripts  int           `json:"scripts"`
		Runs     int           `json:"runs"`
		Passed   int           `json:"passed"`
		Failed   int           `json:"failed"`
		Steps    int64         `json:"steps"`
		Duration time.Duration `json:"duration"`
	} `json:"stats"`
}

// Failed reports whether any run failed.
func (r *Report) Failed() bool {
	return r.Stats.Failed > 0
}
