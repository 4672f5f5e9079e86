package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// LoaderOptions configures script loading.
type LoaderOptions struct {
	// Paths are script files or directories to load. Directories are walked
	// recursively for *.yaml and *.yml files.
	Paths []string

	// Dir resolves relative paths.
	// If empty, uses the current working directory.
	Dir string
}

// LoadScripts reads, parses and validates every script under opts.Paths.
// A file may hold several YAML documents, each a separate script.
func LoadScripts(ctx context.Context, opts LoaderOptions) ([]*Script, error) {
	paths := opts.Paths
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var files []string
	for _, p := range paths {
		if opts.Dir != "" && !filepath.IsAbs(p) {
			p = filepath.Join(opts.Dir, p)
		}
		found, err := expandPath(p)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	files = deduplicatePaths(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no scripts found in: %v", paths)
	}

	var scripts []*Script
	var errorMessages []string
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parsed, err := ParseFile(file)
		if err != nil {
			errorMessages = append(errorMessages, err.Error())
			continue
		}
		scripts = append(scripts, parsed...)
	}

	if len(errorMessages) > 0 {
		return nil, fmt.Errorf("script errors:\n%s", strings.Join(errorMessages, "\n"))
	}
	return scripts, nil
}

// expandPath returns p itself for a file, or the sorted script files below p
// for a directory.
func expandPath(p string) ([]string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if !info.IsDir() {
		return []string{p}, nil
	}

	var files []string
	err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isScriptFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", p, err)
	}
	slices.Sort(files)
	return files, nil
}

func isScriptFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// deduplicatePaths drops files named more than once, keeping first-seen order.
func deduplicatePaths(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := files[:0]
	for _, f := range files {
		key := f
		if abs, err := filepath.Abs(f); err == nil {
			key = abs
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

// ParseFile reads every script document in the file at path.
func ParseFile(path string) ([]*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scripts, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i, s := range scripts {
		s.Path = path
		if s.Name == "" {
			s.Name = base
			if len(scripts) > 1 {
				s.Name = fmt.Sprintf("%s#%d", base, i+1)
			}
		}
	}
	return scripts, nil
}

// Parse decodes and validates every YAML document in r. Unknown keys are
// rejected.
func Parse(r io.Reader) ([]*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var scripts []*Script
	for doc := 1; ; doc++ {
		var s Script
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", doc, err)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("document %d: %w", doc, err)
		}
		scripts = append(scripts, &s)
	}

	if len(scripts) == 0 {
		return nil, fmt.Errorf("no script documents")
	}
	return scripts, nil
}

// Validate checks that the script is well formed before it is run.
func (s *Script) Validate() error {
	for _, v := range s.Variants {
		if !slices.Contains(AllVariants, v) {
			return fmt.Errorf("unknown variant %q", v)
		}
	}
	switch s.Construct {
	case "", ConstructNew:
	case ConstructFromNil, ConstructSynchronizedNil:
		if s.Capacity != nil || s.Seed != nil {
			return fmt.Errorf("construct %s cannot be combined with capacity or seed", s.Construct)
		}
		if s.Construct == ConstructSynchronizedNil && !slices.Equal(s.Variants, []Variant{VariantSynchronized}) {
			return fmt.Errorf("construct %s requires variants: [%s]", s.Construct, VariantSynchronized)
		}
	default:
		return fmt.Errorf("unknown construct %q", s.Construct)
	}
	if s.ExpectError != "" {
		if _, ok := errorNames[s.ExpectError]; !ok {
			return fmt.Errorf("unknown expect_error %q", s.ExpectError)
		}
	}

	for i, step := range s.Steps {
		if err := s.validateStep(step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
	}
	return nil
}

func (s *Script) validateStep(step Step) error {
	if step.Op == "" {
		return fmt.Errorf("missing op")
	}
	if !knownOps[step.Op] {
		return fmt.Errorf("unknown op")
	}
	if step.Error != "" {
		if _, ok := errorNames[step.Error]; !ok {
			return fmt.Errorf("unknown error %q", step.Error)
		}
	}

	switch step.Op {
	case OpContains:
		if step.Expect == nil {
			return fmt.Errorf("contains needs expect")
		}
		if _, err := strconv.ParseBool(*step.Expect); err != nil {
			return fmt.Errorf("contains expect must be a boolean: %w", err)
		}
	case OpCount:
		if step.Expect == nil {
			return fmt.Errorf("count needs expect")
		}
		if _, err := strconv.Atoi(*step.Expect); err != nil {
			return fmt.Errorf("count expect must be an integer: %w", err)
		}
	case OpCopyTo:
		if step.Length < 0 {
			return fmt.Errorf("length must be >= 0")
		}
	case OpClone:
		if step.Into == "" {
			return fmt.Errorf("clone needs into")
		}
	case OpParallelPush:
		if len(step.Values) == 0 {
			return fmt.Errorf("parallel_push needs values")
		}
		if step.Workers < 0 {
			return fmt.Errorf("workers must be >= 0")
		}
		if len(s.Variants) == 0 || slices.Contains(s.Variants, VariantPlain) {
			return fmt.Errorf("parallel_push requires variants: [synchronized]")
		}
	}
	return nil
}
