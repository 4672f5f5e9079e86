package harness

import (
	"os"
	"path/filepath"
	"testing"

	yaml "gopkg.in/yaml.v3"

	"github.com/stretchr/testify/require"

	"github.com/715d/lifostack/pkg/script"
)

// runScripts loads every script under dir and runs it with cfg.
func runScripts(t *testing.T, dir string, cfg RunConfiguration) (*script.Report, error) {
	t.Helper()

	t.Logf("Loading scripts from %q", dir)
	scripts, err := script.LoadScripts(t.Context(), script.LoaderOptions{
		Paths: []string{"."},
		Dir:   dir,
	})
	if err != nil {
		return nil, err
	}

	return script.NewRunner(script.RunnerOptions{
		Variants: cfg.Variants,
		FailFast: cfg.FailFast,
	}).Run(t.Context(), scripts)
}

// LoadTestCase reads dir/expected.yaml. The case's Dir is recorded relative
// to root.
func LoadTestCase(t *testing.T, dir, root string) *TestCase {
	t.Helper()

	f, err := os.Open(filepath.Join(dir, "expected.yaml"))
	require.NoError(t, err)
	defer f.Close()

	tc := &TestCase{}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	require.NoError(t, dec.Decode(tc), "decode %s/expected.yaml", dir)

	tc.Dir, err = filepath.Rel(root, dir)
	require.NoError(t, err)
	return tc
}
