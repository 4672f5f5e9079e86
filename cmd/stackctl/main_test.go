package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/715d/lifostack/pkg/script"
)

const passingScript = `
name: passing
steps:
  - op: push
    value: "1"
  - op: pop
    expect: "1"
`

const failingScript = `
name: failing
variants: [plain]
steps:
  - op: peek
    expect: "1"
`

func writeScript(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the CLI with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLoadConfig_Defaults(t *testing.T) {
	c, err := loadConfig("", nil)
	require.NoError(t, err)
	require.Equal(t, formatText, c.Format)
	require.Equal(t, 0, c.Parallel)
	require.Empty(t, c.Variants)
	require.False(t, c.FailFast)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeScript(t, dir, "stackctl.yaml", "format: table\nparallel: 2\nvariants: [plain]\nfail_fast: true\n")

	t.Run("file", func(t *testing.T) {
		c, err := loadConfig(cfgPath, nil)
		require.NoError(t, err)
		require.Equal(t, formatTable, c.Format)
		require.Equal(t, 2, c.Parallel)
		require.Equal(t, []string{"plain"}, c.Variants)
		require.True(t, c.FailFast)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("STACKCTL_PARALLEL", "5")
		c, err := loadConfig(cfgPath, nil)
		require.NoError(t, err)
		require.Equal(t, 5, c.Parallel)
		require.Equal(t, formatTable, c.Format)
	})

	t.Run("env variant list", func(t *testing.T) {
		t.Setenv("STACKCTL_VARIANTS", "plain, synchronized")
		c, err := loadConfig(cfgPath, nil)
		require.NoError(t, err)
		require.Equal(t, []string{"plain", "synchronized"}, c.Variants)
		require.Equal(t, []script.Variant{script.VariantPlain, script.VariantSynchronized}, c.variants())
	})

	t.Run("env single variant", func(t *testing.T) {
		t.Setenv("STACKCTL_VARIANTS", "synchronized")
		c, err := loadConfig("", nil)
		require.NoError(t, err)
		require.Equal(t, []string{"synchronized"}, c.Variants)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("STACKCTL_PARALLEL", "5")
		flags := newRootCmd().PersistentFlags()
		require.NoError(t, flags.Parse([]string{"--parallel", "7", "--variants", "synchronized", "--json"}))

		c, err := loadConfig(cfgPath, flags)
		require.NoError(t, err)
		require.Equal(t, 7, c.Parallel)
		require.Equal(t, []string{"synchronized"}, c.Variants)
		require.Equal(t, formatJSON, c.Format, "--json selects the json format")
		require.True(t, c.FailFast, "unset flags keep the file value")
	})
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		errorContains string
	}{
		{name: "format", content: "format: xml\n", errorContains: `unknown format "xml"`},
		{name: "parallel", content: "parallel: -1\n", errorContains: "parallel must be >= 0"},
		{name: "variant", content: "variants: [lockfree]\n", errorContains: `unknown variant "lockfree"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScript(t, t.TempDir(), "stackctl.yaml", tt.content)
			_, err := loadConfig(path, nil)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errorContains)
		})
	}

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestRun_Passing(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "passing.yaml", passingScript)

	out, err := execute(t, "run", dir)
	require.NoError(t, err)
	require.Empty(t, out)

	out, err = execute(t, "run", "--verbose", "--variants", "plain", dir)
	require.NoError(t, err)
	require.Contains(t, out, "ok   passing [plain] 2 steps")
	require.NotContains(t, out, "[synchronized]")
}

func TestRun_Failing(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "passing.yaml", passingScript)
	path := writeScript(t, dir, "failing.yaml", failingScript)

	out, err := execute(t, "run", dir)
	require.Error(t, err)
	var cErr *codedError
	require.True(t, errors.As(err, &cErr))
	require.Equal(t, exitFailuresFound, cErr.code)

	require.Contains(t, out, "FAIL failing [plain]")
	require.Contains(t, out, path+":1: peek:")
	require.NotContains(t, out, "FAIL passing")
}

func TestRun_JSON(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "passing.yaml", passingScript)

	out, err := execute(t, "run", "--json", dir)
	require.NoError(t, err)

	var decoded struct {
		RunID   string          `json:"run_id"`
		Results []script.Result `json:"results"`
		Version string          `json:"version"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	_, err = uuid.Parse(decoded.RunID)
	require.NoError(t, err)
	require.Equal(t, version, decoded.Version)
	require.Len(t, decoded.Results, 2)
	for _, res := range decoded.Results {
		require.True(t, res.Passed)
	}
}

func TestRun_Table(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "failing.yaml", failingScript)

	out, err := execute(t, "run", "--format", "table", dir)
	require.Error(t, err)
	require.Contains(t, out, "SCRIPT")
	require.Contains(t, out, "FAIL")
	require.Contains(t, out, "failing [plain]:")
}

func TestRun_LoadError(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	var cErr *codedError
	require.True(t, errors.As(err, &cErr))
	require.Equal(t, exitError, cErr.code)
	require.Contains(t, err.Error(), "load:")
}
