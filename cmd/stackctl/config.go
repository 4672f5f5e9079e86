package main

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/715d/lifostack/pkg/script"
)

const (
	defaultConfigFile = "stackctl.yaml"
	envPrefix         = "STACKCTL_"
)

// Output formats.
const (
	formatText  = "text"
	formatTable = "table"
	formatJSON  = "json"
)

// Config holds all configuration options for stackctl.
type Config struct {
	Paths    []string `koanf:"-"`         // script files or directories to run
	Verbose  bool     `koanf:"verbose"`   // enables detailed output and statistics
	JSON     bool     `koanf:"json"`      // shorthand for --format json, also switches logs to JSON
	Format   string   `koanf:"format"`    // text, table or json
	Parallel int      `koanf:"parallel"`  // scripts run at once; 0 means one per CPU
	Variants []string `koanf:"variants"`  // restrict container variants
	FailFast bool     `koanf:"fail_fast"` // stop a script at its first failing step
	Profile  bool     `koanf:"profile"`   // enables CPU and memory profiling
}

// loadConfig merges defaults, the config file, STACKCTL_* environment
// variables and explicitly set flags, in increasing order of precedence.
func loadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"verbose":   false,
		"json":      false,
		"format":    formatText,
		"parallel":  0,
		"variants":  []string{},
		"fail_fast": false,
		"profile":   false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if cfgFile == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			cfgFile = defaultConfigFile
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}

	// STACKCTL_FAIL_FAST -> fail_fast; STACKCTL_VARIANTS=plain,synchronized
	// -> a two-element list.
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if key == "variants" {
			return key, splitList(value)
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitList splits a comma-separated value, dropping blank entries.
func splitList(value string) []string {
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) normalize() error {
	if c.JSON {
		c.Format = formatJSON
	}
	switch c.Format {
	case formatText, formatTable, formatJSON:
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	if c.Parallel < 0 {
		return fmt.Errorf("parallel must be >= 0, got %d", c.Parallel)
	}
	for _, v := range c.Variants {
		if !slices.Contains(script.AllVariants, script.Variant(v)) {
			return fmt.Errorf("unknown variant %q", v)
		}
	}
	return nil
}

func (c *Config) variants() []script.Variant {
	out := make([]script.Variant, 0, len(c.Variants))
	for _, v := range c.Variants {
		out = append(out, script.Variant(v))
	}
	return out
}
