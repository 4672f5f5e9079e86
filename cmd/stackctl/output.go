package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/715d/lifostack/pkg/script"
)

func writeReport(w io.Writer, report *script.Report, cfg *Config) error {
	var output string
	var err error

	switch cfg.Format {
	case formatJSON:
		output, err = formatJSONOutput(report)
	case formatTable:
		output = formatTableOutput(report)
	default:
		output = formatTextOutput(report, cfg)
	}

	if err != nil {
		return err
	}

	_, err = io.WriteString(w, output)
	return err
}

type jOutput struct {
	RunID     string          `json:"run_id"`
	Results   []script.Result `json:"results"`
	Stats     any             `json:"stats"`
	Version   string          `json:"version"`
	Timestamp string          `json:"timestamp"`
}

func formatJSONOutput(report *script.Report) (string, error) {
	data, err := json.MarshalIndent(jOutput{
		RunID:     uuid.NewString(),
		Results:   report.Results,
		Stats:     report.Stats,
		Version:   version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling json output: %w", err)
	}
	return string(data) + "\n", nil
}

func formatTableOutput(report *script.Report) string {
	var sb strings.Builder

	t := table.NewWriter()
	t.SetOutputMirror(&sb)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Script", "Variant", "Result", "Steps", "Failures", "Duration"})
	for _, res := range report.Results {
		t.AppendRow(table.Row{
			res.Script,
			res.Variant,
			passFail(res.Passed),
			res.Steps,
			len(res.Failures),
			res.Duration.Round(time.Microsecond),
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d scripts", report.Stats.Scripts),
		fmt.Sprintf("%d runs", report.Stats.Runs),
		fmt.Sprintf("%d failed", report.Stats.Failed),
		report.Stats.Steps,
		"",
		report.Stats.Duration.Round(time.Microsecond),
	})
	t.Render()

	for _, res := range report.Results {
		writeFailures(&sb, res, true)
	}
	return sb.String()
}

func formatTextOutput(report *script.Report, cfg *Config) string {
	var output strings.Builder

	if cfg.Verbose {
		slog.Info("",
			"scripts", report.Stats.Scripts,
			"runs", report.Stats.Runs,
			"passed", report.Stats.Passed,
			"failed", report.Stats.Failed,
			"steps", report.Stats.Steps,
			"duration", report.Stats.Duration.String())
	}

	if !report.Failed() {
		slog.Info("all scripts passed")
		if cfg.Verbose {
			for _, res := range report.Results {
				fmt.Fprintf(&output, "ok   %s [%s] %d steps\n", res.Script, res.Variant, res.Steps)
			}
		}
		return output.String()
	}

	for _, res := range report.Results {
		if res.Passed {
			if cfg.Verbose {
				fmt.Fprintf(&output, "ok   %s [%s] %d steps\n", res.Script, res.Variant, res.Steps)
			}
			continue
		}
		fmt.Fprintf(&output, "FAIL %s [%s]\n", res.Script, res.Variant)
		writeFailures(&output, res, false)
	}
	return output.String()
}

// writeFailures prints one line per failing step.
// Format: path:step: op: message
func writeFailures(w io.Writer, res script.Result, header bool) {
	if len(res.Failures) == 0 {
		return
	}
	if header {
		fmt.Fprintf(w, "\n%s [%s]:\n", res.Script, res.Variant)
	}
	for _, f := range res.Failures {
		op := string(f.Op)
		if op == "" {
			op = "construct"
		}
		fmt.Fprintf(w, "  %s:%d: %s: %s\n", res.Path, f.Step, op, f.Message)
	}
}

func passFail(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}
