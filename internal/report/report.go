// Package report renders the conversion report: source and output
// statistics, the quality scores, and the full provenance ledger grouped by
// outcome. The report is the user-facing answer to "what happened to my
// schema", so every ledger entry appears in it verbatim.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pgdbml/pgdbml/internal/generator"
	"github.com/pgdbml/pgdbml/internal/ledger"
	"github.com/pgdbml/pgdbml/internal/quality"
	"github.com/pgdbml/pgdbml/internal/schema"
)

// ConversionReport is the final report of one conversion run.
type ConversionReport struct {
	Version     string            `json:"version"`
	GeneratedAt time.Time         `json:"generated_at"`
	Source      SourceSummary     `json:"source"`
	Output      OutputSummary     `json:"output"`
	Quality     quality.Report    `json:"quality"`
	Validation  []generator.Issue `json:"validation,omitempty"`
	Entries     []ledger.Entry    `json:"entries"`
}

// SourceSummary describes the input dump.
type SourceSummary struct {
	Path       string `json:"path,omitempty"`
	Statements int    `json:"statements"`
}

// OutputSummary describes the produced model.
type OutputSummary struct {
	Tables        int `json:"tables"`
	Columns       int `json:"columns"`
	Enums         int `json:"enums"`
	Relationships int `json:"relationships"`
	Indexes       int `json:"indexes"`
}

// New builds a ConversionReport from the run's outputs.
func New(sourcePath string, statements int, model *schema.Model, led *ledger.Ledger, score quality.Report) *ConversionReport {
	out := OutputSummary{
		Tables:        len(model.Tables),
		Enums:         len(model.Enums),
		Relationships: len(model.Relationships),
	}
	for i := range model.Tables {
		out.Columns += len(model.Tables[i].Columns)
		out.Indexes += len(model.Tables[i].Indexes)
	}
	return &ConversionReport{
		Version:     "1",
		GeneratedAt: time.Now(),
		Source:      SourceSummary{Path: sourcePath, Statements: statements},
		Output:      out,
		Quality:     score,
		Entries:     led.Entries(),
	}
}

// WriteJSON writes the report to a JSON file.
func WriteJSON(report *ConversionReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON reads a report from a JSON file.
func ReadJSON(path string) (*ConversionReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	r := &ConversionReport{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return r, nil
}

// WriteText writes the report as human-readable text.
func WriteText(report *ConversionReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, []byte(FormatText(report)), 0o644)
}

// FormatText renders the report as human-readable text.
func FormatText(report *ConversionReport) string {
	var b strings.Builder

	b.WriteString("=== pgdbml Conversion Report ===\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format(time.RFC3339)))

	b.WriteString("Source:\n")
	if report.Source.Path != "" {
		b.WriteString(fmt.Sprintf("  Path:       %s\n", report.Source.Path))
	}
	b.WriteString(fmt.Sprintf("  Statements: %d\n\n", report.Source.Statements))

	b.WriteString("Output:\n")
	b.WriteString(fmt.Sprintf("  Tables:        %d\n", report.Output.Tables))
	b.WriteString(fmt.Sprintf("  Columns:       %d\n", report.Output.Columns))
	b.WriteString(fmt.Sprintf("  Enums:         %d\n", report.Output.Enums))
	b.WriteString(fmt.Sprintf("  Relationships: %d\n", report.Output.Relationships))
	b.WriteString(fmt.Sprintf("  Indexes:       %d\n\n", report.Output.Indexes))

	q := report.Quality
	b.WriteString("Quality:\n")
	b.WriteString(fmt.Sprintf("  Preserved:     %d\n", q.Preserved))
	b.WriteString(fmt.Sprintf("  Transformed:   %d\n", q.Transformed))
	b.WriteString(fmt.Sprintf("  Dropped:       %d\n", q.Dropped))
	b.WriteString(fmt.Sprintf("  Unsupported:   %d\n", q.Unsupported))
	b.WriteString(fmt.Sprintf("  Compatibility: %.1f%%\n", q.Compatibility))
	b.WriteString(fmt.Sprintf("  Sigma Level:   %.2f (DPMO %.0f)\n", q.Sigma.SigmaLevel, q.Sigma.DPMO))
	if q.SilentFailure {
		b.WriteString("  Silent Loss:   DETECTED\n")
	}
	b.WriteString(fmt.Sprintf("  Assessment:    %s\n\n", q.Assessment))

	if len(report.Validation) > 0 {
		b.WriteString(fmt.Sprintf("Output Validation (%d issues):\n", len(report.Validation)))
		for _, issue := range report.Validation {
			b.WriteString(fmt.Sprintf("  line %d [%s]: %s\n", issue.Line, issue.Code, issue.Message))
		}
		b.WriteString("\n")
	}

	for _, outcome := range []ledger.Outcome{
		ledger.Transformed, ledger.Dropped, ledger.Unsupported,
	} {
		entries := filterEntries(report.Entries, outcome)
		if len(entries) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("%s (%d):\n", titleCase(string(outcome)), len(entries)))
		for _, e := range entries {
			b.WriteString(fmt.Sprintf("  [%s] %s: %s\n", e.Kind, e.Name, e.Reason))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func filterEntries(entries []ledger.Entry, outcome ledger.Outcome) []ledger.Entry {
	var out []ledger.Entry
	for _, e := range entries {
		if e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

func titleCase(s string) string {
	s = strings.ToLower(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
