// Package pipeline runs one conversion: segment the dump, classify and fold
// each statement into the model, resolve relationships, then score the
// ledger. Statements apply strictly in order because ALTER TABLE and
// COMMENT ON must find their tables already present.
package pipeline

import (
	"log/slog"

	"github.com/pgdbml/pgdbml/internal/extract"
	"github.com/pgdbml/pgdbml/internal/generator"
	"github.com/pgdbml/pgdbml/internal/ledger"
	"github.com/pgdbml/pgdbml/internal/quality"
	"github.com/pgdbml/pgdbml/internal/relation"
	"github.com/pgdbml/pgdbml/internal/report"
	"github.com/pgdbml/pgdbml/internal/schema"
	"github.com/pgdbml/pgdbml/internal/segment"
	"github.com/pgdbml/pgdbml/internal/typemap"
)

// Options configure a conversion run.
type Options struct {
	// SourcePath labels the input in the report; empty for stdin.
	SourcePath string
	// BackslashEscapes enables backslash escaping inside string literals
	// during segmentation.
	BackslashEscapes bool
	// Types provides the type mapper, usually carrying user overrides.
	// Nil means defaults.
	Types *typemap.TypeMap
}

// Result is everything one conversion run produces. Model and Ledger are
// handed off immutably once Convert returns.
type Result struct {
	Model      *schema.Model
	Ledger     *ledger.Ledger
	Quality    quality.Report
	Report     *report.ConversionReport
	DBML       []byte
	Statements int
	Types      *typemap.TypeMap
}

// Convert runs the full pipeline over the dump text. It never fails:
// malformed input degrades into unsupported ledger entries, and the report
// accounts for everything that went in.
func Convert(input string, opts Options) *Result {
	types := opts.Types
	if types == nil {
		types = typemap.New()
	}

	model := schema.NewModel()
	led := ledger.New()
	ex := extract.New(model, led, types)

	statements := segment.SplitWith(input, segment.Options{
		BackslashEscapes: opts.BackslashEscapes,
	})
	for _, st := range statements {
		ex.Apply(st)
	}
	slog.Debug("statements applied",
		"count", len(statements),
		"tables", len(model.Tables),
		"candidates", len(ex.Candidates))

	relation.Resolve(model, ex.Candidates, led)

	score := quality.Score(led, model, quality.Stats{
		TableStatements: ex.TableStatements,
		MergedTables:    ex.MergedTables,
	})
	slog.Info("conversion scored",
		"compatibility", score.Compatibility,
		"sigma", score.Sigma.SigmaLevel,
		"silent_failure", score.SilentFailure)

	dbml := generator.Generate(model)
	issues := generator.Validate(dbml)
	if len(issues) > 0 {
		slog.Warn("generated output failed validation", "issues", len(issues))
	}

	rep := report.New(opts.SourcePath, len(statements), model, led, score)
	rep.Validation = issues

	return &Result{
		Model:      model,
		Ledger:     led,
		Quality:    score,
		Report:     rep,
		DBML:       dbml,
		Statements: len(statements),
		Types:      types,
	}
}
