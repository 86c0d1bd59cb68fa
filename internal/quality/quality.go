// Package quality aggregates the provenance ledger into outcome counts, a
// compatibility percentage, and process-capability metrics. The scorer also
// runs the silent-failure check: every table-creation statement must be
// accounted for either by a table in the model or by a table-level dropped
// or unsupported ledger entry.
package quality

import (
	"fmt"

	"github.com/pgdbml/pgdbml/internal/ledger"
	"github.com/pgdbml/pgdbml/internal/schema"
)

// Report is the aggregated quality result of one conversion run.
type Report struct {
	Preserved   int `json:"preserved" yaml:"preserved"`
	Transformed int `json:"transformed" yaml:"transformed"`
	Dropped     int `json:"dropped" yaml:"dropped"`
	Unsupported int `json:"unsupported" yaml:"unsupported"`

	// Compatibility is PRESERVED over all outcomes, in percent.
	Compatibility float64 `json:"compatibility_pct" yaml:"compatibility_pct"`

	// SilentFailure is set when the table accounting check found a
	// discrepancy between statements seen and tables accounted for.
	SilentFailure bool `json:"silent_failure" yaml:"silent_failure"`

	Sigma SigmaMetrics `json:"sigma" yaml:"sigma"`

	// Assessment is a one-line qualitative verdict.
	Assessment string `json:"assessment" yaml:"assessment"`
}

// Stats carries the extraction counters the silent-failure check needs.
type Stats struct {
	// TableStatements is how many statements classified as table creation.
	TableStatements int
	// MergedTables counts redeclarations folded into an earlier table,
	// which account for a statement without adding a model entry.
	MergedTables int
}

// Score aggregates the ledger. The silent-failure check compares the number
// of table-creation statements against tables present in the model plus
// table-level dropped or unsupported entries; a mismatch appends an
// UNSUPPORTED ledger entry so the report cannot claim success while an
// entity went missing unaccounted.
func Score(led *ledger.Ledger, model *schema.Model, stats Stats) Report {
	accounted := len(model.Tables) +
		led.CountKind(ledger.KindTable, ledger.Dropped, ledger.Unsupported) +
		stats.MergedTables
	silent := accounted != stats.TableStatements
	if silent {
		led.Add(ledger.KindStatement, "table accounting", ledger.Unsupported,
			fmt.Sprintf("count mismatch, %d table statements vs %d accounted, possible silent drop",
				stats.TableStatements, accounted))
	}

	r := Report{
		Preserved:     led.Count(ledger.Preserved),
		Transformed:   led.Count(ledger.Transformed),
		Dropped:       led.Count(ledger.Dropped),
		Unsupported:   led.Count(ledger.Unsupported),
		SilentFailure: silent,
	}
	total := r.Preserved + r.Transformed + r.Dropped + r.Unsupported
	if total > 0 {
		r.Compatibility = float64(r.Preserved) / float64(total) * 100
	} else {
		r.Compatibility = 100
	}
	r.Sigma = ComputeSigma(led, model, silent)
	r.Assessment = assess(r.Sigma.SigmaLevel, r.Compatibility, silent)
	return r
}

// assess renders the qualitative verdict from the sigma level and the
// compatibility percentage.
func assess(sigma, compat float64, silent bool) string {
	switch {
	case silent:
		return "UNACCEPTABLE - silent loss detected, report is incomplete"
	case sigma >= 6.0 && compat >= 95:
		return "EXCELLENT - six sigma quality with high compatibility"
	case sigma >= 5.0 && compat >= 90:
		return "GOOD - near six sigma quality with good compatibility"
	case sigma >= 4.0 && compat >= 80:
		return "ACCEPTABLE - reasonable quality with adequate compatibility"
	case sigma >= 3.0 && compat >= 70:
		return "POOR - below acceptable quality standards"
	default:
		return "UNACCEPTABLE - major quality issues detected"
	}
}
