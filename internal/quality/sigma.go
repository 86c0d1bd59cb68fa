package quality

import (
	"github.com/pgdbml/pgdbml/internal/ledger"
	"github.com/pgdbml/pgdbml/internal/schema"
)

// SigmaMetrics expresses conversion quality as process-capability numbers.
// Each extracted element (table, column, relationship, constraint) is one
// opportunity; dropped entries are one defect each, unsupported entries and
// silent failures weigh double.
type SigmaMetrics struct {
	Defects       int     `json:"defects" yaml:"defects"`
	Opportunities int     `json:"opportunities" yaml:"opportunities"`
	DPMO          float64 `json:"dpmo" yaml:"dpmo"`
	SigmaLevel    float64 `json:"sigma_level" yaml:"sigma_level"`
	YieldRate     float64 `json:"yield_rate" yaml:"yield_rate"`
}

// sigmaBands maps yield-rate floors to whole sigma levels. Lookups
// interpolate linearly inside a band.
var sigmaBands = []struct {
	yield float64
	sigma float64
}{
	{0.9999966, 6.0},
	{0.999968, 5.0},
	{0.99966, 4.0},
	{0.9973, 3.0},
	{0.9545, 2.0},
	{0.8413, 1.0},
}

// ComputeSigma derives DPMO and sigma level from the ledger and model.
func ComputeSigma(led *ledger.Ledger, model *schema.Model, silent bool) SigmaMetrics {
	m := SigmaMetrics{
		Defects:       led.Count(ledger.Dropped) + 2*led.Count(ledger.Unsupported),
		Opportunities: countOpportunities(led, model),
	}
	if silent {
		m.Defects += 2
	}
	if m.Opportunities == 0 {
		m.DPMO = 0
		m.YieldRate = 1
		m.SigmaLevel = 6.0
		return m
	}
	m.DPMO = float64(m.Defects) / float64(m.Opportunities) * 1_000_000
	if m.DPMO > 1_000_000 {
		m.DPMO = 1_000_000
	}
	m.YieldRate = 1 - m.DPMO/1_000_000
	m.SigmaLevel = yieldToSigma(m.YieldRate)
	return m
}

// countOpportunities counts every element that could have failed: each
// table, column, relationship, plus every ledgered constraint and statement.
func countOpportunities(led *ledger.Ledger, model *schema.Model) int {
	n := len(model.Tables) + len(model.Relationships)
	for i := range model.Tables {
		n += len(model.Tables[i].Columns)
	}
	for _, e := range led.Entries() {
		switch e.Kind {
		case ledger.KindConstraint, ledger.KindStatement, ledger.KindSequence, ledger.KindComment:
			n++
		}
	}
	return n
}

// yieldToSigma converts a yield rate to a sigma level with the standard
// banded interpolation. Below one sigma the yield rate itself is returned.
func yieldToSigma(yield float64) float64 {
	if yield >= sigmaBands[0].yield {
		return 6.0
	}
	for i := 0; i < len(sigmaBands)-1; i++ {
		upper, lower := sigmaBands[i], sigmaBands[i+1]
		if yield >= lower.yield {
			return lower.sigma + (yield-lower.yield)/(upper.yield-lower.yield)
		}
	}
	if yield < 0 {
		return 0
	}
	return yield
}
