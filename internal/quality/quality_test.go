package quality

import (
	"math"
	"strings"
	"testing"

	"github.com/pgdbml/pgdbml/internal/ledger"
	"github.com/pgdbml/pgdbml/internal/schema"
)

func TestScoreCounts(t *testing.T) {
	led := ledger.New()
	led.Add(ledger.KindTable, "users", ledger.Preserved, "")
	led.Add(ledger.KindType, "users.id", ledger.Preserved, "")
	led.Add(ledger.KindType, "users.created", ledger.Transformed, "")
	led.Add(ledger.KindConstraint, "users", ledger.Dropped, "check")
	led.Add(ledger.KindStatement, "CREATE VIEW", ledger.Unsupported, "")

	m := schema.NewModel()
	m.AddTable(schema.Table{Name: "users", Columns: []schema.Column{{Name: "id"}, {Name: "created"}}})

	r := Score(led, m, Stats{TableStatements: 1})

	if r.Preserved != 2 || r.Transformed != 1 || r.Dropped != 1 || r.Unsupported != 1 {
		t.Errorf("counts wrong: %+v", r)
	}
	if want := 40.0; math.Abs(r.Compatibility-want) > 0.001 {
		t.Errorf("compatibility = %v, want %v", r.Compatibility, want)
	}
	if r.SilentFailure {
		t.Error("unexpected silent-failure flag")
	}
}

func TestScoreEmptyLedgerIsClean(t *testing.T) {
	r := Score(ledger.New(), schema.NewModel(), Stats{})
	if r.Compatibility != 100 {
		t.Errorf("empty run compatibility = %v", r.Compatibility)
	}
	if r.Sigma.SigmaLevel != 6.0 {
		t.Errorf("empty run sigma = %v", r.Sigma.SigmaLevel)
	}
	if r.SilentFailure {
		t.Error("empty run flagged silent failure")
	}
}

func TestScoreSilentFailureAppendsEntry(t *testing.T) {
	led := ledger.New()
	m := schema.NewModel()

	// two table statements seen, nothing in the model, nothing ledgered
	r := Score(led, m, Stats{TableStatements: 2})

	if !r.SilentFailure {
		t.Fatal("silent failure not detected")
	}
	found := false
	for _, e := range led.Entries() {
		if e.Kind == ledger.KindStatement && e.Outcome == ledger.Unsupported &&
			strings.Contains(e.Reason, "possible silent drop") {
			found = true
		}
	}
	if !found {
		t.Error("silent failure entry not appended to ledger")
	}
	if !strings.HasPrefix(r.Assessment, "UNACCEPTABLE") {
		t.Errorf("assessment = %q, want UNACCEPTABLE verdict", r.Assessment)
	}
}

func TestScoreMergedTablesAccounted(t *testing.T) {
	led := ledger.New()
	m := schema.NewModel()
	m.AddTable(schema.Table{Name: "t"})

	// two statements, one table, one merge: accounted
	r := Score(led, m, Stats{TableStatements: 2, MergedTables: 1})
	if r.SilentFailure {
		t.Error("merged redeclaration wrongly flagged as silent loss")
	}
}

func TestScoreDroppedTableAccounted(t *testing.T) {
	led := ledger.New()
	led.Add(ledger.KindTable, "t", ledger.Unsupported, "no column list")
	m := schema.NewModel()

	r := Score(led, m, Stats{TableStatements: 1})
	if r.SilentFailure {
		t.Error("ledgered table loss wrongly flagged as silent")
	}
}

func TestComputeSigmaDefectWeights(t *testing.T) {
	led := ledger.New()
	led.Add(ledger.KindConstraint, "a", ledger.Dropped, "")
	led.Add(ledger.KindStatement, "b", ledger.Unsupported, "")

	m := schema.NewModel()
	m.AddTable(schema.Table{Name: "t", Columns: []schema.Column{{Name: "x"}}})

	s := ComputeSigma(led, m, false)
	if s.Defects != 3 {
		t.Errorf("defects = %d, want 1 dropped + 2x1 unsupported = 3", s.Defects)
	}
	// 1 table + 1 column + 2 ledgered constraint/statement entries
	if s.Opportunities != 4 {
		t.Errorf("opportunities = %d, want 4", s.Opportunities)
	}
	if want := 750000.0; math.Abs(s.DPMO-want) > 0.001 {
		t.Errorf("dpmo = %v, want %v", s.DPMO, want)
	}
}

func TestComputeSigmaSilentPenalty(t *testing.T) {
	m := schema.NewModel()
	m.AddTable(schema.Table{Name: "t"})

	clean := ComputeSigma(ledger.New(), m, false)
	silent := ComputeSigma(ledger.New(), m, true)
	if silent.Defects != clean.Defects+2 {
		t.Errorf("silent penalty: clean=%d silent=%d", clean.Defects, silent.Defects)
	}
}

func TestComputeSigmaDPMOCapped(t *testing.T) {
	led := ledger.New()
	for i := 0; i < 5; i++ {
		led.Add(ledger.KindStatement, "x", ledger.Unsupported, "")
	}
	m := schema.NewModel()

	s := ComputeSigma(led, m, false)
	if s.DPMO != 1_000_000 {
		t.Errorf("dpmo not capped: %v", s.DPMO)
	}
	if s.YieldRate != 0 {
		t.Errorf("yield = %v, want 0", s.YieldRate)
	}
}

func TestYieldToSigma(t *testing.T) {
	tests := []struct {
		yield float64
		want  float64
	}{
		{1.0, 6.0},
		{0.9999966, 6.0},
		{0.999968, 5.0},
		{0.99966, 4.0},
		{0.9973, 3.0},
		{0.9545, 2.0},
		{0.8413, 1.0},
		{0.5, 0.5},
		{-0.2, 0},
	}
	for _, tt := range tests {
		if got := yieldToSigma(tt.yield); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("yieldToSigma(%v) = %v, want %v", tt.yield, got, tt.want)
		}
	}

	// midpoint of the 2-to-3 band interpolates to roughly 2.5
	mid := (0.9973 + 0.9545) / 2
	if got := yieldToSigma(mid); math.Abs(got-2.5) > 1e-9 {
		t.Errorf("band midpoint sigma = %v, want 2.5", got)
	}
}

func TestAssessVerdicts(t *testing.T) {
	tests := []struct {
		sigma  float64
		compat float64
		silent bool
		prefix string
	}{
		{6.0, 99, false, "EXCELLENT"},
		{5.2, 92, false, "GOOD"},
		{4.1, 85, false, "ACCEPTABLE"},
		{3.5, 75, false, "POOR"},
		{2.0, 50, false, "UNACCEPTABLE"},
		{6.0, 99, true, "UNACCEPTABLE"},
	}
	for _, tt := range tests {
		got := assess(tt.sigma, tt.compat, tt.silent)
		if !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("assess(%v, %v, %v) = %q, want prefix %q", tt.sigma, tt.compat, tt.silent, got, tt.prefix)
		}
	}
}
