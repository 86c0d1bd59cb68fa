package ledger

import "testing"

func TestLedgerAppendOrder(t *testing.T) {
	l := New()
	l.Add(KindTable, "a", Preserved, "")
	l.Add(KindColumn, "a.x", Transformed, "serial widened")
	l.Add(KindStatement, "CREATE VIEW", Unsupported, "")

	entries := l.Entries()
	if len(entries) != 3 || l.Len() != 3 {
		t.Fatalf("len = %d", len(entries))
	}
	if entries[0].Name != "a" || entries[2].Kind != KindStatement {
		t.Errorf("order not preserved: %+v", entries)
	}

	// Entries returns a copy, mutating it must not touch the ledger
	entries[0].Name = "mutated"
	if l.Entries()[0].Name != "a" {
		t.Error("Entries exposed internal storage")
	}
}

func TestLedgerCounts(t *testing.T) {
	l := New()
	l.Add(KindTable, "a", Preserved, "")
	l.Add(KindTable, "b", Dropped, "")
	l.Add(KindConstraint, "c", Dropped, "")
	l.Add(KindConstraint, "d", Unsupported, "")

	if got := l.Count(Dropped); got != 2 {
		t.Errorf("Count(Dropped) = %d", got)
	}
	if got := l.CountKind(KindConstraint); got != 2 {
		t.Errorf("CountKind(constraint) = %d", got)
	}
	if got := l.CountKind(KindTable, Dropped, Unsupported); got != 1 {
		t.Errorf("CountKind(table, dropped|unsupported) = %d", got)
	}
}
