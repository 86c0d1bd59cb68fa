// Package ledger records every decision the conversion pipeline makes.
// Each construct encountered in the source dump ends up with exactly one
// entry, including constructs that produced no output at all, so the final
// report can account for everything that was seen.
package ledger

// Outcome classifies what happened to a construct during conversion.
type Outcome string

const (
	Preserved   Outcome = "PRESERVED"
	Transformed Outcome = "TRANSFORMED"
	Dropped     Outcome = "DROPPED"
	Unsupported Outcome = "UNSUPPORTED"
)

// Kind identifies the construct class an entry describes.
type Kind string

const (
	KindTable        Kind = "table"
	KindColumn       Kind = "column"
	KindType         Kind = "type"
	KindConstraint   Kind = "constraint"
	KindRelationship Kind = "relationship"
	KindIndex        Kind = "index"
	KindEnum         Kind = "enum"
	KindSequence     Kind = "sequence"
	KindComment      Kind = "comment"
	KindStatement    Kind = "statement"
)

// Entry is a single conversion decision. Entries are never mutated after
// they are appended.
type Entry struct {
	Kind    Kind    `json:"kind" yaml:"kind"`
	Name    string  `json:"name" yaml:"name"`
	Outcome Outcome `json:"outcome" yaml:"outcome"`
	Reason  string  `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Ledger is an append-only sequence of entries, scoped to one conversion run.
type Ledger struct {
	entries []Entry
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Add appends one entry.
func (l *Ledger) Add(kind Kind, name string, outcome Outcome, reason string) {
	l.entries = append(l.entries, Entry{Kind: kind, Name: name, Outcome: outcome, Reason: reason})
}

// Entries returns a copy of all entries in append order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Count returns the number of entries with the given outcome.
func (l *Ledger) Count(outcome Outcome) int {
	n := 0
	for _, e := range l.entries {
		if e.Outcome == outcome {
			n++
		}
	}
	return n
}

// CountKind returns the number of entries of the given kind whose outcome is
// one of the listed outcomes. With no outcomes listed it counts all entries
// of the kind.
func (l *Ledger) CountKind(kind Kind, outcomes ...Outcome) int {
	n := 0
	for _, e := range l.entries {
		if e.Kind != kind {
			continue
		}
		if len(outcomes) == 0 {
			n++
			continue
		}
		for _, o := range outcomes {
			if e.Outcome == o {
				n++
				break
			}
		}
	}
	return n
}
