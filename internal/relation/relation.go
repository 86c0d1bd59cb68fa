// Package relation resolves foreign-key candidates into the final
// relationship set: duplicates collapse by endpoint key with last-wins
// actions, missing target columns fall back to the target's primary key,
// and dangling edges survive with a provenance note instead of vanishing.
package relation

import (
	"fmt"
	"strings"

	"github.com/pgdbml/pgdbml/internal/ledger"
	"github.com/pgdbml/pgdbml/internal/schema"
)

// Resolve folds candidate edges into model.Relationships. Candidates are
// processed in source order; a later candidate with the same endpoints
// replaces the earlier one's actions. Self-references are legitimate and
// kept. Every candidate leaves a ledger entry.
func Resolve(model *schema.Model, candidates []schema.Relationship, led *ledger.Ledger) {
	type slot struct {
		index int
	}
	seen := map[string]slot{}

	for _, cand := range candidates {
		cand = fillTargetColumn(model, cand)

		label := fmt.Sprintf("%s.%s -> %s.%s",
			cand.SourceTable, cand.SourceColumn, cand.TargetTable, cand.TargetColumn)

		outcome := ledger.Preserved
		reason := "foreign key " + label
		if model.Table(cand.TargetTable) == nil {
			outcome = ledger.Transformed
			reason = fmt.Sprintf("foreign key %s targets a table absent from the dump, kept best-effort", label)
		} else if cand.TargetColumn == "" {
			// target table exists but has no primary key to borrow
			led.Add(ledger.KindRelationship, label, ledger.Dropped,
				fmt.Sprintf("foreign key %s.%s -> %s has no resolvable target column",
					cand.SourceTable, cand.SourceColumn, cand.TargetTable))
			continue
		}

		key := dedupeKey(cand)
		if s, dup := seen[key]; dup {
			model.Relationships[s.index].OnDelete = cand.OnDelete
			model.Relationships[s.index].OnUpdate = cand.OnUpdate
			led.Add(ledger.KindRelationship, label, ledger.Transformed,
				"duplicate foreign key "+label+", later actions win")
			continue
		}

		model.Relationships = append(model.Relationships, cand)
		seen[key] = slot{index: len(model.Relationships) - 1}
		led.Add(ledger.KindRelationship, label, outcome, reason)
	}
}

// fillTargetColumn substitutes the target table's primary key when the
// candidate names no target column, preferring a single-column key. A
// same-named column is the fallback when the target has no primary key.
func fillTargetColumn(model *schema.Model, cand schema.Relationship) schema.Relationship {
	if cand.TargetColumn != "" {
		return cand
	}
	target := model.Table(cand.TargetTable)
	if target == nil {
		// dangling edge, assume the column mirrors the source side
		cand.TargetColumn = cand.SourceColumn
		return cand
	}
	if len(target.PrimaryKey) > 0 {
		cand.TargetColumn = target.PrimaryKey[0]
		return cand
	}
	for i := range target.Columns {
		if target.Columns[i].IsPrimaryKey {
			cand.TargetColumn = target.Columns[i].Name
			return cand
		}
	}
	if col := target.Column(cand.SourceColumn); col != nil {
		cand.TargetColumn = col.Name
	}
	return cand
}

// dedupeKey identifies a relationship by its four endpoints,
// case-insensitively.
func dedupeKey(r schema.Relationship) string {
	return strings.ToLower(strings.Join([]string{
		r.SourceTable, r.SourceColumn, r.TargetTable, r.TargetColumn,
	}, "\x00"))
}
