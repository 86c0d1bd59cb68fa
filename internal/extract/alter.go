package extract

import (
	"fmt"
	"strings"

	"github.com/pgdbml/pgdbml/internal/ledger"
	"github.com/pgdbml/pgdbml/internal/schema"
	"github.com/pgdbml/pgdbml/internal/segment"
)

// addInlineReference records a candidate edge from an inline
// "REFERENCES target [(col)] [ON DELETE ...] [ON UPDATE ...]" clause.
// s starts right after the REFERENCES keyword; the return value is how many
// bytes of s the clause consumed.
func (e *Extractor) addInlineReference(srcTable, srcCol, s string, line int) int {
	targetTok, pos := nextToken(s, 0)
	target := cleanIdent(targetTok)
	if target == "" {
		return pos
	}

	targetCol := ""
	if t := strings.TrimLeft(s[pos:], " \t\n\r"); strings.HasPrefix(t, "(") {
		open := strings.IndexByte(s[pos:], '(')
		if closing := matchingParen(s[pos:], open); closing >= 0 {
			cols := splitTopLevel(s[pos+open+1:pos+closing], ',')
			if len(cols) > 0 {
				targetCol = cleanIdent(cols[0])
			}
			pos += closing + 1
		}
	}

	onDelete, onUpdate, consumed := parseRefActions(s[pos:])
	pos += consumed

	e.Candidates = append(e.Candidates, schema.Relationship{
		SourceTable:  srcTable,
		SourceColumn: srcCol,
		TargetTable:  target,
		TargetColumn: targetCol,
		OnDelete:     onDelete,
		OnUpdate:     onUpdate,
	})
	return pos
}

// addForeignKey records candidate edges from a table-level
// "FOREIGN KEY (cols) REFERENCES target (cols) ..." constraint. Composite
// keys split into per-column pairs; a column-count mismatch drops the
// constraint with a ledger entry instead of guessing the pairing.
func (e *Extractor) addForeignKey(srcTable, item string, line int) {
	before, after, ok := cutKeyword(item, "REFERENCES")
	if !ok {
		e.Ledger.Add(ledger.KindConstraint, srcTable, ledger.Dropped,
			fmt.Sprintf("table %q: foreign key without REFERENCES clause (line %d)", srcTable, line))
		return
	}
	srcCols := constraintColumns(before)

	targetTok, pos := nextToken(after, 0)
	target := cleanIdent(targetTok)

	// consume the optional target column list so the action scan starts at
	// the first option keyword
	rest := after[pos:]
	var targetCols []string
	if t := strings.TrimLeft(rest, " \t\n\r"); strings.HasPrefix(t, "(") {
		open := strings.IndexByte(rest, '(')
		if closing := matchingParen(rest, open); closing >= 0 {
			targetCols = constraintColumns(rest[:closing+1])
			rest = rest[closing+1:]
		}
	}
	onDelete, onUpdate, _ := parseRefActions(rest)

	if target == "" || len(srcCols) == 0 {
		e.Ledger.Add(ledger.KindConstraint, srcTable, ledger.Dropped,
			fmt.Sprintf("table %q: unparseable foreign key (line %d)", srcTable, line))
		return
	}
	if len(targetCols) > 0 && len(targetCols) != len(srcCols) {
		e.Ledger.Add(ledger.KindConstraint, srcTable, ledger.Dropped,
			fmt.Sprintf("table %q: foreign key column count mismatch, %d source vs %d target (line %d)",
				srcTable, len(srcCols), len(targetCols), line))
		return
	}

	for i, src := range srcCols {
		tc := ""
		if len(targetCols) > 0 {
			tc = targetCols[i]
		}
		e.Candidates = append(e.Candidates, schema.Relationship{
			SourceTable:  srcTable,
			SourceColumn: src,
			TargetTable:  target,
			TargetColumn: tc,
			OnDelete:     onDelete,
			OnUpdate:     onUpdate,
		})
	}
}

// parseRefActions scans trailing foreign-key options. Everything through the
// last recognized option is consumed so the caller never re-reads an action
// keyword as a column modifier.
func parseRefActions(s string) (onDelete, onUpdate schema.RefAction, consumed int) {
	onDelete, onUpdate = schema.NoAction, schema.NoAction
	i := 0
	for {
		word, next := nextToken(s, i)
		switch strings.ToUpper(word) {
		case "MATCH":
			_, next = nextToken(s, next)
		case "ON":
			which, afterWhich := nextToken(s, next)
			action, afterAction := scanRefAction(s, afterWhich)
			switch strings.ToUpper(which) {
			case "DELETE":
				onDelete = action
			case "UPDATE":
				onUpdate = action
			default:
				return onDelete, onUpdate, i
			}
			next = afterAction
		case "DEFERRABLE", "INITIALLY", "DEFERRED", "IMMEDIATE":
			// single keywords, loop consumes them one at a time
		case "NOT":
			peek, afterPeek := nextToken(s, next)
			if strings.ToUpper(peek) != "DEFERRABLE" {
				return onDelete, onUpdate, i
			}
			next = afterPeek
		default:
			return onDelete, onUpdate, i
		}
		i = next
	}
}

// scanRefAction reads one referential action starting at position i.
func scanRefAction(s string, i int) (schema.RefAction, int) {
	word, next := nextToken(s, i)
	switch strings.ToUpper(word) {
	case "CASCADE":
		return schema.Cascade, next
	case "RESTRICT":
		return schema.Restrict, next
	case "SET", "NO":
		second, after := nextToken(s, next)
		return schema.ParseAction(word + " " + second), after
	default:
		return schema.ActionUnknown, next
	}
}

// applyAlterAddConstraint handles ALTER TABLE ... ADD CONSTRAINT. Foreign
// keys become relationship candidates; primary keys and unique constraints
// fold into the table; anything else is dropped with provenance.
func (e *Extractor) applyAlterAddConstraint(st segment.Statement) {
	_, after, ok := cutKeyword(st.Text, "ALTER TABLE")
	if !ok {
		e.applyUnsupported(st)
		return
	}
	after = strings.TrimSpace(after)
	if upper := strings.ToUpper(after); strings.HasPrefix(upper, "IF EXISTS") {
		after = strings.TrimSpace(after[len("IF EXISTS"):])
	}
	if upper := strings.ToUpper(after); strings.HasPrefix(upper, "ONLY ") {
		after = strings.TrimSpace(after[len("ONLY"):])
	}
	tableTok, pos := nextToken(after, 0)
	tableName := cleanIdent(tableTok)

	_, body, ok := cutKeyword(after[pos:], "ADD CONSTRAINT")
	if !ok {
		e.applyUnsupported(st)
		return
	}
	// skip the constraint name
	_, cpos := nextToken(body, 0)
	constraint := strings.TrimSpace(body[cpos:])
	upper := strings.ToUpper(constraint)

	table := e.Model.Table(tableName)

	switch {
	case strings.HasPrefix(upper, "FOREIGN KEY"):
		e.addForeignKey(tableName, constraint, st.Line)
	case strings.HasPrefix(upper, "PRIMARY KEY"):
		if table == nil {
			e.Ledger.Add(ledger.KindConstraint, tableName, ledger.Dropped,
				fmt.Sprintf("primary key for unknown table %q (line %d)", tableName, st.Line))
			return
		}
		table.MarkPrimaryKey(constraintColumns(constraint))
		e.Ledger.Add(ledger.KindConstraint, tableName, ledger.Preserved,
			fmt.Sprintf("primary key added to table %q", tableName))
	case strings.HasPrefix(upper, "UNIQUE"):
		if table == nil {
			e.Ledger.Add(ledger.KindConstraint, tableName, ledger.Dropped,
				fmt.Sprintf("unique constraint for unknown table %q (line %d)", tableName, st.Line))
			return
		}
		table.MarkUnique(constraintColumns(constraint))
		e.Ledger.Add(ledger.KindConstraint, tableName, ledger.Preserved,
			fmt.Sprintf("unique constraint added to table %q", tableName))
	default:
		e.Ledger.Add(ledger.KindConstraint, tableName, ledger.Dropped,
			fmt.Sprintf("table %q: %s constraint not representable in diagram format", tableName, firstWord(constraint)))
	}
}

// applyCreateIndex attaches a secondary index to its table. Expression
// indexes keep their expressions as opaque column entries.
func (e *Extractor) applyCreateIndex(st segment.Statement) {
	norm := st.Text
	unique := strings.Contains(strings.ToUpper(leadingKeywords(normalize(norm), 3)), "UNIQUE")

	_, after, ok := cutKeyword(norm, "INDEX")
	if !ok {
		e.applyUnsupported(st)
		return
	}
	after = strings.TrimSpace(after)
	for _, skip := range []string{"CONCURRENTLY", "IF NOT EXISTS"} {
		if upper := strings.ToUpper(after); strings.HasPrefix(upper, skip) {
			after = strings.TrimSpace(after[len(skip):])
		}
	}

	idxName := ""
	if upper := strings.ToUpper(after); !strings.HasPrefix(upper, "ON ") {
		tok, pos := nextToken(after, 0)
		idxName = cleanIdent(tok)
		after = strings.TrimSpace(after[pos:])
	}

	_, after, ok = cutKeyword(after, "ON")
	if !ok {
		e.Ledger.Add(ledger.KindIndex, idxName, ledger.Dropped,
			fmt.Sprintf("index without ON clause (line %d)", st.Line))
		return
	}
	after = strings.TrimSpace(after)
	if upper := strings.ToUpper(after); strings.HasPrefix(upper, "ONLY ") {
		after = strings.TrimSpace(after[len("ONLY"):])
	}
	tableTok, pos := nextToken(after, 0)
	tableName := cleanIdent(tableTok)
	after = after[pos:]

	method := ""
	if _, m, ok := cutKeyword(after, "USING"); ok {
		tok, _ := nextToken(m, 0)
		method = strings.ToLower(tok)
	}

	open := strings.IndexByte(after, '(')
	if open < 0 {
		e.Ledger.Add(ledger.KindIndex, idxName, ledger.Dropped,
			fmt.Sprintf("index on %q without column list (line %d)", tableName, st.Line))
		return
	}
	closing := matchingParen(after, open)
	if closing < 0 {
		closing = len(after)
	}
	var cols []string
	for _, part := range splitTopLevel(after[open+1:closing], ',') {
		part = strings.TrimSpace(part)
		// strip per-column ordering and opclass decorations
		for _, kw := range []string{" ASC", " DESC", " NULLS"} {
			if b, _, ok := cutKeyword(part, strings.TrimSpace(kw)); ok {
				part = strings.TrimSpace(b)
			}
		}
		if strings.ContainsAny(part, "()") {
			cols = append(cols, strings.TrimSpace(part))
			continue
		}
		if c := cleanIdent(part); c != "" {
			cols = append(cols, c)
		}
	}

	table := e.Model.Table(tableName)
	if table == nil {
		e.Ledger.Add(ledger.KindIndex, idxName, ledger.Dropped,
			fmt.Sprintf("index for unknown table %q (line %d)", tableName, st.Line))
		return
	}
	table.Indexes = append(table.Indexes, schema.Index{
		Name: idxName, Columns: cols, Unique: unique, Method: method,
	})
	e.Ledger.Add(ledger.KindIndex, idxName, ledger.Preserved,
		fmt.Sprintf("index on table %q (%s)", tableName, strings.Join(cols, ", ")))
}

// applyCommentOn attaches COMMENT ON TABLE / COLUMN text as notes. Comments
// on other object classes are dropped with provenance.
func (e *Extractor) applyCommentOn(st segment.Statement) {
	_, after, ok := cutKeyword(st.Text, "COMMENT ON")
	if !ok {
		e.applyUnsupported(st)
		return
	}
	after = strings.TrimSpace(after)
	classTok, pos := nextToken(after, 0)
	class := strings.ToUpper(classTok)

	targetTok, pos2 := nextToken(after, pos)
	target := strings.TrimSpace(targetTok)

	_, isPart, ok := cutKeyword(after[pos2:], "IS")
	if !ok {
		e.applyUnsupported(st)
		return
	}
	text := unquoteString(strings.TrimSuffix(strings.TrimSpace(isPart), ";"))
	if strings.EqualFold(text, "NULL") {
		text = ""
	}

	switch class {
	case "TABLE":
		name := cleanIdent(target)
		if table := e.Model.Table(name); table != nil {
			table.Note = text
			e.Ledger.Add(ledger.KindComment, name, ledger.Preserved,
				fmt.Sprintf("note attached to table %q", name))
			return
		}
		e.Ledger.Add(ledger.KindComment, name, ledger.Dropped,
			fmt.Sprintf("comment on unknown table %q (line %d)", name, st.Line))
	case "COLUMN":
		tableName, colName := splitColumnTarget(target)
		if table := e.Model.Table(tableName); table != nil {
			if col := table.Column(colName); col != nil {
				col.Note = text
				e.Ledger.Add(ledger.KindComment, tableName+"."+colName, ledger.Preserved,
					fmt.Sprintf("note attached to column %q.%q", tableName, colName))
				return
			}
		}
		e.Ledger.Add(ledger.KindComment, target, ledger.Dropped,
			fmt.Sprintf("comment on unknown column %q (line %d)", target, st.Line))
	default:
		e.Ledger.Add(ledger.KindComment, target, ledger.Dropped,
			fmt.Sprintf("comment on %s not representable in diagram format (line %d)", strings.ToLower(class), st.Line))
	}
}

// splitColumnTarget splits schema.table.column into table and column parts,
// honoring quoted segments. With only two parts the schema is absent.
func splitColumnTarget(target string) (table, column string) {
	var parts []string
	start := 0
	inDouble := false
	for i := 0; i < len(target); i++ {
		switch target[i] {
		case '"':
			inDouble = !inDouble
		case '.':
			if !inDouble {
				parts = append(parts, target[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, target[start:])
	if len(parts) < 2 {
		return cleanIdent(target), ""
	}
	return cleanIdent(parts[len(parts)-2]), cleanIdent(parts[len(parts)-1])
}

// applyCreateSequence records standalone sequences. They carry no diagram
// shape of their own; serial columns already cover the common case.
func (e *Extractor) applyCreateSequence(st segment.Statement) {
	_, after, ok := cutKeyword(st.Text, "SEQUENCE")
	if !ok {
		e.applyUnsupported(st)
		return
	}
	after = strings.TrimSpace(after)
	if upper := strings.ToUpper(after); strings.HasPrefix(upper, "IF NOT EXISTS") {
		after = strings.TrimSpace(after[len("IF NOT EXISTS"):])
	}
	tok, _ := nextToken(after, 0)
	name := cleanIdent(tok)
	e.Ledger.Add(ledger.KindSequence, name, ledger.Dropped,
		fmt.Sprintf("sequence %q has no diagram representation", name))
}

// applyCreateDomain registers a domain alias with the type mapper so later
// column definitions resolve through it.
func (e *Extractor) applyCreateDomain(st segment.Statement) {
	_, after, ok := cutKeyword(st.Text, "DOMAIN")
	if !ok {
		e.applyUnsupported(st)
		return
	}
	nameTok, pos := nextToken(after, 0)
	name := cleanIdent(nameTok)

	rest := strings.TrimSpace(after[pos:])
	if upper := strings.ToUpper(rest); strings.HasPrefix(upper, "AS ") {
		rest = strings.TrimSpace(rest[len("AS"):])
	}
	baseType, _ := scanType(rest)
	baseType = strings.TrimSuffix(strings.TrimSpace(baseType), ";")
	if name == "" || baseType == "" {
		e.applyUnsupported(st)
		return
	}
	e.Types.AddDomain(name, baseType)
	e.Ledger.Add(ledger.KindType, name, ledger.Unsupported,
		fmt.Sprintf("domain statement for %q not representable, name resolves to %q for later columns", name, baseType))
}

// applyCreateEnum captures CREATE TYPE ... AS ENUM value lists and registers
// the name so columns of the enum type keep it verbatim.
func (e *Extractor) applyCreateEnum(st segment.Statement) {
	_, after, ok := cutKeyword(st.Text, "TYPE")
	if !ok {
		e.applyUnsupported(st)
		return
	}
	nameTok, pos := nextToken(after, 0)
	name := cleanIdent(nameTok)

	_, enumPart, ok := cutKeyword(after[pos:], "AS ENUM")
	if !ok || name == "" {
		e.applyUnsupported(st)
		return
	}
	open := strings.IndexByte(enumPart, '(')
	if open < 0 {
		e.applyUnsupported(st)
		return
	}
	closing := matchingParen(enumPart, open)
	if closing < 0 {
		closing = len(enumPart)
	}
	var values []string
	for _, part := range splitTopLevel(enumPart[open+1:closing], ',') {
		values = append(values, unquoteString(part))
	}

	if existing := e.Model.Enum(name); existing != nil {
		existing.Values = values
	} else {
		e.Model.Enums = append(e.Model.Enums, schema.Enum{Name: name, Values: values})
	}
	e.Types.AddEnum(name)
	e.Ledger.Add(ledger.KindEnum, name, ledger.Preserved,
		fmt.Sprintf("enum %q with %d values", name, len(values)))
}
