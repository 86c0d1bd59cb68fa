package extract

import (
	"fmt"
	"strings"

	"github.com/pgdbml/pgdbml/internal/ledger"
	"github.com/pgdbml/pgdbml/internal/schema"
	"github.com/pgdbml/pgdbml/internal/segment"
)

// typeContinuations are the only words allowed to extend a type name past
// its first token (timestamp with time zone, double precision, bit varying,
// integer array). Anything else ends the type and belongs to the modifier
// tail.
var typeContinuations = map[string]bool{
	"WITH":      true,
	"WITHOUT":   true,
	"TIME":      true,
	"ZONE":      true,
	"PRECISION": true,
	"VARYING":   true,
	"ARRAY":     true,
}

// columnTerminators are the keywords that end a default expression. Scanning
// stops at the first word-bounded occurrence outside parentheses.
var columnTerminators = map[string]bool{
	"NOT":        true,
	"NULL":       true,
	"PRIMARY":    true,
	"UNIQUE":     true,
	"DEFAULT":    true,
	"REFERENCES": true,
	"CHECK":      true,
	"CONSTRAINT": true,
	"GENERATED":  true,
	"COLLATE":    true,
}

var serialNames = map[string]bool{
	"smallserial": true, "serial2": true,
	"serial": true, "serial4": true,
	"bigserial": true, "serial8": true,
}

// applyCreateTable parses every CREATE TABLE variant. The leading variant
// keywords (TEMP, UNLOGGED, FOREIGN, IF NOT EXISTS) are flattened away; the
// resulting table is the same either way.
func (e *Extractor) applyCreateTable(st segment.Statement) {
	rest := stripTablePreamble(st.Text)
	variant := tableVariant(st.Text)

	nameTok, pos := nextToken(rest, 0)
	name := cleanIdent(nameTok)
	if name == "" {
		e.Ledger.Add(ledger.KindTable, "(unnamed)", ledger.Unsupported,
			fmt.Sprintf("table statement with no parseable name (line %d)", st.Line))
		return
	}

	if upper := strings.ToUpper(strings.TrimSpace(rest[pos:])); strings.HasPrefix(upper, "PARTITION OF") {
		if _, merged := e.Model.AddTable(schema.Table{Name: name}); merged {
			e.MergedTables++
		}
		e.Ledger.Add(ledger.KindTable, name, ledger.Transformed,
			fmt.Sprintf("table %q: partition-of flattened to standalone table, parent columns not merged", name))
		return
	}

	tail := rest[pos:]
	open := strings.IndexByte(tail, '(')
	if before, _, ok := cutKeyword(tail, "AS"); ok && (open < 0 || len(before) < open) {
		// CREATE TABLE ... AS SELECT defines no columns of its own, even when
		// the query text carries parentheses.
		e.Ledger.Add(ledger.KindTable, name, ledger.Unsupported,
			fmt.Sprintf("table %q created from a query, no column list (line %d)", name, st.Line))
		return
	}
	if open < 0 {
		e.Ledger.Add(ledger.KindTable, name, ledger.Unsupported,
			fmt.Sprintf("table %q has no column list (line %d)", name, st.Line))
		return
	}
	open += pos
	closing := matchingParen(rest, open)
	if closing < 0 {
		closing = len(rest)
	}
	body := rest[open+1 : closing]

	table := schema.Table{Name: name}
	for _, item := range splitTopLevel(body, ',') {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		e.applyTableItem(&table, item, st.Line)
	}

	// constraint fragments may legally precede the columns they name
	if len(table.PrimaryKey) > 0 {
		table.MarkPrimaryKey(table.PrimaryKey)
	}
	for _, group := range table.UniqueGroups {
		if len(group) != 1 {
			continue
		}
		if col := table.Column(group[0]); col != nil {
			col.IsUnique = true
		}
	}

	_, merged := e.Model.AddTable(table)
	if merged {
		e.MergedTables++
	}
	outcome, reason := ledger.Preserved, fmt.Sprintf("table %q with %d columns", name, len(table.Columns))
	switch {
	case merged:
		outcome, reason = ledger.Transformed, fmt.Sprintf("table %q redeclared, columns merged into earlier declaration", name)
	case strings.Contains(strings.ToUpper(rest[closing:]), "INHERITS"):
		outcome = ledger.Transformed
		reason = fmt.Sprintf("table %q: table inheritance flattened, parent columns not merged", name)
	case variant != "":
		outcome = ledger.Transformed
		reason = fmt.Sprintf("table %q: %s variant flattened to standalone table", name, variant)
	}
	e.Ledger.Add(ledger.KindTable, name, outcome, reason)
}

// tableVariant names the table-creation variant keyword, if any.
func tableVariant(text string) string {
	norm := normalize(text)
	switch {
	case strings.Contains(norm, "TEMP TABLE"), strings.Contains(norm, "TEMPORARY TABLE"):
		return "temporary"
	case strings.Contains(norm, "UNLOGGED TABLE"):
		return "unlogged"
	case strings.Contains(norm, "FOREIGN TABLE"):
		return "foreign"
	}
	return ""
}

// stripTablePreamble removes CREATE [variant...] TABLE [IF NOT EXISTS] and
// returns the remainder starting at the table name.
func stripTablePreamble(text string) string {
	rest := strings.TrimSpace(text)
	for {
		word := firstWord(rest)
		switch word {
		case "CREATE", "GLOBAL", "LOCAL", "TEMP", "TEMPORARY", "UNLOGGED", "FOREIGN", "TABLE":
			_, next := nextToken(rest, 0)
			rest = strings.TrimSpace(rest[next:])
		default:
			upper := strings.ToUpper(rest)
			if strings.HasPrefix(upper, "IF NOT EXISTS") {
				rest = strings.TrimSpace(rest[len("IF NOT EXISTS"):])
			}
			return rest
		}
	}
}

// applyTableItem folds one comma-separated body item, either a table-level
// constraint or a column definition.
func (e *Extractor) applyTableItem(table *schema.Table, item string, line int) {
	upper := strings.ToUpper(item)

	if strings.HasPrefix(upper, "CONSTRAINT ") {
		// skip the name, classify what follows
		_, pos := nextToken(item, 0)
		_, pos = nextToken(item, pos)
		item = strings.TrimSpace(item[pos:])
		upper = strings.ToUpper(item)
	}

	switch {
	case strings.HasPrefix(upper, "PRIMARY KEY"):
		table.MarkPrimaryKey(constraintColumns(item))
		return
	case strings.HasPrefix(upper, "UNIQUE"):
		table.MarkUnique(constraintColumns(item))
		return
	case strings.HasPrefix(upper, "FOREIGN KEY"):
		e.addForeignKey(table.Name, item, line)
		return
	case strings.HasPrefix(upper, "CHECK"), strings.HasPrefix(upper, "EXCLUDE"), strings.HasPrefix(upper, "LIKE "):
		e.Ledger.Add(ledger.KindConstraint, table.Name, ledger.Dropped,
			fmt.Sprintf("table %q: %s constraint not representable in diagram format", table.Name, firstWord(item)))
		return
	}

	e.applyColumn(table, item, line)
}

// applyColumn parses a column definition: name, type, then modifiers.
func (e *Extractor) applyColumn(table *schema.Table, item string, line int) {
	nameTok, pos := nextToken(item, 0)
	colName := cleanIdent(nameTok)
	if colName == "" {
		e.Ledger.Add(ledger.KindColumn, table.Name, ledger.Dropped,
			fmt.Sprintf("table %q: unparseable column definition (line %d)", table.Name, line))
		return
	}

	rawType, rest := scanType(item[pos:])
	if rawType == "" {
		e.Ledger.Add(ledger.KindColumn, table.Name+"."+colName, ledger.Dropped,
			fmt.Sprintf("table %q: column %q has no type (line %d)", table.Name, colName, line))
		return
	}

	res := e.Types.Map(rawType)
	col := schema.Column{Name: colName, Type: res.Type, Nullable: true}
	if serialNames[strings.ToLower(strings.TrimSpace(rawType))] {
		col.IsIncrement = true
	}
	e.applyColumnModifiers(table, &col, rest, line)
	table.AddColumn(col)

	e.Ledger.Add(ledger.KindType, table.Name+"."+colName, res.Outcome, res.Reason)
}

// scanType consumes the type portion of a column definition and returns the
// raw type text plus the unconsumed modifier tail. The type may span several
// words (timestamp with time zone), carry parameters, and end in array
// brackets.
func scanType(s string) (rawType, rest string) {
	i := 0
	end := 0
	for i < len(s) {
		// skip leading space
		for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
			i++
		}
		if i >= len(s) {
			break
		}
		if s[i] == '(' {
			closing := matchingParen(s, i)
			if closing < 0 {
				i = len(s)
			} else {
				i = closing + 1
			}
			end = i
			continue
		}
		if s[i] == '[' {
			j := strings.IndexByte(s[i:], ']')
			if j < 0 {
				i = len(s)
			} else {
				i += j + 1
			}
			end = i
			continue
		}
		word, next := nextToken(s, i)
		if end > 0 && !typeContinuations[strings.ToUpper(word)] {
			break
		}
		i = next
		end = i
	}
	return strings.TrimSpace(s[:end]), s[end:]
}

// applyColumnModifiers walks the tail after the type, one keyword at a time.
// Unrecognized trailing modifiers are dropped with the raw words as evidence;
// the column itself always survives.
func (e *Extractor) applyColumnModifiers(table *schema.Table, col *schema.Column, rest string, line int) {
	var unknown []string
	i := 0
	for {
		word, next := nextToken(rest, i)
		if word == "" {
			if i < len(rest) {
				if t := strings.TrimLeft(rest[i:], " \t\n\r"); strings.HasPrefix(t, "(") {
					open := strings.IndexByte(rest[i:], '(')
					if closing := matchingParen(rest[i:], open); closing >= 0 {
						i += closing + 1
						continue
					}
				}
			}
			if len(unknown) > 0 {
				e.Ledger.Add(ledger.KindConstraint, table.Name+"."+col.Name, ledger.Dropped,
					fmt.Sprintf("table %q: unrecognized column modifiers on %q: %s",
						table.Name, col.Name, strings.Join(unknown, " ")))
			}
			return
		}
		switch strings.ToUpper(word) {
		case "NOT":
			peek, after := nextToken(rest, next)
			if strings.ToUpper(peek) == "NULL" {
				col.Nullable = false
				next = after
			}
		case "NULL":
			col.Nullable = true
		case "PRIMARY":
			peek, after := nextToken(rest, next)
			if strings.ToUpper(peek) == "KEY" {
				col.IsPrimaryKey = true
				col.Nullable = false
				next = after
			}
		case "UNIQUE":
			col.IsUnique = true
		case "DEFAULT":
			expr, after := scanDefault(rest, next)
			col.Default = expr
			next = after
		case "GENERATED":
			// GENERATED {ALWAYS|BY DEFAULT} AS IDENTITY, with optional options
			sub := rest[next:]
			if _, after, ok := cutKeyword(sub, "IDENTITY"); ok {
				col.IsIncrement = true
				adv := len(sub) - len(after)
				if t := strings.TrimLeft(after, " \t\n\r"); strings.HasPrefix(t, "(") {
					openIdx := strings.IndexByte(after, '(')
					if closing := matchingParen(after, openIdx); closing >= 0 {
						adv += closing + 1
					}
				}
				next += adv
			}
		case "REFERENCES":
			consumed := e.addInlineReference(table.Name, col.Name, rest[next:], line)
			next += consumed
		case "CHECK":
			if open := strings.IndexByte(rest[next:], '('); open >= 0 {
				if closing := matchingParen(rest[next:], open); closing >= 0 {
					next += closing + 1
				}
			}
			e.Ledger.Add(ledger.KindConstraint, table.Name+"."+col.Name, ledger.Dropped,
				fmt.Sprintf("table %q: check constraint on %q not representable in diagram format", table.Name, col.Name))
		case "CONSTRAINT":
			// named inline constraint: skip the name, loop handles the rest
			_, next = nextToken(rest, next)
		case "COLLATE":
			_, next = nextToken(rest, next)
		default:
			unknown = append(unknown, word)
		}
		i = next
	}
}

// scanDefault consumes a default expression starting at position i. The
// expression runs to the next top-level modifier keyword, swallowing quoted
// strings, casts, and call parentheses whole.
func scanDefault(s string, i int) (expr string, end int) {
	start := i
	for i < len(s) {
		c := s[i]
		switch c {
		case ' ', '\t', '\n', '\r':
			word, next := nextToken(s, i)
			if columnTerminators[strings.ToUpper(word)] && i > start {
				return strings.TrimSpace(s[start:i]), i
			}
			_ = next
			i++
		case '\'':
			i++
			for i < len(s) {
				if s[i] == '\'' {
					if i+1 < len(s) && s[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
		case '(':
			closing := matchingParen(s, i)
			if closing < 0 {
				i = len(s)
			} else {
				i = closing + 1
			}
		default:
			i++
		}
	}
	return strings.TrimSpace(s[start:]), len(s)
}

// constraintColumns extracts the parenthesized column list from a table
// constraint such as PRIMARY KEY (a, b).
func constraintColumns(item string) []string {
	open := strings.IndexByte(item, '(')
	if open < 0 {
		return nil
	}
	closing := matchingParen(item, open)
	if closing < 0 {
		closing = len(item)
	}
	var cols []string
	for _, part := range splitTopLevel(item[open+1:closing], ',') {
		if c := cleanIdent(part); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}
