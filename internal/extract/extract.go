// Package extract classifies segmented DDL statements and folds them into
// the schema model. Classification is keyword-prefix dispatch over a fixed
// ordered pattern list; anything outside the list degrades to an unsupported
// ledger entry with the statement text as evidence. There is no fatal path
// for malformed-but-plausible SQL.
package extract

import (
	"fmt"
	"strings"

	"github.com/pgdbml/pgdbml/internal/ledger"
	"github.com/pgdbml/pgdbml/internal/schema"
	"github.com/pgdbml/pgdbml/internal/segment"
	"github.com/pgdbml/pgdbml/internal/typemap"
)

// Kind is the classified statement kind.
type Kind int

const (
	KindUnsupported Kind = iota
	KindCreateTable
	KindAlterAddConstraint
	KindCreateIndex
	KindCommentOn
	KindCreateSequence
	KindCreateDomain
	KindCreateEnum
)

// Extractor folds statements into a model, ledger, and relationship
// candidate list. One extractor serves exactly one conversion run.
type Extractor struct {
	Model  *schema.Model
	Ledger *ledger.Ledger
	Types  *typemap.TypeMap

	// Candidates accumulates foreign-key edges from inline REFERENCES and
	// ALTER TABLE ADD CONSTRAINT, resolved after all statements are seen.
	Candidates []schema.Relationship

	// TableStatements counts statements classified as a table-creation
	// variant, for the silent-failure check. MergedTables counts the
	// subset that folded into an earlier declaration of the same name.
	TableStatements int
	MergedTables    int
}

// New returns an extractor writing into the given model and ledger.
func New(model *schema.Model, led *ledger.Ledger, types *typemap.TypeMap) *Extractor {
	return &Extractor{Model: model, Ledger: led, Types: types}
}

// Apply classifies one statement and folds it into the model.
func (e *Extractor) Apply(st segment.Statement) {
	kind := Classify(st.Text)
	switch kind {
	case KindCreateTable:
		e.TableStatements++
		e.applyCreateTable(st)
	case KindAlterAddConstraint:
		e.applyAlterAddConstraint(st)
	case KindCreateIndex:
		e.applyCreateIndex(st)
	case KindCommentOn:
		e.applyCommentOn(st)
	case KindCreateSequence:
		e.applyCreateSequence(st)
	case KindCreateDomain:
		e.applyCreateDomain(st)
	case KindCreateEnum:
		e.applyCreateEnum(st)
	default:
		e.applyUnsupported(st)
	}
}

// classifyPatterns is the ordered prefix matcher list. Order matters: more
// specific patterns sit above the keywords they extend.
var classifyPatterns = []struct {
	prefix string
	kind   Kind
	// extra restricts the match further when set.
	extra func(norm string) bool
}{
	{prefix: "CREATE TYPE", kind: KindCreateEnum, extra: func(n string) bool { return strings.Contains(n, " AS ENUM") }},
	{prefix: "CREATE DOMAIN", kind: KindCreateDomain},
	{prefix: "CREATE TABLE", kind: KindCreateTable},
	{prefix: "CREATE GLOBAL TEMPORARY TABLE", kind: KindCreateTable},
	{prefix: "CREATE LOCAL TEMPORARY TABLE", kind: KindCreateTable},
	{prefix: "CREATE TEMP TABLE", kind: KindCreateTable},
	{prefix: "CREATE TEMPORARY TABLE", kind: KindCreateTable},
	{prefix: "CREATE UNLOGGED TABLE", kind: KindCreateTable},
	{prefix: "CREATE FOREIGN TABLE", kind: KindCreateTable},
	{prefix: "CREATE UNIQUE INDEX", kind: KindCreateIndex},
	{prefix: "CREATE INDEX", kind: KindCreateIndex},
	{prefix: "CREATE SEQUENCE", kind: KindCreateSequence},
	{prefix: "ALTER TABLE", kind: KindAlterAddConstraint, extra: func(n string) bool { return strings.Contains(n, " ADD CONSTRAINT ") }},
	{prefix: "COMMENT ON", kind: KindCommentOn},
}

// Classify determines the statement kind from its normalized leading tokens.
func Classify(text string) Kind {
	norm := normalize(text)
	for _, p := range classifyPatterns {
		if strings.HasPrefix(norm, p.prefix+" ") || norm == p.prefix {
			if p.extra != nil && !p.extra(norm) {
				continue
			}
			return p.kind
		}
	}
	return KindUnsupported
}

// applyUnsupported records exactly one ledger entry for a statement outside
// the recognized list.
func (e *Extractor) applyUnsupported(st segment.Statement) {
	norm := normalize(st.Text)
	label := leadingKeywords(norm, 3)
	e.Ledger.Add(ledger.KindStatement, label, ledger.Unsupported,
		fmt.Sprintf("statement not representable in diagram format (line %d): %s", st.Line, truncate(st.Text, 120)))
}

// normalize collapses whitespace and upper-cases for prefix matching.
func normalize(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// leadingKeywords returns up to n leading words of a normalized statement,
// stopping before the first identifier-looking token is unnecessary: the
// label only identifies the statement class for the report.
func leadingKeywords(norm string, n int) string {
	fields := strings.Fields(norm)
	if len(fields) > n {
		fields = fields[:n]
	}
	if len(fields) == 0 {
		return "(empty)"
	}
	return strings.Join(fields, " ")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
