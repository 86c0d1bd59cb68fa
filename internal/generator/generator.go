// Package generator renders a schema model as DBML text. Enums come first,
// then tables in dump order so the diagram layout mirrors the source, then
// one Ref line per relationship.
package generator

import (
	"fmt"
	"strings"

	"github.com/pgdbml/pgdbml/internal/schema"
)

// Generate renders the model as DBML-formatted bytes.
func Generate(m *schema.Model) []byte {
	var builder strings.Builder

	for _, enum := range m.Enums {
		generateEnum(&builder, enum)
		builder.WriteString("\n")
	}

	for i := range m.Tables {
		generateTable(&builder, &m.Tables[i])
		builder.WriteString("\n")
	}

	for _, rel := range m.Relationships {
		generateRef(&builder, rel)
	}

	return []byte(builder.String())
}

// GenerateString is a convenience wrapper returning the DBML as a string.
func GenerateString(m *schema.Model) string {
	return string(Generate(m))
}

func generateEnum(builder *strings.Builder, enum schema.Enum) {
	builder.WriteString(fmt.Sprintf("Enum %s {\n", quoteIdent(enum.Name)))
	for _, v := range enum.Values {
		builder.WriteString(fmt.Sprintf("  %s\n", quoteValue(v)))
	}
	builder.WriteString("}\n")
}

func generateTable(builder *strings.Builder, table *schema.Table) {
	builder.WriteString(fmt.Sprintf("Table %s {\n", quoteIdent(table.Name)))

	compositePK := len(table.PrimaryKey) > 1
	for i := range table.Columns {
		generateColumn(builder, &table.Columns[i], compositePK)
	}

	if table.Note != "" {
		builder.WriteString(fmt.Sprintf("\n  Note: '%s'\n", escapeNote(table.Note)))
	}

	if indexes := tableIndexes(table); len(indexes) > 0 {
		builder.WriteString("\n  indexes {\n")
		for _, line := range indexes {
			builder.WriteString("    " + line + "\n")
		}
		builder.WriteString("  }\n")
	}

	builder.WriteString("}\n")
}

func generateColumn(builder *strings.Builder, col *schema.Column, compositePK bool) {
	builder.WriteString(fmt.Sprintf("  %s %s", quoteIdent(col.Name), typeToken(col.Type)))

	increment := col.IsIncrement
	def := col.Default
	if strings.HasPrefix(strings.ToLower(def), "nextval(") {
		increment = true
		def = ""
	}

	// members of a composite primary key render through the indexes block,
	// the target parser accepts only one pk definition per table
	pk := col.IsPrimaryKey && !compositePK

	var attributes []string
	if pk {
		attributes = append(attributes, "pk")
	}
	if col.IsUnique && !pk {
		attributes = append(attributes, "unique")
	}
	if !col.Nullable && !pk {
		attributes = append(attributes, "not null")
	}
	if increment {
		attributes = append(attributes, "increment")
	}
	if def != "" && !increment {
		attributes = append(attributes, "default: "+defaultValue(def))
	}
	if col.Note != "" || col.Type.Note != "" {
		note := col.Note
		if note == "" {
			note = col.Type.Note
		}
		attributes = append(attributes, fmt.Sprintf("note: '%s'", escapeNote(note)))
	}

	if len(attributes) > 0 {
		builder.WriteString(fmt.Sprintf(" [%s]", strings.Join(attributes, ", ")))
	}
	builder.WriteString("\n")
}

// tableIndexes renders the index block lines. Composite primary and unique
// groups declared at table level appear here; single-column flags already
// render as column attributes.
func tableIndexes(table *schema.Table) []string {
	var lines []string
	if len(table.PrimaryKey) > 1 {
		lines = append(lines, fmt.Sprintf("(%s) [pk]", strings.Join(table.PrimaryKey, ", ")))
	}
	for _, group := range table.UniqueGroups {
		if len(group) > 1 {
			lines = append(lines, fmt.Sprintf("(%s) [unique]", strings.Join(group, ", ")))
		}
	}
	for _, idx := range table.Indexes {
		var attrs []string
		if idx.Unique {
			attrs = append(attrs, "unique")
		}
		if idx.Name != "" {
			attrs = append(attrs, fmt.Sprintf("name: '%s'", idx.Name))
		}
		if idx.Method != "" && idx.Method != "btree" {
			attrs = append(attrs, "type: "+idx.Method)
		}
		line := ""
		if len(idx.Columns) == 1 && !strings.ContainsAny(idx.Columns[0], "() ") {
			line = idx.Columns[0]
		} else {
			var cols []string
			for _, c := range idx.Columns {
				if strings.ContainsAny(c, "() ") {
					cols = append(cols, "`"+c+"`")
				} else {
					cols = append(cols, c)
				}
			}
			line = fmt.Sprintf("(%s)", strings.Join(cols, ", "))
		}
		if len(attrs) > 0 {
			line += fmt.Sprintf(" [%s]", strings.Join(attrs, ", "))
		}
		lines = append(lines, line)
	}
	return lines
}

func generateRef(builder *strings.Builder, rel schema.Relationship) {
	builder.WriteString(fmt.Sprintf("Ref: %s.%s > %s.%s",
		quoteIdent(rel.SourceTable), quoteIdent(rel.SourceColumn),
		quoteIdent(rel.TargetTable), quoteIdent(rel.TargetColumn)))

	var attrs []string
	if a := actionText(rel.OnDelete); a != "" {
		attrs = append(attrs, "delete: "+a)
	}
	if a := actionText(rel.OnUpdate); a != "" {
		attrs = append(attrs, "update: "+a)
	}
	if len(attrs) > 0 {
		builder.WriteString(fmt.Sprintf(" [%s]", strings.Join(attrs, ", ")))
	}
	builder.WriteString("\n")
}

// actionText renders a referential action for a Ref attribute. NO ACTION is
// the implicit default and UNKNOWN has no valid rendering, so both are
// omitted.
func actionText(a schema.RefAction) string {
	switch a {
	case schema.Cascade:
		return "cascade"
	case schema.Restrict:
		return "restrict"
	case schema.SetNull:
		return "set null"
	case schema.SetDefault:
		return "set default"
	default:
		return ""
	}
}

// typeToken renders a mapped type, quoting it when array markers or spaces
// would collide with the attribute syntax.
func typeToken(t schema.MappedType) string {
	s := t.String()
	if t.Dims > 0 || strings.ContainsAny(s, " ") {
		return `"` + s + `"`
	}
	return s
}

// quoteIdent wraps identifiers that need quoting in the target format.
func quoteIdent(name string) string {
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			continue
		}
		return `"` + name + `"`
	}
	return name
}

// defaultValue renders a default literal. String literals keep their single
// quotes, plain numerics and booleans stay bare, negative numbers are quoted
// because the target parser rejects a bare leading minus, and everything else
// goes in backticks as an expression.
func defaultValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "'") {
		return raw
	}
	lower := strings.ToLower(raw)
	if lower == "true" || lower == "false" || lower == "null" {
		return lower
	}
	if isPlainNumber(raw) {
		return raw
	}
	if strings.HasPrefix(raw, "-") && isPlainNumber(raw[1:]) {
		return "'" + raw + "'"
	}
	return "`" + raw + "`"
}

func isPlainNumber(s string) bool {
	if s == "" {
		return false
	}
	dot := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '.' && !dot {
			dot = true
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func quoteValue(v string) string {
	return quoteIdent(v)
}

func escapeNote(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}
