package generator

import (
	"fmt"
	"regexp"
	"strings"
)

// Issue is one violation of the target parser's rules found in rendered
// output. Line is 1-based; structural issues without a single offending line
// report the line that closed or ended the construct.
type Issue struct {
	Line    int    `json:"line" yaml:"line"`
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

var (
	unquotedMultiwordType = regexp.MustCompile(`(?i)(double\s+precision|timestamp\s+with(out)?\s+time\s+zone|time\s+with(out)?\s+time\s+zone|character\s+varying|bit\s+varying)`)
	unquotedArrayType     = regexp.MustCompile(`\w+\[\]`)
	unquotedNegativeDef   = regexp.MustCompile(`default:\s*-\d`)
	bareFunctionDef       = regexp.MustCompile(`default:\s*\w+\(`)
)

// Validate checks rendered DBML against the target parser's rules: balanced
// blocks, unique table names, non-empty tables and enums, at most one primary
// key definition per table, quoted multi-word and array types, quoted
// negative defaults, backticked function defaults, and well-formed Ref lines.
// The renderer should never produce a violation; the check runs anyway so the
// report can prove the output parses instead of assuming it.
func Validate(dbml []byte) []Issue {
	var issues []Issue
	add := func(line int, code, format string, args ...any) {
		issues = append(issues, Issue{Line: line, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	seenTables := map[string]int{}
	var (
		inTable, inEnum, inIndexes bool

		tableName  string
		tableLine  int
		columns    int
		pkDefs     int
		enumValues int
	)

	lines := strings.Split(string(dbml), "\n")
	for i, raw := range lines {
		n := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Table "):
			if inTable || inEnum || inIndexes {
				add(n, "unbalanced-block", "table declared inside an open block")
			}
			if !strings.HasSuffix(line, "{") {
				add(n, "unbalanced-block", "table header missing opening brace")
				continue
			}
			inTable = true
			tableName = strings.Trim(strings.TrimSpace(strings.TrimSuffix(line[len("Table "):], "{")), `"`)
			tableLine = n
			columns, pkDefs = 0, 0
			key := strings.ToLower(tableName)
			if prev, dup := seenTables[key]; dup {
				add(n, "duplicate-table", "table %q already declared at line %d", tableName, prev)
			} else {
				seenTables[key] = n
			}
		case strings.HasPrefix(line, "Enum "):
			if inTable || inEnum || inIndexes {
				add(n, "unbalanced-block", "enum declared inside an open block")
			}
			if !strings.HasSuffix(line, "{") {
				add(n, "unbalanced-block", "enum header missing opening brace")
				continue
			}
			inEnum = true
			enumValues = 0
		case strings.HasPrefix(line, "Ref:"):
			if !validRef(line) {
				add(n, "malformed-ref", "relationship line does not parse: %s", line)
			}
		case line == "indexes {":
			if !inTable {
				add(n, "unbalanced-block", "indexes block outside a table")
			}
			inIndexes = true
		case line == "}":
			switch {
			case inIndexes:
				inIndexes = false
			case inTable:
				if columns == 0 {
					add(tableLine, "empty-table", "table %q has no columns", tableName)
				}
				if pkDefs > 1 {
					add(tableLine, "multiple-primary-keys", "table %q declares %d primary keys, the parser accepts one", tableName, pkDefs)
				}
				inTable = false
			case inEnum:
				if enumValues == 0 {
					add(n, "empty-enum", "enum block has no values")
				}
				inEnum = false
			default:
				add(n, "unbalanced-block", "closing brace without an open block")
			}
		default:
			switch {
			case inIndexes:
				if attrsHavePK(line) {
					pkDefs++
				}
			case inTable:
				if strings.HasPrefix(line, "Note:") {
					continue
				}
				columns++
				if attrsHavePK(line) {
					pkDefs++
				}
				if !strings.Contains(line, `"`) {
					if unquotedMultiwordType.MatchString(line) {
						add(n, "unquoted-spaced-type", "multi-word type must be quoted: %s", line)
					}
					if unquotedArrayType.MatchString(line) {
						add(n, "unquoted-array-type", "array type must be quoted: %s", line)
					}
				}
			case inEnum:
				enumValues++
			default:
				add(n, "stray-text", "text outside any block: %s", line)
			}
		}

		if unquotedNegativeDef.MatchString(line) {
			add(n, "unquoted-negative-default", "negative default must be quoted: %s", line)
		}
		if bareFunctionDef.MatchString(line) && !strings.Contains(line, "`") {
			add(n, "bare-function-default", "function call default must be backticked: %s", line)
		}
	}

	if inTable || inEnum || inIndexes {
		add(len(lines), "unbalanced-block", "unterminated block at end of output")
	}
	return issues
}

// validRef accepts "Ref: a.b > c.d", the < and - forms, quoted identifiers,
// and an optional trailing attribute list.
func validRef(line string) bool {
	body := strings.TrimSpace(strings.TrimPrefix(line, "Ref:"))
	if open := strings.Index(body, " ["); open >= 0 {
		if !strings.HasSuffix(body, "]") {
			return false
		}
		body = strings.TrimSpace(body[:open])
	}
	for _, sep := range []string{" > ", " < ", " - "} {
		left, right, found := strings.Cut(body, sep)
		if !found {
			continue
		}
		return refEndpoint(left) && refEndpoint(right)
	}
	return false
}

func refEndpoint(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && strings.Contains(s, ".") && !strings.HasPrefix(s, ".") && !strings.HasSuffix(s, ".")
}

// attrsHavePK reports whether a column or index line carries a pk attribute.
func attrsHavePK(line string) bool {
	open := strings.LastIndex(line, "[")
	if open < 0 || !strings.HasSuffix(line, "]") {
		return false
	}
	for _, attr := range strings.Split(line[open+1:len(line)-1], ",") {
		if strings.TrimSpace(attr) == "pk" {
			return true
		}
	}
	return false
}
