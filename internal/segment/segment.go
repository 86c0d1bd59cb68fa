// Package segment splits raw PostgreSQL DDL text into top-level statements.
//
// The scanner tracks quote, comment, and dollar-quote state so that
// semicolons inside string literals or function bodies never produce a
// statement boundary. It has no failure path: malformed or truncated input
// yields the remaining text as one final statement, and downstream
// classification decides what to do with it.
package segment

import "strings"

// Statement is one top-level DDL unit of the source text.
type Statement struct {
	// Text is the statement text with surrounding whitespace trimmed and
	// without the terminating semicolon.
	Text string
	// Line is the 1-based source line of the statement's first character.
	Line int
}

// Options controls scanner behavior.
type Options struct {
	// BackslashEscapes treats backslash as an escape character inside
	// single-quoted strings, as with PostgreSQL's E'' literals or
	// standard_conforming_strings = off dumps.
	BackslashEscapes bool
}

type scanState int

const (
	stNormal scanState = iota
	stSingleQuote
	stDoubleQuote
	stLineComment
	stBlockComment
	stDollarQuote
	stCopyData
)

// Split scans src with default options.
func Split(src string) []Statement {
	return SplitWith(src, Options{})
}

// SplitWith scans src and returns its top-level statements in order.
// Statement data of COPY ... FROM stdin blocks is skipped up to the
// terminating backslash-dot line so it cannot corrupt later statements.
func SplitWith(src string, opts Options) []Statement {
	var out []Statement

	state := stNormal
	parenDepth := 0
	blockDepth := 0
	dollarTag := ""

	line := 1
	stmtStart := -1 // byte offset of first non-space rune of current statement
	stmtLine := 0

	flush := func(end int) {
		if stmtStart < 0 {
			return
		}
		text := strings.TrimSpace(src[stmtStart:end])
		if text != "" {
			out = append(out, Statement{Text: text, Line: stmtLine})
		}
		stmtStart = -1
	}

	i := 0
	for i < len(src) {
		c := src[i]
		if c == '\n' {
			line++
		}

		switch state {
		case stNormal:
			switch {
			case c == ';' && parenDepth == 0:
				flush(i)
				stmt := &out
				// A COPY ... FROM stdin statement is followed by raw
				// tuple data terminated by a \. line.
				if n := len(*stmt); n > 0 && isCopyFromStdin((*stmt)[n-1].Text) {
					state = stCopyData
				}
				i++
				continue
			case c == '\'':
				markStart(&stmtStart, &stmtLine, i, line)
				state = stSingleQuote
			case c == '"':
				markStart(&stmtStart, &stmtLine, i, line)
				state = stDoubleQuote
			case c == '-' && i+1 < len(src) && src[i+1] == '-':
				state = stLineComment
				i += 2
				continue
			case c == '/' && i+1 < len(src) && src[i+1] == '*':
				state = stBlockComment
				blockDepth = 1
				i += 2
				continue
			case c == '$':
				if tag, ok := dollarTagAt(src, i); ok {
					markStart(&stmtStart, &stmtLine, i, line)
					dollarTag = tag
					state = stDollarQuote
					i += len(tag)
					continue
				}
				markStart(&stmtStart, &stmtLine, i, line)
			case c == '(':
				markStart(&stmtStart, &stmtLine, i, line)
				parenDepth++
			case c == ')':
				markStart(&stmtStart, &stmtLine, i, line)
				if parenDepth > 0 {
					parenDepth--
				}
			case c != ' ' && c != '\t' && c != '\n' && c != '\r':
				markStart(&stmtStart, &stmtLine, i, line)
			}

		case stSingleQuote:
			switch {
			case opts.BackslashEscapes && c == '\\':
				i += 2
				continue
			case c == '\'':
				// '' is an escaped quote, not a terminator.
				if i+1 < len(src) && src[i+1] == '\'' {
					i += 2
					continue
				}
				state = stNormal
			}

		case stDoubleQuote:
			if c == '"' {
				if i+1 < len(src) && src[i+1] == '"' {
					i += 2
					continue
				}
				state = stNormal
			}

		case stLineComment:
			if c == '\n' {
				state = stNormal
			}

		case stBlockComment:
			// PostgreSQL block comments nest.
			switch {
			case c == '/' && i+1 < len(src) && src[i+1] == '*':
				blockDepth++
				i += 2
				continue
			case c == '*' && i+1 < len(src) && src[i+1] == '/':
				blockDepth--
				if blockDepth == 0 {
					state = stNormal
				}
				i += 2
				continue
			}

		case stDollarQuote:
			if c == '$' && strings.HasPrefix(src[i:], dollarTag) {
				state = stNormal
				i += len(dollarTag)
				continue
			}

		case stCopyData:
			if atCopyTerminator(src, i) {
				state = stNormal
				i += 2
				continue
			}
		}

		i++
	}

	// Truncated input: whatever state we are in, the remainder becomes one
	// final statement rather than an error.
	if state != stCopyData {
		flush(len(src))
	}

	return out
}

func markStart(start *int, startLine *int, i, line int) {
	if *start < 0 {
		*start = i
		*startLine = line
	}
}

// dollarTagAt reports whether a dollar-quote opening tag ($$, $tag$) begins
// at offset i, and returns the full tag including both dollar signs.
func dollarTagAt(src string, i int) (string, bool) {
	j := i + 1
	for j < len(src) {
		c := src[j]
		if c == '$' {
			return src[i : j+1], true
		}
		if !isTagChar(c) {
			return "", false
		}
		j++
	}
	return "", false
}

func isTagChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// isCopyFromStdin reports whether a statement is a COPY reading inline data.
func isCopyFromStdin(stmt string) bool {
	norm := strings.ToUpper(strings.Join(strings.Fields(stmt), " "))
	return strings.HasPrefix(norm, "COPY ") && strings.Contains(norm, "FROM STDIN")
}

// atCopyTerminator reports whether a \. terminator line begins at offset i.
func atCopyTerminator(src string, i int) bool {
	if src[i] != '\\' || i+1 >= len(src) || src[i+1] != '.' {
		return false
	}
	if i > 0 && src[i-1] != '\n' {
		return false
	}
	rest := src[i+2:]
	return rest == "" || rest[0] == '\n' || rest[0] == '\r'
}
