package extract

import "strings"

// splitTopLevel splits s on sep at paren depth zero, honoring single and
// double quoted regions. Used for column lists, enum value lists, and
// composite key column lists.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	inSingle, inDouble := false, false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inSingle:
			if c == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					i++
				} else {
					inSingle = false
				}
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// matchingParen returns the index of the ')' closing the '(' at open, or -1.
// Quoted regions are opaque to depth counting.
func matchingParen(s string, open int) int {
	depth := 0
	inSingle, inDouble := false, false
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case inSingle:
			if c == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					i++
				} else {
					inSingle = false
				}
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// nextToken returns the token starting at position i and the index just past
// it. A token is either a double-quoted identifier (quotes included) or a
// run of non-space, non-paren, non-comma characters.
func nextToken(s string, i int) (string, int) {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	if i >= len(s) {
		return "", i
	}
	if s[i] == '"' {
		j := i + 1
		for j < len(s) && s[j] != '"' {
			j++
		}
		if j < len(s) {
			j++
		}
		// keep any attached qualifier, e.g. "public"."users"
		for j < len(s) && s[j] == '.' {
			tok, end := nextToken(s, j+1)
			_ = tok
			j = end
			break
		}
		return s[i:j], j
	}
	j := i
	for j < len(s) {
		c := s[j]
		if c == '"' {
			// qualifier attached to a quoted identifier, e.g. public."User Data"
			k := j + 1
			for k < len(s) && s[k] != '"' {
				k++
			}
			if k < len(s) {
				k++
			}
			j = k
			continue
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '(' || c == ')' || c == ',' || c == ';' {
			break
		}
		j++
	}
	return s[i:j], j
}

// cleanIdent strips a schema qualifier and surrounding double quotes from an
// identifier. Unquoted identifiers are lower-cased the way the server folds
// them; quoted identifiers keep their case.
func cleanIdent(ident string) string {
	ident = strings.TrimSpace(ident)
	ident = strings.TrimSuffix(ident, ";")
	// drop schema qualifier, splitting outside quotes
	last := ident
	inDouble := false
	for i := 0; i < len(ident); i++ {
		switch ident[i] {
		case '"':
			inDouble = !inDouble
		case '.':
			if !inDouble {
				last = ident[i+1:]
			}
		}
	}
	last = strings.TrimSpace(last)
	if strings.HasPrefix(last, `"`) && strings.HasSuffix(last, `"`) && len(last) >= 2 {
		return last[1 : len(last)-1]
	}
	return strings.ToLower(last)
}

// firstWord returns the first whitespace-delimited word, upper-cased.
func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// cutKeyword finds the first occurrence of the upper-case keyword phrase kw
// in s (case-insensitive, word-bounded on both sides, outside quotes) and
// returns the parts before and after it.
func cutKeyword(s, kw string) (before, after string, ok bool) {
	upper := strings.ToUpper(s)
	inSingle, inDouble := false, false
	for i := 0; i+len(kw) <= len(s); i++ {
		c := s[i]
		switch {
		case inSingle:
			if c == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					i++
				} else {
					inSingle = false
				}
			}
			continue
		case inDouble:
			if c == '"' {
				inDouble = false
			}
			continue
		case c == '\'':
			inSingle = true
			continue
		case c == '"':
			inDouble = true
			continue
		}
		if upper[i:i+len(kw)] != kw {
			continue
		}
		if i > 0 && isWordChar(s[i-1]) {
			continue
		}
		if i+len(kw) < len(s) && isWordChar(s[i+len(kw)]) {
			continue
		}
		return s[:i], s[i+len(kw):], true
	}
	return s, "", false
}

func isWordChar(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// unquoteString strips one layer of single quotes and unescapes doubled
// quotes. Non-quoted input is returned unchanged.
func unquoteString(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}
