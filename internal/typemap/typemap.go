// Package typemap maps PostgreSQL column types to DBML type tokens.
//
// Map is total: every input produces a non-empty token. Types DBML cannot
// represent fall back to a generic token with a provenance note instead of
// failing, and every mapping reports an outcome for the ledger.
package typemap

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pgdbml/pgdbml/internal/ledger"
	"github.com/pgdbml/pgdbml/internal/schema"
)

// FallbackToken is the generic token unknown source types map to.
const FallbackToken = "text"

// scalarTypes is the exact-match table for common scalar types. Tokens are
// the native type names dbdiagram.io accepts.
var scalarTypes = map[string]string{
	"integer":   "int4",
	"int":       "int4",
	"int4":      "int4",
	"bigint":    "int8",
	"int8":      "int8",
	"smallint":  "int2",
	"int2":      "int2",
	"boolean":   "bool",
	"bool":      "bool",
	"text":      "text",
	"date":      "date",
	"timestamp": "timestamp",
	"timestamptz": "timestamptz",
	"time":      "time",
	"timetz":    "timetz",
	"interval":  "interval",
	"json":      "json",
	"jsonb":     "jsonb",
	"uuid":      "uuid",
	"numeric":   "numeric",
	"real":      "float4",
	"float4":    "float4",
	"float8":    "float8",
	"money":     "money",
	"bytea":     "bytea",
	"inet":      "inet",
	"cidr":      "cidr",
	"macaddr":   "macaddr",
	"macaddr8":  "macaddr8",
	"point":     "point",
	"line":      "line",
	"lseg":      "lseg",
	"box":       "box",
	"path":      "path",
	"polygon":   "polygon",
	"circle":    "circle",
	"int4range": "int4range",
	"int8range": "int8range",
	"numrange":  "numrange",
	"tsrange":   "tsrange",
	"tstzrange": "tstzrange",
	"daterange": "daterange",
	"tsvector":  "tsvector",
	"tsquery":   "tsquery",
	"xml":       "xml",
	"bit":       "bit",
	"varbit":    "varbit",
	"name":      "text",
	"oid":       "int8",
}

// transformedScalars are exact matches whose target token differs enough to
// count as a transformation rather than a preservation.
var transformedScalars = map[string]string{
	"decimal": "numeric",
	"float":   "float8",
	"double":  "float8",
	"char":    "bpchar",
	"bpchar":  "bpchar",
	"character": "bpchar",
}

// lossyScalars map to the fallback token with a semantic-loss note.
var lossyScalars = map[string]string{
	"hstore":         FallbackToken,
	"ltree":          FallbackToken,
	"cube":           FallbackToken,
	"pg_lsn":         FallbackToken,
	"int4multirange": FallbackToken,
	"int8multirange": FallbackToken,
	"nummultirange":  FallbackToken,
	"tsmultirange":   FallbackToken,
	"datemultirange": FallbackToken,
}

// serialTypes map the auto-increment pseudo-types to their integer widths.
var serialTypes = map[string]string{
	"serial":      "int4",
	"serial4":     "int4",
	"bigserial":   "int8",
	"serial8":     "int8",
	"smallserial": "int2",
	"serial2":     "int2",
}

// multiWordSynonyms are phrase substitutions applied before tokenizing.
// Longer phrases first so "timestamp with time zone" wins over "timestamp".
var multiWordSynonyms = []struct{ from, to string }{
	{"timestamp with time zone", "timestamptz"},
	{"timestamp without time zone", "timestamp"},
	{"time with time zone", "timetz"},
	{"time without time zone", "time"},
	{"double precision", "float8"},
	{"character varying", "varchar"},
	{"bit varying", "varbit"},
}

// parameterized types keep their parameters verbatim in the target token.
var paramTypes = map[string]string{
	"varchar": "varchar",
	"character varying": "varchar",
	"char":    "bpchar",
	"bpchar":  "bpchar",
	"character": "bpchar",
	"numeric": "numeric",
	"decimal": "numeric",
	"bit":     "bit",
	"varbit":  "varbit",
	"time":    "time",
	"timetz":  "timetz",
	"timestamp":   "timestamp",
	"timestamptz": "timestamptz",
	"interval":    "interval",
}

var typeParamRe = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_ ]*?)\s*\(([^)]*)\)$`)

// Result is the outcome of one mapping, reported to the ledger by callers.
type Result struct {
	Type    schema.MappedType
	Outcome ledger.Outcome
	Reason  string
}

// TypeMap resolves source types, consulting user overrides and the per-run
// domain and enum side tables before the built-in rules.
type TypeMap struct {
	// Overrides maps a lowercased source type to a target token chosen by
	// the user. Serialized so overrides survive across runs.
	Overrides map[string]string `yaml:"overrides,omitempty"`

	domains map[string]string // domain name -> base type, from CREATE DOMAIN
	enums   map[string]bool   // enum type names, from CREATE TYPE ... AS ENUM
	seen    map[string]string // source type -> resolved token, for review
}

// New returns a TypeMap with no overrides.
func New() *TypeMap {
	return &TypeMap{
		Overrides: make(map[string]string),
		domains:   make(map[string]string),
		enums:     make(map[string]bool),
		seen:      make(map[string]string),
	}
}

// AddDomain records a domain's base type, consulted for one level of
// resolution when a column uses the domain.
func (tm *TypeMap) AddDomain(name, baseType string) {
	tm.domains[strings.ToLower(name)] = baseType
}

// AddEnum records an enum type name so columns of the type keep it.
func (tm *TypeMap) AddEnum(name string) {
	tm.enums[strings.ToLower(name)] = true
}

// Override applies a user override for a source type.
func (tm *TypeMap) Override(sourceType, token string) {
	tm.Overrides[strings.ToLower(strings.TrimSpace(sourceType))] = token
}

// RestoreDefault removes a user override.
func (tm *TypeMap) RestoreDefault(sourceType string) {
	delete(tm.Overrides, strings.ToLower(strings.TrimSpace(sourceType)))
}

// IsOverridden reports whether the source type has a user override.
func (tm *TypeMap) IsOverridden(sourceType string) bool {
	_, ok := tm.Overrides[strings.ToLower(strings.TrimSpace(sourceType))]
	return ok
}

// SeenTypes returns the source types resolved so far, sorted.
func (tm *TypeMap) SeenTypes() []string {
	types := make([]string, 0, len(tm.seen))
	for t := range tm.seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Map resolves a source type to a target type. It is total: any input,
// including garbage, produces a non-empty token.
func (tm *TypeMap) Map(sourceType string) Result {
	res := tm.mapInner(sourceType, true)
	if tm.seen != nil {
		key := strings.ToLower(strings.Join(strings.Fields(sourceType), " "))
		if key != "" {
			tm.seen[key] = res.Type.String()
		}
	}
	return res
}

func (tm *TypeMap) mapInner(sourceType string, resolveDomains bool) Result {
	normalized := strings.ToLower(strings.Join(strings.Fields(sourceType), " "))

	// Rule 1: strip array brackets and record dimensionality, then map the
	// base type.
	base, dims := stripArrayBounds(normalized)

	if token, ok := tm.Overrides[base]; ok && token != "" {
		return Result{
			Type:    schema.MappedType{Token: token, Note: "user override", Dims: dims},
			Outcome: ledger.Transformed,
			Reason:  fmt.Sprintf("%s mapped to %s by user override", sourceType, token),
		}
	}

	res := tm.mapBase(base, sourceType, resolveDomains)
	res.Type.Dims = dims
	return res
}

func (tm *TypeMap) mapBase(base, original string, resolveDomains bool) Result {
	if base == "" {
		return Result{
			Type:    schema.MappedType{Token: FallbackToken, Note: "missing type"},
			Outcome: ledger.Unsupported,
			Reason:  "empty source type mapped to fallback token",
		}
	}

	// Rule 4: multi-word synonyms substitute before any lookup.
	substituted := base
	for _, syn := range multiWordSynonyms {
		if strings.HasPrefix(substituted, syn.from) {
			substituted = syn.to + substituted[len(syn.from):]
			break
		}
	}
	transformedByPhrase := substituted != base

	name, params := splitParams(substituted)

	// Rule 5: serial family loses its auto-increment semantics.
	if token, ok := serialTypes[name]; ok {
		return Result{
			Type:    schema.MappedType{Token: token, Note: "originally " + name + "; auto-increment sequence not represented"},
			Outcome: ledger.Transformed,
			Reason:  fmt.Sprintf("%s mapped to %s; sequence ownership dropped", name, token),
		}
	}

	// Enum types keep their name; the enum block carries the values.
	if tm.enums[name] {
		return Result{
			Type:    schema.MappedType{Token: name, Note: "enum type"},
			Outcome: ledger.Preserved,
			Reason:  fmt.Sprintf("enum type %s preserved", name),
		}
	}

	// Domains resolve one level to their captured base type.
	if resolveDomains {
		if domainBase, ok := tm.domains[name]; ok {
			inner := tm.mapInner(domainBase, false)
			inner.Type.Note = fmt.Sprintf("domain %s over %s", name, domainBase)
			inner.Outcome = ledger.Transformed
			inner.Reason = fmt.Sprintf("domain %s flattened to base type %s", name, domainBase)
			return inner
		}
	}

	// Rule 3: parameterized types keep their parameters verbatim.
	if params != "" {
		if token, ok := paramTypes[name]; ok {
			outcome := ledger.Preserved
			reason := fmt.Sprintf("%s(%s) preserved", token, params)
			note := ""
			if token != name || transformedByPhrase {
				outcome = ledger.Transformed
				note = "originally " + original
				reason = fmt.Sprintf("%s normalized to %s(%s)", original, token, params)
			}
			return Result{
				Type:    schema.MappedType{Token: fmt.Sprintf("%s(%s)", token, params), Note: note},
				Outcome: outcome,
				Reason:  reason,
			}
		}
		// Parameterized form of an unrecognized type: fall through with
		// the bare name.
	}

	// Unparameterized varchar and friends are plain tokens.
	if name == "varchar" {
		outcome := ledger.Preserved
		if transformedByPhrase {
			outcome = ledger.Transformed
		}
		return Result{
			Type:    schema.MappedType{Token: "varchar"},
			Outcome: outcome,
			Reason:  "varchar preserved",
		}
	}

	// Rule 2: exact-match scalar table. Spelling synonyms (integer/int4)
	// count as preserved; only phrase-substituted forms are transformations.
	if token, ok := scalarTypes[name]; ok {
		if transformedByPhrase {
			return Result{
				Type:    schema.MappedType{Token: token, Note: noteUnless(original, token)},
				Outcome: ledger.Transformed,
				Reason:  fmt.Sprintf("%s normalized to %s", original, token),
			}
		}
		return Result{
			Type:    schema.MappedType{Token: token},
			Outcome: ledger.Preserved,
			Reason:  token + " preserved",
		}
	}
	if token, ok := transformedScalars[name]; ok {
		return Result{
			Type:    schema.MappedType{Token: token, Note: noteUnless(original, token)},
			Outcome: ledger.Transformed,
			Reason:  fmt.Sprintf("%s normalized to %s", original, token),
		}
	}
	if token, ok := lossyScalars[name]; ok {
		return Result{
			Type:    schema.MappedType{Token: token, Note: "originally " + name},
			Outcome: ledger.Unsupported,
			Reason:  fmt.Sprintf("%s has no diagram equivalent; mapped to %s", name, token),
		}
	}

	// Rule 6: unknown custom, composite, or extension type.
	return Result{
		Type:    schema.MappedType{Token: FallbackToken, Note: "originally " + original},
		Outcome: ledger.Unsupported,
		Reason:  fmt.Sprintf("unknown type %s mapped to %s", original, FallbackToken),
	}
}

func noteUnless(original, token string) string {
	if strings.EqualFold(strings.TrimSpace(original), token) {
		return ""
	}
	return "originally " + strings.TrimSpace(original)
}

// stripArrayBounds removes trailing [] / [N] groups and returns the base
// type with the dimension count.
func stripArrayBounds(s string) (string, int) {
	dims := 0
	for {
		t := strings.TrimRight(s, " ")
		if !strings.HasSuffix(t, "]") {
			break
		}
		open := strings.LastIndex(t, "[")
		if open < 0 {
			break
		}
		bound := t[open+1 : len(t)-1]
		if !isArrayBound(bound) {
			break
		}
		s = t[:open]
		dims++
	}
	// "integer array" is an alternate spelling of integer[].
	if t := strings.TrimSuffix(strings.TrimRight(s, " "), " array"); t != strings.TrimRight(s, " ") {
		s = t
		dims++
	}
	return strings.TrimSpace(s), dims
}

func isArrayBound(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// splitParams separates "varchar(255)" into name and parameter text.
func splitParams(s string) (string, string) {
	m := typeParamRe.FindStringSubmatch(s)
	if m == nil {
		return s, ""
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
}

// WriteYAML writes the override table to a YAML file.
func (tm *TypeMap) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := yaml.Marshal(tm)
	if err != nil {
		return fmt.Errorf("marshaling type map: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// LoadYAML reads an override table from a YAML file.
func LoadYAML(path string) (*TypeMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading type map file: %w", err)
	}
	tm := New()
	if err := yaml.Unmarshal(data, tm); err != nil {
		return nil, fmt.Errorf("parsing type map: %w", err)
	}
	if tm.Overrides == nil {
		tm.Overrides = make(map[string]string)
	}
	return tm, nil
}
