// Package schema defines the simplified schema model a conversion run
// produces: tables in dump order, their columns with mapped types, enums,
// and the deduplicated relationship set.
package schema

import "strings"

// RefAction is a referential action on a foreign key.
type RefAction string

const (
	Cascade       RefAction = "CASCADE"
	Restrict      RefAction = "RESTRICT"
	SetNull       RefAction = "SET_NULL"
	SetDefault    RefAction = "SET_DEFAULT"
	NoAction      RefAction = "NO_ACTION"
	ActionUnknown RefAction = "UNKNOWN"
)

// ParseAction maps an ON DELETE / ON UPDATE clause body to a RefAction.
// An empty clause means the PostgreSQL default, NO ACTION.
func ParseAction(s string) RefAction {
	switch strings.ToUpper(strings.Join(strings.Fields(s), " ")) {
	case "":
		return NoAction
	case "CASCADE":
		return Cascade
	case "RESTRICT":
		return Restrict
	case "SET NULL":
		return SetNull
	case "SET DEFAULT":
		return SetDefault
	case "NO ACTION":
		return NoAction
	default:
		return ActionUnknown
	}
}

// MappedType is a source type after mapping to the target format.
type MappedType struct {
	// Token is the target type token. Never empty: unknown source types
	// map to a generic fallback token instead of failing.
	Token string `yaml:"token"`
	// Note records provenance when the mapping lost information,
	// e.g. "originally hstore".
	Note string `yaml:"note,omitempty"`
	// Dims is the array dimensionality; 0 means scalar.
	Dims int `yaml:"dims,omitempty"`
}

// String renders the type with its array markers, e.g. "text[]".
func (t MappedType) String() string {
	return t.Token + strings.Repeat("[]", t.Dims)
}

// Column is a single table column.
type Column struct {
	Name     string     `yaml:"name"`
	Type     MappedType `yaml:"type"`
	Nullable bool       `yaml:"nullable"`
	// Default is the default literal as raw text, already quoted if it
	// looks like a negative number or contains unsafe characters.
	Default      string `yaml:"default,omitempty"`
	IsIncrement  bool   `yaml:"increment,omitempty"`
	IsPrimaryKey bool   `yaml:"primary_key,omitempty"`
	IsUnique     bool   `yaml:"unique,omitempty"`
	Note         string `yaml:"note,omitempty"`
}

// Index is a secondary index attached to a table.
type Index struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique,omitempty"`
	Method  string   `yaml:"method,omitempty"`
}

// Table is one table definition. Column order follows the source dump.
type Table struct {
	Name         string     `yaml:"name"`
	Columns      []Column   `yaml:"columns"`
	PrimaryKey   []string   `yaml:"primary_key,omitempty"`
	UniqueGroups [][]string `yaml:"unique_groups,omitempty"`
	Indexes      []Index    `yaml:"indexes,omitempty"`
	Note         string     `yaml:"note,omitempty"`
}

// Enum is a named value set captured from CREATE TYPE ... AS ENUM.
type Enum struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

// Relationship is a directed foreign-key edge between two columns.
type Relationship struct {
	SourceTable  string    `yaml:"source_table"`
	SourceColumn string    `yaml:"source_column"`
	TargetTable  string    `yaml:"target_table"`
	TargetColumn string    `yaml:"target_column"`
	OnDelete     RefAction `yaml:"on_delete"`
	OnUpdate     RefAction `yaml:"on_update"`
}

// Model is the accumulated result of one conversion run. It is owned by the
// pipeline for the duration of the run and handed off immutably afterwards.
type Model struct {
	Tables        []Table        `yaml:"tables"`
	Enums         []Enum         `yaml:"enums,omitempty"`
	Relationships []Relationship `yaml:"relationships,omitempty"`
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// Table returns the table with the given name (case-insensitive), or nil.
func (m *Model) Table(name string) *Table {
	for i := range m.Tables {
		if strings.EqualFold(m.Tables[i].Name, name) {
			return &m.Tables[i]
		}
	}
	return nil
}

// AddTable inserts a table, or merges into an existing one of the same name.
// On merge the later declaration's columns are appended; the first
// declaration's table-level constraints are kept. Returns the table in the
// model and whether a merge happened.
func (m *Model) AddTable(t Table) (*Table, bool) {
	if existing := m.Table(t.Name); existing != nil {
		for _, c := range t.Columns {
			existing.AddColumn(c)
		}
		if len(existing.PrimaryKey) == 0 {
			existing.PrimaryKey = t.PrimaryKey
		}
		existing.UniqueGroups = append(existing.UniqueGroups, t.UniqueGroups...)
		existing.Indexes = append(existing.Indexes, t.Indexes...)
		return existing, true
	}
	m.Tables = append(m.Tables, t)
	return &m.Tables[len(m.Tables)-1], false
}

// Column returns the named column of the table (case-insensitive), or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// AddColumn appends a column. Duplicate names should not occur in valid SQL,
// but when they do the last definition wins rather than crashing.
func (t *Table) AddColumn(c Column) {
	if existing := t.Column(c.Name); existing != nil {
		*existing = c
		return
	}
	t.Columns = append(t.Columns, c)
}

// MarkPrimaryKey records a table-level primary key column list and flags the
// matching columns. Columns in a primary key are implicitly NOT NULL.
func (t *Table) MarkPrimaryKey(columns []string) {
	if len(t.PrimaryKey) == 0 {
		t.PrimaryKey = columns
	}
	for _, name := range columns {
		if col := t.Column(name); col != nil {
			col.IsPrimaryKey = true
			col.Nullable = false
		}
	}
}

// MarkUnique records a unique column group. A single-column group flags the
// column directly.
func (t *Table) MarkUnique(columns []string) {
	t.UniqueGroups = append(t.UniqueGroups, columns)
	if len(columns) == 1 {
		if col := t.Column(columns[0]); col != nil {
			col.IsUnique = true
		}
	}
}

// Enum returns the enum with the given name (case-insensitive), or nil.
func (m *Model) Enum(name string) *Enum {
	for i := range m.Enums {
		if strings.EqualFold(m.Enums[i].Name, name) {
			return &m.Enums[i]
		}
	}
	return nil
}
