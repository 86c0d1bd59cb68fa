package schema

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want RefAction
	}{
		{"", NoAction},
		{"CASCADE", Cascade},
		{"cascade", Cascade},
		{"RESTRICT", Restrict},
		{"SET NULL", SetNull},
		{"set  null", SetNull},
		{"SET DEFAULT", SetDefault},
		{"NO ACTION", NoAction},
		{"TRUNCATE", ActionUnknown},
	}
	for _, tt := range tests {
		if got := ParseAction(tt.in); got != tt.want {
			t.Errorf("ParseAction(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMappedTypeString(t *testing.T) {
	if got := (MappedType{Token: "text"}).String(); got != "text" {
		t.Errorf("scalar = %q", got)
	}
	if got := (MappedType{Token: "int4", Dims: 2}).String(); got != "int4[][]" {
		t.Errorf("array = %q", got)
	}
}

func TestAddTableMergesRedeclaration(t *testing.T) {
	m := NewModel()
	_, merged := m.AddTable(Table{Name: "t", Columns: []Column{{Name: "a"}}, PrimaryKey: []string{"a"}})
	if merged {
		t.Fatal("first declaration flagged as merge")
	}

	_, merged = m.AddTable(Table{Name: "T", Columns: []Column{{Name: "b"}}, PrimaryKey: []string{"b"}})
	if !merged {
		t.Fatal("redeclaration not detected")
	}

	if len(m.Tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(m.Tables))
	}
	table := m.Table("t")
	if len(table.Columns) != 2 {
		t.Errorf("columns not merged: %v", table.Columns)
	}
	// the first declaration's primary key wins
	if len(table.PrimaryKey) != 1 || table.PrimaryKey[0] != "a" {
		t.Errorf("primary key = %v, want [a]", table.PrimaryKey)
	}
}

func TestAddColumnLastWins(t *testing.T) {
	table := Table{Name: "t"}
	table.AddColumn(Column{Name: "x", Type: MappedType{Token: "int4"}})
	table.AddColumn(Column{Name: "X", Type: MappedType{Token: "text"}})

	if len(table.Columns) != 1 {
		t.Fatalf("columns = %d, want 1", len(table.Columns))
	}
	if table.Columns[0].Type.Token != "text" {
		t.Errorf("last definition did not win: %+v", table.Columns[0])
	}
}

func TestMarkPrimaryKeyClearsNullability(t *testing.T) {
	table := Table{Name: "t", Columns: []Column{
		{Name: "a", Nullable: true},
		{Name: "b", Nullable: true},
	}}
	table.MarkPrimaryKey([]string{"a", "b"})

	if !table.Columns[0].IsPrimaryKey || table.Columns[0].Nullable {
		t.Errorf("column a: %+v", table.Columns[0])
	}
	if !table.Columns[1].IsPrimaryKey || table.Columns[1].Nullable {
		t.Errorf("column b: %+v", table.Columns[1])
	}

	// a second primary key declaration does not replace the first
	table.MarkPrimaryKey([]string{"b"})
	if len(table.PrimaryKey) != 2 {
		t.Errorf("primary key replaced: %v", table.PrimaryKey)
	}
}

func TestMarkUniqueSingleColumnFlag(t *testing.T) {
	table := Table{Name: "t", Columns: []Column{{Name: "a"}, {Name: "b"}}}

	table.MarkUnique([]string{"a"})
	if !table.Columns[0].IsUnique {
		t.Error("single-column unique not flagged on column")
	}

	table.MarkUnique([]string{"a", "b"})
	if table.Columns[1].IsUnique {
		t.Error("composite unique should not flag individual columns")
	}
	if len(table.UniqueGroups) != 2 {
		t.Errorf("unique groups = %v", table.UniqueGroups)
	}
}

func TestLookupsAreCaseInsensitive(t *testing.T) {
	m := NewModel()
	m.AddTable(Table{Name: "Users", Columns: []Column{{Name: "ID"}}})
	m.Enums = append(m.Enums, Enum{Name: "Status"})

	if m.Table("users") == nil || m.Table("USERS") == nil {
		t.Error("table lookup not case-insensitive")
	}
	if m.Table("users").Column("id") == nil {
		t.Error("column lookup not case-insensitive")
	}
	if m.Enum("status") == nil {
		t.Error("enum lookup not case-insensitive")
	}
	if m.Table("missing") != nil {
		t.Error("missing table should be nil")
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	m := NewModel()
	m.AddTable(Table{Name: "users", Columns: []Column{
		{Name: "id", Type: MappedType{Token: "int4"}, IsPrimaryKey: true},
		{Name: "tags", Type: MappedType{Token: "text", Dims: 1}, Nullable: true},
	}})
	m.Enums = append(m.Enums, Enum{Name: "status", Values: []string{"a", "b"}})
	m.Relationships = []Relationship{
		{SourceTable: "orders", SourceColumn: "user_id", TargetTable: "users", TargetColumn: "id", OnDelete: Cascade, OnUpdate: NoAction},
	}

	path := filepath.Join(t.TempDir(), "model.yaml")
	if err := m.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	back, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if len(back.Tables) != 1 || len(back.Tables[0].Columns) != 2 {
		t.Fatalf("tables lost: %+v", back.Tables)
	}
	if back.Tables[0].Columns[1].Type.Dims != 1 {
		t.Errorf("array dims lost: %+v", back.Tables[0].Columns[1])
	}
	if len(back.Enums) != 1 || len(back.Relationships) != 1 {
		t.Errorf("enums/relationships lost: %+v", back)
	}
	if back.Relationships[0].OnDelete != Cascade {
		t.Errorf("action lost: %+v", back.Relationships[0])
	}
}

func TestSummary(t *testing.T) {
	m := NewModel()
	m.AddTable(Table{Name: "t", Columns: []Column{{Name: "a"}, {Name: "b"}}})

	got := m.Summary()
	if !strings.Contains(got, "1 tables") || !strings.Contains(got, "2 columns") {
		t.Errorf("summary = %q", got)
	}
}
