package relation

import (
	"testing"

	"github.com/pgdbml/pgdbml/internal/ledger"
	"github.com/pgdbml/pgdbml/internal/schema"
)

func modelWith(tables ...schema.Table) *schema.Model {
	m := schema.NewModel()
	for _, t := range tables {
		m.AddTable(t)
	}
	return m
}

func TestResolveKeepsDistinctEdges(t *testing.T) {
	m := modelWith(
		schema.Table{Name: "orders", Columns: []schema.Column{{Name: "user_id"}, {Name: "shop_id"}}},
		schema.Table{Name: "users", Columns: []schema.Column{{Name: "id", IsPrimaryKey: true}}, PrimaryKey: []string{"id"}},
		schema.Table{Name: "shops", Columns: []schema.Column{{Name: "id", IsPrimaryKey: true}}, PrimaryKey: []string{"id"}},
	)
	led := ledger.New()

	Resolve(m, []schema.Relationship{
		{SourceTable: "orders", SourceColumn: "user_id", TargetTable: "users", TargetColumn: "id", OnDelete: schema.Cascade, OnUpdate: schema.NoAction},
		{SourceTable: "orders", SourceColumn: "shop_id", TargetTable: "shops", TargetColumn: "id", OnDelete: schema.NoAction, OnUpdate: schema.NoAction},
	}, led)

	if len(m.Relationships) != 2 {
		t.Fatalf("expected 2 relationships, got %d", len(m.Relationships))
	}
	if led.CountKind(ledger.KindRelationship, ledger.Preserved) != 2 {
		t.Errorf("expected 2 preserved entries, got %d", led.CountKind(ledger.KindRelationship, ledger.Preserved))
	}
}

func TestResolveDuplicateLaterActionsWin(t *testing.T) {
	m := modelWith(
		schema.Table{Name: "orders", Columns: []schema.Column{{Name: "user_id"}}},
		schema.Table{Name: "users", Columns: []schema.Column{{Name: "id", IsPrimaryKey: true}}, PrimaryKey: []string{"id"}},
	)
	led := ledger.New()

	Resolve(m, []schema.Relationship{
		{SourceTable: "orders", SourceColumn: "user_id", TargetTable: "users", TargetColumn: "id", OnDelete: schema.NoAction, OnUpdate: schema.NoAction},
		{SourceTable: "Orders", SourceColumn: "USER_ID", TargetTable: "users", TargetColumn: "id", OnDelete: schema.Cascade, OnUpdate: schema.SetNull},
	}, led)

	if len(m.Relationships) != 1 {
		t.Fatalf("duplicate not collapsed: %d relationships", len(m.Relationships))
	}
	rel := m.Relationships[0]
	if rel.OnDelete != schema.Cascade || rel.OnUpdate != schema.SetNull {
		t.Errorf("later actions did not win: %+v", rel)
	}
	if rel.SourceTable != "orders" {
		t.Errorf("first spelling should be kept, got %q", rel.SourceTable)
	}
	if led.CountKind(ledger.KindRelationship, ledger.Transformed) != 1 {
		t.Error("duplicate collapse not ledgered")
	}
}

func TestResolveSelfReferenceKept(t *testing.T) {
	m := modelWith(
		schema.Table{Name: "employees", Columns: []schema.Column{
			{Name: "id", IsPrimaryKey: true}, {Name: "manager_id"},
		}, PrimaryKey: []string{"id"}},
	)
	led := ledger.New()

	Resolve(m, []schema.Relationship{
		{SourceTable: "employees", SourceColumn: "manager_id", TargetTable: "employees"},
	}, led)

	if len(m.Relationships) != 1 {
		t.Fatal("self-reference dropped")
	}
	if m.Relationships[0].TargetColumn != "id" {
		t.Errorf("target column not filled from primary key: %+v", m.Relationships[0])
	}
}

func TestResolveDanglingTargetBestEffort(t *testing.T) {
	m := modelWith(
		schema.Table{Name: "orders", Columns: []schema.Column{{Name: "user_id"}}},
	)
	led := ledger.New()

	Resolve(m, []schema.Relationship{
		{SourceTable: "orders", SourceColumn: "user_id", TargetTable: "users"},
	}, led)

	if len(m.Relationships) != 1 {
		t.Fatal("dangling edge dropped instead of kept best-effort")
	}
	rel := m.Relationships[0]
	if rel.TargetColumn != "user_id" {
		t.Errorf("dangling target column = %q, want mirror of source", rel.TargetColumn)
	}
	if led.CountKind(ledger.KindRelationship, ledger.Transformed) != 1 {
		t.Error("dangling edge not ledgered as transformed")
	}
}

func TestResolveNoResolvableTargetColumn(t *testing.T) {
	m := modelWith(
		schema.Table{Name: "orders", Columns: []schema.Column{{Name: "ref"}}},
		schema.Table{Name: "audit", Columns: []schema.Column{{Name: "payload"}}},
	)
	led := ledger.New()

	Resolve(m, []schema.Relationship{
		{SourceTable: "orders", SourceColumn: "ref", TargetTable: "audit"},
	}, led)

	if len(m.Relationships) != 0 {
		t.Fatalf("unresolvable edge kept: %+v", m.Relationships)
	}
	if led.CountKind(ledger.KindRelationship, ledger.Dropped) != 1 {
		t.Error("unresolvable edge not ledgered as dropped")
	}
}

func TestResolveSameNamedColumnFallback(t *testing.T) {
	m := modelWith(
		schema.Table{Name: "a", Columns: []schema.Column{{Name: "code"}}},
		schema.Table{Name: "b", Columns: []schema.Column{{Name: "code"}, {Name: "label"}}},
	)
	led := ledger.New()

	Resolve(m, []schema.Relationship{
		{SourceTable: "a", SourceColumn: "code", TargetTable: "b"},
	}, led)

	if len(m.Relationships) != 1 || m.Relationships[0].TargetColumn != "code" {
		t.Fatalf("same-named fallback failed: %+v", m.Relationships)
	}
}
