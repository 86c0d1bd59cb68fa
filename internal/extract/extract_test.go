package extract

import (
	"strings"
	"testing"

	"github.com/pgdbml/pgdbml/internal/ledger"
	"github.com/pgdbml/pgdbml/internal/schema"
	"github.com/pgdbml/pgdbml/internal/segment"
	"github.com/pgdbml/pgdbml/internal/typemap"
)

// run feeds DDL through the segmenter into a fresh extractor.
func run(t *testing.T, sql string) *Extractor {
	t.Helper()
	ex := New(schema.NewModel(), ledger.New(), typemap.New())
	for _, st := range segment.Split(sql) {
		ex.Apply(st)
	}
	return ex
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Kind
	}{
		{"CREATE TABLE users (id int)", KindCreateTable},
		{"create   table users (id int)", KindCreateTable},
		{"CREATE TEMP TABLE t (id int)", KindCreateTable},
		{"CREATE UNLOGGED TABLE t (id int)", KindCreateTable},
		{"CREATE FOREIGN TABLE t (id int)", KindCreateTable},
		{"CREATE UNIQUE INDEX idx ON t (a)", KindCreateIndex},
		{"CREATE INDEX ON t (a)", KindCreateIndex},
		{"CREATE SEQUENCE seq START 1", KindCreateSequence},
		{"ALTER TABLE t ADD CONSTRAINT fk FOREIGN KEY (a) REFERENCES u (id)", KindAlterAddConstraint},
		{"ALTER TABLE t OWNER TO admin", KindUnsupported},
		{"COMMENT ON TABLE t IS 'x'", KindCommentOn},
		{"CREATE TYPE status AS ENUM ('a', 'b')", KindCreateEnum},
		{"CREATE TYPE pair AS (x int, y int)", KindUnsupported},
		{"CREATE DOMAIN email AS varchar(320)", KindCreateDomain},
		{"CREATE VIEW v AS SELECT 1", KindUnsupported},
		{"CREATE MATERIALIZED VIEW v AS SELECT 1", KindUnsupported},
		{"CREATE FUNCTION f() RETURNS void AS $$ $$ LANGUAGE sql", KindUnsupported},
		{"GRANT SELECT ON t TO role", KindUnsupported},
		{"BEGIN", KindUnsupported},
		{"INSERT INTO t VALUES (1)", KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestCreateTableColumns(t *testing.T) {
	ex := run(t, `
		CREATE TABLE users (
			id serial PRIMARY KEY,
			email varchar(320) NOT NULL UNIQUE,
			name text DEFAULT 'anonymous',
			balance numeric(10,2) DEFAULT 0,
			created_at timestamp with time zone DEFAULT now(),
			tags text[]
		);`)

	table := ex.Model.Table("users")
	if table == nil {
		t.Fatal("table not extracted")
	}
	if len(table.Columns) != 6 {
		t.Fatalf("expected 6 columns, got %d", len(table.Columns))
	}

	id := table.Column("id")
	if !id.IsPrimaryKey || !id.IsIncrement || id.Nullable {
		t.Errorf("serial pk flags wrong: %+v", id)
	}
	if id.Type.Token != "int4" {
		t.Errorf("serial mapped to %q, want int4", id.Type.Token)
	}

	email := table.Column("email")
	if email.Nullable || !email.IsUnique {
		t.Errorf("email flags wrong: %+v", email)
	}
	if email.Type.Token != "varchar(320)" {
		t.Errorf("email type = %q", email.Type.Token)
	}

	name := table.Column("name")
	if name.Default != "'anonymous'" {
		t.Errorf("name default = %q", name.Default)
	}
	if !name.Nullable {
		t.Error("name should default to nullable")
	}

	created := table.Column("created_at")
	if created.Type.Token != "timestamptz" {
		t.Errorf("created_at type = %q", created.Type.Token)
	}
	if created.Default != "now()" {
		t.Errorf("created_at default = %q", created.Default)
	}

	tags := table.Column("tags")
	if tags.Type.Token != "text" || tags.Type.Dims != 1 {
		t.Errorf("tags type = %q dims %d", tags.Type.Token, tags.Type.Dims)
	}
}

func TestCreateTableTableLevelConstraints(t *testing.T) {
	ex := run(t, `
		CREATE TABLE line_items (
			order_id int NOT NULL,
			product_id int NOT NULL,
			qty int,
			PRIMARY KEY (order_id, product_id),
			UNIQUE (order_id, qty),
			CHECK (qty > 0)
		);`)

	table := ex.Model.Table("line_items")
	if table == nil {
		t.Fatal("table not extracted")
	}
	if len(table.PrimaryKey) != 2 {
		t.Errorf("primary key = %v", table.PrimaryKey)
	}
	if !table.Column("order_id").IsPrimaryKey || !table.Column("product_id").IsPrimaryKey {
		t.Error("pk columns not flagged")
	}
	if len(table.UniqueGroups) != 1 || len(table.UniqueGroups[0]) != 2 {
		t.Errorf("unique groups = %v", table.UniqueGroups)
	}

	if n := ex.Ledger.CountKind(ledger.KindConstraint, ledger.Dropped); n != 1 {
		t.Errorf("expected 1 dropped CHECK entry, got %d", n)
	}
}

func TestInlineReferences(t *testing.T) {
	ex := run(t, `
		CREATE TABLE orders (
			id serial PRIMARY KEY,
			user_id int REFERENCES users(id) ON DELETE CASCADE ON UPDATE SET NULL,
			parent_id int REFERENCES orders
		);`)

	if len(ex.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(ex.Candidates), ex.Candidates)
	}

	first := ex.Candidates[0]
	if first.SourceTable != "orders" || first.SourceColumn != "user_id" ||
		first.TargetTable != "users" || first.TargetColumn != "id" {
		t.Errorf("candidate endpoints wrong: %+v", first)
	}
	if first.OnDelete != schema.Cascade || first.OnUpdate != schema.SetNull {
		t.Errorf("candidate actions wrong: %+v", first)
	}

	second := ex.Candidates[1]
	if second.TargetTable != "orders" || second.TargetColumn != "" {
		t.Errorf("bare references parsed wrong: %+v", second)
	}
	if second.OnDelete != schema.NoAction {
		t.Errorf("default action = %v, want NO_ACTION", second.OnDelete)
	}
}

func TestCompositeForeignKeySplitsPairwise(t *testing.T) {
	ex := run(t, `
		CREATE TABLE child (
			a int, b int,
			FOREIGN KEY (a, b) REFERENCES parent (x, y) ON DELETE RESTRICT
		);`)

	if len(ex.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(ex.Candidates))
	}
	if ex.Candidates[0].SourceColumn != "a" || ex.Candidates[0].TargetColumn != "x" {
		t.Errorf("first pair wrong: %+v", ex.Candidates[0])
	}
	if ex.Candidates[1].SourceColumn != "b" || ex.Candidates[1].TargetColumn != "y" {
		t.Errorf("second pair wrong: %+v", ex.Candidates[1])
	}
	if ex.Candidates[0].OnDelete != schema.Restrict {
		t.Errorf("action not carried: %+v", ex.Candidates[0])
	}
}

func TestAlterTableAddForeignKey(t *testing.T) {
	ex := run(t, `
		CREATE TABLE users (id serial PRIMARY KEY);
		CREATE TABLE orders (id serial PRIMARY KEY, user_id int);
		ALTER TABLE ONLY orders
			ADD CONSTRAINT orders_user_id_fkey FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE;`)

	if len(ex.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(ex.Candidates))
	}
	cand := ex.Candidates[0]
	if cand.SourceTable != "orders" || cand.TargetTable != "users" {
		t.Errorf("candidate endpoints wrong: %+v", cand)
	}
	if cand.OnDelete != schema.Cascade {
		t.Errorf("on delete = %v", cand.OnDelete)
	}
}

func TestAlterTableAddPrimaryKeyAndUnique(t *testing.T) {
	ex := run(t, `
		CREATE TABLE t (a int, b int);
		ALTER TABLE t ADD CONSTRAINT t_pkey PRIMARY KEY (a);
		ALTER TABLE t ADD CONSTRAINT t_b_key UNIQUE (b);`)

	table := ex.Model.Table("t")
	if !table.Column("a").IsPrimaryKey {
		t.Error("pk not applied")
	}
	if !table.Column("b").IsUnique {
		t.Error("unique not applied")
	}
}

func TestUnsupportedStatementsOneEntryEach(t *testing.T) {
	ex := run(t, `
		CREATE VIEW v AS SELECT 1;
		GRANT SELECT ON t TO role;
		CREATE TRIGGER trg AFTER INSERT ON t EXECUTE FUNCTION f();`)

	if n := ex.Ledger.CountKind(ledger.KindStatement, ledger.Unsupported); n != 3 {
		t.Errorf("expected 3 unsupported entries, got %d", n)
	}
	if len(ex.Model.Tables) != 0 {
		t.Errorf("unsupported statements leaked tables: %d", len(ex.Model.Tables))
	}
}

func TestCreateEnum(t *testing.T) {
	ex := run(t, `
		CREATE TYPE order_status AS ENUM ('pending', 'shipped', 'done');
		CREATE TABLE orders (status order_status);`)

	enum := ex.Model.Enum("order_status")
	if enum == nil {
		t.Fatal("enum not captured")
	}
	if len(enum.Values) != 3 || enum.Values[1] != "shipped" {
		t.Errorf("enum values = %v", enum.Values)
	}

	status := ex.Model.Table("orders").Column("status")
	if status.Type.Token != "order_status" {
		t.Errorf("enum column type = %q", status.Type.Token)
	}
}

func TestCreateDomainResolution(t *testing.T) {
	ex := run(t, `
		CREATE DOMAIN email AS varchar(320) CHECK (VALUE ~ '@');
		CREATE TABLE users (contact email);`)

	contact := ex.Model.Table("users").Column("contact")
	if contact.Type.Token != "varchar(320)" {
		t.Errorf("domain column type = %q", contact.Type.Token)
	}
}

func TestCommentOn(t *testing.T) {
	ex := run(t, `
		CREATE TABLE users (id int);
		COMMENT ON TABLE users IS 'registered accounts';
		COMMENT ON COLUMN users.id IS 'surrogate key';
		COMMENT ON COLUMN missing.id IS 'nowhere';`)

	table := ex.Model.Table("users")
	if table.Note != "registered accounts" {
		t.Errorf("table note = %q", table.Note)
	}
	if table.Column("id").Note != "surrogate key" {
		t.Errorf("column note = %q", table.Column("id").Note)
	}
	if n := ex.Ledger.CountKind(ledger.KindComment, ledger.Dropped); n != 1 {
		t.Errorf("dangling comment entries = %d, want 1", n)
	}
}

func TestCreateIndex(t *testing.T) {
	ex := run(t, `
		CREATE TABLE users (id int, email text, created_at timestamptz);
		CREATE UNIQUE INDEX users_email_idx ON users (email);
		CREATE INDEX users_created_idx ON users USING brin (created_at DESC);`)

	table := ex.Model.Table("users")
	if len(table.Indexes) != 2 {
		t.Fatalf("expected 2 indexes, got %d", len(table.Indexes))
	}
	if !table.Indexes[0].Unique || table.Indexes[0].Columns[0] != "email" {
		t.Errorf("unique index wrong: %+v", table.Indexes[0])
	}
	if table.Indexes[1].Method != "brin" || table.Indexes[1].Columns[0] != "created_at" {
		t.Errorf("brin index wrong: %+v", table.Indexes[1])
	}
}

func TestDuplicateTableMergesColumns(t *testing.T) {
	ex := run(t, `
		CREATE TABLE t (a int);
		CREATE TABLE t (b text);`)

	if len(ex.Model.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(ex.Model.Tables))
	}
	table := ex.Model.Table("t")
	if len(table.Columns) != 2 {
		t.Errorf("columns not merged: %d", len(table.Columns))
	}
	if ex.MergedTables != 1 || ex.TableStatements != 2 {
		t.Errorf("counters wrong: merged=%d statements=%d", ex.MergedTables, ex.TableStatements)
	}
}

func TestQuotedAndQualifiedIdentifiers(t *testing.T) {
	ex := run(t, `
		CREATE TABLE public."User Accounts" (
			"ID" int PRIMARY KEY,
			"Full Name" text
		);`)

	table := ex.Model.Table("User Accounts")
	if table == nil {
		t.Fatal("quoted table name not extracted")
	}
	if table.Column("ID") == nil || table.Column("Full Name") == nil {
		t.Errorf("quoted columns missing: %+v", table.Columns)
	}
}

func TestPartitionOfFlattens(t *testing.T) {
	ex := run(t, `
		CREATE TABLE events (id int, day date);
		CREATE TABLE events_2024 PARTITION OF events FOR VALUES FROM ('2024-01-01') TO ('2025-01-01');`)

	if ex.Model.Table("events_2024") == nil {
		t.Fatal("partition not flattened into a table")
	}
	if ex.TableStatements != 2 {
		t.Errorf("table statements = %d", ex.TableStatements)
	}
}

func TestCreateTableAsSelect(t *testing.T) {
	ex := run(t, `
		CREATE TABLE t (x int, id int);
		CREATE TABLE t2 AS SELECT x, id FROM t WHERE (x > 1);`)

	if ex.Model.Table("t2") != nil {
		t.Error("query-defined table materialized with phantom columns")
	}
	if got := ex.Ledger.CountKind(ledger.KindTable, ledger.Unsupported); got != 1 {
		t.Errorf("unsupported table entries = %d, want 1", got)
	}
	if ex.TableStatements != 2 {
		t.Errorf("table statements = %d", ex.TableStatements)
	}
}

func TestConstraintBeforeColumnDefinition(t *testing.T) {
	ex := run(t, `CREATE TABLE t (PRIMARY KEY (id), UNIQUE (code), id int, code text);`)

	table := ex.Model.Table("t")
	if table == nil {
		t.Fatal("table not created")
	}
	id := table.Column("id")
	if id == nil || !id.IsPrimaryKey || id.Nullable {
		t.Errorf("leading primary key constraint not applied to id: %+v", id)
	}
	code := table.Column("code")
	if code == nil || !code.IsUnique {
		t.Errorf("leading unique constraint not applied to code: %+v", code)
	}
}

func TestUnrecognizedModifierDropsWithEvidence(t *testing.T) {
	ex := run(t, `CREATE TABLE t (v int STORAGE PLAIN);`)

	table := ex.Model.Table("t")
	if table == nil || table.Column("v") == nil {
		t.Fatal("column lost to unrecognized modifier")
	}
	if got := table.Column("v").Type.Token; got != "int4" {
		t.Errorf("modifier bled into the type, mapped to %q", got)
	}

	found := false
	for _, e := range ex.Ledger.Entries() {
		if e.Outcome == ledger.Dropped && strings.Contains(e.Reason, "STORAGE") {
			found = true
		}
	}
	if !found {
		t.Error("unrecognized modifier not ledgered with evidence")
	}
}

func TestGeneratedIdentityColumn(t *testing.T) {
	ex := run(t, `CREATE TABLE t (id bigint GENERATED ALWAYS AS IDENTITY (START WITH 10) PRIMARY KEY);`)

	id := ex.Model.Table("t").Column("id")
	if !id.IsIncrement {
		t.Error("identity column not flagged increment")
	}
	if !id.IsPrimaryKey {
		t.Error("primary key after identity options not parsed")
	}
}
