// Package discovery introspects a live PostgreSQL database and produces the
// same schema model the dump pipeline does, ledger entries included, so the
// generator and report code paths are shared between file and live input.
package discovery

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgdbml/pgdbml/internal/config"
	"github.com/pgdbml/pgdbml/internal/ledger"
	"github.com/pgdbml/pgdbml/internal/schema"
	"github.com/pgdbml/pgdbml/internal/typemap"
)

// Postgres introspects a PostgreSQL database.
type Postgres struct {
	cfg    *config.SourceConfig
	pool   *pgxpool.Pool
	schema string // pg schema to introspect, defaults to "public"
}

// NewPostgres creates a new PostgreSQL introspector.
func NewPostgres(cfg *config.SourceConfig) *Postgres {
	s := cfg.Schema
	if s == "" {
		s = "public"
	}
	return &Postgres{cfg: cfg, schema: s}
}

func (p *Postgres) Connect(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(p.cfg.ConnString())
	if err != nil {
		return fmt.Errorf("parsing connection string: %w", err)
	}
	poolCfg.MaxConns = int32(p.cfg.MaxConnections)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("pinging PostgreSQL: %w", err)
	}

	p.pool = pool
	return nil
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
}

// Introspect reads the catalog and folds it into a model, recording every
// type mapping and dropped construct in the ledger the same way the dump
// extractor does.
func (p *Postgres) Introspect(ctx context.Context, types *typemap.TypeMap, led *ledger.Ledger) (*schema.Model, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("not connected; call Connect first")
	}

	model := schema.NewModel()

	if err := p.introspectEnums(ctx, model, types, led); err != nil {
		return nil, fmt.Errorf("introspecting enums: %w", err)
	}
	if err := p.introspectTables(ctx, model, led); err != nil {
		return nil, fmt.Errorf("introspecting tables: %w", err)
	}
	if err := p.introspectColumns(ctx, model, types, led); err != nil {
		return nil, fmt.Errorf("introspecting columns: %w", err)
	}
	if err := p.introspectPrimaryKeys(ctx, model); err != nil {
		return nil, fmt.Errorf("introspecting primary keys: %w", err)
	}
	if err := p.introspectForeignKeys(ctx, model, led); err != nil {
		return nil, fmt.Errorf("introspecting foreign keys: %w", err)
	}
	if err := p.introspectIndexes(ctx, model, led); err != nil {
		return nil, fmt.Errorf("introspecting indexes: %w", err)
	}
	if err := p.introspectComments(ctx, model, led); err != nil {
		return nil, fmt.Errorf("introspecting comments: %w", err)
	}

	return model, nil
}

func (p *Postgres) introspectEnums(ctx context.Context, model *schema.Model, types *typemap.TypeMap, led *ledger.Ledger) error {
	query := `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON e.enumtypid = t.oid
		JOIN pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1
		ORDER BY t.typname, e.enumsortorder`

	rows, err := p.pool.Query(ctx, query, p.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, label string
		if err := rows.Scan(&name, &label); err != nil {
			return err
		}
		if existing := model.Enum(name); existing != nil {
			existing.Values = append(existing.Values, label)
			continue
		}
		model.Enums = append(model.Enums, schema.Enum{Name: name, Values: []string{label}})
		types.AddEnum(name)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, e := range model.Enums {
		led.Add(ledger.KindEnum, e.Name, ledger.Preserved,
			fmt.Sprintf("enum %q with %d values", e.Name, len(e.Values)))
	}
	return nil
}

func (p *Postgres) introspectTables(ctx context.Context, model *schema.Model, led *ledger.Ledger) error {
	query := `
		SELECT c.relname
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relkind IN ('r', 'p')
		ORDER BY c.relname`

	rows, err := p.pool.Query(ctx, query, p.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		model.AddTable(schema.Table{Name: name})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range model.Tables {
		led.Add(ledger.KindTable, model.Tables[i].Name, ledger.Preserved,
			fmt.Sprintf("table %q introspected", model.Tables[i].Name))
	}
	return nil
}

func (p *Postgres) introspectColumns(ctx context.Context, model *schema.Model, types *typemap.TypeMap, led *ledger.Ledger) error {
	query := `
		SELECT
			c.table_name,
			c.column_name,
			CASE WHEN c.data_type = 'ARRAY' THEN c.udt_name ELSE c.data_type END,
			c.data_type = 'ARRAY',
			c.is_nullable,
			c.column_default,
			c.is_identity
		FROM information_schema.columns c
		WHERE c.table_schema = $1
		ORDER BY c.table_name, c.ordinal_position`

	rows, err := p.pool.Query(ctx, query, p.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tableName, colName, dataType, nullable, identity string
			isArray                                          bool
			defaultVal                                       *string
		)
		if err := rows.Scan(&tableName, &colName, &dataType, &isArray, &nullable, &defaultVal, &identity); err != nil {
			return err
		}

		table := model.Table(tableName)
		if table == nil {
			continue
		}

		// array element types come back as _typename from udt_name
		if isArray && len(dataType) > 0 && dataType[0] == '_' {
			dataType = dataType[1:] + "[]"
		}

		res := types.Map(dataType)
		col := schema.Column{
			Name:        colName,
			Type:        res.Type,
			Nullable:    nullable == "YES",
			IsIncrement: identity == "YES",
		}
		if defaultVal != nil {
			col.Default = *defaultVal
		}
		table.AddColumn(col)
		led.Add(ledger.KindType, tableName+"."+colName, res.Outcome, res.Reason)
	}
	return rows.Err()
}

func (p *Postgres) introspectPrimaryKeys(ctx context.Context, model *schema.Model) error {
	query := `
		SELECT tc.table_name, kcu.column_name, tc.constraint_type
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
		  AND tc.table_schema = $1
		ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position`

	rows, err := p.pool.Query(ctx, query, p.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	type group struct {
		table, kind string
		columns     []string
	}
	var groups []group
	for rows.Next() {
		var tableName, colName, kind string
		if err := rows.Scan(&tableName, &colName, &kind); err != nil {
			return err
		}
		if len(groups) > 0 && groups[len(groups)-1].table == tableName && groups[len(groups)-1].kind == kind {
			g := &groups[len(groups)-1]
			g.columns = append(g.columns, colName)
			continue
		}
		groups = append(groups, group{table: tableName, kind: kind, columns: []string{colName}})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, g := range groups {
		table := model.Table(g.table)
		if table == nil {
			continue
		}
		if g.kind == "PRIMARY KEY" {
			table.MarkPrimaryKey(g.columns)
		} else {
			table.MarkUnique(g.columns)
		}
	}
	return nil
}

func (p *Postgres) introspectForeignKeys(ctx context.Context, model *schema.Model, led *ledger.Ledger) error {
	query := `
		SELECT
			tc.table_name,
			kcu.column_name,
			ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column,
			rc.delete_rule,
			rc.update_rule
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name
		  AND tc.table_schema = ccu.table_schema
		JOIN information_schema.referential_constraints rc
		  ON tc.constraint_name = rc.constraint_name
		  AND tc.table_schema = rc.constraint_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position`

	rows, err := p.pool.Query(ctx, query, p.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	var candidates []schema.Relationship
	for rows.Next() {
		var src, srcCol, target, targetCol, deleteRule, updateRule string
		if err := rows.Scan(&src, &srcCol, &target, &targetCol, &deleteRule, &updateRule); err != nil {
			return err
		}
		candidates = append(candidates, schema.Relationship{
			SourceTable:  src,
			SourceColumn: srcCol,
			TargetTable:  target,
			TargetColumn: targetCol,
			OnDelete:     schema.ParseAction(deleteRule),
			OnUpdate:     schema.ParseAction(updateRule),
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, cand := range candidates {
		model.Relationships = append(model.Relationships, cand)
		led.Add(ledger.KindRelationship,
			fmt.Sprintf("%s.%s -> %s.%s", cand.SourceTable, cand.SourceColumn, cand.TargetTable, cand.TargetColumn),
			ledger.Preserved, "foreign key introspected")
	}
	return nil
}

func (p *Postgres) introspectIndexes(ctx context.Context, model *schema.Model, led *ledger.Ledger) error {
	query := `
		SELECT
			t.relname AS table_name,
			i.relname AS index_name,
			ix.indisunique,
			am.amname,
			a.attname
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_am am ON am.oid = i.relam
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1
		  AND NOT ix.indisprimary
		ORDER BY t.relname, i.relname, a.attnum`

	rows, err := p.pool.Query(ctx, query, p.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	type idxKey struct{ table, name string }
	grouped := map[idxKey]*schema.Index{}
	var order []idxKey
	tables := map[idxKey]string{}

	for rows.Next() {
		var tableName, idxName, method, colName string
		var unique bool
		if err := rows.Scan(&tableName, &idxName, &unique, &method, &colName); err != nil {
			return err
		}
		k := idxKey{tableName, idxName}
		idx, ok := grouped[k]
		if !ok {
			idx = &schema.Index{Name: idxName, Unique: unique, Method: method}
			grouped[k] = idx
			order = append(order, k)
			tables[k] = tableName
		}
		idx.Columns = append(idx.Columns, colName)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range order {
		table := model.Table(tables[k])
		if table == nil {
			continue
		}
		table.Indexes = append(table.Indexes, *grouped[k])
		led.Add(ledger.KindIndex, k.name, ledger.Preserved,
			fmt.Sprintf("index on table %q introspected", k.table))
	}
	return nil
}

func (p *Postgres) introspectComments(ctx context.Context, model *schema.Model, led *ledger.Ledger) error {
	query := `
		SELECT c.relname, COALESCE(a.attname, ''), d.description
		FROM pg_description d
		JOIN pg_class c ON c.oid = d.objoid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = d.objsubid AND d.objsubid > 0
		WHERE n.nspname = $1
		  AND c.relkind IN ('r', 'p')`

	rows, err := p.pool.Query(ctx, query, p.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName, text string
		if err := rows.Scan(&tableName, &colName, &text); err != nil {
			return err
		}
		table := model.Table(tableName)
		if table == nil {
			continue
		}
		if colName == "" {
			table.Note = text
			led.Add(ledger.KindComment, tableName, ledger.Preserved,
				fmt.Sprintf("note attached to table %q", tableName))
			continue
		}
		if col := table.Column(colName); col != nil {
			col.Note = text
			led.Add(ledger.KindComment, tableName+"."+colName, ledger.Preserved,
				fmt.Sprintf("note attached to column %q.%q", tableName, colName))
		}
	}
	return rows.Err()
}
