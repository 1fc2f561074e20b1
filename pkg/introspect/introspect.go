// Package introspect reads a live PostgreSQL catalog and materializes a
// pkg/schemamodel.Database (spec §4.A/§4.B). It runs one query per catalog
// axis (schemas, tables, columns, primary keys, foreign keys, unique
// constraints, check constraints, indexes, enums) and joins the results
// in-process, generalizing the single-CTE-batch technique of
// pkg/richcatalog.introspect into the fuller catalog surface the schema
// model requires.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/synthforge/synthgen/pkg/schemamodel"
	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// Options controls which catalog objects are captured, mirroring spec §4.B.
type Options struct {
	IncludeSystemSchemas      bool
	IncludeViews              bool
	IncludeMaterializedViews  bool
	IncludeForeignTables      bool
	IncludeIndexes            bool
	IncludeComments           bool
	Schemas                   []string // whitelist; empty means "all non-system schemas"
}

// DefaultOptions matches the conservative defaults described in spec §4.B:
// system schemas excluded, views/matviews/foreign tables not walked for
// generation purposes, indexes and comments captured for completeness.
func DefaultOptions() Options {
	return Options{
		IncludeIndexes:  true,
		IncludeComments: true,
	}
}

// Introspector owns the catalog connection for the duration of one Run.
type Introspector struct {
	db   *sql.DB
	opts Options
	log  *zap.Logger
}

func New(db *sql.DB, opts Options, log *zap.Logger) *Introspector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Introspector{db: db, opts: opts, log: log}
}

// relkindFilter lists the pg_class.relkind codes this run should walk.
func (o Options) relkindFilter() []string {
	kinds := []string{"r", "p"} // ordinary table, partitioned table
	if o.IncludeViews {
		kinds = append(kinds, "v")
	}
	if o.IncludeMaterializedViews {
		kinds = append(kinds, "m")
	}
	if o.IncludeForeignTables {
		kinds = append(kinds, "f")
	}
	return kinds
}

func (o Options) schemaFilterSQL(alias string) (string, []any) {
	if len(o.Schemas) > 0 {
		ph := make([]string, len(o.Schemas))
		args := make([]any, len(o.Schemas))
		for i, s := range o.Schemas {
			ph[i] = fmt.Sprintf("$%d", i+1)
			args[i] = s
		}
		return fmt.Sprintf("%s.nspname IN (%s)", alias, strings.Join(ph, ",")), args
	}
	if o.IncludeSystemSchemas {
		return "true", nil
	}
	return fmt.Sprintf("%s.nspname NOT LIKE 'pg_%%' AND %s.nspname <> 'information_schema'", alias, alias), nil
}

// Run executes the full introspection and returns a finalized, canonically
// ordered Database. Database name is read separately via current_database().
func (ins *Introspector) Run(ctx context.Context) (*schemamodel.Database, error) {
	dbName, err := ins.currentDatabase(ctx)
	if err != nil {
		return nil, err
	}

	schemaNames, err := ins.querySchemas(ctx)
	if err != nil {
		return nil, err
	}
	if len(schemaNames) == 0 {
		return nil, synthgenerr.New(synthgenerr.CatalogError, "no schemas matched the introspection filter")
	}

	tables, err := ins.queryTables(ctx)
	if err != nil {
		return nil, err
	}
	columnsByTable, err := ins.queryColumns(ctx)
	if err != nil {
		return nil, err
	}
	pksByTable, err := ins.queryPrimaryKeys(ctx)
	if err != nil {
		return nil, err
	}
	fksByTable, err := ins.queryForeignKeys(ctx)
	if err != nil {
		return nil, err
	}
	uniquesByTable, err := ins.queryUniqueConstraints(ctx)
	if err != nil {
		return nil, err
	}
	checksByTable, err := ins.queryCheckConstraints(ctx)
	if err != nil {
		return nil, err
	}
	var indexesByTable map[tableID][]schemamodel.Index
	if ins.opts.IncludeIndexes {
		indexesByTable, err = ins.queryIndexes(ctx)
		if err != nil {
			return nil, err
		}
	}
	enums, err := ins.queryEnums(ctx)
	if err != nil {
		return nil, err
	}

	bySchema := make(map[string]*schemamodel.Schema, len(schemaNames))
	for _, name := range schemaNames {
		bySchema[name] = &schemamodel.Schema{Name: name}
	}

	for _, tm := range tables {
		sc, ok := bySchema[tm.id.schema]
		if !ok {
			continue
		}
		constraints := make([]schemamodel.Constraint, 0)
		constraints = append(constraints, pksByTable[tm.id]...)
		constraints = append(constraints, fksByTable[tm.id]...)
		constraints = append(constraints, uniquesByTable[tm.id]...)
		constraints = append(constraints, checksByTable[tm.id]...)
		t := schemamodel.Table{
			Name:        tm.id.name,
			Kind:        tm.kind,
			Columns:     columnsByTable[tm.id],
			Constraints: constraints,
			Indexes:     indexesByTable[tm.id],
			Comment:     tm.comment,
		}
		sc.Tables = append(sc.Tables, t)
	}

	db := &schemamodel.Database{
		SchemaVersion: schemamodel.SchemaContractVersion,
		Engine:        "postgres",
		DatabaseName:  &dbName,
		Enums:         enums,
	}
	for _, name := range schemaNames {
		db.Schemas = append(db.Schemas, *bySchema[name])
	}

	schemamodel.Finalize(db)

	if err := validateInvariants(db); err != nil {
		return nil, err
	}

	ins.log.Info("introspection complete",
		zap.Int("schemas", len(db.Schemas)),
		zap.String("fingerprint", db.Fingerprint),
	)
	return db, nil
}

func (ins *Introspector) currentDatabase(ctx context.Context) (string, error) {
	var name string
	if err := ins.db.QueryRowContext(ctx, "SELECT current_database()").Scan(&name); err != nil {
		return "", synthgenerr.Wrap(synthgenerr.ConnectionError, "read current_database()", err)
	}
	return name, nil
}

// tableID identifies a table across the per-axis query results; it is used
// as a map key, so it carries only comparable, value-typed fields.
type tableID struct {
	schema, name string
}

// tableMeta is one row of the tables axis query.
type tableMeta struct {
	id      tableID
	kind    schemamodel.TableKind
	comment *string
}
