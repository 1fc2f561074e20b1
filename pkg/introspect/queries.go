package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/synthforge/synthgen/pkg/schemamodel"
	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// relkind -> TableKind (spec §4.A).
var tableKindByRelkind = map[string]schemamodel.TableKind{
	"r": schemamodel.TableKindTable,
	"p": schemamodel.TableKindPartitionedTable,
	"v": schemamodel.TableKindView,
	"m": schemamodel.TableKindMaterializedView,
	"f": schemamodel.TableKindForeignTable,
}

func normalizeTableKind(relkind string) schemamodel.TableKind {
	if k, ok := tableKindByRelkind[relkind]; ok {
		return k
	}
	return schemamodel.TableKindOther
}

// confupdtype/confdeltype -> FKAction (spec §4.A).
var fkActionByCode = map[string]schemamodel.FKAction{
	"a": schemamodel.FKActionNoAction,
	"r": schemamodel.FKActionRestrict,
	"c": schemamodel.FKActionCascade,
	"n": schemamodel.FKActionSetNull,
	"d": schemamodel.FKActionSetDefault,
}

func normalizeFKAction(code string) (schemamodel.FKAction, error) {
	if a, ok := fkActionByCode[code]; ok {
		return a, nil
	}
	return "", synthgenerr.New(synthgenerr.InvariantViolation, fmt.Sprintf("unrecognized FK action code %q", code))
}

// attidentity -> Identity (spec §4.A). '' means not an identity column.
func normalizeIdentity(code string) schemamodel.Identity {
	switch code {
	case "a":
		return schemamodel.IdentityAlways
	case "d":
		return schemamodel.IdentityByDefault
	default:
		return schemamodel.IdentityNone
	}
}

// confmatchtype -> MatchType (spec §4.A).
var matchTypeByCode = map[string]schemamodel.MatchType{
	"f": schemamodel.MatchTypeFull,
	"p": schemamodel.MatchTypePartial,
	"s": schemamodel.MatchTypeSimple,
}

func normalizeMatchType(code string) (schemamodel.MatchType, error) {
	if m, ok := matchTypeByCode[code]; ok {
		return m, nil
	}
	return "", synthgenerr.New(synthgenerr.InvariantViolation, fmt.Sprintf("unrecognized FK match type code %q", code))
}

func (ins *Introspector) querySchemas(ctx context.Context) ([]string, error) {
	filter, args := ins.opts.schemaFilterSQL("n")
	q := fmt.Sprintf(`
		SELECT n.nspname
		FROM pg_catalog.pg_namespace n
		WHERE %s
		ORDER BY n.nspname`, filter)
	rows, err := ins.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "query schemas", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "scan schema row", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (ins *Introspector) queryTables(ctx context.Context) ([]tableMeta, error) {
	filter, args := ins.opts.schemaFilterSQL("n")
	kinds := ins.opts.relkindFilter()
	ph := make([]string, len(kinds))
	for i, k := range kinds {
		args = append(args, k)
		ph[i] = fmt.Sprintf("$%d", len(args))
	}
	q := fmt.Sprintf(`
		SELECT n.nspname, c.relname, c.relkind,
		       pg_catalog.obj_description(c.oid, 'pg_class')
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE (%s) AND c.relkind IN (%s)
		ORDER BY n.nspname, c.relname`, filter, strings.Join(ph, ","))
	rows, err := ins.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "query tables", err)
	}
	defer rows.Close()
	var out []tableMeta
	for rows.Next() {
		var schema, name, relkind string
		var comment sql.NullString
		if err := rows.Scan(&schema, &name, &relkind, &comment); err != nil {
			return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "scan table row", err)
		}
		tm := tableMeta{id: tableID{schema, name}, kind: normalizeTableKind(relkind)}
		if !ins.opts.IncludeComments {
			comment = sql.NullString{}
		}
		if comment.Valid {
			tm.comment = &comment.String
		}
		out = append(out, tm)
	}
	return out, rows.Err()
}

func (ins *Introspector) queryColumns(ctx context.Context) (map[tableID][]schemamodel.Column, error) {
	filter, args := ins.opts.schemaFilterSQL("n")
	q := fmt.Sprintf(`
		SELECT n.nspname, c.relname, a.attnum, a.attname,
		       pg_catalog.format_type(a.atttypid, a.atttypmod) AS data_type,
		       t.typname AS udt_name, tn.nspname AS udt_schema,
		       NULLIF(information_schema._pg_char_max_length(a.atttypid, a.atttypmod), -1),
		       NULLIF(information_schema._pg_numeric_precision(a.atttypid, a.atttypmod), -1),
		       NULLIF(information_schema._pg_numeric_scale(a.atttypid, a.atttypmod), -1),
		       co.collname,
		       a.attnotnull,
		       pg_catalog.pg_get_expr(ad.adbin, ad.adrelid),
		       a.attidentity,
		       a.attgenerated,
		       pg_catalog.col_description(a.attrelid, a.attnum)
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid AND a.attnum > 0 AND NOT a.attisdropped
		JOIN pg_catalog.pg_type t ON t.oid = a.atttypid
		JOIN pg_catalog.pg_namespace tn ON tn.oid = t.typnamespace
		LEFT JOIN pg_catalog.pg_attrdef ad ON ad.adrelid = c.oid AND ad.adnum = a.attnum
		LEFT JOIN pg_catalog.pg_collation co ON co.oid = a.attcollation AND co.collname <> 'default'
		WHERE (%s) AND c.relkind IN ('r','p','v','m','f')
		ORDER BY n.nspname, c.relname, a.attnum`, filter)
	rows, err := ins.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "query columns", err)
	}
	defer rows.Close()

	out := make(map[tableID][]schemamodel.Column)
	for rows.Next() {
		var schema, table, name, dataType, udtName, udtSchema string
		var ordinal int
		var charMaxLen, numPrecision, numScale sql.NullInt64
		var collation sql.NullString
		var notNull bool
		var defaultSQL sql.NullString
		var identityCode, generatedCode string
		var comment sql.NullString

		if err := rows.Scan(&schema, &table, &ordinal, &name, &dataType, &udtName, &udtSchema,
			&charMaxLen, &numPrecision, &numScale, &collation, &notNull, &defaultSQL,
			&identityCode, &generatedCode, &comment); err != nil {
			return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "scan column row", err)
		}

		col := schemamodel.Column{
			Ordinal: ordinal,
			Name:    name,
			Type: schemamodel.ColumnType{
				DataType:  dataType,
				UDTSchema: udtSchema,
				UDTName:   udtName,
			},
			IsNullable: !notNull,
			Identity:   normalizeIdentity(identityCode),
		}
		if charMaxLen.Valid {
			v := int(charMaxLen.Int64)
			col.Type.CharacterMaxLength = &v
		}
		if numPrecision.Valid {
			v := int(numPrecision.Int64)
			col.Type.NumericPrecision = &v
		}
		if numScale.Valid {
			v := int(numScale.Int64)
			col.Type.NumericScale = &v
		}
		if collation.Valid {
			v := collation.String
			col.Type.Collation = &v
		}
		if defaultSQL.Valid {
			v := defaultSQL.String
			col.Default = &v
		}
		if generatedCode == "s" && defaultSQL.Valid {
			col.Generated = &schemamodel.Generated{Kind: "stored", Expression: defaultSQL.String}
		}
		if ins.opts.IncludeComments && comment.Valid {
			v := comment.String
			col.Comment = &v
		}

		key := tableID{schema, table}
		out[key] = append(out[key], col)
	}
	return out, rows.Err()
}

// conkeyColumnsSQL is shared by the PK/FK/unique queries: it turns a
// pg_constraint.conkey int2[] into an ordinality-preserving text[] of
// column names, the same "unnest ... WITH ORDINALITY" idiom richcatalog
// uses for its index/FK column arrays.
const conkeyColumnsSQL = `(
	SELECT array_agg(att.attname ORDER BY k.ord)
	FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
	JOIN pg_catalog.pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = k.attnum
)`

const confkeyColumnsSQL = `(
	SELECT array_agg(att.attname ORDER BY k.ord)
	FROM unnest(con.confkey) WITH ORDINALITY AS k(attnum, ord)
	JOIN pg_catalog.pg_attribute att ON att.attrelid = con.confrelid AND att.attnum = k.attnum
)`

func (ins *Introspector) queryPrimaryKeys(ctx context.Context) (map[tableID][]schemamodel.Constraint, error) {
	filter, args := ins.opts.schemaFilterSQL("n")
	q := fmt.Sprintf(`
		SELECT n.nspname, c.relname, con.conname, %s
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE con.contype = 'p' AND (%s)`, conkeyColumnsSQL, filter)
	rows, err := ins.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "query primary keys", err)
	}
	defer rows.Close()
	out := make(map[tableID][]schemamodel.Constraint)
	for rows.Next() {
		var schema, table, name string
		var cols pqStringArray
		if err := rows.Scan(&schema, &table, &name, &cols); err != nil {
			return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "scan primary key row", err)
		}
		key := tableID{schema, table}
		out[key] = append(out[key], schemamodel.Constraint{
			Kind: schemamodel.ConstraintPrimaryKey, Name: name, Columns: []string(cols),
		})
	}
	return out, rows.Err()
}

func (ins *Introspector) queryForeignKeys(ctx context.Context) (map[tableID][]schemamodel.Constraint, error) {
	filter, args := ins.opts.schemaFilterSQL("n")
	q := fmt.Sprintf(`
		SELECT n.nspname, c.relname, con.conname, %s, rn.nspname, rc.relname, %s,
		       con.confupdtype, con.confdeltype, con.confmatchtype, con.condeferrable, con.condeferred
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_catalog.pg_class rc ON rc.oid = con.confrelid
		JOIN pg_catalog.pg_namespace rn ON rn.oid = rc.relnamespace
		WHERE con.contype = 'f' AND (%s)`, conkeyColumnsSQL, confkeyColumnsSQL, filter)
	rows, err := ins.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "query foreign keys", err)
	}
	defer rows.Close()
	out := make(map[tableID][]schemamodel.Constraint)
	for rows.Next() {
		var schema, table, name, refSchema, refTable string
		var cols, refCols pqStringArray
		var onUpdate, onDelete, matchType string
		var deferrable, deferred bool
		if err := rows.Scan(&schema, &table, &name, &cols, &refSchema, &refTable, &refCols,
			&onUpdate, &onDelete, &matchType, &deferrable, &deferred); err != nil {
			return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "scan foreign key row", err)
		}
		upd, err := normalizeFKAction(onUpdate)
		if err != nil {
			return nil, err
		}
		del, err := normalizeFKAction(onDelete)
		if err != nil {
			return nil, err
		}
		match, err := normalizeMatchType(matchType)
		if err != nil {
			return nil, err
		}
		key := tableID{schema, table}
		out[key] = append(out[key], schemamodel.Constraint{
			Kind:              schemamodel.ConstraintForeignKey,
			Name:              name,
			Columns:           []string(cols),
			ReferencedSchema:  refSchema,
			ReferencedTable:   refTable,
			ReferencedColumns: []string(refCols),
			OnUpdate:          upd,
			OnDelete:          del,
			MatchType:         match,
			IsDeferrable:      deferrable,
			InitiallyDeferred: deferred,
		})
	}
	return out, rows.Err()
}

func (ins *Introspector) queryUniqueConstraints(ctx context.Context) (map[tableID][]schemamodel.Constraint, error) {
	filter, args := ins.opts.schemaFilterSQL("n")
	q := fmt.Sprintf(`
		SELECT n.nspname, c.relname, con.conname, %s, con.condeferrable, con.condeferred
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE con.contype = 'u' AND (%s)`, conkeyColumnsSQL, filter)
	rows, err := ins.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "query unique constraints", err)
	}
	defer rows.Close()
	out := make(map[tableID][]schemamodel.Constraint)
	for rows.Next() {
		var schema, table, name string
		var cols pqStringArray
		var deferrable, deferred bool
		if err := rows.Scan(&schema, &table, &name, &cols, &deferrable, &deferred); err != nil {
			return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "scan unique constraint row", err)
		}
		key := tableID{schema, table}
		out[key] = append(out[key], schemamodel.Constraint{
			Kind: schemamodel.ConstraintUnique, Name: name, Columns: []string(cols),
			IsDeferrable: deferrable, InitiallyDeferred: deferred,
		})
	}
	return out, rows.Err()
}

func (ins *Introspector) queryCheckConstraints(ctx context.Context) (map[tableID][]schemamodel.Constraint, error) {
	filter, args := ins.opts.schemaFilterSQL("n")
	q := fmt.Sprintf(`
		SELECT n.nspname, c.relname, con.conname, pg_catalog.pg_get_constraintdef(con.oid, true)
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE con.contype = 'c' AND NOT con.connoinherit IS TRUE AND (%s)`, filter)
	rows, err := ins.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "query check constraints", err)
	}
	defer rows.Close()
	out := make(map[tableID][]schemamodel.Constraint)
	for rows.Next() {
		var schema, table, name, def string
		if err := rows.Scan(&schema, &table, &name, &def); err != nil {
			return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "scan check constraint row", err)
		}
		key := tableID{schema, table}
		out[key] = append(out[key], schemamodel.Constraint{
			Kind: schemamodel.ConstraintCheck, Name: name, Expression: stripCheckWrapper(def),
		})
	}
	return out, rows.Err()
}

// stripCheckWrapper turns "CHECK (qty > 0)" (pg_get_constraintdef's
// pretty-printed format) into "qty > 0" for the Level-A evaluator in
// pkg/checklang. Only the outermost parenthesis pair is removed.
func stripCheckWrapper(def string) string {
	s := strings.TrimSpace(def)
	s = strings.TrimPrefix(s, "CHECK ")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	return strings.TrimSpace(s)
}

func (ins *Introspector) queryIndexes(ctx context.Context) (map[tableID][]schemamodel.Index, error) {
	filter, args := ins.opts.schemaFilterSQL("n")
	q := fmt.Sprintf(`
		SELECT n.nspname, c.relname, ic.relname, i.indisunique, i.indisprimary, i.indisvalid,
		       am.amname, pg_catalog.pg_get_indexdef(i.indexrelid),
		       (SELECT array_agg(att.attname ORDER BY k.ord)
		          FROM unnest(i.indkey) WITH ORDINALITY AS k(attnum, ord)
		          JOIN pg_catalog.pg_attribute att ON att.attrelid = c.oid AND att.attnum = k.attnum)
		FROM pg_catalog.pg_index i
		JOIN pg_catalog.pg_class c ON c.oid = i.indrelid
		JOIN pg_catalog.pg_class ic ON ic.oid = i.indexrelid
		JOIN pg_catalog.pg_am am ON am.oid = ic.relam
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE (%s)`, filter)
	rows, err := ins.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "query indexes", err)
	}
	defer rows.Close()
	out := make(map[tableID][]schemamodel.Index)
	for rows.Next() {
		var schema, table, name, method, def string
		var isUnique, isPrimary, isValid bool
		var cols pqStringArray
		if err := rows.Scan(&schema, &table, &name, &isUnique, &isPrimary, &isValid, &method, &def, &cols); err != nil {
			return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "scan index row", err)
		}
		key := tableID{schema, table}
		out[key] = append(out[key], schemamodel.Index{
			Name: name, IsUnique: isUnique, IsPrimary: isPrimary, IsValid: isValid,
			Method: method, Columns: []string(cols), Definition: def,
		})
	}
	return out, rows.Err()
}

func (ins *Introspector) queryEnums(ctx context.Context) ([]schemamodel.Enum, error) {
	filter, args := ins.opts.schemaFilterSQL("n")
	q := fmt.Sprintf(`
		SELECT n.nspname, t.typname, e.enumlabel
		FROM pg_catalog.pg_type t
		JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		JOIN pg_catalog.pg_enum e ON e.enumtypid = t.oid
		WHERE t.typtype = 'e' AND (%s)
		ORDER BY n.nspname, t.typname, e.enumsortorder`, filter)
	rows, err := ins.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "query enums", err)
	}
	defer rows.Close()
	byKey := make(map[tableID]*schemamodel.Enum)
	var order []tableID
	for rows.Next() {
		var schema, name, label string
		if err := rows.Scan(&schema, &name, &label); err != nil {
			return nil, synthgenerr.Wrap(synthgenerr.CatalogError, "scan enum row", err)
		}
		key := tableID{schema, name}
		e, ok := byKey[key]
		if !ok {
			e = &schemamodel.Enum{Schema: schema, Name: name}
			byKey[key] = e
			order = append(order, key)
		}
		e.Labels = append(e.Labels, label)
	}
	out := make([]schemamodel.Enum, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out, rows.Err()
}

func validateInvariants(db *schemamodel.Database) error {
	for _, s := range db.Schemas {
		for _, t := range s.Tables {
			for _, c := range t.Constraints {
				if c.Kind != schemamodel.ConstraintForeignKey {
					continue
				}
				if db.FindTable(c.ReferencedSchema, c.ReferencedTable) == nil {
					return synthgenerr.New(synthgenerr.InvariantViolation,
						fmt.Sprintf("%s.%s: FK %s references missing table %s.%s",
							s.Name, t.Name, c.Name, c.ReferencedSchema, c.ReferencedTable)).WithPath(s.Name + "." + t.Name)
				}
			}
		}
	}
	return nil
}
