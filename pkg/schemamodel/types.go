// Package schemamodel is the canonical, byte-stable in-memory representation
// of a relational schema (spec §3's "Schema Model"). Every collection has a
// fixed sort order so two introspections of an unchanged catalog serialize
// to identical bytes; see Finalize.
//
// Grounded on pkg/richcatalog's Schema/Table/Column/Index/FK shapes,
// generalized to the fuller catalog surface (unique constraints, check
// text, enums, generated columns) that richcatalog does not carry.
package schemamodel

// SchemaContractVersion is the current schema.json contract version (spec §6).
const SchemaContractVersion = "0.2"

// Database is the root of the Schema Model. It is immutable once built:
// callers receive it from the Introspector or from LoadJSON and must not
// mutate it in place.
type Database struct {
	SchemaVersion string  `json:"schema_version"`
	Engine        string  `json:"engine"`
	DatabaseName  *string `json:"database,omitempty"`
	Schemas       []Schema `json:"schemas"`
	Enums         []Enum   `json:"enums"`
	Fingerprint   string   `json:"schema_fingerprint,omitempty"`
}

type Schema struct {
	Name   string  `json:"name"`
	Tables []Table `json:"tables"`
}

// TableKind normalizes pg_class.relkind (spec §4.A/4.B).
type TableKind string

const (
	TableKindTable             TableKind = "table"
	TableKindPartitionedTable  TableKind = "partitioned_table"
	TableKindView              TableKind = "view"
	TableKindMaterializedView  TableKind = "materialized_view"
	TableKindForeignTable      TableKind = "foreign_table"
	TableKindOther             TableKind = "other"
)

type Table struct {
	Name        string       `json:"name"`
	Kind        TableKind    `json:"kind"`
	Columns     []Column     `json:"columns"`
	Constraints []Constraint `json:"constraints,omitempty"`
	Indexes     []Index      `json:"indexes,omitempty"`
	Comment     *string      `json:"comment,omitempty"`
}

// Identity normalizes pg_attribute.attidentity.
type Identity string

const (
	IdentityAlways    Identity = "always"
	IdentityByDefault Identity = "by_default"
	IdentityNone      Identity = "null"
)

type Generated struct {
	Kind       string `json:"kind"` // currently only "stored"
	Expression string `json:"expression"`
}

type ColumnType struct {
	DataType           string  `json:"data_type"`
	UDTSchema          string  `json:"udt_schema"`
	UDTName            string  `json:"udt_name"`
	CharacterMaxLength *int    `json:"character_max_length,omitempty"`
	NumericPrecision   *int    `json:"numeric_precision,omitempty"`
	NumericScale       *int    `json:"numeric_scale,omitempty"`
	Collation          *string `json:"collation,omitempty"`
}

type Column struct {
	Ordinal    int        `json:"ordinal"`
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	IsNullable bool       `json:"is_nullable"`
	Default    *string    `json:"default,omitempty"`
	Identity   Identity   `json:"identity"`
	Generated  *Generated `json:"generated,omitempty"`
	Comment    *string    `json:"comment,omitempty"`
}

// ConstraintKind is the "kind" discriminator of the Constraint tagged union.
type ConstraintKind string

const (
	ConstraintPrimaryKey ConstraintKind = "primary_key"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintCheck      ConstraintKind = "check"
)

// Constraint is a flat tagged union rather than an interface: fields outside
// a given Kind are simply left zero, which keeps JSON serialization
// straightforward and matches the teacher's flat FK/Index structs.
type Constraint struct {
	Kind ConstraintKind `json:"kind"`
	Name string         `json:"name,omitempty"`

	// PrimaryKey, Unique, ForeignKey
	Columns []string `json:"columns,omitempty"`

	// ForeignKey only
	ReferencedSchema  string `json:"referenced_schema,omitempty"`
	ReferencedTable   string `json:"referenced_table,omitempty"`
	ReferencedColumns []string `json:"referenced_columns,omitempty"`
	OnUpdate          FKAction `json:"on_update,omitempty"`
	OnDelete          FKAction `json:"on_delete,omitempty"`
	MatchType         MatchType `json:"match_type,omitempty"`

	// Unique, ForeignKey
	IsDeferrable      bool `json:"is_deferrable,omitempty"`
	InitiallyDeferred bool `json:"initially_deferred,omitempty"`

	// Check only
	Expression string `json:"expression,omitempty"`
}

// FKAction normalizes pg_constraint.confupdtype/confdeltype.
type FKAction string

const (
	FKActionNoAction  FKAction = "no_action"
	FKActionRestrict  FKAction = "restrict"
	FKActionCascade   FKAction = "cascade"
	FKActionSetNull   FKAction = "set_null"
	FKActionSetDefault FKAction = "set_default"
)

// MatchType normalizes pg_constraint.confmatchtype.
type MatchType string

const (
	MatchTypeFull    MatchType = "full"
	MatchTypePartial MatchType = "partial"
	MatchTypeSimple  MatchType = "simple"
)

type Index struct {
	Name       string `json:"name"`
	IsUnique   bool   `json:"is_unique"`
	IsPrimary  bool   `json:"is_primary"`
	IsValid    bool   `json:"is_valid"`
	Method     string `json:"method"`
	Columns    []string `json:"columns"`
	Definition string `json:"definition"`
}

type Enum struct {
	Schema string   `json:"schema"`
	Name   string   `json:"name"`
	Labels []string `json:"labels"`
}

// QualifiedName renders "schema.table" for use as a map key.
func (t Table) QualifiedName(schema string) string { return schema + "." + t.Name }

// FindSchema returns the named schema, or nil.
func (d *Database) FindSchema(name string) *Schema {
	for i := range d.Schemas {
		if d.Schemas[i].Name == name {
			return &d.Schemas[i]
		}
	}
	return nil
}

// FindTable returns the named table within the named schema, or nil.
func (d *Database) FindTable(schema, table string) *Table {
	s := d.FindSchema(schema)
	if s == nil {
		return nil
	}
	for i := range s.Tables {
		if s.Tables[i].Name == table {
			return &s.Tables[i]
		}
	}
	return nil
}

// FindColumn returns the named column within schema.table, or nil.
func (d *Database) FindColumn(schema, table, column string) *Column {
	t := d.FindTable(schema, table)
	if t == nil {
		return nil
	}
	for i := range t.Columns {
		if t.Columns[i].Name == column {
			return &t.Columns[i]
		}
	}
	return nil
}

// PrimaryKey returns the table's primary-key constraint, or nil if it has none.
func (t Table) PrimaryKey() *Constraint {
	for i := range t.Constraints {
		if t.Constraints[i].Kind == ConstraintPrimaryKey {
			return &t.Constraints[i]
		}
	}
	return nil
}

// ForeignKeys returns every FK constraint declared on the table.
func (t Table) ForeignKeys() []Constraint {
	var out []Constraint
	for _, c := range t.Constraints {
		if c.Kind == ConstraintForeignKey {
			out = append(out, c)
		}
	}
	return out
}
