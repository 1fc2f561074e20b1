package schemamodel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalizeCanonicalOrder(t *testing.T) {
	db := &Database{
		SchemaVersion: SchemaContractVersion,
		Engine:        "postgres",
		Schemas: []Schema{
			{
				Name: "b_schema",
				Tables: []Table{
					{
						Name: "z_table",
						Kind: TableKindTable,
						Columns: []Column{
							{Ordinal: 2, Name: "second"},
							{Ordinal: 1, Name: "first"},
						},
						Constraints: []Constraint{
							{Kind: ConstraintUnique, Name: "uq_z"},
							{Kind: ConstraintPrimaryKey, Name: "pk_z"},
						},
					},
				},
			},
			{Name: "a_schema"},
		},
	}

	Finalize(db)

	require.Equal(t, "a_schema", db.Schemas[0].Name)
	require.Equal(t, "b_schema", db.Schemas[1].Name)
	tbl := db.Schemas[1].Tables[0]
	require.Equal(t, "first", tbl.Columns[0].Name)
	require.Equal(t, "second", tbl.Columns[1].Name)
	require.Equal(t, ConstraintPrimaryKey, tbl.Constraints[0].Kind)
	require.Equal(t, ConstraintUnique, tbl.Constraints[1].Kind)
	require.NotEmpty(t, db.Fingerprint)
}

func TestFinalizeIsDeterministic(t *testing.T) {
	build := func() *Database {
		return &Database{
			SchemaVersion: SchemaContractVersion,
			Engine:        "postgres",
			Schemas: []Schema{
				{Name: "public", Tables: []Table{
					{Name: "users", Kind: TableKindTable, Columns: []Column{
						{Ordinal: 1, Name: "id"},
					}},
				}},
			},
		}
	}

	a, b := build(), build()
	Finalize(a)
	Finalize(b)
	require.Equal(t, a.Fingerprint, b.Fingerprint)

	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	require.Equal(t, string(ab), string(bb))
}

func TestWriteAndLoadJSONRoundTrip(t *testing.T) {
	db := &Database{SchemaVersion: SchemaContractVersion, Engine: "postgres", Schemas: []Schema{
		{Name: "public", Tables: []Table{{Name: "widgets", Kind: TableKindTable, Columns: []Column{{Ordinal: 1, Name: "id"}}}}},
	}}
	Finalize(db)

	path := t.TempDir() + "/schema.json"
	require.NoError(t, WriteJSON(db, path))

	loaded, err := LoadJSON(path)
	require.NoError(t, err)
	require.Equal(t, db.Fingerprint, loaded.Fingerprint)
	require.Equal(t, db.Schemas[0].Tables[0].Name, loaded.Schemas[0].Tables[0].Name)
}
