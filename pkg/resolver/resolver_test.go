package resolver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synthforge/synthgen/internal/retrybudget"
	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/registry"
	"github.com/synthforge/synthgen/pkg/resolver"
	"github.com/synthforge/synthgen/pkg/schemamodel"
)

func usersTable() *schemamodel.Table {
	return &schemamodel.Table{
		Name: "users",
		Columns: []schemamodel.Column{
			{Ordinal: 1, Name: "id", IsNullable: false},
			{Ordinal: 2, Name: "email", IsNullable: false},
			{Ordinal: 3, Name: "age", IsNullable: true},
		},
		Constraints: []schemamodel.Constraint{
			{Kind: schemamodel.ConstraintUnique, Name: "uq_email", Columns: []string{"email"}},
			{Kind: schemamodel.ConstraintCheck, Name: "chk_age", Expression: "age >= 0 AND age <= 150"},
		},
	}
}

func rowWith(id, email string, age any) *registry.RowContext {
	r := registry.NewRowContext()
	r.Set("id", id)
	r.Set("email", email)
	r.Set("age", age)
	return r
}

func TestValidateRejectsMissingNotNullColumn(t *testing.T) {
	tr := resolver.NewTableResolver("public", usersTable(), resolver.PolicyEnforce, nil, nil)
	row := registry.NewRowContext()
	row.Set("id", "1")
	row.Set("age", float64(20))
	violations := tr.Validate(row)
	require.NotEmpty(t, violations)
}

func TestValidateRejectsDuplicateUniqueValue(t *testing.T) {
	tr := resolver.NewTableResolver("public", usersTable(), resolver.PolicyEnforce, nil, nil)
	require.Empty(t, tr.Validate(rowWith("1", "a@b.com", float64(20))))
	violations := tr.Validate(rowWith("2", "a@b.com", float64(25)))
	require.NotEmpty(t, violations)
	require.Equal(t, "uq_email", violations[0].ConstraintName)
}

func TestValidateRejectsCheckViolation(t *testing.T) {
	tr := resolver.NewTableResolver("public", usersTable(), resolver.PolicyEnforce, nil, nil)
	violations := tr.Validate(rowWith("1", "a@b.com", float64(200)))
	require.NotEmpty(t, violations)
}

func TestValidateAcceptsCleanRow(t *testing.T) {
	tr := resolver.NewTableResolver("public", usersTable(), resolver.PolicyEnforce, nil, nil)
	violations := tr.Validate(rowWith("1", "a@b.com", float64(42)))
	require.Empty(t, violations)
}

type stubPool struct{}

func (stubPool) PickFK(string, string, string) (gencontext.Value, bool) { return nil, false }
func (stubPool) PickFKTuple(string, string, []string) (map[string]gencontext.Value, bool) {
	return nil, false
}
func (stubPool) LookupParent(string, string, []gencontext.Value, string) (gencontext.Value, bool) {
	return nil, true
}
func (stubPool) FKExists(string, string, []string, []gencontext.Value) bool { return true }

func TestResolveRowRetriesUntilValid(t *testing.T) {
	tr := resolver.NewTableResolver("public", usersTable(), resolver.PolicyEnforce, stubPool{}, nil)
	require.Empty(t, tr.Validate(rowWith("0", "dup@b.com", float64(20)))) // seed a collision

	budget := retrybudget.Budget{MaxRow: 5}
	attempts := 0
	row, err := tr.ResolveRow(context.Background(), budget, func(n int) (*registry.RowContext, error) {
		attempts++
		if n == 1 {
			return rowWith("1", "dup@b.com", float64(20)), nil
		}
		return rowWith("2", "unique@b.com", float64(20)), nil
	})

	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, 2, attempts)
}

func ordersTableCompositeFK() *schemamodel.Table {
	return &schemamodel.Table{
		Name: "orders",
		Columns: []schemamodel.Column{
			{Ordinal: 1, Name: "id", IsNullable: false},
			{Ordinal: 2, Name: "region", IsNullable: false},
			{Ordinal: 3, Name: "customer_id", IsNullable: false},
		},
		Constraints: []schemamodel.Constraint{
			{
				Kind: schemamodel.ConstraintForeignKey, Name: "fk_customer_region",
				Columns:           []string{"customer_id", "region"},
				ReferencedSchema:  "public",
				ReferencedTable:   "customers",
				ReferencedColumns: []string{"id", "region"},
			},
		},
	}
}

func compositeFKRow() *registry.RowContext {
	r := registry.NewRowContext()
	r.Set("id", "order-1")
	r.Set("region", "eu")
	r.Set("customer_id", "cust-1")
	return r
}

// recordingPool captures the arguments FKExists was called with, so the test
// can assert the resolver zips the FK's declared columns against the
// referenced columns by name, not by borrowing the parent's own PK order.
type recordingPool struct {
	schema, table string
	keyColumns    []string
	keyValues     []gencontext.Value
}

func (*recordingPool) PickFK(string, string, string) (gencontext.Value, bool) { return nil, false }
func (*recordingPool) PickFKTuple(string, string, []string) (map[string]gencontext.Value, bool) {
	return nil, false
}
func (*recordingPool) LookupParent(string, string, []gencontext.Value, string) (gencontext.Value, bool) {
	return nil, true
}
func (p *recordingPool) FKExists(schema, table string, keyColumns []string, keyValues []gencontext.Value) bool {
	p.schema, p.table, p.keyColumns, p.keyValues = schema, table, keyColumns, keyValues
	return true
}

func TestValidateForeignKeyZipsCompositeColumnsByDeclaredOrder(t *testing.T) {
	pool := &recordingPool{}
	tr := resolver.NewTableResolver("public", ordersTableCompositeFK(), resolver.PolicyEnforce, pool, nil)

	violations := tr.Validate(compositeFKRow())

	require.Empty(t, violations)
	require.Equal(t, "customers", pool.table)
	require.Equal(t, []string{"id", "region"}, pool.keyColumns)
	require.Equal(t, []gencontext.Value{"cust-1", "eu"}, pool.keyValues)
}

type missingParentPool struct{}

func (missingParentPool) PickFK(string, string, string) (gencontext.Value, bool) { return nil, false }
func (missingParentPool) PickFKTuple(string, string, []string) (map[string]gencontext.Value, bool) {
	return nil, false
}
func (missingParentPool) LookupParent(string, string, []gencontext.Value, string) (gencontext.Value, bool) {
	return nil, false
}
func (missingParentPool) FKExists(string, string, []string, []gencontext.Value) bool { return false }

func TestValidateForeignKeyRejectsUnmatchedCompositeTuple(t *testing.T) {
	tr := resolver.NewTableResolver("public", ordersTableCompositeFK(), resolver.PolicyEnforce, missingParentPool{}, nil)

	violations := tr.Validate(compositeFKRow())

	require.NotEmpty(t, violations)
	require.Equal(t, "fk_customer_region", violations[0].ConstraintName)
}

func TestResolveRowExhaustsBudget(t *testing.T) {
	tr := resolver.NewTableResolver("public", usersTable(), resolver.PolicyEnforce, stubPool{}, nil)
	budget := retrybudget.Budget{MaxRow: 3}

	_, err := tr.ResolveRow(context.Background(), budget, func(n int) (*registry.RowContext, error) {
		return rowWith("1", "a@b.com", float64(999)), nil
	})
	require.Error(t, err)
}
