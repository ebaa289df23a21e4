package sqlast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectTableNames(t *testing.T) {
	sel := parseSelect(t, `SELECT o.id FROM orders o
		JOIN customers c ON o.customer_id = c.id
		WHERE o.product_id IN (SELECT id FROM products)`)

	assert.Equal(t, []string{"orders", "customers", "products"}, CollectTableNames(sel))
}

func TestCollectTableNamesExcludesCTEs(t *testing.T) {
	sel := parseSelect(t, `WITH recent AS (SELECT id FROM orders)
		SELECT * FROM recent JOIN customers ON recent.id = customers.id`)

	assert.Equal(t, []string{"customers", "orders"}, CollectTableNames(sel))
}

func TestCollectTableNamesSchemaQualified(t *testing.T) {
	sel := parseSelect(t, "SELECT * FROM information_schema.tables")
	assert.Equal(t, []string{"information_schema.tables"}, CollectTableNames(sel))
}

func TestCollectTableNamesDeduplicates(t *testing.T) {
	sel := parseSelect(t, "SELECT * FROM orders UNION ALL SELECT * FROM Orders")
	assert.Equal(t, []string{"orders"}, CollectTableNames(sel))
}

func TestCollectColumnRefs(t *testing.T) {
	sel := parseSelect(t, "SELECT o.total FROM orders o WHERE o.tenant_id = 'acme'")

	refs := CollectColumnRefs(sel)
	require.Len(t, refs, 2)
	assert.Equal(t, "total", refs[0].Column)
	assert.Equal(t, "tenant_id", refs[1].Column)
}

func TestMaxSubqueryDepth(t *testing.T) {
	tests := []struct {
		sql  string
		want int
	}{
		{"SELECT 1 FROM orders", 0},
		{"SELECT 1 FROM orders WHERE id IN (SELECT id FROM products)", 1},
		{"SELECT 1 FROM (SELECT id FROM (SELECT id FROM orders) a) b", 2},
		{"WITH x AS (SELECT 1 FROM orders) SELECT * FROM x", 1},
	}

	for _, tt := range tests {
		sel := parseSelect(t, tt.sql)
		assert.Equal(t, tt.want, MaxSubqueryDepth(sel), "sql %q", tt.sql)
	}
}

func TestHasSetOperation(t *testing.T) {
	assert.False(t, HasSetOperation(parseSelect(t, "SELECT 1 FROM orders")))
	assert.True(t, HasSetOperation(parseSelect(t, "SELECT a FROM t1 UNION SELECT a FROM t2")))
	assert.True(t, HasSetOperation(parseSelect(t,
		"SELECT 1 FROM orders WHERE id IN (SELECT a FROM t1 INTERSECT SELECT a FROM t2)")))
}

func TestCountJoins(t *testing.T) {
	sel := parseSelect(t, `SELECT 1 FROM a
		JOIN b ON a.id = b.id
		LEFT JOIN c ON b.id = c.id
		WHERE a.x IN (SELECT x FROM d JOIN e ON d.id = e.id)`)

	assert.Equal(t, 3, CountJoins(sel))
}

func TestCountSelects(t *testing.T) {
	assert.Equal(t, 1, CountSelects(parseSelect(t, "SELECT 1 FROM orders")))
	assert.Equal(t, 3, CountSelects(parseSelect(t,
		"WITH x AS (SELECT 1 FROM a) SELECT * FROM x WHERE id IN (SELECT id FROM b)")))
}

func TestContainsFunction(t *testing.T) {
	sel := parseSelect(t, "SELECT count(*) FROM orders WHERE length(note) > 5")

	assert.True(t, ContainsFunction(sel, "COUNT"))
	assert.True(t, ContainsFunction(sel, "length"))
	assert.False(t, ContainsFunction(sel, "read_csv"))
}

func TestClassify(t *testing.T) {
	sel, err := Parse("SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, KindSelect, Classify(sel))

	raw, err := Parse("DROP TABLE t")
	require.NoError(t, err)
	assert.Equal(t, KindDDL, Classify(raw))
}
