// Package generate wraps the external text-generation oracle behind a strict
// request/response contract and owns the schema context fed into prompts.
package generate

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table describes one tenant-scoped table exposed to the generator.
type Table struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Columns     []string `yaml:"columns"`
}

// Term maps a business word to its meaning in the schema.
type Term struct {
	Term    string `yaml:"term"`
	Meaning string `yaml:"meaning"`
}

// SchemaContext is the static description of the relational schema and
// semantic term mappings injected into generation prompts. Read-only after
// load.
type SchemaContext struct {
	TenantColumn string  `yaml:"tenant_column"`
	Tables       []Table `yaml:"tables"`
	Terms        []Term  `yaml:"terms"`
}

// LoadSchemaContext reads a YAML schema context file. A missing file falls
// back to the compiled-in default; a malformed file is an error.
func LoadSchemaContext(path string) (*SchemaContext, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSchemaContext(), nil
		}
		return nil, fmt.Errorf("read schema context %s: %w", path, err)
	}

	var sc SchemaContext
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse schema context %s: %w", path, err)
	}
	if sc.TenantColumn == "" {
		sc.TenantColumn = "tenant_id"
	}
	if len(sc.Tables) == 0 {
		return nil, fmt.Errorf("schema context %s declares no tables", path)
	}
	return &sc, nil
}

// DefaultSchemaContext returns the compiled-in commerce analytics schema.
func DefaultSchemaContext() *SchemaContext {
	return &SchemaContext{
		TenantColumn: "tenant_id",
		Tables: []Table{
			{Name: "orders", Description: "one row per completed order",
				Columns: []string{"id", "tenant_id", "customer_id", "staff_id", "total", "status", "created_at"}},
			{Name: "order_items", Description: "line items belonging to orders",
				Columns: []string{"id", "tenant_id", "order_id", "product_id", "quantity", "unit_price"}},
			{Name: "products", Description: "sellable products",
				Columns: []string{"id", "tenant_id", "name", "category", "price", "active"}},
			{Name: "customers", Description: "customer directory",
				Columns: []string{"id", "tenant_id", "name", "email", "phone", "created_at"}},
			{Name: "staff", Description: "staff members",
				Columns: []string{"id", "tenant_id", "name", "role_title", "hired_at"}},
			{Name: "shifts", Description: "staff work shifts",
				Columns: []string{"id", "tenant_id", "staff_id", "started_at", "ended_at"}},
			{Name: "reviews", Description: "customer reviews with 1-5 ratings",
				Columns: []string{"id", "tenant_id", "customer_id", "rating", "comment", "created_at"}},
			{Name: "payments", Description: "payment records per order",
				Columns: []string{"id", "tenant_id", "order_id", "method", "amount", "card_last4", "created_at"}},
		},
		Terms: []Term{
			{Term: "sales", Meaning: "SUM(orders.total) over the requested period"},
			{Term: "ticket", Meaning: "one order; average ticket = AVG(orders.total)"},
			{Term: "top products", Meaning: "products ranked by SUM(order_items.quantity * order_items.unit_price)"},
			{Term: "staff performance", Meaning: "orders and revenue attributed via orders.staff_id"},
			{Term: "rating", Meaning: "reviews.rating, an integer from 1 to 5"},
		},
	}
}

// TableColumns returns a lowercased table -> column set view for static
// schema validation.
func (sc *SchemaContext) TableColumns() map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(sc.Tables))
	for _, t := range sc.Tables {
		cols := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			cols[strings.ToLower(c)] = true
		}
		out[strings.ToLower(t.Name)] = cols
	}
	return out
}

// Render produces the prompt fragment describing the schema and term
// mappings.
func (sc *SchemaContext) Render() string {
	var b strings.Builder
	b.WriteString("Tables:\n")
	for _, t := range sc.Tables {
		fmt.Fprintf(&b, "- %s(%s)", t.Name, strings.Join(t.Columns, ", "))
		if t.Description != "" {
			fmt.Fprintf(&b, " -- %s", t.Description)
		}
		b.WriteByte('\n')
	}
	if len(sc.Terms) > 0 {
		b.WriteString("Term mappings:\n")
		for _, term := range sc.Terms {
			fmt.Fprintf(&b, "- %q means %s\n", term.Term, term.Meaning)
		}
	}
	fmt.Fprintf(&b, "Every table carries the tenant column %q.\n", sc.TenantColumn)
	return b.String()
}
