//go:build integration
// +build integration

package integration

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/schemabranch/schemabranch/internal/dialect"
	"github.com/schemabranch/schemabranch/internal/schema"
)

// priceBranch is the shared fixture: an autoincrement key, a unique
// sku, and a non-negative price restriction.
func priceBranch() *schema.Branch {
	return &schema.Branch{
		ID: "v1",
		Tables: []schema.Table{{
			Name: "PRICE",
			Columns: []schema.Column{
				{
					Name: "Price_Id", Type: "int", AutoIncrement: true,
					Constraints: []schema.Constraint{{Kind: schema.PrimaryKey}},
				},
				{
					Name: "Product_Sku", Type: "varchar(64)",
					Constraints: []schema.Constraint{
						{Kind: schema.NotNull},
						{Kind: schema.UniqueIndex},
					},
				},
				{
					Name: "Price", Type: "numeric(10,2)",
					Constraints: []schema.Constraint{
						{Kind: schema.NotNull},
						{
							Kind: schema.ValueRestriction,
							SQL:  schema.SQLSet{{Dialects: []string{"all"}, SQL: "Price >= 0.0"}},
						},
					},
				},
			},
		}},
	}
}

// stripRestrictions returns the fixture without value restrictions, for
// exercising the trigger enforcement path separately.
func stripRestrictions(b *schema.Branch) *schema.Branch {
	for ti := range b.Tables {
		for ci := range b.Tables[ti].Columns {
			col := &b.Tables[ti].Columns[ci]
			var kept []schema.Constraint
			for _, c := range col.Constraints {
				if c.Kind != schema.ValueRestriction {
					kept = append(kept, c)
				}
			}
			col.Constraints = kept
		}
	}
	return b
}

// applyStatements runs each DDL statement, failing the test on the
// first error.
func applyStatements(t *testing.T, ctx context.Context, db *sql.DB, stmts []string) {
	t.Helper()
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			t.Fatalf("applying statement failed: %v\n%s", err, s)
		}
	}
}

// verifyPriceRestriction checks the round-trip property: a negative
// price is rejected by the database, a zero price is accepted.
func verifyPriceRestriction(t *testing.T, ctx context.Context, db *sql.DB, d dialect.Dialect) {
	t.Helper()
	q := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s)",
		d.Quote("PRICE"), d.Quote("Product_Sku"), d.Quote("Price"),
		d.Placeholder(1), d.Placeholder(2))

	if _, err := db.ExecContext(ctx, q, "SKU-NEG", -1.0); err == nil {
		t.Error("negative price accepted, restriction not enforced")
	}
	if _, err := db.ExecContext(ctx, q, "SKU-OK", 0.0); err != nil {
		t.Errorf("zero price rejected: %v", err)
	}
}

// verifyUniqueSku checks that the generated unique index rejects a
// duplicate sku.
func verifyUniqueSku(t *testing.T, ctx context.Context, db *sql.DB, d dialect.Dialect) {
	t.Helper()
	q := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s)",
		d.Quote("PRICE"), d.Quote("Product_Sku"), d.Quote("Price"),
		d.Placeholder(1), d.Placeholder(2))

	if _, err := db.ExecContext(ctx, q, "SKU-DUP", 1.0); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := db.ExecContext(ctx, q, "SKU-DUP", 2.0); err == nil {
		t.Error("duplicate sku accepted, unique index not enforced")
	}
}

func mustDialect(t *testing.T, name string) dialect.Dialect {
	t.Helper()
	d, err := dialect.Get(name)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
