//go:build integration
// +build integration

package integration

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"github.com/schemabranch/schemabranch/internal/emit"
)

func openMySQL(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to MySQL: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestMySQLTriggerRoundTrip applies the generated snapshot to a real
// server and verifies the trigger-based restriction path: MySQL output
// carries SIGNAL triggers instead of CHECK clauses.
func TestMySQLTriggerRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openMySQL(t)
	d := mustDialect(t, "mysql")

	cleanup := []string{
		"DROP TRIGGER IF EXISTS `PRICE_PRICE_Price_chk_bi`",
		"DROP TRIGGER IF EXISTS `PRICE_PRICE_Price_chk_bu`",
		"DROP TABLE IF EXISTS `PRICE`",
	}
	for _, s := range cleanup {
		if _, err := db.ExecContext(ctx, s); err != nil {
			t.Fatalf("Cleanup failed: %v", err)
		}
	}

	stmts, err := emit.Statements(priceBranch(), d)
	if err != nil {
		t.Fatalf("Failed to generate statements: %v", err)
	}
	applyStatements(t, ctx, db, stmts)

	verifyPriceRestriction(t, ctx, db, d)
	verifyUniqueSku(t, ctx, db, d)

	// The update trigger must also enforce the restriction.
	if _, err := db.ExecContext(ctx,
		"UPDATE `PRICE` SET `Price` = ? WHERE `Product_Sku` = ?", -5.0, "SKU-OK"); err == nil {
		t.Error("negative price accepted on update")
	}

	res, err := db.ExecContext(ctx,
		"INSERT INTO `PRICE` (`Product_Sku`, `Price`) VALUES (?, ?)", "SKU-KEY", 3.0)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id, err := res.LastInsertId(); err != nil || id == 0 {
		t.Errorf("LastInsertId = %d, %v", id, err)
	}
}
