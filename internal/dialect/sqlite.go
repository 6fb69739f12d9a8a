package dialect

import (
	"fmt"

	"github.com/schemabranch/schemabranch/internal/schema"
)

func init() {
	Register(&sqliteDialect{})
}

// sqliteDialect targets SQLite. Value restrictions become native CHECK
// constraints; the trigger rendering uses RAISE(ABORT) and exists so
// the trigger enforcement path can be exercised in-process.
type sqliteDialect struct{}

func (d *sqliteDialect) Name() string { return "sqlite" }

func (d *sqliteDialect) Quote(ident string) string { return `"` + ident + `"` }

func (d *sqliteDialect) Placeholder(int) string { return "?" }

func (d *sqliteDialect) SupportsCheck() bool { return true }

func (d *sqliteDialect) SupportsLastInsertID() bool { return true }

func (d *sqliteDialect) ColumnDDL(col *schema.Column, solePK bool) (string, bool) {
	if col.AutoIncrement && solePK {
		// Rowid aliasing requires this exact spelling.
		return d.Quote(col.Name) + " INTEGER PRIMARY KEY AUTOINCREMENT", true
	}
	return columnBase(d.Quote, col, col.Type), false
}

func (d *sqliteDialect) CheckClause(name, expr string) string {
	return fmt.Sprintf("CONSTRAINT %s CHECK (%s)", d.Quote(name), expr)
}

func (d *sqliteDialect) ValidationTriggers(table, name, expr string, columns []string) []string {
	rewritten := rewriteRowRefs(expr, "NEW", columns, d.Quote)
	var out []string
	for _, op := range []string{"INSERT", "UPDATE"} {
		trigger := fmt.Sprintf("%s_%s_%s", table, name, triggerSuffix(op))
		out = append(out, fmt.Sprintf(
			"CREATE TRIGGER %s BEFORE %s ON %s\nFOR EACH ROW WHEN NOT (%s)\nBEGIN\n"+
				"  SELECT RAISE(ABORT, '%s violated');\nEND",
			d.Quote(trigger), op, d.Quote(table), rewritten, name))
	}
	return out
}
