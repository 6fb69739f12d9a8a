package dialect

import (
	"fmt"

	"github.com/schemabranch/schemabranch/internal/schema"
)

func init() {
	Register(&mysqlDialect{})
}

// mysqlDialect targets MySQL/MariaDB. Value restrictions become
// BEFORE INSERT / BEFORE UPDATE triggers raising SQLSTATE 45000, since
// CHECK clauses are parsed but not enforced on older servers.
type mysqlDialect struct{}

func (d *mysqlDialect) Name() string { return "mysql" }

func (d *mysqlDialect) Quote(ident string) string { return "`" + ident + "`" }

func (d *mysqlDialect) Placeholder(int) string { return "?" }

func (d *mysqlDialect) SupportsCheck() bool { return false }

func (d *mysqlDialect) SupportsLastInsertID() bool { return true }

func (d *mysqlDialect) ColumnDDL(col *schema.Column, solePK bool) (string, bool) {
	ddl := columnBase(d.Quote, col, col.Type)
	if col.AutoIncrement {
		ddl += " AUTO_INCREMENT"
	}
	return ddl, false
}

func (d *mysqlDialect) CheckClause(name, expr string) string {
	return fmt.Sprintf("CONSTRAINT %s CHECK (%s)", d.Quote(name), expr)
}

func (d *mysqlDialect) ValidationTriggers(table, name, expr string, columns []string) []string {
	rewritten := rewriteRowRefs(expr, "NEW", columns, d.Quote)
	var out []string
	for _, op := range []string{"INSERT", "UPDATE"} {
		trigger := fmt.Sprintf("%s_%s_%s", table, name, triggerSuffix(op))
		out = append(out, fmt.Sprintf(
			"CREATE TRIGGER %s BEFORE %s ON %s\nFOR EACH ROW\nBEGIN\n"+
				"  IF NOT (%s) THEN\n"+
				"    SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = '%s violated';\n"+
				"  END IF;\nEND",
			d.Quote(trigger), op, d.Quote(table), rewritten, name))
	}
	return out
}

func triggerSuffix(op string) string {
	if op == "INSERT" {
		return "bi"
	}
	return "bu"
}
