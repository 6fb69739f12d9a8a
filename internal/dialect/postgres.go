package dialect

import (
	"fmt"
	"strings"

	"github.com/schemabranch/schemabranch/internal/schema"
)

func init() {
	Register(&postgresDialect{})
}

// postgresDialect targets PostgreSQL. Value restrictions become native
// CHECK constraints; autoincrement columns become identity columns.
type postgresDialect struct{}

func (d *postgresDialect) Name() string { return "postgres" }

func (d *postgresDialect) Quote(ident string) string { return `"` + ident + `"` }

func (d *postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (d *postgresDialect) SupportsCheck() bool { return true }

func (d *postgresDialect) SupportsLastInsertID() bool { return false }

func (d *postgresDialect) ColumnDDL(col *schema.Column, solePK bool) (string, bool) {
	typ := col.Type
	if col.AutoIncrement {
		typ = identityType(typ)
	}
	ddl := columnBase(d.Quote, col, typ)
	if col.AutoIncrement {
		ddl += " GENERATED BY DEFAULT AS IDENTITY"
	}
	return ddl, false
}

// identityType widens generic integer spellings to the postgres names
// identity columns accept.
func identityType(typ string) string {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "int", "integer", "int4":
		return "integer"
	case "bigint", "int8":
		return "bigint"
	case "smallint", "int2":
		return "smallint"
	}
	return typ
}

func (d *postgresDialect) CheckClause(name, expr string) string {
	return fmt.Sprintf("CONSTRAINT %s CHECK (%s)", d.Quote(name), expr)
}

func (d *postgresDialect) ValidationTriggers(table, name, expr string, columns []string) []string {
	// Native CHECK makes triggers unnecessary, but the emitter may be
	// asked for them when a restriction is declared trigger-only.
	rewritten := rewriteRowRefs(expr, "NEW", columns, d.Quote)
	fn := fmt.Sprintf("%s_%s_check", table, name)
	return []string{
		fmt.Sprintf(
			"CREATE FUNCTION %s() RETURNS trigger AS $$\nBEGIN\n"+
				"  IF NOT (%s) THEN\n"+
				"    RAISE EXCEPTION '%s violated';\n"+
				"  END IF;\n  RETURN NEW;\nEND;\n$$ LANGUAGE plpgsql",
			d.Quote(fn), rewritten, name),
		fmt.Sprintf(
			"CREATE TRIGGER %s BEFORE INSERT OR UPDATE ON %s\nFOR EACH ROW EXECUTE FUNCTION %s()",
			d.Quote(fn+"_trg"), d.Quote(table), d.Quote(fn)),
	}
}
