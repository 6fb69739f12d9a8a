// Package emit renders resolved branches into output artifacts. Each
// emitter owns one output format and is constructed with its output
// directory; emitters see one branch at a time and never its siblings.
package emit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schemabranch/schemabranch/internal/diag"
	"github.com/schemabranch/schemabranch/internal/dialect"
	"github.com/schemabranch/schemabranch/internal/schema"
)

// Emitter renders one branch into the output tree.
type Emitter interface {
	Emit(b *schema.Branch) error
}

// DDLEmitter writes one self-contained schema.sql per branch: the full
// snapshot, never a delta against the parent.
type DDLEmitter struct {
	outDir  string
	dialect dialect.Dialect
}

func NewDDLEmitter(outDir string, d dialect.Dialect) *DDLEmitter {
	return &DDLEmitter{outDir: outDir, dialect: d}
}

func (e *DDLEmitter) Emit(b *schema.Branch) error {
	stmts, err := Statements(b, e.dialect)
	if err != nil {
		return &diag.EmissionError{Target: "ddl", Element: b.ID, Err: err}
	}
	dir := filepath.Join(e.outDir, b.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &diag.EmissionError{Target: "ddl", Element: b.ID, Err: err}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "-- Schema branch %s, dialect %s.\n", b.ID, e.dialect.Name())
	fmt.Fprintf(&sb, "-- Complete snapshot; apply to an empty database.\n")
	for _, s := range stmts {
		sb.WriteString("\n")
		sb.WriteString(s)
		sb.WriteString(";\n")
	}
	path := filepath.Join(dir, "schema.sql")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return &diag.EmissionError{Target: "ddl", Element: b.ID, Err: err}
	}
	return nil
}

// Statements renders every DDL statement of the branch in declaration
// order: CREATE TABLE per table, then its unique indexes and any
// validation triggers.
func Statements(b *schema.Branch, d dialect.Dialect) ([]string, error) {
	var out []string
	for i := range b.Tables {
		stmts, err := tableStatements(&b.Tables[i], d)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

func tableStatements(t *schema.Table, d dialect.Dialect) ([]string, error) {
	pk := t.PrimaryKeyColumns()
	// Column clauses first, every table constraint after them: SQLite
	// rejects constraints interleaved with column definitions.
	var columns []string
	var constraints []string
	var triggers []string
	pkConsumed := false

	for i := range t.Columns {
		col := &t.Columns[i]
		solePK := len(pk) == 1 && pk[0] == col.Name
		ddl, consumed := d.ColumnDDL(col, solePK)
		columns = append(columns, ddl)
		if consumed {
			pkConsumed = true
		}

		for _, vr := range col.ConstraintsOf(schema.ValueRestriction) {
			element := t.Name + "." + col.Name
			expr, err := dialect.Expression(vr, element, d)
			if err != nil {
				return nil, err
			}
			name := constraintName(vr, t.Name, col.Name, "chk")
			if d.SupportsCheck() {
				constraints = append(constraints, d.CheckClause(name, expr))
			} else {
				triggers = append(triggers, d.ValidationTriggers(t.Name, name, expr, columnNames(t))...)
			}
		}
		for _, fk := range col.ConstraintsOf(schema.ForeignKey) {
			constraints = append(constraints, foreignKeyClause(d, fk, []string{col.Name}))
		}
	}

	if len(pk) > 0 && !pkConsumed {
		constraints = append(constraints, "PRIMARY KEY ("+quoteAll(d, pk)+")")
	}
	for i := range t.Constraints {
		c := &t.Constraints[i]
		switch c.Kind {
		case schema.ForeignKey:
			constraints = append(constraints, foreignKeyClause(d, c, c.Columns))
		case schema.ValueRestriction:
			expr, err := dialect.Expression(c, t.Name, d)
			if err != nil {
				return nil, err
			}
			name := constraintName(c, t.Name, "", "chk")
			if d.SupportsCheck() {
				constraints = append(constraints, d.CheckClause(name, expr))
			} else {
				triggers = append(triggers, d.ValidationTriggers(t.Name, name, expr, columnNames(t))...)
			}
		}
	}

	clauses := append(columns, constraints...)
	create := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", d.Quote(t.Name), strings.Join(clauses, ",\n  "))
	out := []string{create}

	for _, idx := range t.UniqueIndexes() {
		name := t.Name + "_" + strings.Join(idx, "_") + "_idx"
		out = append(out, fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)",
			d.Quote(name), d.Quote(t.Name), quoteAll(d, idx)))
	}
	out = append(out, triggers...)
	return out, nil
}

func foreignKeyClause(d dialect.Dialect, c *schema.Constraint, cols []string) string {
	return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
		quoteAll(d, cols), d.Quote(c.RefTable), d.Quote(c.RefColumn))
}

func constraintName(c *schema.Constraint, table, column, suffix string) string {
	if c.Name != "" {
		return c.Name
	}
	if column != "" {
		return table + "_" + column + "_" + suffix
	}
	return table + "_" + suffix
}

func columnNames(t *schema.Table) []string {
	out := make([]string, len(t.Columns))
	for i := range t.Columns {
		out[i] = t.Columns[i].Name
	}
	return out
}

func quoteAll(d dialect.Dialect, idents []string) string {
	quoted := make([]string, len(idents))
	for i, s := range idents {
		quoted[i] = d.Quote(s)
	}
	return strings.Join(quoted, ", ")
}
