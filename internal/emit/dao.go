package emit

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schemabranch/schemabranch/internal/diag"
	"github.com/schemabranch/schemabranch/internal/dialect"
	"github.com/schemabranch/schemabranch/internal/schema"
)

// GoDAOEmitter writes a data-access package per branch: one file per
// table plus a shared dao.go with the result and error types. Every
// generated function takes its context and *sql.DB explicitly; the
// package holds no connection state.
type GoDAOEmitter struct {
	outDir  string
	dialect dialect.Dialect
}

func NewGoDAOEmitter(outDir string, d dialect.Dialect) *GoDAOEmitter {
	return &GoDAOEmitter{outDir: outDir, dialect: d}
}

func (e *GoDAOEmitter) Emit(b *schema.Branch) error {
	dir := filepath.Join(e.outDir, b.ID, "dao")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &diag.EmissionError{Target: "go-dao", Element: b.ID, Err: err}
	}
	if err := os.WriteFile(filepath.Join(dir, "dao.go"), []byte(daoShared), 0o644); err != nil {
		return &diag.EmissionError{Target: "go-dao", Element: b.ID, Err: err}
	}
	for i := range b.Tables {
		t := &b.Tables[i]
		src := e.tableSource(t)
		name := strings.ToLower(t.Name) + ".go"
		if err := os.WriteFile(filepath.Join(dir, name), src, 0o644); err != nil {
			return &diag.EmissionError{Target: "go-dao", Element: t.Name, Err: err}
		}
	}
	return nil
}

const daoShared = `// Code generated by schemabranch. DO NOT EDIT.

package dao

import "fmt"

// Result reports the outcome of a write.
type Result struct {
	// LastInsertID is the generated key of a Create against an
	// autoincrement table, when the driver reports one.
	LastInsertID int64
	// Rows is the number of rows the statement affected.
	Rows int64
}

// ValueError reports a value rejected before it reached the database.
type ValueError struct {
	Column  string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s", e.Column, e.Message)
}
`

// field is the per-column generation plan.
type field struct {
	col      *schema.Column
	goName   string // exported struct field / name fragment
	argName  string // parameter name
	goType   string // base Go type
	optional bool   // nullable: pointer in the row struct and args
	required bool   // must be supplied to Create
	isPK     bool
}

func (e *GoDAOEmitter) tableSource(t *schema.Table) []byte {
	typeName := exportName(t.Name)
	pkSet := make(map[string]bool)
	for _, c := range t.PrimaryKeyColumns() {
		pkSet[c] = true
	}

	var fields []field
	for i := range t.Columns {
		col := &t.Columns[i]
		isPK := pkSet[col.Name]
		notNull := col.HasKind(schema.NotNull) || isPK || col.AutoIncrement
		f := field{
			col:      col,
			goName:   exportName(col.Name),
			argName:  unexportName(col.Name),
			goType:   goType(col.Type),
			optional: !notNull,
			required: notNull && !col.AutoIncrement,
			isPK:     isPK,
		}
		fields = append(fields, f)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by schemabranch. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package dao\n\n")
	buf.WriteString(importBlock(len(readKeys(t)) > 0))

	fmt.Fprintf(&buf, "// %sRow is one row of %s.\n", typeName, t.Name)
	fmt.Fprintf(&buf, "type %sRow struct {\n", typeName)
	for _, f := range fields {
		typ := f.goType
		if f.optional {
			typ = "*" + typ
		}
		fmt.Fprintf(&buf, "\t%s %s\n", f.goName, typ)
	}
	fmt.Fprintf(&buf, "}\n\n")

	e.writeCreate(&buf, t, typeName, fields)
	e.writeGetters(&buf, t, typeName, fields)
	e.writeUpdate(&buf, t, typeName, fields)
	e.writeDelete(&buf, t, typeName, fields)

	return buf.Bytes()
}

// importBlock renders the generated file's imports; "errors" is needed
// only by the lookup functions.
func importBlock(hasGetters bool) string {
	if hasGetters {
		return "import (\n\t\"context\"\n\t\"database/sql\"\n\t\"errors\"\n\t\"fmt\"\n)\n\n"
	}
	return "import (\n\t\"context\"\n\t\"database/sql\"\n\t\"fmt\"\n)\n\n"
}

func (e *GoDAOEmitter) writeCreate(buf *bytes.Buffer, t *schema.Table, typeName string, fields []field) {
	d := e.dialect
	var params, args, insertCols []string
	var autoPK *field
	for i := range fields {
		f := &fields[i]
		if f.col.AutoIncrement {
			if f.isPK {
				autoPK = f
			}
			continue
		}
		typ := f.goType
		if f.optional {
			typ = "*" + typ
		}
		params = append(params, f.argName+" "+typ)
		args = append(args, f.argName)
		insertCols = append(insertCols, f.col.Name)
	}

	fmt.Fprintf(buf, "// Create%s inserts one %s row. Required values are validated\n", typeName, t.Name)
	fmt.Fprintf(buf, "// before the statement runs; nil optional values insert NULL.\n")
	fmt.Fprintf(buf, "func Create%s(ctx context.Context, db *sql.DB%s) (*Result, error) {\n",
		typeName, prefixAll(params))
	for _, f := range fields {
		if f.required && f.goType == "string" {
			fmt.Fprintf(buf, "\tif %s == \"\" {\n", f.argName)
			fmt.Fprintf(buf, "\t\treturn nil, &ValueError{Column: %q, Message: \"required value is empty\"}\n", f.col.Name)
			fmt.Fprintf(buf, "\t}\n")
		}
	}

	placeholders := make([]string, len(insertCols))
	for i := range insertCols {
		placeholders[i] = d.Placeholder(i + 1)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(t.Name), quoteAll(d, insertCols), strings.Join(placeholders, ", "))

	switch {
	case autoPK != nil && !d.SupportsLastInsertID():
		insert += " RETURNING " + d.Quote(autoPK.col.Name)
		fmt.Fprintf(buf, "\tconst q = %q\n", insert)
		fmt.Fprintf(buf, "\tvar id int64\n")
		fmt.Fprintf(buf, "\tif err := db.QueryRowContext(ctx, q%s).Scan(&id); err != nil {\n", prefixAll(args))
		fmt.Fprintf(buf, "\t\treturn nil, fmt.Errorf(\"creating %s row: %%w\", err)\n", t.Name)
		fmt.Fprintf(buf, "\t}\n")
		fmt.Fprintf(buf, "\treturn &Result{LastInsertID: id, Rows: 1}, nil\n")
	case autoPK != nil:
		fmt.Fprintf(buf, "\tconst q = %q\n", insert)
		fmt.Fprintf(buf, "\tres, err := db.ExecContext(ctx, q%s)\n", prefixAll(args))
		fmt.Fprintf(buf, "\tif err != nil {\n")
		fmt.Fprintf(buf, "\t\treturn nil, fmt.Errorf(\"creating %s row: %%w\", err)\n", t.Name)
		fmt.Fprintf(buf, "\t}\n")
		fmt.Fprintf(buf, "\tid, err := res.LastInsertId()\n")
		fmt.Fprintf(buf, "\tif err != nil {\n\t\tid = 0\n\t}\n")
		fmt.Fprintf(buf, "\trows, _ := res.RowsAffected()\n")
		fmt.Fprintf(buf, "\treturn &Result{LastInsertID: id, Rows: rows}, nil\n")
	default:
		fmt.Fprintf(buf, "\tconst q = %q\n", insert)
		fmt.Fprintf(buf, "\tres, err := db.ExecContext(ctx, q%s)\n", prefixAll(args))
		fmt.Fprintf(buf, "\tif err != nil {\n")
		fmt.Fprintf(buf, "\t\treturn nil, fmt.Errorf(\"creating %s row: %%w\", err)\n", t.Name)
		fmt.Fprintf(buf, "\t}\n")
		fmt.Fprintf(buf, "\trows, _ := res.RowsAffected()\n")
		fmt.Fprintf(buf, "\treturn &Result{Rows: rows}, nil\n")
	}
	fmt.Fprintf(buf, "}\n\n")
}

// writeGetters renders one lookup per read key: the single-column
// primary key and every single-column unique index.
func (e *GoDAOEmitter) writeGetters(buf *bytes.Buffer, t *schema.Table, typeName string, fields []field) {
	d := e.dialect
	keys := readKeys(t)
	for _, keyCol := range keys {
		f := findField(fields, keyCol)
		if f == nil {
			continue
		}
		allCols := make([]string, len(fields))
		scans := make([]string, len(fields))
		for i, fl := range fields {
			allCols[i] = fl.col.Name
			scans[i] = "&row." + fl.goName
		}
		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
			quoteAll(d, allCols), d.Quote(t.Name), d.Quote(f.col.Name), d.Placeholder(1))

		fmt.Fprintf(buf, "// Get%sBy%s returns the %s row with the given %s, or nil\n",
			typeName, f.goName, t.Name, f.col.Name)
		fmt.Fprintf(buf, "// when no row matches.\n")
		fmt.Fprintf(buf, "func Get%sBy%s(ctx context.Context, db *sql.DB, %s %s) (*%sRow, error) {\n",
			typeName, f.goName, f.argName, f.goType, typeName)
		fmt.Fprintf(buf, "\tconst q = %q\n", query)
		fmt.Fprintf(buf, "\tvar row %sRow\n", typeName)
		fmt.Fprintf(buf, "\terr := db.QueryRowContext(ctx, q, %s).Scan(%s)\n",
			f.argName, strings.Join(scans, ", "))
		fmt.Fprintf(buf, "\tif errors.Is(err, sql.ErrNoRows) {\n\t\treturn nil, nil\n\t}\n")
		fmt.Fprintf(buf, "\tif err != nil {\n")
		fmt.Fprintf(buf, "\t\treturn nil, fmt.Errorf(\"reading %s row: %%w\", err)\n", t.Name)
		fmt.Fprintf(buf, "\t}\n")
		fmt.Fprintf(buf, "\treturn &row, nil\n")
		fmt.Fprintf(buf, "}\n\n")
	}
}

func (e *GoDAOEmitter) writeUpdate(buf *bytes.Buffer, t *schema.Table, typeName string, fields []field) {
	d := e.dialect
	var pk []*field
	for i := range fields {
		if fields[i].isPK {
			pk = append(pk, &fields[i])
		}
	}
	if len(pk) == 0 {
		return
	}
	var sets []string
	var args []string
	n := 0
	for i := range fields {
		f := &fields[i]
		if f.isPK || f.col.AutoIncrement {
			continue
		}
		n++
		sets = append(sets, fmt.Sprintf("%s = %s", d.Quote(f.col.Name), d.Placeholder(n)))
		args = append(args, "row."+f.goName)
	}
	if len(sets) == 0 {
		return
	}
	var wheres []string
	for _, f := range pk {
		n++
		wheres = append(wheres, fmt.Sprintf("%s = %s", d.Quote(f.col.Name), d.Placeholder(n)))
		args = append(args, "row."+f.goName)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		d.Quote(t.Name), strings.Join(sets, ", "), strings.Join(wheres, " AND "))

	fmt.Fprintf(buf, "// Update%s rewrites the %s row identified by the key fields of\n", typeName, t.Name)
	fmt.Fprintf(buf, "// row. Rows reports 0 when no row matched.\n")
	fmt.Fprintf(buf, "func Update%s(ctx context.Context, db *sql.DB, row *%sRow) (*Result, error) {\n",
		typeName, typeName)
	for i := range fields {
		f := &fields[i]
		if f.required && !f.isPK && f.goType == "string" && !f.col.AutoIncrement {
			fmt.Fprintf(buf, "\tif row.%s == \"\" {\n", f.goName)
			fmt.Fprintf(buf, "\t\treturn nil, &ValueError{Column: %q, Message: \"required value is empty\"}\n", f.col.Name)
			fmt.Fprintf(buf, "\t}\n")
		}
	}
	fmt.Fprintf(buf, "\tconst q = %q\n", query)
	fmt.Fprintf(buf, "\tres, err := db.ExecContext(ctx, q%s)\n", prefixAll(args))
	fmt.Fprintf(buf, "\tif err != nil {\n")
	fmt.Fprintf(buf, "\t\treturn nil, fmt.Errorf(\"updating %s row: %%w\", err)\n", t.Name)
	fmt.Fprintf(buf, "\t}\n")
	fmt.Fprintf(buf, "\trows, _ := res.RowsAffected()\n")
	fmt.Fprintf(buf, "\treturn &Result{Rows: rows}, nil\n")
	fmt.Fprintf(buf, "}\n\n")
}

func (e *GoDAOEmitter) writeDelete(buf *bytes.Buffer, t *schema.Table, typeName string, fields []field) {
	d := e.dialect
	var pk []*field
	for i := range fields {
		if fields[i].isPK {
			pk = append(pk, &fields[i])
		}
	}
	if len(pk) == 0 {
		return
	}
	var params, args, wheres []string
	for i, f := range pk {
		params = append(params, f.argName+" "+f.goType)
		args = append(args, f.argName)
		wheres = append(wheres, fmt.Sprintf("%s = %s", d.Quote(f.col.Name), d.Placeholder(i+1)))
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", d.Quote(t.Name), strings.Join(wheres, " AND "))

	fmt.Fprintf(buf, "// Delete%s removes the %s row with the given key. Rows reports 0\n", typeName, t.Name)
	fmt.Fprintf(buf, "// when no row matched.\n")
	fmt.Fprintf(buf, "func Delete%s(ctx context.Context, db *sql.DB%s) (*Result, error) {\n",
		typeName, prefixAll(params))
	fmt.Fprintf(buf, "\tconst q = %q\n", query)
	fmt.Fprintf(buf, "\tres, err := db.ExecContext(ctx, q%s)\n", prefixAll(args))
	fmt.Fprintf(buf, "\tif err != nil {\n")
	fmt.Fprintf(buf, "\t\treturn nil, fmt.Errorf(\"deleting %s row: %%w\", err)\n", t.Name)
	fmt.Fprintf(buf, "\t}\n")
	fmt.Fprintf(buf, "\trows, _ := res.RowsAffected()\n")
	fmt.Fprintf(buf, "\treturn &Result{Rows: rows}, nil\n")
	fmt.Fprintf(buf, "}\n")
}

// readKeys lists the columns a row can be fetched by: a single-column
// primary key and every single-column unique index, in order, without
// duplicates.
func readKeys(t *schema.Table) []string {
	var out []string
	seen := make(map[string]bool)
	if pk := t.PrimaryKeyColumns(); len(pk) == 1 {
		out = append(out, pk[0])
		seen[pk[0]] = true
	}
	for _, idx := range t.UniqueIndexes() {
		if len(idx) == 1 && !seen[idx[0]] {
			out = append(out, idx[0])
			seen[idx[0]] = true
		}
	}
	return out
}

func findField(fields []field, col string) *field {
	for i := range fields {
		if fields[i].col.Name == col {
			return &fields[i]
		}
	}
	return nil
}

func prefixAll(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return ", " + strings.Join(items, ", ")
}

// goType maps a declared SQL type to the Go type the generated row
// struct carries.
func goType(sqlType string) string {
	base := strings.ToLower(sqlType)
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(base)
	switch base {
	case "int", "integer", "smallint", "bigint", "tinyint", "int2", "int4", "int8", "serial", "bigserial":
		return "int64"
	case "numeric", "decimal", "float", "double", "double precision", "real":
		return "float64"
	case "bool", "boolean":
		return "bool"
	}
	return "string"
}

// exportName converts a schema identifier to an exported Go name:
// "Product_Sku" -> "ProductSku", "PRICE" -> "Price", "Price_Id" ->
// "PriceID".
func exportName(ident string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(ident, func(r rune) bool { return r == '_' || r == '-' || r == ' ' }) {
		lower := strings.ToLower(part)
		if lower == "id" {
			b.WriteString("ID")
			continue
		}
		b.WriteString(strings.ToUpper(lower[:1]))
		b.WriteString(lower[1:])
	}
	return b.String()
}

// unexportName renders the parameter-name form: "Price_Id" -> "priceID".
func unexportName(ident string) string {
	name := exportName(ident)
	if name == "" {
		return name
	}
	if strings.HasPrefix(name, "ID") {
		return "id" + name[2:]
	}
	return strings.ToLower(name[:1]) + name[1:]
}
