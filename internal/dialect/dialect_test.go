package dialect

import (
	"errors"
	"strings"
	"testing"

	"github.com/schemabranch/schemabranch/internal/diag"
	"github.com/schemabranch/schemabranch/internal/schema"
)

func mustGet(t *testing.T, name string) Dialect {
	t.Helper()
	d, err := Get(name)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"mysql", "postgres", "sqlite", "MySQL", " sqlite "} {
		if _, err := Get(name); err != nil {
			t.Errorf("Get(%q): %v", name, err)
		}
	}
	if _, err := Get("oracle"); err == nil {
		t.Error("Get(oracle) should fail")
	}
	names := Names()
	if len(names) < 3 {
		t.Errorf("Names() = %v, want at least the three built-ins", names)
	}
}

func TestExpression(t *testing.T) {
	c := &schema.Constraint{
		Kind: schema.ValueRestriction,
		SQL: schema.SQLSet{
			{Dialects: []string{"postgres"}, SQL: "Price >= 0.0::numeric"},
			{Dialects: []string{"all"}, SQL: "Price >= 0.0"},
		},
	}
	if expr, err := Expression(c, "PRICE.Price", mustGet(t, "postgres")); err != nil || expr != "Price >= 0.0::numeric" {
		t.Errorf("postgres expression = %q, %v", expr, err)
	}
	if expr, err := Expression(c, "PRICE.Price", mustGet(t, "mysql")); err != nil || expr != "Price >= 0.0" {
		t.Errorf("mysql falls back to wildcard: %q, %v", expr, err)
	}

	narrow := &schema.Constraint{
		Kind: schema.ValueRestriction,
		SQL:  schema.SQLSet{{Dialects: []string{"postgres"}, SQL: "x > 0"}},
	}
	_, err := Expression(narrow, "T.X", mustGet(t, "sqlite"))
	var ude *diag.UnsupportedDialectError
	if !errors.As(err, &ude) {
		t.Fatalf("err = %v, want UnsupportedDialectError", err)
	}
	if ude.Constraint != "T.X" || ude.Dialect != "sqlite" {
		t.Errorf("error detail = %+v", ude)
	}
}

func TestColumnDDL(t *testing.T) {
	notNull := schema.Constraint{Kind: schema.NotNull}
	tests := []struct {
		name    string
		dialect string
		col     schema.Column
		solePK  bool
		want    string
		wantPK  bool
	}{
		{
			name:    "mysql autoincrement",
			dialect: "mysql",
			col:     schema.Column{Name: "Price_Id", Type: "int", AutoIncrement: true},
			solePK:  true,
			want:    "`Price_Id` int AUTO_INCREMENT",
		},
		{
			name:    "mysql not null with default",
			dialect: "mysql",
			col:     schema.Column{Name: "Qty", Type: "int", Default: "1", Constraints: []schema.Constraint{notNull}},
			want:    "`Qty` int NOT NULL DEFAULT 1",
		},
		{
			name:    "postgres identity",
			dialect: "postgres",
			col:     schema.Column{Name: "Price_Id", Type: "int", AutoIncrement: true},
			solePK:  true,
			want:    `"Price_Id" integer GENERATED BY DEFAULT AS IDENTITY`,
		},
		{
			name:    "sqlite rowid alias consumes the key",
			dialect: "sqlite",
			col:     schema.Column{Name: "Price_Id", Type: "int", AutoIncrement: true},
			solePK:  true,
			want:    `"Price_Id" INTEGER PRIMARY KEY AUTOINCREMENT`,
			wantPK:  true,
		},
		{
			name:    "sqlite plain column",
			dialect: "sqlite",
			col:     schema.Column{Name: "Price", Type: "numeric(10,2)", Constraints: []schema.Constraint{notNull}},
			want:    `"Price" numeric(10,2) NOT NULL`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, pk := mustGet(t, tt.dialect).ColumnDDL(&tt.col, tt.solePK)
			if got != tt.want {
				t.Errorf("ColumnDDL = %q, want %q", got, tt.want)
			}
			if pk != tt.wantPK {
				t.Errorf("consumedPK = %v, want %v", pk, tt.wantPK)
			}
		})
	}
}

func TestCheckVsTriggers(t *testing.T) {
	pg := mustGet(t, "postgres")
	if !pg.SupportsCheck() {
		t.Error("postgres should support CHECK")
	}
	clause := pg.CheckClause("PRICE_Price_chk", "Price >= 0.0")
	if !strings.Contains(clause, "CHECK (Price >= 0.0)") {
		t.Errorf("check clause = %q", clause)
	}

	my := mustGet(t, "mysql")
	if my.SupportsCheck() {
		t.Error("mysql restrictions should go through triggers")
	}
	trgs := my.ValidationTriggers("PRICE", "Price_chk", "Price >= 0.0", []string{"Price_Id", "Price"})
	if len(trgs) != 2 {
		t.Fatalf("got %d trigger statements, want insert and update", len(trgs))
	}
	if !strings.Contains(trgs[0], "BEFORE INSERT") || !strings.Contains(trgs[1], "BEFORE UPDATE") {
		t.Errorf("trigger ops wrong:\n%s\n%s", trgs[0], trgs[1])
	}
	for _, trg := range trgs {
		if !strings.Contains(trg, "NEW.`Price` >= 0.0") {
			t.Errorf("column reference not rewritten: %s", trg)
		}
		if !strings.Contains(trg, "SIGNAL SQLSTATE '45000'") {
			t.Errorf("trigger does not raise: %s", trg)
		}
	}

	lite := mustGet(t, "sqlite")
	trgs = lite.ValidationTriggers("PRICE", "Price_chk", "Price >= 0.0", []string{"Price"})
	for _, trg := range trgs {
		if !strings.Contains(trg, "RAISE(ABORT") {
			t.Errorf("sqlite trigger does not abort: %s", trg)
		}
	}
}

func TestRewriteRowRefs(t *testing.T) {
	quote := func(s string) string { return s }
	tests := []struct {
		name    string
		expr    string
		columns []string
		want    string
	}{
		{
			name:    "simple reference",
			expr:    "Price >= 0.0",
			columns: []string{"Price"},
			want:    "NEW.Price >= 0.0",
		},
		{
			name:    "word boundary respected",
			expr:    "Price >= Min_Price AND Priceless = 0",
			columns: []string{"Price", "Min_Price"},
			want:    "NEW.Price >= NEW.Min_Price AND Priceless = 0",
		},
		{
			name:    "no columns",
			expr:    "1 = 1",
			columns: nil,
			want:    "1 = 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rewriteRowRefs(tt.expr, "NEW", tt.columns, quote); got != tt.want {
				t.Errorf("rewriteRowRefs = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlaceholders(t *testing.T) {
	if got := mustGet(t, "postgres").Placeholder(2); got != "$2" {
		t.Errorf("postgres placeholder = %q, want $2", got)
	}
	if got := mustGet(t, "mysql").Placeholder(2); got != "?" {
		t.Errorf("mysql placeholder = %q, want ?", got)
	}
}
