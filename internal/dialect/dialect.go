// Package dialect translates abstract schema constraints into
// engine-specific SQL. One Dialect value per target engine; new engines
// register themselves and require no changes elsewhere.
package dialect

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/schemabranch/schemabranch/internal/diag"
	"github.com/schemabranch/schemabranch/internal/schema"
)

// Dialect renders the engine-specific parts of DDL generation. All
// methods are pure; a Dialect holds no connection or session state.
type Dialect interface {
	// Name is the identifier matched against SQLSet dialect lists.
	Name() string
	// Quote quotes an identifier.
	Quote(ident string) string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder(n int) string
	// ColumnDDL renders one column clause of CREATE TABLE. solePK is
	// true when the column is the table's only primary-key column;
	// consumedPK reports that the clause already declares the key, so
	// the emitter must not add a separate PRIMARY KEY clause.
	ColumnDDL(col *schema.Column, solePK bool) (ddl string, consumedPK bool)
	// SupportsCheck reports whether value restrictions become CHECK
	// constraints; when false they become validation triggers.
	SupportsCheck() bool
	// CheckClause renders a named CHECK constraint clause.
	CheckClause(name, expr string) string
	// ValidationTriggers renders the statements enforcing expr on
	// insert and update of table. columns lists the table's column
	// names for row-reference rewriting.
	ValidationTriggers(table, name, expr string, columns []string) []string
	// SupportsLastInsertID reports whether the driver returns
	// LastInsertId for autoincrement keys.
	SupportsLastInsertID() bool
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Dialect)
)

// Register adds a dialect under its lowercased name, replacing any
// previous registration.
func Register(d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(d.Name())] = d
}

// Get returns the named dialect.
func Get(name string) (Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q (have %s)", name, strings.Join(names(), ", "))
	}
	return d, nil
}

// Names lists the registered dialects, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return names()
}

func names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Expression resolves a constraint's SQL for the dialect: an entry
// naming the dialect exactly, else the "all" wildcard.
func Expression(c *schema.Constraint, element string, d Dialect) (string, error) {
	if expr, ok := c.SQL.ForDialect(d.Name()); ok {
		return expr, nil
	}
	return "", &diag.UnsupportedDialectError{Constraint: element, Dialect: d.Name()}
}

// rewriteRowRefs prefixes every bare column reference in expr with the
// trigger row qualifier, e.g. "Price >= 0.0" -> "NEW.Price >= 0.0".
// Expressions are assumed not to embed column names inside string
// literals.
func rewriteRowRefs(expr, qualifier string, columns []string, quote func(string) string) string {
	if len(columns) == 0 {
		return expr
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = regexp.QuoteMeta(c)
	}
	re := regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	return re.ReplaceAllStringFunc(expr, func(m string) string {
		return qualifier + "." + quote(m)
	})
}

// columnBase renders the dialect-independent core of a column clause.
func columnBase(quote func(string) string, col *schema.Column, typ string) string {
	var b strings.Builder
	b.WriteString(quote(col.Name))
	b.WriteString(" ")
	b.WriteString(typ)
	if col.HasKind(schema.NotNull) {
		b.WriteString(" NOT NULL")
	}
	if col.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(col.Default)
	}
	return b.String()
}
