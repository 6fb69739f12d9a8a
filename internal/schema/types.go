package schema

import (
	"fmt"
	"strings"
)

// ConstraintKind identifies one of the recognized constraint kinds.
// The set is closed: unknown kinds are rejected when a branch is loaded.
type ConstraintKind string

const (
	PrimaryKey       ConstraintKind = "primarykey"
	NotNull          ConstraintKind = "notnull"
	UniqueIndex      ConstraintKind = "uniqueindex"
	ValueRestriction ConstraintKind = "valuerestriction"
	ForeignKey       ConstraintKind = "foreignkey"
)

// Kinds lists every recognized constraint kind.
var Kinds = []ConstraintKind{
	PrimaryKey, NotNull, UniqueIndex, ValueRestriction, ForeignKey,
}

// NormalizeKey lowercases a declaration key and strips spacing and
// separator characters, so "primary key", "primaryKey" and "primary_key"
// all map to the same kind.
func NormalizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case ' ', '\t', '\r', '\n', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// ParseKind resolves a declared kind string against the closed kind set.
func ParseKind(s string) (ConstraintKind, error) {
	k := ConstraintKind(NormalizeKey(s))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown constraint kind %q", s)
}

// SQLEntry is one dialect-specific SQL fragment of a constraint.
type SQLEntry struct {
	Dialects []string
	SQL      string
}

// SQLSet maps dialect identifiers to SQL expressions, in declaration
// order. "all" (or "any") acts as the wildcard fallback dialect.
type SQLSet []SQLEntry

// ForDialect returns the expression for the given dialect: an entry
// naming the dialect exactly wins, else the first wildcard entry.
func (s SQLSet) ForDialect(dialect string) (string, bool) {
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	for _, e := range s {
		for _, d := range e.Dialects {
			if strings.ToLower(strings.TrimSpace(d)) == dialect {
				return e.SQL, true
			}
		}
	}
	for _, e := range s {
		for _, d := range e.Dialects {
			switch strings.ToLower(strings.TrimSpace(d)) {
			case "all", "any":
				return e.SQL, true
			}
		}
	}
	return "", false
}

// Constraint is a limitation on a column or table. Column-level
// constraints leave Columns empty; table-level constraints name the
// columns they cover.
type Constraint struct {
	Kind    ConstraintKind
	Name    string
	Columns []string
	SQL     SQLSet

	// Foreign key target, set only for ForeignKey constraints.
	RefTable  string
	RefColumn string
}

// ChangeNote is a declared migration intent attached to a table or
// column definition. It records that the listed elements were changed
// deliberately between this branch and its parent.
type ChangeNote struct {
	Type    string
	Affects []string
	Comment string
}

// Column is a table column. Constraint order is declaration order and
// is preserved through generation.
type Column struct {
	Name          string
	Type          string
	AutoIncrement bool
	Default       string
	Comment       string
	Constraints   []Constraint
	Changes       []ChangeNote
}

// HasKind reports whether the column declares a constraint of the kind.
func (c *Column) HasKind(k ConstraintKind) bool {
	for i := range c.Constraints {
		if c.Constraints[i].Kind == k {
			return true
		}
	}
	return false
}

// ConstraintsOf returns the column's constraints of the given kind, in
// declaration order.
func (c *Column) ConstraintsOf(k ConstraintKind) []*Constraint {
	var out []*Constraint
	for i := range c.Constraints {
		if c.Constraints[i].Kind == k {
			out = append(out, &c.Constraints[i])
		}
	}
	return out
}

// Table is a named table with ordered columns and optional table-level
// constraints spanning several columns.
type Table struct {
	Name        string
	Columns     []Column
	Constraints []Constraint
	Changes     []ChangeNote
	SourceFile  string
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// PrimaryKeyColumns returns the primary key column names, combining
// column-level and table-level primary-key constraints.
func (t *Table) PrimaryKeyColumns() []string {
	var out []string
	for i := range t.Columns {
		if t.Columns[i].HasKind(PrimaryKey) {
			out = append(out, t.Columns[i].Name)
		}
	}
	for i := range t.Constraints {
		if t.Constraints[i].Kind == PrimaryKey {
			out = append(out, t.Constraints[i].Columns...)
		}
	}
	return out
}

// UniqueIndexes returns one column-name set per unique index declared
// on the table, column-level singletons first.
func (t *Table) UniqueIndexes() [][]string {
	var out [][]string
	for i := range t.Columns {
		if t.Columns[i].HasKind(UniqueIndex) {
			out = append(out, []string{t.Columns[i].Name})
		}
	}
	for i := range t.Constraints {
		if t.Constraints[i].Kind == UniqueIndex && len(t.Constraints[i].Columns) > 0 {
			out = append(out, t.Constraints[i].Columns)
		}
	}
	return out
}

// VersionTable holds the advisory version-bookkeeping SQL templates
// from a manifest. The engine records but never executes them.
type VersionTable struct {
	Query  string
	Insert string
}

// Manifest is the optional per-branch override record.
type Manifest struct {
	Parent       string
	Version      string
	Pattern      string
	VersionTable VersionTable
	Migrations   []string
}

// Branch is one complete, self-contained copy of the schema, loaded
// from one directory. Immutable after load.
type Branch struct {
	// ID is the branch directory name.
	ID string
	// Dir is the source directory the branch was loaded from.
	Dir string
	// Key is the ordered numeric version key derived from ID (or from
	// the manifest version override).
	Key []int
	// Manifest is nil when the branch directory has no manifest file.
	Manifest *Manifest
	Tables   []Table
}

// Table returns the named table, or nil.
func (b *Branch) Table(name string) *Table {
	for i := range b.Tables {
		if b.Tables[i].Name == name {
			return &b.Tables[i]
		}
	}
	return nil
}

// DeclaresMigration reports whether the branch declares migration
// intent covering the element path ("TABLE", "TABLE.Column" or a
// constraint path below a column). Intent comes from the manifest
// migrations list or from change notes on the table or column.
func (b *Branch) DeclaresMigration(element string) bool {
	table, rest := splitElement(element)
	if b.Manifest != nil {
		for _, m := range b.Manifest.Migrations {
			if m == element || m == table {
				return true
			}
		}
	}
	t := b.Table(table)
	if t == nil {
		return false
	}
	if rest == "" {
		return len(t.Changes) > 0
	}
	if noteCovers(t.Changes, rest) {
		return true
	}
	col, _ := splitElement(rest)
	if c := t.Column(col); c != nil && len(c.Changes) > 0 {
		return true
	}
	return false
}

func splitElement(element string) (head, rest string) {
	if i := strings.IndexByte(element, '.'); i >= 0 {
		return element[:i], element[i+1:]
	}
	return element, ""
}

func noteCovers(notes []ChangeNote, name string) bool {
	target, _ := splitElement(name)
	for _, n := range notes {
		for _, a := range n.Affects {
			if a == target || a == name {
				return true
			}
		}
	}
	return false
}
