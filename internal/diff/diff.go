// Package diff compares a branch against its resolved parent and
// classifies every table, column and constraint. Changes without a
// declared migration intent are surfaced as warnings; the diff itself
// never alters what gets emitted, since every branch is a complete
// snapshot.
package diff

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/schemabranch/schemabranch/internal/diag"
	"github.com/schemabranch/schemabranch/internal/schema"
)

// State classifies one element of the comparison.
type State int

const (
	Unchanged State = iota
	Added
	Removed
	Modified
)

func (s State) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Entry is one classified element.
type Entry struct {
	// Element is the dotted path, e.g. "PRICE" or "PRICE.Price".
	Element string
	// Kind is "table", "column" or "constraint".
	Kind   string
	State  State
	Detail string
}

// Result is the classification of a branch against its parent, in
// schema declaration order.
type Result struct {
	Branch  string
	Parent  string
	Entries []Entry
}

// Changed returns the entries that are not Unchanged.
func (r *Result) Changed() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.State != Unchanged {
			out = append(out, e)
		}
	}
	return out
}

// Diff classifies branch against parent. Tables and columns match by
// name, constraints by (kind, name) with unnamed constraints matched
// positionally within their kind.
func Diff(branch, parent *schema.Branch) *Result {
	r := &Result{Branch: branch.ID, Parent: parent.ID}
	for i := range branch.Tables {
		t := &branch.Tables[i]
		pt := parent.Table(t.Name)
		if pt == nil {
			r.add(t.Name, "table", Added, "")
			continue
		}
		r.diffTable(t, pt)
	}
	for i := range parent.Tables {
		if branch.Table(parent.Tables[i].Name) == nil {
			r.add(parent.Tables[i].Name, "table", Removed, "")
		}
	}
	return r
}

func (r *Result) add(element, kind string, s State, detail string) {
	r.Entries = append(r.Entries, Entry{Element: element, Kind: kind, State: s, Detail: detail})
}

func (r *Result) diffTable(t, pt *schema.Table) {
	tableChanged := false
	for i := range t.Columns {
		c := &t.Columns[i]
		element := t.Name + "." + c.Name
		pc := pt.Column(c.Name)
		if pc == nil {
			r.add(element, "column", Added, "")
			tableChanged = true
			continue
		}
		if detail := columnDetail(c, pc); detail != "" {
			r.add(element, "column", Modified, detail)
			tableChanged = true
		} else {
			r.add(element, "column", Unchanged, "")
		}
	}
	for i := range pt.Columns {
		if t.Column(pt.Columns[i].Name) == nil {
			r.add(t.Name+"."+pt.Columns[i].Name, "column", Removed, "")
			tableChanged = true
		}
	}
	if d := constraintSetDetail(t.Constraints, pt.Constraints); d != "" {
		r.add(t.Name, "constraint", Modified, d)
		tableChanged = true
	}
	if tableChanged {
		r.add(t.Name, "table", Modified, "")
	} else {
		r.add(t.Name, "table", Unchanged, "")
	}
}

// columnDetail names what changed about a column, or "" when nothing
// did.
func columnDetail(c, pc *schema.Column) string {
	var parts []string
	if c.Type != pc.Type {
		parts = append(parts, fmt.Sprintf("type %s -> %s", pc.Type, c.Type))
	}
	if c.AutoIncrement != pc.AutoIncrement {
		parts = append(parts, fmt.Sprintf("autoincrement %v -> %v", pc.AutoIncrement, c.AutoIncrement))
	}
	if c.Default != pc.Default {
		parts = append(parts, fmt.Sprintf("default %q -> %q", pc.Default, c.Default))
	}
	if d := constraintSetDetail(c.Constraints, pc.Constraints); d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, "; ")
}

// constraintSetDetail compares two constraint sets. Named constraints
// match by (kind, name); unnamed ones by position within their kind.
func constraintSetDetail(cur, prev []schema.Constraint) string {
	curByKind := groupByKind(cur)
	prevByKind := groupByKind(prev)
	var parts []string
	for _, k := range schema.Kinds {
		a, b := curByKind[k], prevByKind[k]
		switch {
		case len(a) > len(b):
			parts = append(parts, fmt.Sprintf("%s added", k))
		case len(a) < len(b):
			parts = append(parts, fmt.Sprintf("%s removed", k))
		default:
			for i := range a {
				if !sameConstraint(a[i], b[i]) {
					parts = append(parts, fmt.Sprintf("%s changed", k))
					break
				}
			}
		}
	}
	return strings.Join(parts, "; ")
}

func groupByKind(cs []schema.Constraint) map[schema.ConstraintKind][]schema.Constraint {
	out := make(map[schema.ConstraintKind][]schema.Constraint)
	for _, c := range cs {
		out[c.Kind] = append(out[c.Kind], c)
	}
	return out
}

func sameConstraint(a, b schema.Constraint) bool {
	return a.Name == b.Name &&
		reflect.DeepEqual(a.Columns, b.Columns) &&
		reflect.DeepEqual(a.SQL, b.SQL) &&
		a.RefTable == b.RefTable &&
		a.RefColumn == b.RefColumn
}

// ReportUndeclared files a warning for every changed element the branch
// does not declare migration intent for.
func ReportUndeclared(r *Result, branch *schema.Branch, c *diag.Collector) {
	for _, e := range r.Changed() {
		if e.Kind == "table" && e.State == Modified {
			// Covered by the per-column/constraint entries.
			continue
		}
		if branch.DeclaresMigration(e.Element) {
			continue
		}
		msg := fmt.Sprintf("undeclared schema change: %s %s", e.Kind, e.State)
		if e.Detail != "" {
			msg += " (" + e.Detail + ")"
		}
		c.Warningf(r.Branch, e.Element, "%s", msg)
	}
}
