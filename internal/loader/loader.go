// Package loader reads branch directories into the schema model. Every
// subdirectory of the root is one branch; inside a branch, every
// .yaml/.yml file except the manifest is a table-definition file.
//
// Mapping keys are normalised the same way constraint kinds are, so
// "autoIncrement", "auto_increment" and "AutoIncrement" all address the
// same field.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/schemabranch/schemabranch/internal/diag"
	"github.com/schemabranch/schemabranch/internal/schema"
	"github.com/schemabranch/schemabranch/internal/version"
)

// ManifestFile is the reserved per-branch manifest name.
const ManifestFile = "_manifest.yaml"

// Loader reads branches and reports definition problems to a collector.
// Validation problems are branch-scoped Error diagnostics; only I/O and
// syntax-level failures come back as returned errors.
type Loader struct {
	diags *diag.Collector
}

func New(c *diag.Collector) *Loader {
	return &Loader{diags: c}
}

// LoadRoot loads every branch directory under root, sorted by version
// key. Directories whose names carry no version key (and whose manifest
// declares none) are skipped with a Note.
func (l *Loader) LoadRoot(root string) ([]*schema.Branch, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading schema root: %w", err)
	}
	var branches []*schema.Branch
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		b, err := l.LoadBranch(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		if b != nil {
			branches = append(branches, b)
		}
	}
	sort.SliceStable(branches, func(i, j int) bool {
		return version.Compare(branches[i].Key, branches[j].Key) < 0
	})
	return branches, nil
}

// LoadBranch loads one branch directory. Returns nil (no error) when
// the directory does not qualify as a branch.
func (l *Loader) LoadBranch(dir string) (*schema.Branch, error) {
	id := filepath.Base(dir)
	b := &schema.Branch{ID: id, Dir: dir}

	manifestPath := filepath.Join(dir, ManifestFile)
	if data, err := os.ReadFile(manifestPath); err == nil {
		m, err := l.parseManifest(id, ManifestFile, data)
		if err != nil {
			return nil, err
		}
		b.Manifest = m
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading manifest of %s: %w", id, err)
	}

	if !l.resolveKey(b) {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading branch %s: %w", id, err)
	}
	seen := make(map[string]string) // table name -> defining file
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == ManifestFile || strings.HasPrefix(name, ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s/%s: %w", id, name, err)
		}
		tables, err := l.parseDefinition(id, name, data)
		if err != nil {
			return nil, err
		}
		for _, t := range tables {
			if prev, dup := seen[t.Name]; dup {
				l.invalid(id, name, t.Name, fmt.Sprintf("table already defined in %s", prev))
				continue
			}
			seen[t.Name] = name
			b.Tables = append(b.Tables, t)
		}
	}
	return b, nil
}

// resolveKey derives the branch version key from the manifest version
// override or the directory name, honouring a manifest pattern.
func (l *Loader) resolveKey(b *schema.Branch) bool {
	pattern := version.DefaultPattern
	if b.Manifest != nil && b.Manifest.Pattern != "" {
		p, err := version.CompilePattern(b.Manifest.Pattern)
		if err != nil {
			l.diags.Report(b.ID, ManifestFile, diag.Error, err)
			return false
		}
		pattern = p
	}
	name := b.ID
	if b.Manifest != nil && b.Manifest.Version != "" {
		name = b.Manifest.Version
	}
	key, ok := version.ParseKey(name, pattern)
	if !ok {
		l.diags.Report(b.ID, "", diag.Note,
			fmt.Errorf("directory %q carries no version key, skipped", b.ID))
		return false
	}
	b.Key = key
	return true
}

func (l *Loader) invalid(branch, file, element, reason string) {
	l.diags.Report(branch, element, diag.Error,
		&diag.ValidationError{File: file, Element: element, Reason: reason})
}

// ---- YAML walking ----

// entry is one mapping pair with its key normalised.
type entry struct {
	key string
	raw string
	val *yaml.Node
}

func docRoot(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	return doc.Content[0], nil
}

func mapping(n *yaml.Node) ([]entry, bool) {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, false
	}
	out := make([]entry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, entry{
			key: schema.NormalizeKey(n.Content[i].Value),
			raw: n.Content[i].Value,
			val: n.Content[i+1],
		})
	}
	return out, true
}

func sequence(n *yaml.Node) []*yaml.Node {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.SequenceNode {
		return n.Content
	}
	return []*yaml.Node{n}
}

func scalarString(n *yaml.Node) (string, bool) {
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.Value, true
}

func scalarBool(n *yaml.Node) (bool, bool) {
	var v bool
	if n == nil || n.Decode(&v) != nil {
		return false, false
	}
	return v, true
}

// stringList accepts a scalar or a sequence of scalars.
func stringList(n *yaml.Node) []string {
	var out []string
	for _, item := range sequence(n) {
		if s, ok := scalarString(item); ok {
			out = append(out, s)
		}
	}
	return out
}

// ---- manifest ----

func (l *Loader) parseManifest(branch, file string, data []byte) (*schema.Manifest, error) {
	root, err := docRoot(data)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", branch, file, err)
	}
	m := &schema.Manifest{}
	entries, ok := mapping(root)
	if !ok {
		if root != nil {
			l.invalid(branch, file, "", "manifest must be a mapping")
		}
		return m, nil
	}
	for _, e := range entries {
		switch e.key {
		case "parent":
			m.Parent, _ = scalarString(e.val)
		case "version":
			m.Version, _ = scalarString(e.val)
		case "pattern":
			m.Pattern, _ = scalarString(e.val)
		case "migrations":
			m.Migrations = stringList(e.val)
		case "versiontable":
			vt, _ := mapping(e.val)
			for _, f := range vt {
				switch f.key {
				case "query":
					m.VersionTable.Query, _ = scalarString(f.val)
				case "insert":
					m.VersionTable.Insert, _ = scalarString(f.val)
				}
			}
		default:
			l.diags.Warningf(branch, file, "unrecognized manifest key %q", e.raw)
		}
	}
	return m, nil
}

// ---- definition files ----

func (l *Loader) parseDefinition(branch, file string, data []byte) ([]schema.Table, error) {
	root, err := docRoot(data)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", branch, file, err)
	}
	entries, ok := mapping(root)
	if !ok {
		if root != nil {
			l.invalid(branch, file, "", "definition file must be a mapping")
		}
		return nil, nil
	}
	var tables []schema.Table
	for _, e := range entries {
		switch e.key {
		case "table":
			if t, ok := l.parseTable(branch, file, e.val); ok {
				tables = append(tables, t)
			}
		case "tables":
			for _, tn := range sequence(e.val) {
				if t, ok := l.parseTable(branch, file, tn); ok {
					tables = append(tables, t)
				}
			}
		default:
			l.diags.Warningf(branch, file, "unrecognized top-level key %q", e.raw)
		}
	}
	return tables, nil
}

func (l *Loader) parseTable(branch, file string, n *yaml.Node) (schema.Table, bool) {
	t := schema.Table{SourceFile: file}
	entries, ok := mapping(n)
	if !ok {
		l.invalid(branch, file, "", "table definition must be a mapping")
		return t, false
	}
	for _, e := range entries {
		switch e.key {
		case "name":
			t.Name, _ = scalarString(e.val)
		case "columns":
			seenCols := make(map[string]bool)
			for _, cn := range sequence(e.val) {
				col, ok := l.parseColumn(branch, file, &t, cn)
				if !ok {
					continue
				}
				if seenCols[col.Name] {
					l.invalid(branch, file, t.Name+"."+col.Name, "duplicate column name")
					continue
				}
				seenCols[col.Name] = true
				t.Columns = append(t.Columns, col)
			}
		case "constraints":
			for _, cn := range sequence(e.val) {
				if c, ok := l.parseConstraint(branch, file, t.Name, cn); ok {
					t.Constraints = append(t.Constraints, c)
				}
			}
		case "changes":
			t.Changes = parseChanges(e.val)
		}
	}
	if t.Name == "" {
		l.invalid(branch, file, "", "table definition has no name")
		return t, false
	}
	return t, true
}

func (l *Loader) parseColumn(branch, file string, t *schema.Table, n *yaml.Node) (schema.Column, bool) {
	var col schema.Column
	entries, ok := mapping(n)
	if !ok {
		l.invalid(branch, file, t.Name, "column definition must be a mapping")
		return col, false
	}
	for _, e := range entries {
		switch e.key {
		case "name":
			col.Name, _ = scalarString(e.val)
		case "type":
			col.Type, _ = scalarString(e.val)
		case "autoincrement":
			col.AutoIncrement, _ = scalarBool(e.val)
		case "default", "defaultvalue":
			col.Default, _ = scalarString(e.val)
		case "comment":
			col.Comment, _ = scalarString(e.val)
		case "constraints":
			element := t.Name + "." + col.Name
			for _, cn := range sequence(e.val) {
				if c, ok := l.parseConstraint(branch, file, element, cn); ok {
					col.Constraints = append(col.Constraints, c)
				}
			}
		case "changes":
			col.Changes = parseChanges(e.val)
		}
	}
	if col.Name == "" {
		l.invalid(branch, file, t.Name, "column definition has no name")
		return col, false
	}
	if col.Type == "" {
		l.invalid(branch, file, t.Name+"."+col.Name, "column has no type")
		return col, false
	}
	return col, true
}

func (l *Loader) parseConstraint(branch, file, element string, n *yaml.Node) (schema.Constraint, bool) {
	var c schema.Constraint
	entries, ok := mapping(n)
	if !ok {
		l.invalid(branch, file, element, "constraint must be a mapping")
		return c, false
	}
	var kindStr string
	for _, e := range entries {
		switch e.key {
		case "kind", "type":
			kindStr, _ = scalarString(e.val)
		case "name":
			c.Name, _ = scalarString(e.val)
		case "columns":
			c.Columns = stringList(e.val)
		case "sql":
			// Shorthand: one expression for every dialect.
			if s, ok := scalarString(e.val); ok {
				c.SQL = append(c.SQL, schema.SQLEntry{Dialects: []string{"all"}, SQL: s})
			}
		case "dialects", "platforms":
			for _, dn := range sequence(e.val) {
				if se, ok := l.parseSQLEntry(branch, file, element, dn); ok {
					c.SQL = append(c.SQL, se)
				}
			}
		case "table":
			c.RefTable, _ = scalarString(e.val)
		case "column":
			c.RefColumn, _ = scalarString(e.val)
		}
	}
	kind, err := schema.ParseKind(kindStr)
	if err != nil {
		l.diags.Report(branch, element, diag.Error,
			&diag.ValidationError{File: file, Element: element, Reason: err.Error()})
		return c, false
	}
	c.Kind = kind
	switch kind {
	case schema.ValueRestriction:
		if len(c.SQL) == 0 {
			l.invalid(branch, file, element, "value restriction has no sql")
			return c, false
		}
	case schema.ForeignKey:
		if c.RefTable == "" || c.RefColumn == "" {
			l.invalid(branch, file, element, "foreign key must name table and column")
			return c, false
		}
	}
	return c, true
}

// parseSQLEntry reads one {platforms, sql} entry of a dialects list.
func (l *Loader) parseSQLEntry(branch, file, element string, n *yaml.Node) (schema.SQLEntry, bool) {
	var se schema.SQLEntry
	entries, ok := mapping(n)
	if !ok {
		l.invalid(branch, file, element, "dialect entry must be a mapping")
		return se, false
	}
	for _, e := range entries {
		switch e.key {
		case "platforms", "dialects", "platform", "dialect":
			se.Dialects = stringList(e.val)
		case "sql":
			se.SQL, _ = scalarString(e.val)
		}
	}
	if se.SQL == "" {
		l.invalid(branch, file, element, "dialect entry has no sql")
		return se, false
	}
	if len(se.Dialects) == 0 {
		se.Dialects = []string{"all"}
	}
	return se, true
}

func parseChanges(n *yaml.Node) []schema.ChangeNote {
	var out []schema.ChangeNote
	for _, cn := range sequence(n) {
		entries, ok := mapping(cn)
		if !ok {
			continue
		}
		var note schema.ChangeNote
		for _, e := range entries {
			switch e.key {
			case "type", "change":
				note.Type, _ = scalarString(e.val)
			case "affects":
				note.Affects = stringList(e.val)
			case "comment":
				note.Comment, _ = scalarString(e.val)
			}
		}
		out = append(out, note)
	}
	return out
}
