// Package schemabranch loads branch-versioned schema definitions and
// generates per-branch database artifacts.
//
// A schema package is a directory of branches: one subdirectory per
// release, each holding a complete, self-contained copy of the schema
// as per-table YAML files plus an optional _manifest.yaml. Branch
// ordering comes from Dewey-style numeric keys in the directory names
// ("v1", "v1.2", "3_add_audit"); a manifest can override the parent,
// the version key, or the key-extraction pattern.
//
// # Quick Start
//
//	report, err := schemabranch.Generate(context.Background(), schemabranch.Options{
//		Root:    "db/schema",
//		OutDir:  "gen",
//		Dialect: "mysql",
//	})
//
// Generate resolves the parent of every branch, diffs each branch
// against its parent to surface undeclared schema changes, and writes
// per-branch outputs: a full-snapshot DDL script and a Go data-access
// package. One branch's failure never blocks its siblings; everything
// the run found is collected in the returned Report.
package schemabranch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/schemabranch/schemabranch/internal/diag"
	"github.com/schemabranch/schemabranch/internal/dialect"
	"github.com/schemabranch/schemabranch/internal/diff"
	"github.com/schemabranch/schemabranch/internal/emit"
	"github.com/schemabranch/schemabranch/internal/loader"
	"github.com/schemabranch/schemabranch/internal/schema"
	"github.com/schemabranch/schemabranch/internal/version"
)

// Target identifiers accepted in Options.Targets.
const (
	TargetDDL = "ddl"
	TargetGo  = "go"
)

// Options configures a generation run.
//
// All fields but Root and OutDir are optional. If not specified:
//   - Dialect: defaults to "mysql"
//   - Targets: defaults to both "ddl" and "go"
//   - Branches: nil emits every branch that loads and resolves
type Options struct {
	// Root is the schema package directory; each subdirectory with a
	// version key is one branch.
	Root string

	// OutDir is the output root. Each branch writes under
	// OutDir/<branch>/.
	OutDir string

	// Dialect selects the target engine: "mysql", "postgres" or
	// "sqlite". Defaults to "mysql".
	Dialect string

	// Targets selects what to emit: "ddl", "go". Empty means both.
	Targets []string

	// Branches restricts emission to the named branch directories.
	// Parent resolution and diffing still see every branch.
	Branches []string
}

// Report is the outcome of a generation run.
type Report struct {
	// Emitted lists the branches whose outputs were written.
	Emitted []string
	// Skipped lists the branches excluded by errors.
	Skipped []string
	// Diagnostics holds every finding of the run, grouped by branch.
	Diagnostics []diag.Diagnostic
}

// Failed reports whether any branch had an Error or Fatal diagnostic.
func (r *Report) Failed() bool {
	for _, d := range r.Diagnostics {
		if d.Severity >= diag.Error {
			return true
		}
	}
	return false
}

// Load reads every branch under root without generating anything.
// Validation problems are reported through the collector.
func Load(root string, c *diag.Collector) ([]*schema.Branch, error) {
	return loader.New(c).LoadRoot(root)
}

// Generate runs the full pipeline: load, resolve the version graph,
// diff each branch against its parent, and emit the selected targets.
// The returned error covers run-level failures only (bad options,
// unreadable root); per-branch problems land in Report.Diagnostics.
func Generate(ctx context.Context, opts Options) (*Report, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("options: Root is required")
	}
	if opts.OutDir == "" {
		return nil, fmt.Errorf("options: OutDir is required")
	}
	dialectName := opts.Dialect
	if dialectName == "" {
		dialectName = "mysql"
	}
	d, err := dialect.Get(dialectName)
	if err != nil {
		return nil, err
	}
	emitters, err := buildEmitters(opts.Targets, opts.OutDir, d)
	if err != nil {
		return nil, err
	}

	var c diag.Collector
	branches, err := Load(opts.Root, &c)
	if err != nil {
		return nil, err
	}

	// The graph must be complete before any branch pipeline runs: a
	// branch's diff needs its resolved parent, and filters must not
	// change anyone's ancestry.
	graph := version.Resolve(branches, &c)

	selected, err := filterBranches(branches, opts.Branches)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	g, ctx := errgroup.WithContext(ctx)
	results := make([]bool, len(selected))
	for i, b := range selected {
		i, b := i, b
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = runBranch(b, graph, emitters, &c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, b := range selected {
		if results[i] {
			report.Emitted = append(report.Emitted, b.ID)
		} else {
			report.Skipped = append(report.Skipped, b.ID)
		}
	}
	sort.Strings(report.Emitted)
	sort.Strings(report.Skipped)
	report.Diagnostics = c.All()
	return report, nil
}

// runBranch diffs and emits one branch. Reports whether outputs were
// written.
func runBranch(b *schema.Branch, graph *version.Graph, emitters []emit.Emitter, c *diag.Collector) bool {
	if graph.Failed(b.ID) || c.BranchFailed(b.ID) {
		return false
	}
	if parent := graph.Parent(b.ID); parent != nil && !graph.Failed(parent.ID) && !c.BranchFailed(parent.ID) {
		diff.ReportUndeclared(diff.Diff(b, parent), b, c)
	}
	ok := true
	for _, e := range emitters {
		if err := e.Emit(b); err != nil {
			c.Report(b.ID, "", diag.Error, err)
			ok = false
		}
	}
	return ok
}

func buildEmitters(targets []string, outDir string, d dialect.Dialect) ([]emit.Emitter, error) {
	if len(targets) == 0 {
		targets = []string{TargetDDL, TargetGo}
	}
	var out []emit.Emitter
	for _, t := range targets {
		switch strings.ToLower(strings.TrimSpace(t)) {
		case TargetDDL:
			out = append(out, emit.NewDDLEmitter(outDir, d))
		case TargetGo:
			out = append(out, emit.NewGoDAOEmitter(outDir, d))
		default:
			return nil, fmt.Errorf("unknown target %q (have %s, %s)", t, TargetDDL, TargetGo)
		}
	}
	return out, nil
}

func filterBranches(branches []*schema.Branch, only []string) ([]*schema.Branch, error) {
	if len(only) == 0 {
		return branches, nil
	}
	byID := make(map[string]*schema.Branch, len(branches))
	for _, b := range branches {
		byID[b.ID] = b
	}
	var out []*schema.Branch
	for _, id := range only {
		b, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown branch %q", id)
		}
		out = append(out, b)
	}
	return out, nil
}
