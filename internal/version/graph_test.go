package version

import (
	"errors"
	"testing"

	"github.com/schemabranch/schemabranch/internal/diag"
	"github.com/schemabranch/schemabranch/internal/schema"
)

func branch(t *testing.T, id string, parent string) *schema.Branch {
	t.Helper()
	key, ok := ParseKey(id, nil)
	if !ok {
		t.Fatalf("branch id %q has no version key", id)
	}
	b := &schema.Branch{ID: id, Key: key}
	if parent != "" {
		b.Manifest = &schema.Manifest{Parent: parent}
	}
	return b
}

func TestResolveOrdering(t *testing.T) {
	tests := []struct {
		name        string
		ids         []string
		wantParents map[string]string
	}{
		{
			name:        "linear chain, numeric order",
			ids:         []string{"v9", "v12", "v1"},
			wantParents: map[string]string{"v9": "v1", "v12": "v9"},
		},
		{
			name:        "dotted keys nest under prefix",
			ids:         []string{"1", "1.1", "1.2", "2"},
			wantParents: map[string]string{"1.1": "1", "1.2": "1.1", "2": "1.2"},
		},
		{
			name:        "suffix names share the ordering",
			ids:         []string{"1_initial", "2_add_audit", "3"},
			wantParents: map[string]string{"2_add_audit": "1_initial", "3": "2_add_audit"},
		},
		{
			name:        "single branch is a root",
			ids:         []string{"v1"},
			wantParents: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var branches []*schema.Branch
			for _, id := range tt.ids {
				branches = append(branches, branch(t, id, ""))
			}
			var c diag.Collector
			g := Resolve(branches, &c)
			if c.HasFatal() {
				t.Fatalf("unexpected diagnostics: %v", c.All())
			}
			for _, id := range tt.ids {
				want := tt.wantParents[id]
				got := ""
				if p := g.Parent(id); p != nil {
					got = p.ID
				}
				if got != want {
					t.Errorf("parent of %s = %q, want %q", id, got, want)
				}
			}
		})
	}
}

func TestResolveOverrideWins(t *testing.T) {
	branches := []*schema.Branch{
		branch(t, "v1", ""),
		branch(t, "v2", ""),
		branch(t, "v3", "v1"), // skips v2 by declaration
	}
	var c diag.Collector
	g := Resolve(branches, &c)
	if p := g.Parent("v3"); p == nil || p.ID != "v1" {
		t.Errorf("parent of v3 = %v, want v1", p)
	}
	if p := g.Parent("v2"); p == nil || p.ID != "v1" {
		t.Errorf("parent of v2 = %v, want v1", p)
	}
}

func TestResolveOverrideByVersionKey(t *testing.T) {
	// The override names a version, not a directory.
	branches := []*schema.Branch{
		branch(t, "1_initial", ""),
		branch(t, "3_rework", "1"),
	}
	var c diag.Collector
	g := Resolve(branches, &c)
	if p := g.Parent("3_rework"); p == nil || p.ID != "1_initial" {
		t.Errorf("parent of 3_rework = %v, want 1_initial", p)
	}
}

func TestResolveUnknownOverride(t *testing.T) {
	branches := []*schema.Branch{
		branch(t, "v1", ""),
		branch(t, "v2", "v9"),
	}
	var c diag.Collector
	g := Resolve(branches, &c)
	if !g.Failed("v2") {
		t.Fatal("v2 should fail resolution")
	}
	wantResolutionError(t, &c, "v2", diag.UnknownParent)
	if g.Failed("v1") {
		t.Error("v1 should be unaffected")
	}
}

func TestResolveCycle(t *testing.T) {
	// Two overrides pointing at each other close a loop; the sibling
	// chain stays intact.
	branches := []*schema.Branch{
		branch(t, "v1", "v2"),
		branch(t, "v2", "v1"),
		branch(t, "v3", ""),
		branch(t, "v4", ""),
	}
	var c diag.Collector
	g := Resolve(branches, &c)
	for _, id := range []string{"v1", "v2"} {
		if !g.Failed(id) {
			t.Errorf("%s should fail resolution", id)
		}
	}
	wantResolutionError(t, &c, "v1", diag.Cycle)
	wantResolutionError(t, &c, "v2", diag.Cycle)
	if g.Failed("v3") || g.Failed("v4") {
		t.Error("branches off the loop should resolve")
	}
	if p := g.Parent("v4"); p == nil || p.ID != "v3" {
		t.Errorf("parent of v4 = %v, want v3", p)
	}
}

func TestResolveAmbiguousParent(t *testing.T) {
	// Two directories carrying the same key below v3.
	branches := []*schema.Branch{
		branch(t, "v1", ""),
		branch(t, "2_first", ""),
		branch(t, "2_second", ""),
		branch(t, "v3", ""),
	}
	var c diag.Collector
	g := Resolve(branches, &c)
	if !g.Failed("v3") {
		t.Fatal("v3 should fail: two candidates share key 2")
	}
	wantResolutionError(t, &c, "v3", diag.AmbiguousParent)
	if g.Failed("v1") {
		t.Error("v1 should be unaffected")
	}
}

func wantResolutionError(t *testing.T, c *diag.Collector, branchID string, kind diag.ResolutionKind) {
	t.Helper()
	for _, d := range c.All() {
		if d.Branch != branchID {
			continue
		}
		var vre *diag.VersionResolutionError
		if errors.As(d.Err, &vre) && vre.Kind == kind {
			return
		}
	}
	t.Errorf("no %s resolution error recorded for %s; got %v", kind, branchID, c.All())
}
