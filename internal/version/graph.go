package version

import (
	"fmt"
	"sort"

	"github.com/schemabranch/schemabranch/internal/diag"
	"github.com/schemabranch/schemabranch/internal/schema"
)

// Graph holds the resolved parent edge of every branch. In the default
// case it is a tree: one parent per branch, roots with none. Branches
// whose resolution failed carry no edge and are marked failed.
type Graph struct {
	branches map[string]*schema.Branch
	parents  map[string]string
	failed   map[string]bool
}

// Parent returns the resolved parent branch, or nil for roots and for
// branches whose resolution failed.
func (g *Graph) Parent(id string) *schema.Branch {
	pid, ok := g.parents[id]
	if !ok {
		return nil
	}
	return g.branches[pid]
}

// Failed reports whether parent resolution failed for the branch.
func (g *Graph) Failed(id string) bool { return g.failed[id] }

// Resolve computes the parent of every branch and validates the result
// to be acyclic. Failures (cycle, ambiguous parent, unknown override
// target) are reported to the collector and are fatal for the affected
// branch only; unrelated branches resolve independently.
func Resolve(branches []*schema.Branch, c *diag.Collector) *Graph {
	g := &Graph{
		branches: make(map[string]*schema.Branch, len(branches)),
		parents:  make(map[string]string, len(branches)),
		failed:   make(map[string]bool),
	}
	for _, b := range branches {
		g.branches[b.ID] = b
	}

	// Keys sorted ascending give every branch its ordering predecessor:
	// the greatest key strictly below its own. This covers both the
	// next-lower-final-segment case and the fall-through to the highest
	// key under the previous parent segment.
	sorted := make([]*schema.Branch, len(branches))
	copy(sorted, branches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Compare(sorted[i].Key, sorted[j].Key) < 0
	})

	for _, b := range branches {
		if b.Manifest != nil && b.Manifest.Parent != "" {
			// An explicit override wins outright.
			pid, err := g.lookup(b.Manifest.Parent)
			if err != nil {
				g.fail(b.ID, c, &diag.VersionResolutionError{
					Kind: diag.UnknownParent, Branch: b.ID, Detail: err.Error(),
				})
				continue
			}
			g.parents[b.ID] = pid
			continue
		}
		pid, err := predecessor(sorted, b)
		if err != nil {
			g.fail(b.ID, c, err)
			continue
		}
		if pid != "" {
			g.parents[b.ID] = pid
		}
	}

	g.breakCycles(c)
	return g
}

// lookup resolves an override target: exact branch id first, then a
// version-key match ("1.2" finds the branch whose key is [1 2]).
func (g *Graph) lookup(target string) (string, error) {
	if _, ok := g.branches[target]; ok {
		return target, nil
	}
	key, ok := ParseKey(target, nil)
	if !ok {
		return "", fmt.Errorf("parent %q is not a known branch", target)
	}
	var found string
	for id, b := range g.branches {
		if Compare(b.Key, key) == 0 {
			if found != "" {
				return "", fmt.Errorf("parent %q matches both %s and %s", target, found, id)
			}
			found = id
		}
	}
	if found == "" {
		return "", fmt.Errorf("parent %q is not a known branch", target)
	}
	return found, nil
}

// predecessor finds the branch with the greatest key strictly below
// b's key, reporting ambiguity when two candidates share that key.
func predecessor(sorted []*schema.Branch, b *schema.Branch) (string, error) {
	var best *schema.Branch
	tied := false
	for _, cand := range sorted {
		if cand.ID == b.ID {
			continue
		}
		if Compare(cand.Key, b.Key) >= 0 {
			break
		}
		switch {
		case best == nil || Compare(cand.Key, best.Key) > 0:
			best, tied = cand, false
		case Compare(cand.Key, best.Key) == 0:
			tied = true
		}
	}
	if best == nil {
		return "", nil
	}
	if tied {
		return "", &diag.VersionResolutionError{
			Kind:   diag.AmbiguousParent,
			Branch: b.ID,
			Detail: fmt.Sprintf("multiple branches share the next-lower key %s", Format(best.Key)),
		}
	}
	return best.ID, nil
}

// breakCycles walks the parent edges and drops every branch on a loop.
// Ordering-derived edges always descend, so only manifest overrides can
// close a cycle.
func (g *Graph) breakCycles(c *diag.Collector) {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	state := make(map[string]int, len(g.branches))

	ids := make([]string, 0, len(g.branches))
	for id := range g.branches {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if state[id] != white {
			continue
		}
		var path []string
		cur := id
		for {
			state[cur] = grey
			path = append(path, cur)
			next, ok := g.parents[cur]
			if !ok || state[next] == black {
				break
			}
			if state[next] == grey {
				// Every branch from next to the end of path is on the loop.
				start := 0
				for i, p := range path {
					if p == next {
						start = i
						break
					}
				}
				for _, p := range path[start:] {
					g.fail(p, c, &diag.VersionResolutionError{
						Kind:   diag.Cycle,
						Branch: p,
						Detail: fmt.Sprintf("parent overrides form a loop through %s", next),
					})
				}
				break
			}
			cur = next
		}
		for _, p := range path {
			state[p] = black
		}
	}
}

func (g *Graph) fail(id string, c *diag.Collector, err error) {
	if g.failed[id] {
		return
	}
	g.failed[id] = true
	delete(g.parents, id)
	c.Report(id, "", diag.Error, err)
}
