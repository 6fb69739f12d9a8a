package diag

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{
		Branch:   "v2",
		Element:  "PRICE.Price",
		Severity: Warning,
		Err:      errors.New("undeclared schema change"),
	}
	want := "[v2 PRICE.Price] warning: undeclared schema change"
	if got := d.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	runLevel := Diagnostic{Severity: Error, Err: errors.New("boom")}
	if got := runLevel.String(); got != "error: boom" {
		t.Errorf("run-level String() = %q", got)
	}
}

func TestCollectorSeverities(t *testing.T) {
	var c Collector
	c.Warningf("v1", "PRICE", "undeclared schema change")
	if c.BranchFailed("v1") || c.HasFatal() {
		t.Error("warnings must not fail a branch or the run")
	}

	c.Report("v2", "", Error, errors.New("bad kind"))
	if !c.BranchFailed("v2") {
		t.Error("error must fail the branch")
	}
	if c.BranchFailed("v1") {
		t.Error("other branches unaffected")
	}
	if !c.HasFatal() {
		t.Error("error must fail the run")
	}
}

func TestCollectorAllGroupsByBranch(t *testing.T) {
	var c Collector
	c.Report("v2", "", Warning, errors.New("b"))
	c.Report("v1", "", Warning, errors.New("a"))
	c.Report("v2", "", Warning, errors.New("c"))

	var branches []string
	for _, d := range c.All() {
		branches = append(branches, d.Branch)
	}
	want := []string{"v1", "v2", "v2"}
	for i := range want {
		if branches[i] != want[i] {
			t.Fatalf("order = %v, want %v", branches, want)
		}
	}
}

func TestCollectorConcurrent(t *testing.T) {
	var c Collector
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Warningf(fmt.Sprintf("v%d", n%5), "", "note %d", n)
		}(i)
	}
	wg.Wait()
	if got := len(c.All()); got != 50 {
		t.Errorf("recorded %d diagnostics, want 50", got)
	}
}

func TestErrorTypes(t *testing.T) {
	ve := &ValidationError{File: "price.yaml", Element: "PRICE.Price", Reason: "unknown constraint kind"}
	if !strings.Contains(ve.Error(), "price.yaml") || !strings.Contains(ve.Error(), "PRICE.Price") {
		t.Errorf("ValidationError = %q", ve.Error())
	}

	vre := &VersionResolutionError{Kind: Cycle, Branch: "v2", Detail: "loop through v1"}
	if !strings.Contains(vre.Error(), "cycle") || !strings.Contains(vre.Error(), "v2") {
		t.Errorf("VersionResolutionError = %q", vre.Error())
	}

	inner := errors.New("disk full")
	ee := &EmissionError{Target: "ddl", Element: "v1", Err: inner}
	if !errors.Is(ee, inner) {
		t.Error("EmissionError must unwrap")
	}
}
