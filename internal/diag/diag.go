// Package diag defines the diagnostic taxonomy shared by every pipeline
// stage and the per-run collector they report into. All failures are
// branch-scoped: a diagnostic never aborts the run, it is accumulated
// and reported at the end.
package diag

import (
	"fmt"
	"sort"
	"sync"
)

// Severity of a diagnostic. Warning and Note never affect the exit
// status; Error and Fatal exclude the branch from emission.
type Severity int

const (
	Note Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Note:
		return "note"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Diagnostic is one branch-scoped finding.
type Diagnostic struct {
	// Branch is the branch directory name, or "" for run-level findings.
	Branch string
	// Element names the schema element involved, e.g. "PRICE.Price",
	// or the offending file for load problems.
	Element  string
	Severity Severity
	Err      error
}

func (d Diagnostic) String() string {
	loc := d.Branch
	if d.Element != "" {
		if loc != "" {
			loc += " "
		}
		loc += d.Element
	}
	if loc != "" {
		return fmt.Sprintf("[%s] %s: %v", loc, d.Severity, d.Err)
	}
	return fmt.Sprintf("%s: %v", d.Severity, d.Err)
}

// Collector accumulates diagnostics across concurrently running branch
// pipelines. Safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// Add records a diagnostic.
func (c *Collector) Add(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

// Report records a diagnostic built from its parts.
func (c *Collector) Report(branch, element string, sev Severity, err error) {
	c.Add(Diagnostic{Branch: branch, Element: element, Severity: sev, Err: err})
}

// Warningf records a warning with a formatted message.
func (c *Collector) Warningf(branch, element, format string, args ...any) {
	c.Report(branch, element, Warning, fmt.Errorf(format, args...))
}

// All returns the recorded diagnostics, grouped by branch and stable
// within a branch.
func (c *Collector) All() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Branch < out[j].Branch })
	return out
}

// BranchFailed reports whether the branch has any Error or Fatal
// diagnostic, which excludes it from emission.
func (c *Collector) BranchFailed(branch string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.diags {
		if d.Branch == branch && d.Severity >= Error {
			return true
		}
	}
	return false
}

// HasFatal reports whether any diagnostic should make the run exit
// non-zero. Warnings never do.
func (c *Collector) HasFatal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.diags {
		if d.Severity >= Error {
			return true
		}
	}
	return false
}

// ValidationError reports a malformed or inconsistent schema
// definition: unknown constraint kind, duplicate name, malformed
// per-dialect SQL entry.
type ValidationError struct {
	File    string
	Element string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Element, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

// ResolutionKind distinguishes version-resolution failures.
type ResolutionKind int

const (
	Cycle ResolutionKind = iota
	AmbiguousParent
	UnknownParent
)

func (k ResolutionKind) String() string {
	switch k {
	case Cycle:
		return "cycle"
	case AmbiguousParent:
		return "ambiguous-parent"
	case UnknownParent:
		return "unknown-parent"
	}
	return fmt.Sprintf("resolution(%d)", int(k))
}

// VersionResolutionError reports that a branch's parent could not be
// resolved. Fatal for the branch only.
type VersionResolutionError struct {
	Kind   ResolutionKind
	Branch string
	Detail string
}

func (e *VersionResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve parent of %s (%s): %s", e.Branch, e.Kind, e.Detail)
}

// UnsupportedDialectError reports a constraint with no SQL for the
// requested dialect and no wildcard fallback.
type UnsupportedDialectError struct {
	Constraint string
	Dialect    string
}

func (e *UnsupportedDialectError) Error() string {
	return fmt.Sprintf("constraint %s has no SQL for dialect %q", e.Constraint, e.Dialect)
}

// EmissionError reports a target-specific generation failure.
type EmissionError struct {
	Target  string
	Element string
	Err     error
}

func (e *EmissionError) Error() string {
	return fmt.Sprintf("%s emitter failed on %s: %v", e.Target, e.Element, e.Err)
}

func (e *EmissionError) Unwrap() error { return e.Err }
