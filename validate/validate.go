// Package validate implements structural and referential checks against
// parsed archive and asset data, independent of any one container format.
package validate

import "fmt"

// Severity classifies a single validation finding.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Finding is one structural or referential check result.
type Finding struct {
	Severity Severity
	Field    string
	Detail   string
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Field, f.Detail)
}

// Report collects findings bucketed by severity, plus a Strict flag that
// was in effect when they were recorded.
type Report struct {
	Strict   bool
	Errors   []Finding
	Warnings []Finding
	Info     []Finding
}

// OK reports whether the report contains no errors.
func (r *Report) OK() bool { return len(r.Errors) == 0 }

func (r *Report) record(sev Severity, field, detail string) {
	f := Finding{Severity: sev, Field: field, Detail: detail}
	switch sev {
	case SeverityError:
		r.Errors = append(r.Errors, f)
	case SeverityWarning:
		if r.Strict {
			f.Severity = SeverityError
			r.Errors = append(r.Errors, f)
			return
		}
		r.Warnings = append(r.Warnings, f)
	default:
		r.Info = append(r.Info, f)
	}
}

// Checker accumulates findings against a Report as a caller walks a
// parsed structure field by field.
type Checker struct {
	Report *Report
}

// NewChecker starts a fresh report; strict promotes warnings to errors as
// they're recorded.
func NewChecker(strict bool) *Checker {
	return &Checker{Report: &Report{Strict: strict}}
}

// Errorf records a structural violation (always fatal to OK()).
func (c *Checker) Errorf(field, format string, args ...any) {
	c.Report.record(SeverityError, field, fmt.Sprintf(format, args...))
}

// Warnf records a condition that's suspicious but not necessarily wrong;
// promoted to an error under Strict.
func (c *Checker) Warnf(field, format string, args ...any) {
	c.Report.record(SeverityWarning, field, fmt.Sprintf(format, args...))
}

// Infof records a purely informational observation.
func (c *Checker) Infof(field, format string, args ...any) {
	c.Report.record(SeverityInfo, field, fmt.Sprintf(format, args...))
}

// RequireMagic checks an exact expected magic value.
func (c *Checker) RequireMagic(field string, got, want [4]byte) {
	if got != want {
		c.Errorf(field, "magic mismatch: got %q, want %q", got, want)
	}
}

// RequireVersionInRange checks a format/version field against an
// inclusive [min,max] bound.
func (c *Checker) RequireVersionInRange(field string, version, min, max int) {
	if version < min || version > max {
		c.Errorf(field, "version %d outside supported range [%d,%d]", version, min, max)
	}
}

// RequireCountMatches checks a declared count against the length actually
// parsed.
func (c *Checker) RequireCountMatches(field string, declared, parsed int) {
	if declared != parsed {
		c.Errorf(field, "declared count %d does not match parsed length %d", declared, parsed)
	}
}

// RequireBoundsOrdered checks that min <= max component-wise for a 3D
// bounding box, given as two [3]float32 arrays.
func (c *Checker) RequireBoundsOrdered(field string, min, max [3]float32) {
	for i := 0; i < 3; i++ {
		if min[i] > max[i] {
			c.Errorf(field, "bounding box axis %d has min %g > max %g", i, min[i], max[i])
			return
		}
	}
}

// RequireFlagDataAgreement checks that a presence flag and the actual
// availability of the associated data are consistent.
func (c *Checker) RequireFlagDataAgreement(field string, flagSet, dataPresent bool) {
	if flagSet && !dataPresent {
		c.Errorf(field, "flag set but backing data absent")
	}
	if !flagSet && dataPresent {
		c.Warnf(field, "data present without its presence flag set")
	}
}

// RequireIndexInBounds checks a referential index against [0,count), with
// an optional sentinel value (e.g. a file-data-id marker) exempted.
func (c *Checker) RequireIndexInBounds(field string, index, count int, sentinel *int) {
	if sentinel != nil && index == *sentinel {
		return
	}
	if index < 0 || index >= count {
		c.Errorf(field, "index %d outside bounds [0,%d)", index, count)
	}
}
