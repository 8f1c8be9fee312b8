package schemas

import (
	"fmt"
	"strings"
)

// Revision represents a single revision within a branch's history.
type Revision struct {
	ID      string // Abbreviated revision identifier (short SHA)
	Summary string // One-line commit summary
}

// String returns the revision in `<id> <summary>` form.
func (r Revision) String() string {
	return fmt.Sprintf("%s %s", r.ID, r.Summary)
}

// RevisionRange is an ordered sequence of revisions between two points of a
// branch's history. It is computed on demand to preview what a promotion or a
// rollback will change and is never persisted.
type RevisionRange struct {
	From      string     // Ref the range starts from (exclusive)
	To        string     // Ref the range ends at (inclusive)
	Revisions []Revision // Revisions contained in the range, oldest first
}

// Count returns the number of revisions in the range.
func (rr RevisionRange) Count() int {
	return len(rr.Revisions)
}

// Empty returns whether the range contains no revision.
func (rr RevisionRange) Empty() bool {
	return len(rr.Revisions) == 0
}

// Spec returns the `from..to` range specification understood by git.
func (rr RevisionRange) Spec() string {
	return fmt.Sprintf("%s..%s", rr.From, rr.To)
}

// Summary returns a multi-line human readable rendition of the range, one
// revision per line, oldest first.
func (rr RevisionRange) Summary() string {
	lines := make([]string, 0, len(rr.Revisions))
	for _, r := range rr.Revisions {
		lines = append(lines, r.String())
	}

	return strings.Join(lines, "\n")
}
