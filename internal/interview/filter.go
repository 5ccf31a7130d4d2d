// Package interview filters the interview question bank.
package interview

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/p-n-ai/pai-portal/internal/catalog"
)

// AllValue is the wire spelling of "no filter" accepted by ParseAxis.
const AllValue = "all"

// Axis is one filter dimension: either unrestricted or pinned to one value.
type Axis struct {
	value string
	set   bool
}

// Any returns an axis that matches every value.
func Any() Axis {
	return Axis{}
}

// Only returns an axis that matches exactly v.
func Only(v string) Axis {
	return Axis{value: v, set: true}
}

// ParseAxis maps a query-string value to an axis. Empty and "all" mean Any.
func ParseAxis(s string) Axis {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, AllValue) {
		return Any()
	}
	return Only(s)
}

// IsAny reports whether the axis is unrestricted.
func (a Axis) IsAny() bool {
	return !a.set
}

// Value returns the pinned value, or "" for Any.
func (a Axis) Value() string {
	return a.value
}

// String returns the wire spelling of the axis.
func (a Axis) String() string {
	if !a.set {
		return AllValue
	}
	return a.value
}

// Match reports whether v satisfies the axis. Pinned values compare exactly.
func (a Axis) Match(v string) bool {
	return !a.set || a.value == v
}

// Filter is the conjunction of the three question predicates.
type Filter struct {
	Difficulty Axis
	Company    Axis
	Query      string
}

// Match reports whether q passes every predicate.
func (f Filter) Match(q catalog.Question) bool {
	return f.Difficulty.Match(q.Difficulty) &&
		f.Company.Match(q.Company) &&
		matchesQuery(q, f.Query)
}

// IsEmpty reports whether the filter lets every question through.
func (f Filter) IsEmpty() bool {
	return f.Difficulty.IsAny() && f.Company.IsAny() && f.Query == ""
}

// Apply returns the questions that pass f, in input order. The input slice is
// not modified.
func Apply(questions []catalog.Question, f Filter) []catalog.Question {
	visible := make([]catalog.Question, 0, len(questions))
	for _, q := range questions {
		if f.Match(q) {
			visible = append(visible, q)
		}
	}
	return visible
}

// Difficulties lists the distinct difficulty tiers in first-seen order.
func Difficulties(questions []catalog.Question) []string {
	return distinct(questions, func(q catalog.Question) string { return q.Difficulty })
}

// Companies lists the distinct company tags in first-seen order.
func Companies(questions []catalog.Question) []string {
	return distinct(questions, func(q catalog.Question) string { return q.Company })
}

// matchesQuery is a case-insensitive substring test against title or category.
// An empty query matches everything.
func matchesQuery(q catalog.Question, query string) bool {
	if query == "" {
		return true
	}
	// Casers are stateful, so each call gets its own.
	fold := cases.Fold()
	needle := fold.String(query)
	return strings.Contains(fold.String(q.Title), needle) ||
		strings.Contains(fold.String(q.Category), needle)
}

func distinct(questions []catalog.Question, key func(catalog.Question) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, q := range questions {
		k := key(q)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
