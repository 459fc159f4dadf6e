// Package filter applies the cross-filter set over a catalog snapshot and
// computes each filter control's facet options.
package filter

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/campushub/campus-events/internal/model"
)

// All is the sentinel meaning a categorical filter is inactive. Empty and
// unrecognized values are treated the same way.
const All = "all"

// SortOrder controls the date sort applied after filtering.
type SortOrder string

const (
	SortOldestFirst SortOrder = "asc"
	SortNewestFirst SortOrder = "desc"
)

// Filters is the full filter state for one view.
type Filters struct {
	Search    string
	Type      string
	Name      string
	Location  string
	Professor string
	// DateFrom and DateTo bound the event's start date, inclusive at day
	// granularity. Either side may be zero.
	DateFrom time.Time
	DateTo   time.Time
	Sort     SortOrder
}

// active reports whether a categorical selection is in effect. The sentinel
// applies to categorical filters only; "all" typed into the search box is a
// real search term.
func active(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && !strings.EqualFold(value, All)
}

// Apply returns the events matching every active predicate, sorted by start
// date per f.Sort. Ties keep their aggregation order.
func Apply(events []model.NormalizedEvent, f Filters) []model.NormalizedEvent {
	var out []model.NormalizedEvent
	for _, ev := range events {
		if matches(&ev, f) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if f.Sort == SortNewestFirst {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func matches(ev *model.NormalizedEvent, f Filters) bool {
	if strings.TrimSpace(f.Search) != "" && !searchMatch(ev, f.Search) {
		return false
	}
	if active(f.Type) && !strings.EqualFold(ev.Category, f.Type) {
		return false
	}
	if active(f.Name) && !strings.EqualFold(ev.DisplayName, f.Name) {
		return false
	}
	if active(f.Location) && !strings.EqualFold(ev.Location, f.Location) {
		return false
	}
	if active(f.Professor) && !slices.ContainsFunc(ev.ProfessorNames, func(name string) bool {
		return strings.EqualFold(name, f.Professor)
	}) {
		return false
	}
	return dateInRange(ev.Date, f.DateFrom, f.DateTo)
}

// searchMatch matches the term case-insensitively against every searchable
// field, including bazaar vendor and booth names. Any single field match
// includes the event.
func searchMatch(ev *model.NormalizedEvent, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	var haystack strings.Builder
	haystack.WriteString(ev.DisplayName)
	haystack.WriteString(" ")
	haystack.WriteString(ev.Description)
	haystack.WriteString(" ")
	haystack.WriteString(string(ev.Kind))
	haystack.WriteString(" ")
	haystack.WriteString(ev.Category)
	haystack.WriteString(" ")
	haystack.WriteString(ev.Location)
	haystack.WriteString(" ")
	haystack.WriteString(strings.Join(ev.ProfessorNames, " "))
	for _, v := range ev.Vendors {
		haystack.WriteString(" ")
		haystack.WriteString(v.Name)
	}
	for _, b := range ev.Booths {
		haystack.WriteString(" ")
		haystack.WriteString(b.Name)
	}
	return strings.Contains(strings.ToLower(haystack.String()), term)
}

// dateInRange checks the event date against the inclusive [from 00:00:00,
// to 23:59:59] window. A single bound constrains only that side.
func dateInRange(date, from, to time.Time) bool {
	if !from.IsZero() {
		start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
		if date.Before(start) {
			return false
		}
	}
	if !to.IsZero() {
		end := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 999999999, to.Location())
		if date.After(end) {
			return false
		}
	}
	return true
}

// Facets holds each categorical control's selectable values, recomputed
// relative to the other active filters.
type Facets struct {
	Types      []string `json:"types"`
	Names      []string `json:"names"`
	Locations  []string `json:"locations"`
	Professors []string `json:"professors"`
}

// ComputeFacets builds each control's option set by applying every other
// active filter but excluding the control's own selection, then collecting
// the distinct non-empty values of its field. This keeps every offered
// option non-empty under the current combination. The free-text search and
// date range stay active for all facets; they do not participate in the
// mutual exclusion.
func ComputeFacets(events []model.NormalizedEvent, f Filters) Facets {
	return Facets{
		Types: collect(events, without(f, func(f *Filters) { f.Type = All }), func(ev *model.NormalizedEvent) []string {
			return []string{ev.Category}
		}),
		Names: collect(events, without(f, func(f *Filters) { f.Name = All }), func(ev *model.NormalizedEvent) []string {
			return []string{ev.DisplayName}
		}),
		Locations: collect(events, without(f, func(f *Filters) { f.Location = All }), func(ev *model.NormalizedEvent) []string {
			return []string{ev.Location}
		}),
		Professors: collect(events, without(f, func(f *Filters) { f.Professor = All }), func(ev *model.NormalizedEvent) []string {
			return ev.ProfessorNames
		}),
	}
}

// without copies the filter set with one control reset to the sentinel.
func without(f Filters, reset func(*Filters)) Filters {
	reset(&f)
	return f
}

// collect gathers the distinct non-empty field values from the events that
// pass the (self-excluded) filter set, sorted lexicographically.
func collect(events []model.NormalizedEvent, f Filters, field func(*model.NormalizedEvent) []string) []string {
	seen := make(map[string]bool)
	var values []string
	for _, ev := range events {
		if !matches(&ev, f) {
			continue
		}
		for _, v := range field(&ev) {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			values = append(values, v)
		}
	}
	sort.Strings(values)
	return values
}
