// Package filter provides pure filter and sort functions for option lists and
// catalog rows. All functions are simple: slice in, new slice out. No side
// effects, inputs are never modified.
package filter

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/abelbrown/crmdesk/internal/catalog"
	"github.com/abelbrown/crmdesk/internal/session"
)

// Normalize folds s for comparison: decomposed, combining marks removed,
// lowercased. "Ñandú" becomes "nandu".
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Match reports whether label contains input, ignoring case and accents.
// An empty input matches everything.
func Match(input, label string) bool {
	return strings.Contains(Normalize(label), Normalize(input))
}

// ByLabel keeps the items whose label matches input.
func ByLabel[T any](items []T, input string, label func(T) string) []T {
	if len(items) == 0 {
		return []T{}
	}
	needle := Normalize(strings.TrimSpace(input))
	result := make([]T, 0, len(items))
	for _, item := range items {
		if strings.Contains(Normalize(label(item)), needle) {
			result = append(result, item)
		}
	}
	return result
}

// Dedup removes items with a repeated key. First occurrence wins.
func Dedup[T any](items []T, key func(T) string) []T {
	if len(items) == 0 {
		return []T{}
	}
	seen := make(map[string]bool, len(items))
	result := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if seen[k] {
			continue
		}
		seen[k] = true
		result = append(result, item)
	}
	return result
}

// SortBy returns a copy of items ordered by key. Equal keys keep their
// original order.
func SortBy[T any](items []T, key func(T) string) []T {
	result := make([]T, len(items))
	copy(result, items)
	sort.SliceStable(result, func(i, j int) bool {
		return key(result[i]) < key(result[j])
	})
	return result
}

// SortLocalized returns a copy of items ordered by key using the collation
// rules of lang, so "Ángel" sorts next to "Angel" rather than after "Z".
func SortLocalized[T any](items []T, lang session.Language, key func(T) string) []T {
	result := make([]T, len(items))
	copy(result, items)
	c := collate.New(lang.Tag(), collate.IgnoreCase)
	sort.SliceStable(result, func(i, j int) bool {
		return c.CompareString(key(result[i]), key(result[j])) < 0
	})
	return result
}

// Strings sorts plain strings by lang's collation.
func Strings(items []string, lang session.Language) []string {
	return SortLocalized(items, lang, func(s string) string { return s })
}

// ByStatus keeps rows whose status is one of states.
func ByStatus(rows []catalog.Row, states ...catalog.State) []catalog.Row {
	if len(rows) == 0 || len(states) == 0 {
		return []catalog.Row{}
	}
	allowed := make(map[catalog.State]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	result := make([]catalog.Row, 0, len(rows))
	for _, r := range rows {
		if allowed[r.Status()] {
			result = append(result, r)
		}
	}
	return result
}

// RowsByField sorts rows by the display value of field.
func RowsByField(rows []catalog.Row, field string) []catalog.Row {
	return SortBy(rows, func(r catalog.Row) string { return r.String(field) })
}
