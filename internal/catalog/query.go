package catalog

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DefaultLimit is the page size when a caller leaves Limit at zero.
const DefaultLimit = 10

// Query describes one list request. Skip is a page index, not an offset.
type Query struct {
	Resource          string
	Limit             int
	Skip              int
	Filter            string // pre-encoded "k=v&k2=v2"
	DisablePagination bool
}

// PageOffset maps a page index to a row offset. Zero and negative indexes
// mean the first page.
func PageOffset(skip, limit int) int {
	if skip > 0 {
		return skip * limit
	}
	return 0
}

// ListPath builds the request path for q, mapping Skip to an offset.
//
//	catalogs/hotel?limit=10&skip=20&name=azul
//	catalogs/hotel?name=azul            (pagination disabled)
func ListPath(q Query) string {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var pagination string
	if !q.DisablePagination {
		pagination = "limit=" + strconv.Itoa(limit) + "&skip=" + strconv.Itoa(PageOffset(q.Skip, limit))
	}

	query := pagination
	if q.Filter != "" {
		if pagination != "" {
			query += "&" + q.Filter
		} else {
			query = q.Filter
		}
	}

	if query == "" {
		return q.Resource
	}
	return q.Resource + "?" + query
}

// DynamicQuery encodes a filter form into "k=v&..." with escaped values.
// Slices are joined with commas, nil becomes empty, and keys listed in
// hidden are skipped. Keys are sorted so equal filters give equal strings.
func DynamicQuery(filter map[string]any, hidden ...string) string {
	skip := make(map[string]bool, len(hidden))
	for _, h := range hidden {
		skip[h] = true
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+EscapeComponent(filterValue(filter[k])))
	}
	return strings.Join(parts, "&")
}

// componentUnescapes restores the characters QueryEscape encodes but a URI
// component keeps literal.
var componentUnescapes = strings.NewReplacer("+", "%20", "%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

// EscapeComponent escapes v as a URI component: spaces become %20, not +.
func EscapeComponent(v string) string {
	return componentUnescapes.Replace(url.QueryEscape(v))
}

func filterValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ",")
	case []any:
		s := make([]string, len(val))
		for i, e := range val {
			s[i] = filterValue(e)
		}
		return strings.Join(s, ",")
	case bool:
		if !val {
			return ""
		}
		return "true"
	case int:
		if val == 0 {
			return ""
		}
		return strconv.Itoa(val)
	case float64:
		if val == 0 {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// CleanFilter returns a copy of filter with every value reset: slices to
// an empty slice, everything else to "".
func CleanFilter(filter map[string]any) map[string]any {
	out := make(map[string]any, len(filter))
	for k, v := range filter {
		switch v.(type) {
		case []string:
			out[k] = []string{}
		case []any:
			out[k] = []any{}
		default:
			out[k] = ""
		}
	}
	return out
}
