// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows returned by list endpoints.
const PageSize = 50

// MaxPageSize caps any client-requested limit.
const MaxPageSize = 200

// ParseLimit extracts the "limit" query parameter.
// Returns PageSize when absent or invalid, and never more than MaxPageSize.
func ParseLimit(r *http.Request) int {
	return ParseLimitWithDefault(r, PageSize, MaxPageSize)
}

// ParseLimitWithDefault is like ParseLimit with a caller-chosen default and cap.
func ParseLimitWithDefault(r *http.Request, def, max int) int {
	s := query.Get(r, "limit")
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
