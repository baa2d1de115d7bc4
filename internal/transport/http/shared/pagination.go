package shared

import (
	"net/http"
	"net/url"
	"strconv"
)

type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset, falling back to defaultLimit and
// zero on bad input and capping limit at maxLimit when maxLimit is set.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	query := r.URL.Query()
	page := Pagination{
		Limit:  queryInt(query, "limit", defaultLimit, 1),
		Offset: queryInt(query, "offset", 0, 0),
	}
	if maxLimit > 0 {
		page.Limit = min(page.Limit, maxLimit)
	}
	return page
}

func queryInt(query url.Values, key string, fallback, floor int) int {
	v, err := strconv.Atoi(query.Get(key))
	if err != nil || v < floor {
		return fallback
	}
	return v
}
