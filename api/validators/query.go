package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/studyabroad-backend/internal/records"
	pkgerrors "github.com/angelmondragon/studyabroad-backend/pkg/errors"
	"github.com/angelmondragon/studyabroad-backend/pkg/pagination"
)

var reservedListParams = map[string]struct{}{
	"sort":   {},
	"limit":  {},
	"offset": {},
}

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Validation(key+" must be numeric", key)
	}
	if value < min || value > max {
		return 0, pkgerrors.Validation(key+" is out of range", key).
			WithDetails(key + " must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return value, nil
}

// ParseListQuery splits the query string into paging, sort and field filters.
// Every non-reserved parameter is treated as an equality filter.
func ParseListQuery(r *http.Request) (records.ListQuery, error) {
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return records.ListQuery{}, err
	}
	offset, err := ParseQueryInt(r, "offset", 0, 0, int(^uint32(0)>>1))
	if err != nil {
		return records.ListQuery{}, err
	}

	q := records.ListQuery{
		Sort:   strings.TrimSpace(r.URL.Query().Get("sort")),
		Limit:  limit,
		Offset: offset,
	}
	for key, values := range r.URL.Query() {
		if _, reserved := reservedListParams[key]; reserved || len(values) == 0 {
			continue
		}
		value := strings.TrimSpace(values[0])
		if value == "" {
			continue
		}
		if q.Filters == nil {
			q.Filters = map[string]string{}
		}
		q.Filters[key] = value
	}
	return q, nil
}
