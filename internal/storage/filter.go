package storage

import (
	"fmt"
	"strings"
	"time"
)

// SortField is a whitelisted column links can be ordered by.
type SortField string

const (
	SortByCreatedAt   SortField = "created_at"
	SortByTotalClicks SortField = "total_clicks"
)

// ListFilter selects an owner's links. Nil pointers mean "no constraint".
type ListFilter struct {
	OwnerID   string
	Query     string
	Deleted   *bool
	MinClicks *int64
	MaxClicks *int64
	DateFrom  *time.Time
	DateTo    *time.Time
	SortBy    SortField
	Desc      bool
	Limit     int
	Offset    int
}

// Dialect adapts the generated SQL to a driver.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Time converts a timestamp to the value stored in the created_at column.
	Time func(t time.Time) any
}

// Match reports whether l satisfies every constraint of f except pagination.
func (f ListFilter) Match(l *Link) bool {
	if l.OwnerID != f.OwnerID {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(l.Code), q) && !strings.Contains(strings.ToLower(l.Target), q) {
			return false
		}
	}
	if f.Deleted != nil && l.Deleted != *f.Deleted {
		return false
	}
	if f.MinClicks != nil && l.TotalClicks < *f.MinClicks {
		return false
	}
	if f.MaxClicks != nil && l.TotalClicks > *f.MaxClicks {
		return false
	}
	if f.DateFrom != nil && l.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && l.CreatedAt.After(*f.DateTo) {
		return false
	}
	return true
}

// Where renders the WHERE clause (without the keyword) and its arguments.
func (f ListFilter) Where(d Dialect) (string, []any) {
	var (
		conds []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	conds = append(conds, "owner_id = "+bind(f.OwnerID))

	if f.Query != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Query)) + "%"
		conds = append(conds, fmt.Sprintf(`(LOWER(code) LIKE %s ESCAPE '\' OR LOWER(target) LIKE %s ESCAPE '\')`,
			bind(pattern), bind(pattern)))
	}
	if f.Deleted != nil {
		conds = append(conds, "deleted = "+bind(*f.Deleted))
	}
	if f.MinClicks != nil {
		conds = append(conds, "total_clicks >= "+bind(*f.MinClicks))
	}
	if f.MaxClicks != nil {
		conds = append(conds, "total_clicks <= "+bind(*f.MaxClicks))
	}
	if f.DateFrom != nil {
		conds = append(conds, "created_at >= "+bind(d.Time(*f.DateFrom)))
	}
	if f.DateTo != nil {
		conds = append(conds, "created_at <= "+bind(d.Time(*f.DateTo)))
	}

	return strings.Join(conds, " AND "), args
}

// OrderBy renders the ORDER BY clause (without the keyword).
func (f ListFilter) OrderBy() string {
	col := SortByCreatedAt
	if f.SortBy == SortByTotalClicks {
		col = SortByTotalClicks
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s, id %s", col, dir, dir)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
