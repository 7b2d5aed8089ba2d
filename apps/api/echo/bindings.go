package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/insights/core"
)

// orderingParam holds comma separated field names, "-" marking a descending one: ?ordering=-created_at,name
const orderingParam = "ordering"

// bindOrdering reads the ordering query param, keeping the first occurrence of each allowed field.
func bindOrdering(ctx echo.Context, allowed map[string]bool) []core.DBOrdering {
	raw := ctx.QueryParam(orderingParam)
	if raw == "" {
		return nil
	}

	var res []core.DBOrdering
	seen := make(map[string]bool)
	for _, field := range strings.Split(raw, ",") {
		field = strings.ToLower(strings.TrimSpace(field))
		ascending := true
		switch {
		case strings.HasPrefix(field, "-"):
			ascending = false
			field = field[1:]
		case strings.HasPrefix(field, "+"):
			field = field[1:]
		}
		if !allowed[field] || seen[field] {
			continue
		}
		seen[field] = true
		res = append(res, core.DBOrdering{Field: field, Ascending: ascending})
	}
	return res
}
