package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/darasa-app/darasa/core"
)

var (
	orderingParam = "ordering"
	revisionQuery = "revision"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// revisionParam binds the optional ?revision= concurrency stamp on requests
// that carry no body.
type revisionParam struct {
	Revision *int
}

func (rp *revisionParam) Bind(ctx echo.Context) {
	if val := ctx.QueryParam(revisionQuery); val != "" {
		if rev, err := strconv.Atoi(val); err == nil {
			rp.Revision = &rev
		}
	}
}
