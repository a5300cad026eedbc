package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/access"
)

var orderingParam = "ordering"

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

// bindPosition reads the optional latitude & longitude query params.
// It returns nil unless both are valid numbers.
func bindPosition(ctx echo.Context) *access.Point {
	lat, err := strconv.ParseFloat(ctx.QueryParam("latitude"), 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(ctx.QueryParam("longitude"), 64)
	if err != nil {
		return nil
	}
	return &access.Point{Latitude: lat, Longitude: lng}
}
