package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core/booking"
	"github.com/invasionlatina/backend/core/user"
)

type bookingApi struct {
	svc      *booking.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerBookingAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *booking.Service,
	usrSvc *user.Service,
	validate *validator.Validate,
) {
	api := bookingApi{svc: svc, usrSvc: usrSvc, validate: validate}

	bg := g.Group("/vip/bookings", jwt)
	bg.POST("", api.create)
	bg.GET("/mine", api.mine)
	bg.DELETE("/:id", api.cancel)

	// admin endpoints
	bg.GET("", api.query, adminMiddleware())
	bg.PUT("/:id", api.setStatus, adminMiddleware())
	bg.DELETE("/:id/admin", api.destroy, adminMiddleware())
	bg.DELETE("", api.clear, adminMiddleware())
}

// Handlers

func (api *bookingApi) create(ctx echo.Context) error {
	var data booking.NewBooking
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBooking")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	b, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating booking")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *bookingApi) mine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	bookings, err := api.svc.Mine(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing user bookings")
	}
	return ctx.JSON(http.StatusOK, bookings)
}

func (api *bookingApi) cancel(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	b, err := api.svc.Cancel(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "cancelling booking")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bookingApi) query(ctx echo.Context) error {
	bookings, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing bookings")
	}
	return ctx.JSON(http.StatusOK, bookings)
}

func (api *bookingApi) setStatus(ctx echo.Context) error {
	var data booking.UpdateStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.SetStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "setting booking status")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bookingApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting booking")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *bookingApi) clear(ctx echo.Context) error {
	n, err := api.svc.ClearAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "clearing bookings")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"deleted": n})
}
