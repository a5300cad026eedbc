package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core/ticket"
	"github.com/invasionlatina/backend/core/user"
)

type ticketApi struct {
	svc      *ticket.Service
	usrSvc   *user.Service
	metrics  *Metrics
	validate *validator.Validate
}

func registerTicketAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	metrics *Metrics,
	svc *ticket.Service,
	usrSvc *user.Service,
	validate *validator.Validate,
) {
	api := ticketApi{svc: svc, usrSvc: usrSvc, metrics: metrics, validate: validate}

	g.GET("/events/:id/tickets", api.categories)
	g.PUT("/events/:id/tickets", api.setCategories, jwt, adminMiddleware())

	tg := g.Group("/tickets", jwt)
	tg.POST("/purchase", api.purchase)
	tg.GET("/mine", api.mine)
	tg.POST("/:code/validate", api.validateTicket, scannerMiddleware())
}

// Handlers

func (api *ticketApi) categories(ctx echo.Context) error {
	cats, err := api.svc.Categories(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing ticket categories")
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *ticketApi) setCategories(ctx echo.Context) error {
	var data ticket.SetCategories
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetCategories")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cats, err := api.svc.SetCategories(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting ticket categories")
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *ticketApi) purchase(ctx echo.Context) error {
	var data ticket.Purchase
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Purchase")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Purchase(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "purchasing tickets")
	}
	api.metrics.tickets.WithLabelValues(data.Category).Add(float64(len(res.Tickets)))
	return ctx.JSON(http.StatusCreated, res)
}

func (api *ticketApi) mine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	tickets, err := api.svc.Mine(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing user tickets")
	}
	return ctx.JSON(http.StatusOK, tickets)
}

func (api *ticketApi) validateTicket(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	res, err := api.svc.Validate(ctx.Request().Context(), ctx.Param("code"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "validating ticket")
	}
	return ctx.JSON(http.StatusOK, res)
}
