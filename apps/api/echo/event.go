package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core/event"
)

type eventApi struct {
	svc      *event.Service
	validate *validator.Validate
}

func registerEventAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *event.Service, validate *validator.Validate) {
	api := eventApi{svc: svc, validate: validate}

	eg := g.Group("/events")

	// un-authed endpoints
	eg.GET("", api.query)
	eg.GET("/next", api.next)
	eg.GET("/:id", api.retrieve)

	// admin endpoints
	eg.POST("", api.create, jwt, adminMiddleware())
	eg.PUT("/:id", api.update, jwt, adminMiddleware())
	eg.DELETE("/:id", api.destroy, jwt, adminMiddleware())
}

// Handlers

func (api *eventApi) query(ctx echo.Context) error {
	var filter event.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []event.Event{})
	}
	events, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing events")
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *eventApi) next(ctx echo.Context) error {
	evt, err := api.svc.Next(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "finding next event")
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *eventApi) retrieve(ctx echo.Context) error {
	evt, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding event")
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *eventApi) create(ctx echo.Context) error {
	var data event.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	evt, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating event")
	}
	return ctx.JSON(http.StatusCreated, evt)
}

func (api *eventApi) update(ctx echo.Context) error {
	var data event.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	evt, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating event")
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *eventApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting event")
	}
	return ctx.NoContent(http.StatusNoContent)
}
