package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/event"
	"github.com/invasionlatina/backend/core/settings"
)

type settingsApi struct {
	svc *settings.Service
}

func registerSettingsAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *settings.Service) {
	api := settingsApi{svc: svc}

	sg := g.Group("/settings")

	// un-authed endpoints
	sg.GET("/requests-status", api.requestsStatus)
	sg.GET("/qr-version", api.qrVersion)

	// admin endpoints
	ag := sg.Group("", jwt, adminMiddleware())
	ag.GET("", api.retrieve)
	ag.POST("/toggle-requests", api.toggleRequests)
	ag.POST("/start-event", api.startEvent)
	ag.POST("/end-event", endEventHandler(svc))
}

// Handlers

func (api *settingsApi) requestsStatus(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting settings")
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"requests_enabled": s.RequestsEnabled,
		"current_event_id": s.CurrentEventID,
	})
}

func (api *settingsApi) qrVersion(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting settings")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"loyalty_qr_version": s.QRVersion})
}

func (api *settingsApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *settingsApi) toggleRequests(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	s, err := api.svc.ToggleRequests(ctx.Request().Context(), claims.Email)
	if err != nil {
		return errors.Wrap(err, "toggling requests")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *settingsApi) startEvent(ctx echo.Context) error {
	var data StartEventRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartEventRequest")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	s, evt, err := api.svc.StartEvent(ctx.Request().Context(), core.CleanString(data.EventID), claims.Email)
	if err != nil {
		return errors.Wrap(err, "starting event")
	}
	return ctx.JSON(http.StatusOK, StartEventResponse{Settings: s, Event: evt})
}

// endEventHandler is mounted under both /settings and /loyalty/checkins.
func endEventHandler(svc *settings.Service) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}

		res, err := svc.EndEvent(ctx.Request().Context(), claims.Email)
		if err != nil {
			return errors.Wrap(err, "ending event")
		}
		return ctx.JSON(http.StatusOK, res)
	}
}

type (
	StartEventRequest struct {
		EventID string `json:"event_id"` // next upcoming event when empty
	}

	StartEventResponse struct {
		Settings settings.Settings `json:"settings"`
		Event    event.Event       `json:"event"`
	}
)
