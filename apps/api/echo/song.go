package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core/song"
	"github.com/invasionlatina/backend/core/user"
)

type songApi struct {
	svc      *song.Service
	usrSvc   *user.Service
	metrics  *Metrics
	validate *validator.Validate
}

func registerSongAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	limiter *RateLimiter,
	metrics *Metrics,
	svc *song.Service,
	usrSvc *user.Service,
	validate *validator.Validate,
) {
	api := songApi{
		svc:      svc,
		usrSvc:   usrSvc,
		metrics:  metrics,
		validate: validate,
	}

	sg := g.Group("/songs", jwt)
	sg.GET("/status", api.status)
	sg.GET("/stats", api.stats, privilegedMiddleware())

	rg := sg.Group("/requests")
	rg.POST("", api.submit, limiter.Middleware("songs"))
	rg.GET("", api.query)
	rg.GET("/mine", api.mine)
	rg.DELETE("", api.clear, privilegedMiddleware())
	rg.POST("/:id/votes", api.vote, limiter.Middleware("songs"))
	rg.PATCH("/:id", api.moderate, privilegedMiddleware())
	rg.DELETE("/:id", api.destroy, privilegedMiddleware())
}

// Handlers

func (api *songApi) submit(ctx echo.Context) error {
	var data song.NewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Submit(ctx.Request().Context(), song.Submission{
		UserID:     usr.ID,
		UserName:   usr.Name,
		Privileged: usr.IsPrivileged(),
		Title:      data.Title,
		Artist:     data.Artist,
		Position:   data.Position(),
	})
	if err != nil {
		return errors.Wrap(err, "submitting song request")
	}

	if res.Created {
		api.metrics.songRequests.WithLabelValues("created").Inc()
	} else {
		api.metrics.songRequests.WithLabelValues("appended").Inc()
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *songApi) vote(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	req, err := api.svc.Vote(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "voting")
	}
	api.metrics.songVotes.Inc()
	return ctx.JSON(http.StatusOK, song.NewView(req, claims.Subject))
}

func (api *songApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var filter song.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	views, err := api.svc.List(ctx.Request().Context(), claims.Subject, filter)
	if err != nil {
		return errors.Wrap(err, "listing song requests")
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *songApi) mine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	views, err := api.svc.MyRequests(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing user song requests")
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *songApi) status(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	status, err := api.svc.AccessStatus(ctx.Request().Context(), claims.IsPrivileged(), bindPosition(ctx))
	if err != nil {
		return errors.Wrap(err, "evaluating access")
	}
	return ctx.JSON(http.StatusOK, status)
}

func (api *songApi) moderate(ctx echo.Context) error {
	var data song.Moderation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Moderation")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	data.By = claims.Subject

	req, err := api.svc.Moderate(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "moderating song request")
	}
	api.metrics.moderations.WithLabelValues(req.Status.String()).Inc()
	return ctx.JSON(http.StatusOK, req)
}

func (api *songApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteOne(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting song request")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Demande supprimée"})
}

func (api *songApi) clear(ctx echo.Context) error {
	n, err := api.svc.ClearAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "clearing song requests")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"deleted": n})
}

func (api *songApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing song request stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
