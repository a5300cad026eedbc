package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/loyalty"
	"github.com/invasionlatina/backend/core/settings"
	"github.com/invasionlatina/backend/core/user"
)

type loyaltyApi struct {
	svc         *loyalty.Service
	settingsSvc *settings.Service
	usrSvc      *user.Service
	metrics     *Metrics
	validate    *validator.Validate
}

func registerLoyaltyAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	metrics *Metrics,
	svc *loyalty.Service,
	settingsSvc *settings.Service,
	usrSvc *user.Service,
	validate *validator.Validate,
) {
	api := loyaltyApi{
		svc:         svc,
		settingsSvc: settingsSvc,
		usrSvc:      usrSvc,
		metrics:     metrics,
		validate:    validate,
	}

	lg := g.Group("/loyalty", jwt)
	lg.GET("/qr-code", api.qrCode)
	lg.GET("/me", api.summary)
	lg.POST("/rewards", api.claimReward)
	lg.GET("/rewards", api.rewards)
	lg.GET("/rewards/active", api.activeReward)
	lg.POST("/rewards/redeem", api.redeemReward, scannerMiddleware())

	cg := lg.Group("/checkins")
	cg.POST("/scan", api.scan, scannerMiddleware())
	cg.POST("/end-event", endEventHandler(settingsSvc), adminMiddleware())
	cg.DELETE("/:user_id/:event_id", api.resetCheckin, adminMiddleware())

	eg := lg.Group("/event-codes")
	eg.POST("/scan", api.scanEventCode)
	eg.GET("/mine", api.myEventScans)
	eg.POST("", api.createEventCode, adminMiddleware())
	eg.GET("", api.eventCodeHistory, adminMiddleware())
	eg.GET("/active", api.activeEventCode, adminMiddleware())
	eg.PUT("/:id/toggle", api.toggleEventCode, adminMiddleware())
}

// Handlers

func (api *loyaltyApi) qrCode(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	code, err := api.svc.IssueCheckinCode(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "issuing check-in code")
	}
	return ctx.JSON(http.StatusOK, code)
}

func (api *loyaltyApi) summary(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	s, err := api.svc.Summary(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "summarizing loyalty")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *loyaltyApi) claimReward(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	r, err := api.svc.ClaimReward(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "claiming reward")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *loyaltyApi) rewards(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rewards, err := api.svc.Rewards(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing rewards")
	}
	return ctx.JSON(http.StatusOK, rewards)
}

func (api *loyaltyApi) activeReward(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	active, err := api.svc.ActiveReward(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting active reward")
	}
	return ctx.JSON(http.StatusOK, active)
}

func (api *loyaltyApi) redeemReward(ctx echo.Context) error {
	var data loyalty.RedeemRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RedeemRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	res, err := api.svc.RedeemReward(ctx.Request().Context(), data.Code, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "redeeming reward")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *loyaltyApi) scan(ctx echo.Context) error {
	var data loyalty.ScanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScanRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	res, err := api.svc.Scan(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		api.metrics.checkins.WithLabelValues(checkinOutcome(err)).Inc()
		return errors.Wrap(err, "scanning check-in code")
	}
	api.metrics.checkins.WithLabelValues("ok").Inc()
	return ctx.JSON(http.StatusOK, res)
}

func (api *loyaltyApi) resetCheckin(ctx echo.Context) error {
	removed, err := api.svc.ResetCheckin(ctx.Request().Context(), ctx.Param("user_id"), ctx.Param("event_id"))
	if err != nil {
		return errors.Wrap(err, "resetting check-in")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"points_removed": removed})
}

func (api *loyaltyApi) scanEventCode(ctx echo.Context) error {
	var data loyalty.EventScanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EventScanRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	res, err := api.svc.ScanEventCode(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "scanning event code")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *loyaltyApi) myEventScans(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	scans, err := api.svc.MyEventScans(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing event code scans")
	}
	return ctx.JSON(http.StatusOK, scans)
}

func (api *loyaltyApi) createEventCode(ctx echo.Context) error {
	var data loyalty.NewEventCode
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEventCode")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	code, err := api.svc.CreateEventCode(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating event code")
	}
	return ctx.JSON(http.StatusCreated, code)
}

func (api *loyaltyApi) activeEventCode(ctx echo.Context) error {
	code, err := api.svc.ActiveEventCode(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting active event code")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"active_qr": code})
}

func (api *loyaltyApi) toggleEventCode(ctx echo.Context) error {
	code, err := api.svc.ToggleEventCode(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "toggling event code")
	}
	return ctx.JSON(http.StatusOK, code)
}

func (api *loyaltyApi) eventCodeHistory(ctx echo.Context) error {
	codes, err := api.svc.EventCodeHistory(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing event codes")
	}
	return ctx.JSON(http.StatusOK, codes)
}

func checkinOutcome(err error) string {
	switch errors.Cause(err) {
	case loyalty.ErrVersionMismatch:
		return "version_mismatch"
	case loyalty.ErrAlreadyCheckedIn:
		return "already_checked_in"
	}
	switch errors.Cause(err).(type) {
	case *core.ValidationError:
		return "invalid_payload"
	case *core.NotFoundError:
		return "unknown_user"
	}
	return "error"
}
