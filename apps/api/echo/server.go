// Package echoapi serves the mobile app API over HTTP with echo.
package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/booking"
	"github.com/invasionlatina/backend/core/event"
	"github.com/invasionlatina/backend/core/loyalty"
	"github.com/invasionlatina/backend/core/settings"
	"github.com/invasionlatina/backend/core/song"
	"github.com/invasionlatina/backend/core/ticket"
	"github.com/invasionlatina/backend/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc     *user.Service
		EventSvc    *event.Service
		SettingsSvc *settings.Service
		SongSvc     *song.Service
		LoyaltySvc  *loyalty.Service
		BookingSvc  *booking.Service
		TicketSvc   *ticket.Service

		// optional
		Limiter        *RateLimiter
		Metrics        *Metrics
		DisableReqLogs bool
		HealthCheck    func(ctx context.Context) error
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *Auth
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	if deps.Limiter == nil {
		deps.Limiter = NewRateLimiter(deps.Conf.Server.RateLimit, deps.Conf.Server.RateBurst)
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     NewAuth(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Server.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	s.app.Use(s.deps.Metrics.Middleware())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/metrics", s.deps.Metrics.Handler())

	g := s.app.Group("/api")
	g.GET("/health", s.health)

	jwt := s.auth.Middleware()
	registerUserAPI(g, jwt, s.auth, s.deps.Limiter, s.deps.UserSvc, s.deps.Validate)
	registerEventAPI(g, jwt, s.deps.EventSvc, s.deps.Validate)
	registerSettingsAPI(g, jwt, s.deps.SettingsSvc)
	registerSongAPI(g, jwt, s.deps.Limiter, s.deps.Metrics, s.deps.SongSvc, s.deps.UserSvc, s.deps.Validate)
	registerLoyaltyAPI(g, jwt, s.deps.Metrics, s.deps.LoyaltySvc, s.deps.SettingsSvc, s.deps.UserSvc, s.deps.Validate)
	registerBookingAPI(g, jwt, s.deps.BookingSvc, s.deps.UserSvc, s.deps.Validate)
	registerTicketAPI(g, jwt, s.deps.Metrics, s.deps.TicketSvc, s.deps.UserSvc, s.deps.Validate)
}

// Start listens on the configured address; the outcome is sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the process to shut the server down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Bienvenue sur l'API "+s.deps.Conf.AppName+"!")
}

func (s *Server) health(ctx echo.Context) error {
	if s.deps.HealthCheck != nil {
		if err := s.deps.HealthCheck(ctx.Request().Context()); err != nil {
			s.deps.Logger.Error("health check failed", err)
			return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "build": s.deps.Conf.Build})
}
