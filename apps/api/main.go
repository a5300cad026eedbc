package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/invasionlatina/backend/apps/api/echo"
	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/access"
	"github.com/invasionlatina/backend/core/booking"
	"github.com/invasionlatina/backend/core/event"
	"github.com/invasionlatina/backend/core/loyalty"
	"github.com/invasionlatina/backend/core/settings"
	"github.com/invasionlatina/backend/core/song"
	"github.com/invasionlatina/backend/core/ticket"
	"github.com/invasionlatina/backend/core/user"
	emailsvc "github.com/invasionlatina/backend/services/email"
	logsvc "github.com/invasionlatina/backend/services/logger"
	notifysvc "github.com/invasionlatina/backend/services/notify"
	paymentsvc "github.com/invasionlatina/backend/services/payment"
	"github.com/invasionlatina/backend/storage/database"
	inmemdb "github.com/invasionlatina/backend/storage/database/inmem"
	pgrepos "github.com/invasionlatina/backend/storage/database/postgres"
)

// memoryEngine runs the API on the in-memory store (local demos, no PostgreSQL needed).
const memoryEngine = "memory"

type repositories struct {
	users    user.Repository
	events   event.Repository
	settings settings.Repository
	songs    song.Repository
	loyalty  loyalty.Repository
	bookings booking.Repository
	tickets  ticket.Repository
	ping     func(ctx context.Context) error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	var repos repositories
	if conf.Database.Engine == memoryEngine {
		logger.Warn("using the in-memory store: data is lost on restart")
		repos = memoryRepositories()
	} else {
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		repos = postgresRepositories(db)
	}

	// set up services
	var mailSvc core.EmailService
	var pushSvc core.PushService
	var whatsappSvc core.WhatsAppService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
		consoleNotify := notifysvc.NewConsoleService(logger)
		pushSvc, whatsappSvc = consoleNotify, consoleNotify
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
		pushSvc = notifysvc.NewExpoService(conf, logger)
		whatsappSvc = notifysvc.NewCallMeBotService(conf, logger)
	}

	usrSvc := user.NewService(repos.users, mailSvc)
	eventSvc := event.NewService(repos.events)
	var songSvc *song.Service
	settingsSvc := settings.NewService(repos.settings, eventSvc, settings.ClearerFunc(func(ctx context.Context) (int, error) {
		return songSvc.ClearPending(ctx)
	}))
	songSvc = song.NewService(repos.songs, settingsSvc, eventSvc, access.NewPolicy(conf.Venue))
	loyaltySvc := loyalty.NewService(
		repos.loyalty, settingsSvc, eventSvc, usrSvc, pushSvc, mailSvc, loyalty.OptionsFromConfig(conf),
	)
	bookingSvc := booking.NewService(repos.bookings, eventSvc, usrSvc, pushSvc, whatsappSvc, mailSvc, logger)
	// TODO: replace the console payments with the card provider once the merchant account is open.
	ticketSvc := ticket.NewService(repos.tickets, eventSvc, paymentsvc.NewConsoleService(logger), logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	event.InitValidators(validate, translator)
	booking.InitValidators(validate, translator)
	ticket.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Background Jobs

	limiter := echoapi.NewRateLimiter(conf.Server.RateLimit, conf.Server.RateBurst)
	jobs, err := startJobs(logger, limiter, loyaltySvc)
	if err != nil {
		logger.Fatal(fmt.Sprintf("scheduling jobs: %v", err), err)
	}
	defer func() { <-jobs.Stop().Done() }()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			Validate:    validate,
			Translator:  translator,
			UserSvc:     usrSvc,
			EventSvc:    eventSvc,
			SettingsSvc: settingsSvc,
			SongSvc:     songSvc,
			LoyaltySvc:  loyaltySvc,
			BookingSvc:  bookingSvc,
			TicketSvc:   ticketSvc,
			Limiter:     limiter,
			HealthCheck: repos.ping,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func postgresRepositories(db *sqlx.DB) repositories {
	return repositories{
		users:    pgrepos.NewUserRepository(db),
		events:   pgrepos.NewEventRepository(db),
		settings: pgrepos.NewSettingsRepository(db),
		songs:    pgrepos.NewSongRepository(db),
		loyalty:  pgrepos.NewLoyaltyRepository(db),
		bookings: pgrepos.NewBookingRepository(db),
		tickets:  pgrepos.NewTicketRepository(db),
		ping:     db.PingContext,
	}
}

func memoryRepositories() repositories {
	db := inmemdb.Open()
	return repositories{
		users:    inmemdb.NewUserRepository(db),
		events:   inmemdb.NewEventRepository(db),
		settings: inmemdb.NewSettingsRepository(db),
		songs:    inmemdb.NewSongRepository(db),
		loyalty:  inmemdb.NewLoyaltyRepository(db),
		bookings: inmemdb.NewBookingRepository(db),
		tickets:  inmemdb.NewTicketRepository(db),
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
