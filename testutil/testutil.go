// Package testutil builds the service stack on the in-memory store for tests.
package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

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
	inmemdb "github.com/invasionlatina/backend/storage/database/inmem"
)

// Venue coordinates used by NewConfig.
const (
	VenueLatitude  = 50.8389
	VenueLongitude = 4.3660
)

// Env is a fully wired set of services sharing one in-memory database.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	DB      *inmemdb.DB
	Mail    *emailsvc.ConsoleServiceMock
	Notify  *notifysvc.ConsoleService
	Payment *paymentsvc.ConsoleService

	UserRepo    user.Repository
	EventRepo   event.Repository
	SongRepo    song.Repository
	LoyaltyRepo loyalty.Repository

	Users    *user.Service
	Events   *event.Service
	Settings *settings.Service
	Songs    *song.Service
	Loyalty  *loyalty.Service
	Bookings *booking.Service
	Tickets  *ticket.Service
}

// NewConfig returns a TEST configuration with the rate limiter off and the venue open all day in UTC.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:          "Invasion Latina",
		Env:              "TEST",
		Build:            "test",
		Debug:            true,
		TestMode:         true,
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:8081",
		DefaultFromEmail: mail.Address{Name: "Invasion Latina", Address: "noreply@invasionlatina.be"},
		Venue: core.VenueConfig{
			Name:         "Mirano Continental",
			Latitude:     VenueLatitude,
			Longitude:    VenueLongitude,
			RadiusMeters: 40,
			StartHour:    0,
			EndHour:      24,
			Timezone:     "UTC",
		},
	}
}

// NewEnv wires every service on a fresh in-memory database.
func NewEnv(t *testing.T, conf ...*core.Config) *Env {
	t.Helper()

	c := NewConfig()
	if len(conf) > 0 && conf[0] != nil {
		c = conf[0]
	}
	setDefaults(c)

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), c)
	core.ParseEmailTemplates(c, logger)
	validate, translator := NewValidator()

	db := inmemdb.Open()
	env := &Env{
		Conf:        c,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		DB:          db,
		Mail:        emailsvc.NewConsoleServiceMock(c, logger),
		Notify:      notifysvc.NewConsoleServiceMock(),
		Payment:     paymentsvc.NewConsoleServiceMock(),
		UserRepo:    inmemdb.NewUserRepository(db),
		EventRepo:   inmemdb.NewEventRepository(db),
		SongRepo:    inmemdb.NewSongRepository(db),
		LoyaltyRepo: inmemdb.NewLoyaltyRepository(db),
	}

	env.Users = user.NewService(env.UserRepo, env.Mail)
	env.Events = event.NewService(env.EventRepo)
	env.Settings = settings.NewService(
		inmemdb.NewSettingsRepository(db),
		env.Events,
		settings.ClearerFunc(func(ctx context.Context) (int, error) { return env.Songs.ClearPending(ctx) }),
	)
	env.Songs = song.NewService(env.SongRepo, env.Settings, env.Events, access.NewPolicy(c.Venue))
	env.Loyalty = loyalty.NewService(
		env.LoyaltyRepo, env.Settings, env.Events, env.Users, env.Notify, env.Mail, loyalty.OptionsFromConfig(c),
	)
	env.Bookings = booking.NewService(
		inmemdb.NewBookingRepository(db), env.Events, env.Users, env.Notify, env.Notify, env.Mail, logger,
	)
	env.Tickets = ticket.NewService(inmemdb.NewTicketRepository(db), env.Events, env.Payment, logger)
	return env
}

func setDefaults(c *core.Config) {
	if c.Server.JWTExpirationDelta == 0 {
		c.Server.JWTExpirationDelta = 10 * time.Minute
	}
	if c.Server.JWTRefreshExpirationDelta == 0 {
		c.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	}
	if c.Server.AllowedOrigins == nil {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Loyalty.CheckinPoints == 0 {
		c.Loyalty.CheckinPoints = 5
	}
	if c.Loyalty.RewardThreshold == 0 {
		c.Loyalty.RewardThreshold = 25
	}
	if c.Loyalty.RewardValidity == 0 {
		c.Loyalty.RewardValidity = 90 * 24 * time.Hour
	}
}

// NewValidator returns a validator with every custom rule registered, translated in english.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	event.InitValidators(validate, translator)
	booking.InitValidators(validate, translator)
	ticket.InitValidators(validate, translator)
	return validate, translator
}

// CreateUser stores an active user with role; pwd may be empty.
func (env *Env) CreateUser(t *testing.T, name, email, pwd, role string, createdAt ...time.Time) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := env.UserRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateEvent stores an event taking place at date.
func (env *Env) CreateEvent(t *testing.T, name string, date time.Time, status string) event.Event {
	t.Helper()

	evt, err := env.Events.Create(context.Background(), event.NewEvent{
		Name:      name,
		EventDate: date,
		VenueName: "Mirano Continental",
		Status:    status,
	})
	if err != nil {
		t.Fatalf("CreateEvent() failed: %v", err)
	}
	return evt
}

// AtVenue returns a position inside the venue's geofence.
func AtVenue() *access.Point {
	return &access.Point{Latitude: VenueLatitude, Longitude: VenueLongitude}
}

// FreezeTime makes core.NowFunc return now until the test ends.
func FreezeTime(t *testing.T, now time.Time) {
	t.Helper()

	prev := core.NowFunc
	core.NowFunc = func() time.Time { return now.UTC() }
	t.Cleanup(func() { core.NowFunc = prev })
}
