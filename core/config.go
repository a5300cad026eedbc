package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	serverConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		AllowedOrigins            []string
		RateLimit                 float64 // events per second, per user
		RateBurst                 int
	}

	dbConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// VenueConfig locates the club and its opening hours.
	VenueConfig struct {
		Name         string
		Latitude     float64
		Longitude    float64
		RadiusMeters float64
		StartHour    int
		EndHour      int
		Timezone     string
	}

	loyaltyConfig struct {
		CheckinPoints   int
		RewardThreshold int
		RewardValidity  time.Duration
	}

	notifyConfig struct {
		ExpoPushURL    string
		WhatsAppURL    string
		WhatsAppPhone  string
		WhatsAppAPIKey string
		Timeout        time.Duration
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		RollbarToken     string
		SendgridAPIKey   string
		Server           serverConfig
		Database         dbConfig
		Venue            VenueConfig
		Loyalty          loyaltyConfig
		Notify           notifyConfig
	}
)

func (c dbConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Location returns the venue's time zone, falling back to the local one.
func (c VenueConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// NewConfig reads the configuration from the environment (and `config/.env.<env>` when it exists).
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Invasion Latina")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("secretKey", "f3k!9w%q2z-)tl@c_8sx=m4v$0y#hb7&e1ju^rgdn6o(pia5")
	v.SetDefault("frontendBaseURL", "http://localhost:8081")
	v.SetDefault("defaultFromEmail", "Invasion Latina <noreply@invasionlatina.be>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridAPIKey", "")

	v.SetDefault("serverHost", "0.0.0.0:8000")
	v.SetDefault("serverDebugHost", "0.0.0.0:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 30*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 90*24*time.Hour)
	v.SetDefault("allowedOrigins", []string{"*"})
	v.SetDefault("rateLimit", 0.2)
	v.SetDefault("rateBurst", 5)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "invasionlatina")
	v.SetDefault("dbUser", "invasionlatina")
	v.SetDefault("dbPassword", "invasionlatina")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", env == "DEV" || env == "TEST")

	v.SetDefault("venueName", "Mirano Continental")
	v.SetDefault("venueLatitude", 50.8389)
	v.SetDefault("venueLongitude", 4.3660)
	v.SetDefault("venueRadiusMeters", 40.0)
	v.SetDefault("venueStartHour", 23)
	v.SetDefault("venueEndHour", 5)
	v.SetDefault("venueTimezone", "Europe/Brussels")

	v.SetDefault("loyaltyCheckinPoints", 5)
	v.SetDefault("loyaltyRewardThreshold", 25)
	v.SetDefault("loyaltyRewardValidity", 90*24*time.Hour)

	v.SetDefault("notifyExpoPushURL", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("notifyWhatsAppURL", "https://api.callmebot.com/whatsapp.php")
	v.SetDefault("notifyWhatsAppPhone", "")
	v.SetDefault("notifyWhatsAppAPIKey", "")
	v.SetDefault("notifyTimeout", 10*time.Second)

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	return &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: *from,
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridAPIKey:   v.GetString("sendgridAPIKey"),
		Server: serverConfig{
			Host:                      v.GetString("serverHost"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
			AllowedOrigins:            v.GetStringSlice("allowedOrigins"),
			RateLimit:                 v.GetFloat64("rateLimit"),
			RateBurst:                 v.GetInt("rateBurst"),
		},
		Database: dbConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Venue: VenueConfig{
			Name:         v.GetString("venueName"),
			Latitude:     v.GetFloat64("venueLatitude"),
			Longitude:    v.GetFloat64("venueLongitude"),
			RadiusMeters: v.GetFloat64("venueRadiusMeters"),
			StartHour:    v.GetInt("venueStartHour"),
			EndHour:      v.GetInt("venueEndHour"),
			Timezone:     v.GetString("venueTimezone"),
		},
		Loyalty: loyaltyConfig{
			CheckinPoints:   v.GetInt("loyaltyCheckinPoints"),
			RewardThreshold: v.GetInt("loyaltyRewardThreshold"),
			RewardValidity:  v.GetDuration("loyaltyRewardValidity"),
		},
		Notify: notifyConfig{
			ExpoPushURL:    v.GetString("notifyExpoPushURL"),
			WhatsAppURL:    v.GetString("notifyWhatsAppURL"),
			WhatsAppPhone:  v.GetString("notifyWhatsAppPhone"),
			WhatsAppAPIKey: v.GetString("notifyWhatsAppAPIKey"),
			Timeout:        v.GetDuration("notifyTimeout"),
		},
	}
}
