package booking

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/invasionlatina/backend/core"
)

// Zones
const (
	ZoneMainFloor = "main_floor"
	ZoneVIPArea   = "vip_area"
	ZoneTerrace   = "terrace"
)

// Packages
const (
	PackageBronze = "bronze"
	PackageSilver = "silver"
	PackageGold   = "gold"
)

// Statuses
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

const DefaultGuestCount = 6

var (
	AllZones    = []string{ZoneMainFloor, ZoneVIPArea, ZoneTerrace}
	AllPackages = []string{PackageBronze, PackageSilver, PackageGold}
	AllStatuses = []string{StatusPending, StatusConfirmed, StatusCancelled}
)

type Booking struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	EventID           string    `json:"event_id"`
	EventName         string    `json:"event_name,omitempty"`
	EventDate         time.Time `json:"event_date,omitempty"`
	Zone              string    `json:"zone"`
	Package           string    `json:"package"`
	GuestCount        int       `json:"guest_count"`
	BottlePreferences string    `json:"bottle_preferences"`
	SpecialRequests   string    `json:"special_requests"`
	TotalPrice        float64   `json:"total_price"`
	Status            string    `json:"status"`
	CustomerName      string    `json:"customer_name"`
	CustomerEmail     string    `json:"customer_email"`
	CustomerPhone     string    `json:"customer_phone"`
	SubmittedAt       time.Time `json:"submitted_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewBooking is the table reservation form of the app.
type NewBooking struct {
	EventID           string  `json:"event_id" validate:"required"`
	Zone              string  `json:"zone" validate:"required,vipzone"`
	Package           string  `json:"package" validate:"required,vippackage"`
	GuestCount        int     `json:"guest_count" validate:"min=0,max=50"`
	BottlePreferences string  `json:"bottle_preferences" validate:"max=500"`
	SpecialRequests   string  `json:"special_requests" validate:"max=1000"`
	TotalPrice        float64 `json:"total_price" validate:"min=0"`
	CustomerName      string  `json:"customer_name" validate:"max=100"`
	CustomerEmail     string  `json:"customer_email" validate:"omitempty,email"`
	CustomerPhone     string  `json:"customer_phone" validate:"max=32"`
}

func (nb *NewBooking) Validate(validate *validator.Validate) error {
	nb.EventID = core.CleanString(nb.EventID)
	nb.Zone = core.CleanString(nb.Zone, true /* lower */)
	nb.Package = core.CleanString(nb.Package, true /* lower */)
	nb.BottlePreferences = core.CleanString(nb.BottlePreferences)
	nb.SpecialRequests = core.CleanString(nb.SpecialRequests)
	nb.CustomerName = core.CleanString(nb.CustomerName)
	nb.CustomerEmail = core.CleanString(nb.CustomerEmail, true /* lower */)
	nb.CustomerPhone = core.CleanString(nb.CustomerPhone)
	if nb.GuestCount == 0 {
		nb.GuestCount = DefaultGuestCount
	}
	return validate.Struct(nb)
}

type UpdateStatus struct {
	Status string `json:"status" validate:"required,bookingstatus"`
}

func (us *UpdateStatus) Validate(validate *validator.Validate) error {
	us.Status = core.CleanString(us.Status, true /* lower */)
	return validate.Struct(us)
}

// InitValidators registers the booking enums.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnumValidation(validate, translator, "vipzone", "invalid zone", AllZones...)
	core.RegisterEnumValidation(validate, translator, "vippackage", "invalid package", AllPackages...)
	core.RegisterEnumValidation(validate, translator, "bookingstatus", "invalid booking status", AllStatuses...)
}
