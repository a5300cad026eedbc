package ticket

import (
	"encoding/json"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/invasionlatina/backend/core"
)

// Categories
const (
	CategoryStandard = "standard"
	CategoryVIP      = "vip"
	CategoryPlatinum = "platinum"
)

// Statuses
const (
	StatusActive    = "active"
	StatusUsed      = "used"
	StatusCancelled = "cancelled"
)

const (
	MaxQuantity = 10
	// PointsRate is the share of the price credited as loyalty points.
	PointsRate = 0.1
	Currency   = "eur"

	qrType = "ticket"
)

var AllCategories = []string{CategoryStandard, CategoryVIP, CategoryPlatinum}

// Category is a kind of ticket sold for an event.
type Category struct {
	EventID        string  `json:"event_id"`
	Category       string  `json:"category"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	AvailableSeats int     `json:"available_seats"`
}

type Ticket struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	UserID      string     `json:"user_id"`
	Category    string     `json:"ticket_category"`
	Price       float64    `json:"price"`
	Code        string     `json:"ticket_code"`
	QRData      string     `json:"qr_data"`
	Status      string     `json:"status"`
	PaymentID   string     `json:"payment_id"`
	PurchasedAt time.Time  `json:"purchase_date"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
	ValidatedBy string     `json:"validated_by,omitempty"`
}

type NewCategory struct {
	Category       string  `json:"category" validate:"required,ticketcategory"`
	Name           string  `json:"name" validate:"required,max=100"`
	Price          float64 `json:"price" validate:"min=0"`
	AvailableSeats int     `json:"available_seats" validate:"min=0"`
}

// SetCategories replaces the ticket categories of an event.
type SetCategories struct {
	Categories []NewCategory `json:"categories" validate:"required,min=1,max=3,dive"`
}

func (sc *SetCategories) Validate(validate *validator.Validate) error {
	for i := range sc.Categories {
		c := &sc.Categories[i]
		c.Category = core.CleanString(c.Category, true /* lower */)
		c.Name = core.CleanString(c.Name)
	}
	return validate.Struct(sc)
}

// Purchase is the checkout form of the app.
type Purchase struct {
	EventID         string `json:"event_id" validate:"required"`
	Category        string `json:"ticket_category" validate:"required,ticketcategory"`
	Quantity        int    `json:"quantity" validate:"min=0,max=10"`
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
}

func (p *Purchase) Validate(validate *validator.Validate) error {
	p.EventID = core.CleanString(p.EventID)
	p.Category = core.CleanString(p.Category, true /* lower */)
	p.PaymentMethodID = core.CleanString(p.PaymentMethodID)
	if p.Quantity == 0 {
		p.Quantity = 1
	}
	return validate.Struct(p)
}

type PurchaseResult struct {
	Tickets      []Ticket `json:"tickets"`
	TotalPrice   float64  `json:"total_price"`
	PaymentID    string   `json:"payment_id"`
	PointsEarned int      `json:"points_earned"`
	TotalPoints  int      `json:"total_points"`
}

type ValidationResult struct {
	Ticket  Ticket `json:"ticket"`
	Message string `json:"message"`
}

// qrData is the content of the QR code printed on a ticket.
type qrData struct {
	Type     string `json:"type"`
	Code     string `json:"ticket_code"`
	EventID  string `json:"event_id"`
	Category string `json:"category"`
}

func encodeQRData(t Ticket) string {
	b, _ := json.Marshal(qrData{Type: qrType, Code: t.Code, EventID: t.EventID, Category: t.Category})
	return string(b)
}

// NewCode returns a ticket code such as IL3F9A0C2B.
func NewCode() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "IL" + strings.ToUpper(id[:8])
}

// InitValidators registers the ticket enums.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnumValidation(validate, translator, "ticketcategory", "invalid ticket category", AllCategories...)
}
