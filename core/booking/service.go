// Package booking handles the VIP table reservations.
package booking

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/event"
	"github.com/invasionlatina/backend/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("Réservation non trouvée")
	ErrNotOwner         = core.NewAccessDeniedError("not_owner", "Vous ne pouvez annuler que vos propres réservations")
	ErrAlreadyCancelled = core.NewConflictError("Cette réservation est déjà annulée")
)

type (
	Repository interface {
		CreateBooking(ctx context.Context, b Booking) (Booking, error)
		GetBooking(ctx context.Context, id string) (Booking, error)
		// QueryBookings returns the bookings of userID (all of them when empty), newest first.
		QueryBookings(ctx context.Context, userID string) ([]Booking, error)
		SetBookingStatus(ctx context.Context, id, status string) (Booking, error)
		DeleteBooking(ctx context.Context, id string) error
		DeleteBookings(ctx context.Context) (int, error)
	}

	EventStore interface {
		Get(ctx context.Context, id string) (event.Event, error)
		List(ctx context.Context, filter event.QueryFilter) ([]event.Event, error)
	}

	AdminTokens interface {
		AdminPushTokens(ctx context.Context) ([]string, error)
	}

	Service struct {
		repo        Repository
		events      EventStore
		admins      AdminTokens
		pushSvc     core.PushService
		whatsappSvc core.WhatsAppService
		mailSvc     core.EmailService
		logger      core.Logger
	}
)

func NewService(
	repo Repository,
	events EventStore,
	admins AdminTokens,
	pushSvc core.PushService,
	whatsappSvc core.WhatsAppService,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		repo:        repo,
		events:      events,
		admins:      admins,
		pushSvc:     pushSvc,
		whatsappSvc: whatsappSvc,
		mailSvc:     mailSvc,
		logger:      logger,
	}
}

// Create books a table for usr and lets the admins know about it.
func (svc *Service) Create(ctx context.Context, usr user.User, nb NewBooking) (Booking, error) {
	evt, err := svc.events.Get(ctx, nb.EventID)
	if err != nil {
		return Booking{}, err
	}

	now := core.NowFunc()
	b := Booking{
		ID:                uuid.New().String(),
		UserID:            usr.ID,
		EventID:           evt.ID,
		Zone:              nb.Zone,
		Package:           nb.Package,
		GuestCount:        nb.GuestCount,
		BottlePreferences: nb.BottlePreferences,
		SpecialRequests:   nb.SpecialRequests,
		TotalPrice:        nb.TotalPrice,
		Status:            StatusPending,
		CustomerName:      nb.CustomerName,
		CustomerEmail:     nb.CustomerEmail,
		CustomerPhone:     nb.CustomerPhone,
		SubmittedAt:       now,
		UpdatedAt:         now,
	}
	if b.CustomerName == "" {
		b.CustomerName = usr.Name
	}
	if b.CustomerEmail == "" {
		b.CustomerEmail = usr.Email
	}
	if b.CustomerPhone == "" {
		b.CustomerPhone = usr.Phone
	}

	if b, err = svc.repo.CreateBooking(ctx, b); err != nil {
		return Booking{}, err
	}
	b.EventName, b.EventDate = evt.Name, evt.EventDate

	svc.notifyAdmins(ctx, b)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: b.CustomerName, Address: b.CustomerEmail}},
		Subject:      "Demande de réservation reçue",
		TemplateName: "vip_booking",
		TemplateData: map[string]interface{}{
			"CustomerName": b.CustomerName,
			"EventName":    b.EventName,
			"EventDate":    b.EventDate.Format("02/01/2006"),
			"Zone":         b.Zone,
			"Package":      b.Package,
			"GuestCount":   b.GuestCount,
			"TotalPrice":   b.TotalPrice,
		},
	})
	return b, nil
}

func (svc *Service) notifyAdmins(ctx context.Context, b Booking) {
	special := b.SpecialRequests
	if special == "" {
		special = "Aucune"
	}
	svc.whatsappSvc.Send(fmt.Sprintf(`🍾 NOUVELLE RÉSERVATION TABLE!

📍 Salle: %s
📦 Table: %s
👥 Personnes: %d
💰 Prix: %.2f€

👤 Client: %s
📧 Email: %s
📱 Tél: %s

🎉 Événement: %s
📅 Date: %s

💬 Demandes spéciales: %s`,
		b.Zone, b.Package, b.GuestCount, b.TotalPrice,
		b.CustomerName, b.CustomerEmail, b.CustomerPhone,
		b.EventName, b.EventDate.Format("02/01/2006"),
		special,
	))

	tokens, err := svc.admins.AdminPushTokens(ctx)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("booking.notifyAdmins: %v", err), err)
		return
	}
	msg := &core.PushMessage{
		To:    tokens,
		Title: "🍾 Nouvelle réservation table!",
		Body:  fmt.Sprintf("%s - %s - %d pers. - %.2f€", b.CustomerName, b.Zone, b.GuestCount, b.TotalPrice),
		Sound: "default",
		Data:  map[string]interface{}{"type": "vip_booking", "booking_id": b.ID},
	}
	if msg.HasRecipients() {
		svc.pushSvc.Push(msg)
	}
}

// Mine returns the bookings of userID, newest first.
func (svc *Service) Mine(ctx context.Context, userID string) ([]Booking, error) {
	bookings, err := svc.repo.QueryBookings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return svc.withEvents(ctx, bookings)
}

// Query returns every booking, newest first.
func (svc *Service) Query(ctx context.Context) ([]Booking, error) {
	bookings, err := svc.repo.QueryBookings(ctx, "")
	if err != nil {
		return nil, err
	}
	return svc.withEvents(ctx, bookings)
}

func (svc *Service) withEvents(ctx context.Context, bookings []Booking) ([]Booking, error) {
	events, err := svc.events.List(ctx, event.QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "listing events")
	}
	byID := make(map[string]event.Event, len(events))
	for _, evt := range events {
		byID[evt.ID] = evt
	}
	for i := range bookings {
		if evt, ok := byID[bookings[i].EventID]; ok {
			bookings[i].EventName, bookings[i].EventDate = evt.Name, evt.EventDate
		} else {
			bookings[i].EventName = "Événement inconnu"
		}
	}
	return bookings, nil
}

// Cancel cancels one of userID's own bookings.
func (svc *Service) Cancel(ctx context.Context, id, userID string) (Booking, error) {
	b, err := svc.repo.GetBooking(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if b.UserID != userID {
		return Booking{}, ErrNotOwner
	}
	if b.Status == StatusCancelled {
		return Booking{}, ErrAlreadyCancelled
	}
	return svc.repo.SetBookingStatus(ctx, id, StatusCancelled)
}

func (svc *Service) SetStatus(ctx context.Context, id, status string) (Booking, error) {
	return svc.repo.SetBookingStatus(ctx, id, status)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteBooking(ctx, id)
}

func (svc *Service) ClearAll(ctx context.Context) (int, error) {
	return svc.repo.DeleteBookings(ctx)
}
