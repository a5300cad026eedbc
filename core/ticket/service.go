// Package ticket sells the entry tickets of the events and validates them at the door.
package ticket

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/event"
	"github.com/invasionlatina/backend/core/loyalty"
	"github.com/invasionlatina/backend/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("Billet non trouvé")
	ErrCategoryNotFound  = core.NewNotFoundError("Catégorie de billet non disponible pour cet événement")
	ErrDuplicateCategory = core.NewConflictError("Catégorie de billet en double")
	ErrSoldOut           = core.NewConflictError("Plus assez de billets disponibles")
	ErrEventOver         = core.NewConflictError("Cet événement est terminé")
	ErrAlreadyUsed       = core.NewConflictError("Billet déjà utilisé ou invalide")
)

type (
	Repository interface {
		// SetCategories replaces every category of eventID.
		SetCategories(ctx context.Context, eventID string, cats []Category) ([]Category, error)
		QueryCategories(ctx context.Context, eventID string) ([]Category, error)
		GetCategory(ctx context.Context, eventID, category string) (Category, error)
		// RecordPurchase takes len(tickets) seats of their category, stores the tickets and credits
		// the buyer with t.Points, in one step. It returns ErrSoldOut when the seats ran out and the
		// buyer's new balance otherwise.
		RecordPurchase(ctx context.Context, tickets []Ticket, t loyalty.Transaction) (int, error)
		// QueryTickets returns the tickets of userID, newest first.
		QueryTickets(ctx context.Context, userID string) ([]Ticket, error)
		// ValidateTicket marks an active ticket used. It returns ErrAlreadyUsed when the ticket is
		// no longer active.
		ValidateTicket(ctx context.Context, code string, at time.Time, by string) (Ticket, error)
	}

	EventStore interface {
		Get(ctx context.Context, id string) (event.Event, error)
	}

	Service struct {
		repo     Repository
		events   EventStore
		payments core.PaymentService
		logger   core.Logger
	}
)

func NewService(repo Repository, events EventStore, payments core.PaymentService, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		events:   events,
		payments: payments,
		logger:   logger,
	}
}

func (svc *Service) Categories(ctx context.Context, eventID string) ([]Category, error) {
	evt, err := svc.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryCategories(ctx, evt.ID)
}

func (svc *Service) SetCategories(ctx context.Context, eventID string, sc SetCategories) ([]Category, error) {
	evt, err := svc.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(sc.Categories))
	cats := make([]Category, 0, len(sc.Categories))
	for _, nc := range sc.Categories {
		if seen[nc.Category] {
			return nil, ErrDuplicateCategory
		}
		seen[nc.Category] = true
		cats = append(cats, Category{
			EventID:        evt.ID,
			Category:       nc.Category,
			Name:           nc.Name,
			Price:          nc.Price,
			AvailableSeats: nc.AvailableSeats,
		})
	}
	return svc.repo.SetCategories(ctx, evt.ID, cats)
}

// Purchase charges usr and issues the tickets. The payment is refunded when the tickets cannot be
// stored, such as when the last seats were sold in the meantime.
func (svc *Service) Purchase(ctx context.Context, usr user.User, p Purchase) (PurchaseResult, error) {
	evt, err := svc.events.Get(ctx, p.EventID)
	if err != nil {
		return PurchaseResult{}, err
	}
	if evt.Status == event.StatusPast {
		return PurchaseResult{}, ErrEventOver
	}
	cat, err := svc.repo.GetCategory(ctx, evt.ID, p.Category)
	if err != nil {
		return PurchaseResult{}, err
	}
	if cat.AvailableSeats < p.Quantity {
		return PurchaseResult{}, ErrSoldOut
	}

	total := cat.Price * float64(p.Quantity)
	var payment core.Payment
	if total > 0 {
		payment, err = svc.payments.Charge(ctx, &core.PaymentRequest{
			AmountCents:     int64(math.Round(total * 100)),
			Currency:        Currency,
			PaymentMethodID: p.PaymentMethodID,
			CustomerEmail:   usr.Email,
			Description:     fmt.Sprintf("%d x %s - %s", p.Quantity, cat.Name, evt.Name),
		})
		if err != nil {
			return PurchaseResult{}, errors.Wrap(err, "charging tickets")
		}
	}

	now := core.NowFunc()
	tickets := make([]Ticket, 0, p.Quantity)
	for i := 0; i < p.Quantity; i++ {
		t := Ticket{
			ID:          uuid.New().String(),
			EventID:     evt.ID,
			UserID:      usr.ID,
			Category:    cat.Category,
			Price:       cat.Price,
			Code:        NewCode(),
			Status:      StatusActive,
			PaymentID:   payment.ID,
			PurchasedAt: now,
		}
		t.QRData = encodeQRData(t)
		tickets = append(tickets, t)
	}

	points := int(total * PointsRate)
	balance, err := svc.repo.RecordPurchase(ctx, tickets, loyalty.Transaction{
		ID:          uuid.New().String(),
		UserID:      usr.ID,
		Points:      points,
		Kind:        loyalty.KindPurchase,
		Description: "Achat de billets",
		CreatedAt:   now,
	})
	if err != nil {
		svc.refund(ctx, payment)
		return PurchaseResult{}, err
	}
	return PurchaseResult{
		Tickets:      tickets,
		TotalPrice:   total,
		PaymentID:    payment.ID,
		PointsEarned: points,
		TotalPoints:  balance,
	}, nil
}

func (svc *Service) refund(ctx context.Context, payment core.Payment) {
	if payment.ID == "" {
		return
	}
	if err := svc.payments.Refund(ctx, payment.ID); err != nil {
		svc.logger.Error(fmt.Sprintf("refunding payment %s: %v", payment.ID, err), err)
	}
}

func (svc *Service) Mine(ctx context.Context, userID string) ([]Ticket, error) {
	return svc.repo.QueryTickets(ctx, userID)
}

// Validate lets the door staff accept a ticket. A ticket is accepted once.
func (svc *Service) Validate(ctx context.Context, code, scannerID string) (ValidationResult, error) {
	code = strings.ToUpper(core.CleanString(code))
	t, err := svc.repo.ValidateTicket(ctx, code, core.NowFunc(), scannerID)
	if err != nil {
		return ValidationResult{}, err
	}
	return ValidationResult{Ticket: t, Message: "Billet validé"}, nil
}
