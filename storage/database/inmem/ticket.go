package inmemdb

import (
	"context"
	"time"

	"github.com/invasionlatina/backend/core/loyalty"
	"github.com/invasionlatina/backend/core/ticket"
	"github.com/invasionlatina/backend/core/user"
)

type ticketRepository struct {
	db *DB
}

var _ ticket.Repository = (*ticketRepository)(nil)

func NewTicketRepository(db *DB) *ticketRepository {
	return &ticketRepository{db: db}
}

func (repo *ticketRepository) SetCategories(_ context.Context, eventID string, cats []ticket.Category) ([]ticket.Category, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.categories[eventID] = append([]ticket.Category(nil), cats...)
	return cats, nil
}

func (repo *ticketRepository) QueryCategories(_ context.Context, eventID string) ([]ticket.Category, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return append(make([]ticket.Category, 0), repo.db.categories[eventID]...), nil
}

func (repo *ticketRepository) GetCategory(_ context.Context, eventID, category string) (ticket.Category, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.categories[eventID] {
		if c.Category == category {
			return c, nil
		}
	}
	return ticket.Category{}, ticket.ErrCategoryNotFound
}

func (repo *ticketRepository) RecordPurchase(_ context.Context, tickets []ticket.Ticket, t loyalty.Transaction) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if len(tickets) == 0 {
		return 0, ticket.ErrSoldOut
	}
	first := tickets[0]
	cats := repo.db.categories[first.EventID]
	idx := -1
	for i := range cats {
		if cats[i].Category == first.Category {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, ticket.ErrCategoryNotFound
	}
	if cats[idx].AvailableSeats < len(tickets) {
		return 0, ticket.ErrSoldOut
	}
	usr, ok := repo.db.users[t.UserID]
	if !ok {
		return 0, user.ErrNotFound
	}

	cats[idx].AvailableSeats -= len(tickets)
	repo.db.tickets = append(repo.db.tickets, tickets...)
	if t.Points > 0 {
		usr.LoyaltyPoints += t.Points
		repo.db.transactions = append(repo.db.transactions, t)
	}
	return usr.LoyaltyPoints, nil
}

func (repo *ticketRepository) QueryTickets(_ context.Context, userID string) ([]ticket.Ticket, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tickets := make([]ticket.Ticket, 0)
	for i := len(repo.db.tickets) - 1; i >= 0; i-- {
		if t := repo.db.tickets[i]; t.UserID == userID {
			tickets = append(tickets, t)
		}
	}
	return tickets, nil
}

func (repo *ticketRepository) ValidateTicket(_ context.Context, code string, at time.Time, by string) (ticket.Ticket, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range repo.db.tickets {
		t := &repo.db.tickets[i]
		if t.Code != code {
			continue
		}
		if t.Status != ticket.StatusActive {
			return ticket.Ticket{}, ticket.ErrAlreadyUsed
		}
		validatedAt := at
		t.Status = ticket.StatusUsed
		t.ValidatedAt = &validatedAt
		t.ValidatedBy = by
		return *t, nil
	}
	return ticket.Ticket{}, ticket.ErrNotFound
}
