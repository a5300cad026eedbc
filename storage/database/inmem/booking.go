package inmemdb

import (
	"context"
	"sort"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/booking"
)

type bookingRepository struct {
	db *DB
}

var _ booking.Repository = (*bookingRepository)(nil)

func NewBookingRepository(db *DB) *bookingRepository {
	return &bookingRepository{db: db}
}

func (repo *bookingRepository) CreateBooking(_ context.Context, b booking.Booking) (booking.Booking, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.bookings[b.ID] = &b
	return b, nil
}

func (repo *bookingRepository) GetBooking(_ context.Context, id string) (booking.Booking, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if b, ok := repo.db.bookings[id]; ok {
		return *b, nil
	}
	return booking.Booking{}, booking.ErrNotFound
}

func (repo *bookingRepository) QueryBookings(_ context.Context, userID string) ([]booking.Booking, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	bookings := make([]booking.Booking, 0)
	for _, b := range repo.db.bookings {
		if userID == "" || b.UserID == userID {
			bookings = append(bookings, *b)
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].SubmittedAt.After(bookings[j].SubmittedAt) })
	return bookings, nil
}

func (repo *bookingRepository) SetBookingStatus(_ context.Context, id, status string) (booking.Booking, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	b, ok := repo.db.bookings[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = core.NowFunc()
	return *b, nil
}

func (repo *bookingRepository) DeleteBooking(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.bookings[id]; !ok {
		return booking.ErrNotFound
	}
	delete(repo.db.bookings, id)
	return nil
}

func (repo *bookingRepository) DeleteBookings(_ context.Context) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	n := len(repo.db.bookings)
	repo.db.bookings = make(map[string]*booking.Booking)
	return n, nil
}
