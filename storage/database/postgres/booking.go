package pgrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/booking"
)

const bookingColumns = `id, user_id, event_id, zone, package, guest_count, bottle_preferences, special_requests,
	total_price, status, customer_name, customer_email, customer_phone, submitted_at, updated_at`

type bookingRow struct {
	ID                string    `db:"id"`
	UserID            string    `db:"user_id"`
	EventID           string    `db:"event_id"`
	Zone              string    `db:"zone"`
	Package           string    `db:"package"`
	GuestCount        int       `db:"guest_count"`
	BottlePreferences string    `db:"bottle_preferences"`
	SpecialRequests   string    `db:"special_requests"`
	TotalPrice        float64   `db:"total_price"`
	Status            string    `db:"status"`
	CustomerName      string    `db:"customer_name"`
	CustomerEmail     string    `db:"customer_email"`
	CustomerPhone     string    `db:"customer_phone"`
	SubmittedAt       time.Time `db:"submitted_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r bookingRow) toBooking() booking.Booking {
	return booking.Booking{
		ID:                r.ID,
		UserID:            r.UserID,
		EventID:           r.EventID,
		Zone:              r.Zone,
		Package:           r.Package,
		GuestCount:        r.GuestCount,
		BottlePreferences: r.BottlePreferences,
		SpecialRequests:   r.SpecialRequests,
		TotalPrice:        r.TotalPrice,
		Status:            r.Status,
		CustomerName:      r.CustomerName,
		CustomerEmail:     r.CustomerEmail,
		CustomerPhone:     r.CustomerPhone,
		SubmittedAt:       r.SubmittedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

type bookingRepository struct {
	db core.DBExecutor
}

var _ booking.Repository = (*bookingRepository)(nil)

func NewBookingRepository(db core.DBExecutor) *bookingRepository {
	return &bookingRepository{db: db}
}

func (repo bookingRepository) CreateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	q := `INSERT INTO vip_bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + bookingColumns
	var row bookingRow
	err := repo.db.GetContext(ctx, &row, q,
		b.ID, b.UserID, b.EventID, b.Zone, b.Package, b.GuestCount, b.BottlePreferences, b.SpecialRequests,
		b.TotalPrice, b.Status, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
		b.SubmittedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if err != nil {
		return booking.Booking{}, errors.Wrap(err, "inserting booking")
	}
	return row.toBooking(), nil
}

func (repo bookingRepository) GetBooking(ctx context.Context, id string) (booking.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return booking.Booking{}, booking.ErrNotFound
	}
	var row bookingRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM vip_bookings WHERE id = $1`, id); err != nil {
		return booking.Booking{}, trapNoRowsErr(err, booking.ErrNotFound, "finding booking")
	}
	return row.toBooking(), nil
}

func (repo bookingRepository) QueryBookings(ctx context.Context, userID string) ([]booking.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM vip_bookings
		WHERE ($1 = '' OR user_id::text = $1)
		ORDER BY submitted_at DESC`
	var rows []bookingRow
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying bookings")
	}
	bookings := make([]booking.Booking, 0, len(rows))
	for _, r := range rows {
		bookings = append(bookings, r.toBooking())
	}
	return bookings, nil
}

func (repo bookingRepository) SetBookingStatus(ctx context.Context, id, status string) (booking.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return booking.Booking{}, booking.ErrNotFound
	}
	var row bookingRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE vip_bookings SET status = $2, updated_at = $3 WHERE id = $1 RETURNING `+bookingColumns,
		id, status, core.NowFunc(),
	)
	if err != nil {
		return booking.Booking{}, trapNoRowsErr(err, booking.ErrNotFound, "updating booking status")
	}
	return row.toBooking(), nil
}

func (repo bookingRepository) DeleteBooking(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return booking.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM vip_bookings WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting booking")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (repo bookingRepository) DeleteBookings(ctx context.Context) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM vip_bookings`)
	if err != nil {
		return 0, errors.Wrap(err, "deleting bookings")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting deleted bookings")
}
