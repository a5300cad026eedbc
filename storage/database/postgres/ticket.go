package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/loyalty"
	"github.com/invasionlatina/backend/core/ticket"
	"github.com/invasionlatina/backend/core/user"
)

const (
	categoryColumns = `event_id, category, name, price, available_seats`
	ticketColumns   = `id, event_id, user_id, category, price, code, qr_data, status, payment_id, purchased_at,
	validated_at, validated_by`
)

type categoryRow struct {
	EventID        string  `db:"event_id"`
	Category       string  `db:"category"`
	Name           string  `db:"name"`
	Price          float64 `db:"price"`
	AvailableSeats int     `db:"available_seats"`
}

type ticketRow struct {
	ID          string      `db:"id"`
	EventID     string      `db:"event_id"`
	UserID      string      `db:"user_id"`
	Category    string      `db:"category"`
	Price       float64     `db:"price"`
	Code        string      `db:"code"`
	QRData      string      `db:"qr_data"`
	Status      string      `db:"status"`
	PaymentID   string      `db:"payment_id"`
	PurchasedAt time.Time   `db:"purchased_at"`
	ValidatedAt null.Time   `db:"validated_at"`
	ValidatedBy null.String `db:"validated_by"`
}

func (r ticketRow) toTicket() ticket.Ticket {
	t := ticket.Ticket{
		ID:          r.ID,
		EventID:     r.EventID,
		UserID:      r.UserID,
		Category:    r.Category,
		Price:       r.Price,
		Code:        r.Code,
		QRData:      r.QRData,
		Status:      r.Status,
		PaymentID:   r.PaymentID,
		PurchasedAt: r.PurchasedAt.UTC(),
		ValidatedBy: r.ValidatedBy.String,
	}
	if r.ValidatedAt.Valid {
		at := r.ValidatedAt.Time.UTC()
		t.ValidatedAt = &at
	}
	return t
}

type ticketRepository struct {
	db core.DB
}

var _ ticket.Repository = (*ticketRepository)(nil)

func NewTicketRepository(db core.DB) *ticketRepository {
	return &ticketRepository{db: db}
}

func (repo ticketRepository) SetCategories(ctx context.Context, eventID string, cats []ticket.Category) ([]ticket.Category, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ticket_categories WHERE event_id = $1`, eventID); err != nil {
			return errors.Wrap(err, "deleting ticket categories")
		}
		for _, c := range cats {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO ticket_categories (`+categoryColumns+`) VALUES ($1, $2, $3, $4, $5)`,
				eventID, c.Category, c.Name, c.Price, c.AvailableSeats,
			)
			if err != nil {
				return errors.Wrap(err, "inserting ticket category")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cats, nil
}

func (repo ticketRepository) QueryCategories(ctx context.Context, eventID string) ([]ticket.Category, error) {
	if _, err := uuid.Parse(eventID); err != nil {
		return []ticket.Category{}, nil
	}
	var rows []categoryRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+categoryColumns+` FROM ticket_categories WHERE event_id = $1 ORDER BY price`, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "querying ticket categories")
	}
	cats := make([]ticket.Category, 0, len(rows))
	for _, r := range rows {
		cats = append(cats, ticket.Category(r))
	}
	return cats, nil
}

func (repo ticketRepository) GetCategory(ctx context.Context, eventID, category string) (ticket.Category, error) {
	if _, err := uuid.Parse(eventID); err != nil {
		return ticket.Category{}, ticket.ErrCategoryNotFound
	}
	var row categoryRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+categoryColumns+` FROM ticket_categories WHERE event_id = $1 AND category = $2`, eventID, category)
	if err != nil {
		return ticket.Category{}, trapNoRowsErr(err, ticket.ErrCategoryNotFound, "getting ticket category")
	}
	return ticket.Category(row), nil
}

// RecordPurchase takes the seats with a conditional update, so that two buyers of the last seats
// cannot both get them.
func (repo ticketRepository) RecordPurchase(ctx context.Context, tickets []ticket.Ticket, t loyalty.Transaction) (int, error) {
	if len(tickets) == 0 {
		return 0, ticket.ErrSoldOut
	}
	first := tickets[0]
	var total int
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var left int
		err := tx.GetContext(ctx, &left,
			`UPDATE ticket_categories SET available_seats = available_seats - $3
			WHERE event_id = $1 AND category = $2 AND available_seats >= $3
			RETURNING available_seats`,
			first.EventID, first.Category, len(tickets),
		)
		if err != nil {
			return trapNoRowsErr(err, ticket.ErrSoldOut, "taking seats")
		}

		for _, tk := range tickets {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO tickets (id, event_id, user_id, category, price, code, qr_data, status, payment_id, purchased_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				tk.ID, tk.EventID, tk.UserID, tk.Category, tk.Price, tk.Code, tk.QRData, tk.Status, tk.PaymentID,
				tk.PurchasedAt.UTC(),
			)
			if err != nil {
				return errors.Wrap(err, "inserting ticket")
			}
		}

		err = tx.GetContext(ctx, &total,
			`UPDATE users SET loyalty_points = loyalty_points + $2 WHERE id = $1 RETURNING loyalty_points`,
			t.UserID, t.Points,
		)
		if err != nil {
			return trapNoRowsErr(err, user.ErrNotFound, "crediting points")
		}
		if t.Points == 0 {
			return nil
		}
		return insertTransaction(ctx, tx, t)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (repo ticketRepository) QueryTickets(ctx context.Context, userID string) ([]ticket.Ticket, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []ticket.Ticket{}, nil
	}
	var rows []ticketRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+ticketColumns+` FROM tickets WHERE user_id = $1 ORDER BY purchased_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying tickets")
	}
	tickets := make([]ticket.Ticket, 0, len(rows))
	for _, r := range rows {
		tickets = append(tickets, r.toTicket())
	}
	return tickets, nil
}

func (repo ticketRepository) ValidateTicket(ctx context.Context, code string, at time.Time, by string) (ticket.Ticket, error) {
	var row ticketRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE tickets SET status = 'used', validated_at = $2, validated_by = $3
		WHERE code = $1 AND status = 'active'
		RETURNING `+ticketColumns,
		code, at.UTC(), by,
	)
	if err == nil {
		return row.toTicket(), nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return ticket.Ticket{}, errors.Wrap(err, "validating ticket")
	}

	var exists bool
	if err = repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM tickets WHERE code = $1)`, code); err != nil {
		return ticket.Ticket{}, errors.Wrap(err, "checking ticket")
	}
	if exists {
		return ticket.Ticket{}, ticket.ErrAlreadyUsed
	}
	return ticket.Ticket{}, ticket.ErrNotFound
}
