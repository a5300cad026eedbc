package pgrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/event"
)

const eventColumns = `id, name, description, event_date, venue_name, venue_address, status, banner_image,
	ticket_url, created_at`

type eventRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Description  string      `db:"description"`
	EventDate    time.Time   `db:"event_date"`
	VenueName    string      `db:"venue_name"`
	VenueAddress string      `db:"venue_address"`
	Status       string      `db:"status"`
	BannerImage  null.String `db:"banner_image"`
	TicketURL    null.String `db:"ticket_url"`
	CreatedAt    time.Time   `db:"created_at"`
}

func (r eventRow) toEvent() event.Event {
	return event.Event{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		EventDate:    r.EventDate.UTC(),
		VenueName:    r.VenueName,
		VenueAddress: r.VenueAddress,
		Status:       r.Status,
		BannerImage:  r.BannerImage.String,
		TicketURL:    r.TicketURL.String,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type eventRepository struct {
	db core.DBExecutor
}

var _ event.Repository = (*eventRepository)(nil)

func NewEventRepository(db core.DBExecutor) *eventRepository {
	return &eventRepository{db: db}
}

func (repo eventRepository) CreateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	q := `INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + eventColumns
	var row eventRow
	err := repo.db.GetContext(ctx, &row, q,
		evt.ID, evt.Name, evt.Description, evt.EventDate.UTC(), evt.VenueName, evt.VenueAddress, evt.Status,
		null.NewString(evt.BannerImage, evt.BannerImage != ""), null.NewString(evt.TicketURL, evt.TicketURL != ""),
		evt.CreatedAt.UTC(),
	)
	if err != nil {
		return event.Event{}, errors.Wrap(err, "inserting event")
	}
	return row.toEvent(), nil
}

func (repo eventRepository) GetEvent(ctx context.Context, id string) (event.Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return event.Event{}, event.ErrNotFound
	}
	var row eventRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id); err != nil {
		return event.Event{}, trapNoRowsErr(err, event.ErrNotFound, "finding event")
	}
	return row.toEvent(), nil
}

func (repo eventRepository) QueryEvents(ctx context.Context, filter event.QueryFilter) ([]event.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE ($1 = '' OR status = $1) ORDER BY event_date ASC`
	var rows []eventRow
	if err := repo.db.SelectContext(ctx, &rows, q, filter.Status); err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	events := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toEvent())
	}
	return events, nil
}

func (repo eventRepository) UpdateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	q := `UPDATE events SET name = $2, description = $3, event_date = $4, venue_name = $5, venue_address = $6,
			status = $7, banner_image = $8, ticket_url = $9
		WHERE id = $1
		RETURNING ` + eventColumns
	var row eventRow
	err := repo.db.GetContext(ctx, &row, q,
		evt.ID, evt.Name, evt.Description, evt.EventDate.UTC(), evt.VenueName, evt.VenueAddress, evt.Status,
		null.NewString(evt.BannerImage, evt.BannerImage != ""), null.NewString(evt.TicketURL, evt.TicketURL != ""),
	)
	if err != nil {
		return event.Event{}, trapNoRowsErr(err, event.ErrNotFound, "updating event")
	}
	return row.toEvent(), nil
}

func (repo eventRepository) SetEventStatus(ctx context.Context, id, status string) error {
	if _, err := uuid.Parse(id); err != nil {
		return event.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `UPDATE events SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return errors.Wrap(err, "setting event status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return event.ErrNotFound
	}
	return nil
}

func (repo eventRepository) DeleteEvent(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return event.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting event")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return event.ErrNotFound
	}
	return nil
}
