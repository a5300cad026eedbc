// Package event manages the club nights.
package event

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/invasionlatina/backend/core"
)

// Statuses
const (
	StatusUpcoming = "upcoming"
	StatusLive     = "live"
	StatusPast     = "past"
)

// NoActiveEvent is the event id recorded when nothing is scheduled.
const NoActiveEvent = "default_event"

var (
	AllStatuses = []string{StatusUpcoming, StatusLive, StatusPast}

	ErrNotFound = core.NewNotFoundError("Événement non trouvé")
)

type Event struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	EventDate    time.Time `json:"event_date"`
	VenueName    string    `json:"venue_name"`
	VenueAddress string    `json:"venue_address"`
	Status       string    `json:"status"`
	BannerImage  string    `json:"banner_image,omitempty"`
	TicketURL    string    `json:"ticket_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewEvent contains information needed to create or replace an Event.
type NewEvent struct {
	Name         string    `json:"name" validate:"required"`
	Description  string    `json:"description"`
	EventDate    time.Time `json:"event_date" validate:"required"`
	VenueName    string    `json:"venue_name"`
	VenueAddress string    `json:"venue_address"`
	Status       string    `json:"status" validate:"omitempty,eventstatus"`
	BannerImage  string    `json:"banner_image" validate:"omitempty,url"`
	TicketURL    string    `json:"ticket_url" validate:"omitempty,url"`
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.Name = core.CleanString(ne.Name)
	ne.Description = core.CleanString(ne.Description)
	ne.VenueName = core.CleanString(ne.VenueName)
	ne.VenueAddress = core.CleanString(ne.VenueAddress)
	ne.Status = core.CleanString(ne.Status, true /* lower */)
	ne.BannerImage = core.CleanString(ne.BannerImage)
	ne.TicketURL = core.CleanString(ne.TicketURL)
	if ne.Status == "" {
		ne.Status = StatusUpcoming
	}
	return validate.Struct(ne)
}

type QueryFilter struct {
	Status string `query:"status"`
}

type (
	Repository interface {
		CreateEvent(ctx context.Context, evt Event) (Event, error)
		GetEvent(ctx context.Context, id string) (Event, error)
		// QueryEvents returns events ordered by date, soonest first.
		QueryEvents(ctx context.Context, filter QueryFilter) ([]Event, error)
		UpdateEvent(ctx context.Context, evt Event) (Event, error)
		SetEventStatus(ctx context.Context, id, status string) error
		DeleteEvent(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

// InitValidators registers the event validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnumValidation(validate, translator, "eventstatus", "invalid event status", AllStatuses...)
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, ne NewEvent) (Event, error) {
	return svc.repo.CreateEvent(ctx, Event{
		ID:           uuid.New().String(),
		Name:         ne.Name,
		Description:  ne.Description,
		EventDate:    ne.EventDate.UTC(),
		VenueName:    ne.VenueName,
		VenueAddress: ne.VenueAddress,
		Status:       ne.Status,
		BannerImage:  ne.BannerImage,
		TicketURL:    ne.TicketURL,
		CreatedAt:    core.NowFunc(),
	})
}

func (svc *Service) Update(ctx context.Context, id string, ne NewEvent) (Event, error) {
	evt, err := svc.repo.GetEvent(ctx, id)
	if err != nil {
		return Event{}, err
	}
	evt.Name = ne.Name
	evt.Description = ne.Description
	evt.EventDate = ne.EventDate.UTC()
	evt.VenueName = ne.VenueName
	evt.VenueAddress = ne.VenueAddress
	evt.Status = ne.Status
	evt.BannerImage = ne.BannerImage
	evt.TicketURL = ne.TicketURL
	return svc.repo.UpdateEvent(ctx, evt)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteEvent(ctx, id)
}

func (svc *Service) Get(ctx context.Context, id string) (Event, error) {
	return svc.repo.GetEvent(ctx, id)
}

func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Event, error) {
	filter.Status = core.CleanString(filter.Status, true /* lower */)
	return svc.repo.QueryEvents(ctx, filter)
}

// Next returns the soonest upcoming event.
func (svc *Service) Next(ctx context.Context) (Event, error) {
	events, err := svc.repo.QueryEvents(ctx, QueryFilter{Status: StatusUpcoming})
	if err != nil {
		return Event{}, err
	}
	if len(events) == 0 {
		return Event{}, ErrNotFound
	}
	return events[0], nil
}

// Current returns the live event, or the next upcoming one when nothing is live.
func (svc *Service) Current(ctx context.Context) (Event, error) {
	events, err := svc.repo.QueryEvents(ctx, QueryFilter{Status: StatusLive})
	if err != nil {
		return Event{}, err
	}
	if len(events) > 0 {
		return events[len(events)-1], nil
	}
	return svc.Next(ctx)
}

// CurrentID returns preferred when set, else the id of the current event, else NoActiveEvent.
func (svc *Service) CurrentID(ctx context.Context, preferred string) (string, error) {
	if preferred != "" {
		return preferred, nil
	}
	evt, err := svc.Current(ctx)
	if err != nil {
		if core.IsNotFound(err) {
			return NoActiveEvent, nil
		}
		return "", err
	}
	return evt.ID, nil
}

func (svc *Service) SetStatus(ctx context.Context, id, status string) error {
	return svc.repo.SetEventStatus(ctx, id, status)
}
