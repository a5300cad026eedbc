// Package settings holds the app-wide settings row: the song requests switch, the running event
// and the loyalty QR version.
//
// The row is shared by every admin and every instance of the API, so it is never cached and the
// repository only offers atomic field-level updates.
package settings

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/event"
)

type Settings struct {
	RequestsEnabled bool      `json:"requests_enabled"`
	CurrentEventID  string    `json:"current_event_id"`
	QRVersion       int       `json:"loyalty_qr_version"`
	UpdatedAt       time.Time `json:"updated_at"`
	UpdatedBy       string    `json:"updated_by"`
}

// Defaults returns the settings used before any admin action.
func Defaults() Settings {
	return Settings{QRVersion: 1}
}

type (
	Repository interface {
		GetSettings(ctx context.Context) (Settings, error)
		// ToggleRequests flips the requests switch.
		ToggleRequests(ctx context.Context, by string) (Settings, error)
		// StartEvent enables requests and sets the current event.
		StartEvent(ctx context.Context, eventID, by string) (Settings, error)
		// EndEvent disables requests, clears the current event and increments the QR version by 1.
		// It also returns the id of the event that was running.
		EndEvent(ctx context.Context, by string) (Settings, string, error)
	}

	// EventStore is the part of the event service used when starting and ending an event.
	EventStore interface {
		Get(ctx context.Context, id string) (event.Event, error)
		Next(ctx context.Context) (event.Event, error)
		SetStatus(ctx context.Context, id, status string) error
	}

	// PendingClearer removes the song requests still waiting for the DJ.
	PendingClearer interface {
		ClearPending(ctx context.Context) (int, error)
	}

	// ClearerFunc adapts a function to PendingClearer.
	ClearerFunc func(ctx context.Context) (int, error)

	Service struct {
		repo   Repository
		events EventStore
		songs  PendingClearer
	}

	EndEventResult struct {
		Settings        Settings `json:"settings"`
		QRVersion       int      `json:"loyalty_qr_version"`
		ClearedRequests int      `json:"cleared_requests"`
	}
)

func (f ClearerFunc) ClearPending(ctx context.Context) (int, error) { return f(ctx) }

var ErrNoUpcomingEvent = core.NewConflictError("Aucun événement à venir. Créez un événement d'abord.")

func NewService(repo Repository, events EventStore, songs PendingClearer) *Service {
	return &Service{repo: repo, events: events, songs: songs}
}

func (svc *Service) Get(ctx context.Context) (Settings, error) {
	return svc.repo.GetSettings(ctx)
}

func (svc *Service) ToggleRequests(ctx context.Context, by string) (Settings, error) {
	return svc.repo.ToggleRequests(ctx, by)
}

// StartEvent opens the song board for eventID, or for the next upcoming event when eventID is empty.
func (svc *Service) StartEvent(ctx context.Context, eventID, by string) (Settings, event.Event, error) {
	var evt event.Event
	var err error
	if eventID == "" {
		evt, err = svc.events.Next(ctx)
		if core.IsNotFound(err) {
			return Settings{}, event.Event{}, ErrNoUpcomingEvent
		}
	} else {
		evt, err = svc.events.Get(ctx, eventID)
	}
	if err != nil {
		return Settings{}, event.Event{}, errors.Wrap(err, "finding event")
	}

	s, err := svc.repo.StartEvent(ctx, evt.ID, by)
	if err != nil {
		return Settings{}, event.Event{}, errors.Wrap(err, "starting event")
	}
	if err = svc.events.SetStatus(ctx, evt.ID, event.StatusLive); err != nil {
		return Settings{}, event.Event{}, errors.Wrap(err, "setting event live")
	}
	evt.Status = event.StatusLive
	return s, evt, nil
}

// EndEvent closes the song board, invalidates every loyalty QR code issued so far and drops the
// song requests that were not played.
func (svc *Service) EndEvent(ctx context.Context, by string) (EndEventResult, error) {
	s, prevEventID, err := svc.repo.EndEvent(ctx, by)
	if err != nil {
		return EndEventResult{}, errors.Wrap(err, "ending event")
	}

	cleared, err := svc.songs.ClearPending(ctx)
	if err != nil {
		return EndEventResult{}, errors.Wrap(err, "clearing pending song requests")
	}

	if prevEventID != "" {
		if err = svc.events.SetStatus(ctx, prevEventID, event.StatusPast); err != nil && !core.IsNotFound(err) {
			return EndEventResult{}, errors.Wrap(err, "setting event past")
		}
	}
	return EndEventResult{Settings: s, QRVersion: s.QRVersion, ClearedRequests: cleared}, nil
}
