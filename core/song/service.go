// Package song implements the DJ song board: requests, votes and moderation.
package song

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/access"
	"github.com/invasionlatina/backend/core/event"
	"github.com/invasionlatina/backend/core/settings"
)

const (
	MaxListSize     = 100
	MaxUserRequests = 20
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("Demande non trouvée")
	ErrDuplicateRequest = core.NewConflictError("Vous avez déjà demandé cette chanson")
	ErrInvalidState     = core.NewConflictError("Impossible de voter pour cette demande")
	ErrAlreadyVoted     = core.NewConflictError("Vous avez déjà voté pour cette chanson")
	ErrAlreadyModerated = core.NewConflictError("Cette demande a déjà été traitée")
)

type (
	Repository interface {
		// SubmitPending records req.UserID's request for the song identified by req.Key().
		// When a pending request exists for that key, the user is added to its requesters and
		// voters and the counters follow; otherwise req is inserted as is. Both paths are a single
		// atomic write. The returned flag reports whether req was inserted.
		// Fails with ErrDuplicateRequest when the user already requested the song.
		SubmitPending(ctx context.Context, req Request) (Request, bool, error)
		// AddVote atomically adds userID to the voters of a pending request.
		// Fails with ErrNotFound, ErrInvalidState or ErrAlreadyVoted.
		AddVote(ctx context.Context, id, userID string) (Request, error)
		// Moderate moves a pending request to m.Status. Fails with ErrNotFound or ErrAlreadyModerated.
		Moderate(ctx context.Context, id string, m Moderation) (Request, error)
		GetRequest(ctx context.Context, id string) (Request, error)
		// QueryRequests returns the requests matching filter, newest first.
		QueryRequests(ctx context.Context, filter QueryFilter) ([]Request, error)
		QueryUserRequests(ctx context.Context, userID string, limit int) ([]Request, error)
		CountRequestsByEvent(ctx context.Context) ([]EventStats, error)
		DeleteRequest(ctx context.Context, id string) error
		DeleteRequests(ctx context.Context, onlyPending bool) (int, error)
	}

	SettingsReader interface {
		Get(ctx context.Context) (settings.Settings, error)
	}

	EventStore interface {
		// CurrentID returns preferred when set, else the current event id, else NoActiveEvent.
		CurrentID(ctx context.Context, preferred string) (string, error)
		List(ctx context.Context, filter event.QueryFilter) ([]event.Event, error)
	}

	Service struct {
		repo     Repository
		settings SettingsReader
		events   EventStore
		policy   access.Policy
	}
)

func NewService(repo Repository, settingsSvc SettingsReader, events EventStore, policy access.Policy) *Service {
	return &Service{
		repo:     repo,
		settings: settingsSvc,
		events:   events,
		policy:   policy,
	}
}

// Submit asks the DJ for a song, or adds the user to the requesters of the same pending song.
func (svc *Service) Submit(ctx context.Context, sub Submission) (SubmitResult, error) {
	title := core.CleanString(sub.Title)
	artist := core.CleanString(sub.Artist)
	var fldErrs []core.FieldError
	if title == "" {
		fldErrs = append(fldErrs, core.FieldError{Field: "title", Error: "this field is required"})
	}
	if artist == "" {
		fldErrs = append(fldErrs, core.FieldError{Field: "artist", Error: "this field is required"})
	}
	if fldErrs != nil {
		return SubmitResult{}, core.NewValidationError(nil, fldErrs...)
	}

	conf, err := svc.settings.Get(ctx)
	if err != nil {
		return SubmitResult{}, errors.Wrap(err, "getting settings")
	}
	now := core.NowFunc()
	if err = svc.policy.Evaluate(access.Input{
		Privileged:      sub.Privileged,
		RequestsEnabled: conf.RequestsEnabled,
		Position:        sub.Position,
		Now:             now,
	}); err != nil {
		return SubmitResult{}, err
	}

	eventID := sub.EventID
	if eventID == "" {
		if eventID, err = svc.events.CurrentID(ctx, conf.CurrentEventID); err != nil {
			return SubmitResult{}, errors.Wrap(err, "resolving current event")
		}
	}

	req, created, err := svc.repo.SubmitPending(ctx, Request{
		ID:                   uuid.New().String(),
		EventID:              eventID,
		UserID:               sub.UserID,
		UserName:             sub.UserName,
		SongTitle:            title,
		ArtistName:           artist,
		SongTitleNormalized:  Normalize(title),
		ArtistNameNormalized: Normalize(artist),
		Requesters:           []string{sub.UserID},
		Voters:               []string{sub.UserID},
		Votes:                1,
		TimesRequested:       1,
		Status:               StatusPending,
		RequestedAt:          now,
	})
	if err != nil {
		return SubmitResult{}, err
	}

	res := SubmitResult{RequestID: req.ID, TimesRequested: req.TimesRequested, Created: created}
	if created {
		res.Message = "Demande envoyée!"
	} else {
		res.Message = fmt.Sprintf("Demande ajoutée! '%s' a maintenant %d demandes! 🔥", req.SongTitle, req.TimesRequested)
	}
	return res, nil
}

func (svc *Service) Vote(ctx context.Context, id, userID string) (Request, error) {
	return svc.repo.AddVote(ctx, id, userID)
}

func (svc *Service) Moderate(ctx context.Context, id string, m Moderation) (Request, error) {
	if err := m.Validate(); err != nil {
		return Request{}, err
	}
	if m.At.IsZero() {
		m.At = core.NowFunc()
	}
	return svc.repo.Moderate(ctx, id, m)
}

func (svc *Service) Get(ctx context.Context, id string) (Request, error) {
	return svc.repo.GetRequest(ctx, id)
}

// List returns the requests matching filter, newest first, as seen by viewerID.
func (svc *Service) List(ctx context.Context, viewerID string, filter QueryFilter) ([]View, error) {
	filter.Clean()
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid status"})
	}
	reqs, err := svc.repo.QueryRequests(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(reqs))
	for _, r := range reqs {
		views = append(views, NewView(r, viewerID))
	}
	return views, nil
}

// MyRequests returns the latest requests made by userID.
func (svc *Service) MyRequests(ctx context.Context, userID string) ([]View, error) {
	reqs, err := svc.repo.QueryUserRequests(ctx, userID, MaxUserRequests)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(reqs))
	for _, r := range reqs {
		views = append(views, NewView(r, userID))
	}
	return views, nil
}

// Stats counts the requests of every event, with the event names.
func (svc *Service) Stats(ctx context.Context) ([]EventStats, error) {
	stats, err := svc.repo.CountRequestsByEvent(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "counting requests")
	}
	events, err := svc.events.List(ctx, event.QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "listing events")
	}
	names := make(map[string]string, len(events))
	for _, evt := range events {
		names[evt.ID] = evt.Name
	}
	for i := range stats {
		if name, ok := names[stats[i].EventID]; ok {
			stats[i].EventName = name
		} else if stats[i].EventID == NoActiveEvent {
			stats[i].EventName = "Sans événement"
		} else {
			stats[i].EventName = "Événement supprimé"
		}
	}
	return stats, nil
}

// AccessStatus tells whether a user could request a song right now from position.
func (svc *Service) AccessStatus(ctx context.Context, privileged bool, position *access.Point) (AccessStatus, error) {
	conf, err := svc.settings.Get(ctx)
	if err != nil {
		return AccessStatus{}, errors.Wrap(err, "getting settings")
	}
	status := AccessStatus{Enabled: conf.RequestsEnabled, Allowed: true, Message: "Les demandes de chansons sont ouvertes!"}

	err = svc.policy.Evaluate(access.Input{
		Privileged:      privileged,
		RequestsEnabled: conf.RequestsEnabled,
		Position:        position,
		Now:             core.NowFunc(),
	})
	if denied, ok := errors.Cause(err).(*core.AccessDeniedError); ok {
		status.Allowed = false
		status.Reason = denied.Reason
		status.Message = denied.Error()
	} else if err != nil {
		return AccessStatus{}, err
	}
	return status, nil
}

func (svc *Service) DeleteOne(ctx context.Context, id string) error {
	return svc.repo.DeleteRequest(ctx, id)
}

func (svc *Service) ClearAll(ctx context.Context) (int, error) {
	return svc.repo.DeleteRequests(ctx, false)
}

// ClearPending deletes the requests the DJ did not get to.
func (svc *Service) ClearPending(ctx context.Context) (int, error) {
	return svc.repo.DeleteRequests(ctx, true)
}
