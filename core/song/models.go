package song

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/access"
	"github.com/invasionlatina/backend/core/event"
)

// NoActiveEvent is the event id given to requests made while no event is scheduled.
const NoActiveEvent = event.NoActiveEvent

// Request is a song asked to the DJ. Requesters and Voters are sets: Votes == len(Voters) and
// TimesRequested == len(Requesters) at all times, and every requester is also a voter.
type Request struct {
	ID                   string          `json:"id"`
	EventID              string          `json:"event_id"`
	UserID               string          `json:"user_id"`
	UserName             string          `json:"user_name"`
	SongTitle            string          `json:"song_title"`
	ArtistName           string          `json:"artist_name"`
	SongTitleNormalized  string          `json:"-"`
	ArtistNameNormalized string          `json:"-"`
	Requesters           []string        `json:"-"`
	Voters               []string        `json:"-"`
	Votes                int             `json:"votes"`
	TimesRequested       int             `json:"times_requested"`
	Status               Status          `json:"status"`
	RejectionReason      RejectionReason `json:"rejection_reason,omitempty"`
	RejectionLabel       string          `json:"rejection_label,omitempty"`
	ModeratedBy          string          `json:"-"`
	RequestedAt          time.Time       `json:"requested_at"`
	PlayedAt             *time.Time      `json:"played_at,omitempty"`
}

func (r Request) HasRequested(userID string) bool { return core.ContainsString(r.Requesters, userID) }
func (r Request) HasVoted(userID string) bool     { return core.ContainsString(r.Voters, userID) }

// View is a Request as seen by a given user.
type View struct {
	Request
	CanVote    bool `json:"can_vote"`
	CanRequest bool `json:"can_request"`
}

func NewView(r Request, userID string) View {
	return View{
		Request:    r,
		CanVote:    !r.HasVoted(userID),
		CanRequest: !r.HasRequested(userID),
	}
}

// NewRequest is the payload sent by the app to request a song.
type NewRequest struct {
	Title     string   `json:"title" validate:"required,notblank,max=200"`
	Artist    string   `json:"artist" validate:"required,notblank,max=200"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
}

func (nr *NewRequest) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.Artist = core.CleanString(nr.Artist)
	return validate.Struct(nr)
}

func (nr NewRequest) Position() *access.Point {
	if nr.Latitude == nil || nr.Longitude == nil {
		return nil
	}
	return &access.Point{Latitude: *nr.Latitude, Longitude: *nr.Longitude}
}

// Submission is a song request made by an authenticated user.
type Submission struct {
	UserID     string
	UserName   string
	Privileged bool
	Title      string
	Artist     string
	Position   *access.Point
	EventID    string // resolved from the settings when empty
}

type SubmitResult struct {
	RequestID      string `json:"request_id"`
	TimesRequested int    `json:"times_requested"`
	Created        bool   `json:"created"`
	Message        string `json:"message"`
}

// Moderation is the DJ's decision on a pending request.
type Moderation struct {
	Status          Status          `json:"status"`
	RejectionReason RejectionReason `json:"rejection_reason"`
	RejectionLabel  string          `json:"rejection_label"`
	By              string          `json:"-"`
	At              time.Time       `json:"-"`
}

// Validate checks the target status and fills the default rejection label.
func (m *Moderation) Validate() error {
	m.RejectionLabel = core.CleanString(m.RejectionLabel)
	switch m.Status {
	case StatusPlayed:
		m.RejectionReason, m.RejectionLabel = "", ""
		return nil
	case StatusRejected:
		if m.RejectionReason == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "rejection_reason", Error: "this field is required"})
		}
		if !m.RejectionReason.IsValid() {
			return core.NewValidationError(nil, core.FieldError{Field: "rejection_reason", Error: "invalid rejection reason"})
		}
		if m.RejectionLabel == "" {
			m.RejectionLabel = m.RejectionReason.Label()
		}
		return nil
	case StatusPending:
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "a request cannot be moved back to pending"})
	}
	return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid status"})
}

type QueryFilter struct {
	Status  Status `query:"status"`
	EventID string `query:"event_id"`
	Limit   int    `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = Status(core.CleanString(string(qf.Status), true /* lower */))
	qf.EventID = core.CleanString(qf.EventID)
	if qf.Limit <= 0 || qf.Limit > MaxListSize {
		qf.Limit = MaxListSize
	}
}

// EventStats counts the requests of one event per status.
type EventStats struct {
	EventID   string `json:"event_id"`
	EventName string `json:"event_name"`
	Pending   int    `json:"pending"`
	Played    int    `json:"played"`
	Rejected  int    `json:"rejected"`
	Total     int    `json:"total"`
}

// AccessStatus tells the app whether the song board is open to the user right now.
type AccessStatus struct {
	Enabled bool   `json:"enabled"`
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}
