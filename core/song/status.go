package song

import (
	"database/sql/driver"
	"fmt"
)

// Status is the moderation state of a Request.
//
//	pending -> played    (terminal)
//	pending -> rejected  (terminal)
type Status string

const (
	StatusPending  Status = "pending"
	StatusPlayed   Status = "played"
	StatusRejected Status = "rejected"
)

var AllStatuses = []Status{StatusPending, StatusPlayed, StatusRejected}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusPlayed, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown song request status %q", s)
}

func (s Status) IsValid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusPending:
		return false
	case StatusPlayed, StatusRejected:
		return true
	}
	panic(fmt.Sprintf("song: unhandled status %q", string(s)))
}

// CanTransitionTo reports whether a request in status s may be moved to next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusPlayed || next == StatusRejected
	case StatusPlayed, StatusRejected:
		return false
	}
	panic(fmt.Sprintf("song: unhandled status %q", string(s)))
}

func (s Status) String() string { return string(s) }

// Value implements driver.Valuer.
func (s Status) Value() (driver.Value, error) { return string(s), nil }

// Scan implements sql.Scanner.
func (s *Status) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("song: cannot scan %T into Status", src)
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// RejectionReason explains to the requester why the DJ will not play a song.
type RejectionReason string

const (
	ReasonNotAppropriate  RejectionReason = "not_appropriate"
	ReasonAlreadyPlayed   RejectionReason = "already_played"
	ReasonNextTime        RejectionReason = "next_time"
	ReasonNotInLibrary    RejectionReason = "not_in_library"
	ReasonWrongStyle      RejectionReason = "wrong_style"
	ReasonTooSlow         RejectionReason = "too_slow"
	ReasonExplicitContent RejectionReason = "explicit_content"
	ReasonTechnicalIssue  RejectionReason = "technical_issue"
)

var rejectionLabels = map[RejectionReason]string{
	ReasonNotAppropriate:  "Pas approprié pour la soirée",
	ReasonAlreadyPlayed:   "Déjà passé ce soir",
	ReasonNextTime:        "Ça sera pour la prochaine!",
	ReasonNotInLibrary:    "Pas dans notre bibliothèque",
	ReasonWrongStyle:      "Ne correspond pas au style",
	ReasonTooSlow:         "Trop lent pour le moment",
	ReasonExplicitContent: "Contenu trop explicite",
	ReasonTechnicalIssue:  "Problème technique",
}

func (r RejectionReason) IsValid() bool {
	_, ok := rejectionLabels[r]
	return ok
}

// Label returns the default display text of the reason.
func (r RejectionReason) Label() string { return rejectionLabels[r] }
