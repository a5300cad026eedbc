package loyalty

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core"
)

// PayloadType tags the QR codes shown by the app at the door.
const PayloadType = "loyalty_checkin"

var (
	ErrInvalidPayload    = core.NewValidationError(errors.New("QR code invalide"))
	ErrUnknownPayload    = core.NewValidationError(errors.New("Format QR code invalide"))
	ErrIncompletePayload = core.NewValidationError(errors.New("QR code incomplet"))
)

// Payload is the content of a check-in QR code. Version is the settings QR version at issue time.
type Payload struct {
	Type     string    `json:"type"`
	UserID   string    `json:"user_id"`
	Version  int       `json:"version"`
	IssuedAt time.Time `json:"issued_at"`
}

func EncodePayload(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "marshalling payload")
	}
	return string(data), nil
}

// ParsePayload decodes a scanned QR code. It never looks at the version, which is checked
// against the settings by the caller.
func ParsePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, ErrInvalidPayload
	}
	if p.Type != PayloadType {
		return Payload{}, ErrUnknownPayload
	}
	p.UserID = core.CleanString(p.UserID)
	if p.UserID == "" || p.Version <= 0 {
		return Payload{}, ErrIncompletePayload
	}
	return p, nil
}
