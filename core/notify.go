package core

import "strings"

const expoTokenPrefix = "ExponentPushToken"

type (
	// PushMessage is a mobile push notification.
	PushMessage struct {
		To    []string               `json:"to"`
		Title string                 `json:"title"`
		Body  string                 `json:"body"`
		Sound string                 `json:"sound,omitempty"`
		Data  map[string]interface{} `json:"data,omitempty"`
	}

	// PushService is any service that can deliver push notifications.
	PushService interface {
		// Push sends messages in the background; failures are logged, never returned.
		Push(messages ...*PushMessage)
	}

	// WhatsAppService sends text messages to the club's WhatsApp number.
	WhatsAppService interface {
		// Send delivers text in the background; failures are logged, never returned.
		Send(text string)
	}
)

// IsPushToken reports whether token looks like an Expo push token.
func IsPushToken(token string) bool {
	return strings.HasPrefix(token, expoTokenPrefix)
}

// HasRecipients reports whether at least one valid push token is set.
func (m *PushMessage) HasRecipients() bool {
	for _, to := range m.To {
		if IsPushToken(to) {
			return true
		}
	}
	return false
}
