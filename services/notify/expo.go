// Package notifysvc delivers push notifications through Expo and WhatsApp messages through CallMeBot.
package notifysvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/invasionlatina/backend/core"
)

// Expo accepts up to 100 messages per request.
const expoBatchSize = 100

type expoMessage struct {
	To    string                 `json:"to"`
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Sound string                 `json:"sound,omitempty"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

type expoService struct {
	url     string
	timeout time.Duration
	client  *rest.Client
	logger  core.Logger
}

var _ core.PushService = (*expoService)(nil)

func NewExpoService(conf *core.Config, logger core.Logger) core.PushService {
	return &expoService{
		url:     conf.Notify.ExpoPushURL,
		timeout: conf.Notify.Timeout,
		client:  &rest.Client{HTTPClient: &http.Client{Timeout: conf.Notify.Timeout}},
		logger:  logger,
	}
}

func (svc *expoService) Push(messages ...*core.PushMessage) {
	batch := expandPushMessages(messages)
	if len(batch) == 0 {
		return
	}
	go func() {
		for start := 0; start < len(batch); start += expoBatchSize {
			end := start + expoBatchSize
			if end > len(batch) {
				end = len(batch)
			}
			if err := svc.send(batch[start:end]); err != nil {
				svc.logger.Error(fmt.Sprintf("sending push notifications: %v", err), err)
			}
		}
	}()
}

func (svc *expoService) send(batch []expoMessage) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, "marshalling messages")
	}

	ctx, cancel := context.WithTimeout(context.Background(), svc.timeout)
	defer cancel()

	res, err := svc.client.SendWithContext(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: svc.url,
		Headers: map[string]string{
			"Accept":          "application/json",
			"Accept-Encoding": "gzip, deflate",
			"Content-Type":    "application/json",
		},
		Body: body,
	})
	if err != nil {
		return errors.Wrap(err, "calling expo")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("expo status: %d - body: %s", res.StatusCode, res.Body)
	}
	return nil
}

// expandPushMessages returns one Expo message per valid recipient.
func expandPushMessages(messages []*core.PushMessage) []expoMessage {
	var out []expoMessage
	for _, msg := range messages {
		for _, to := range msg.To {
			if !core.IsPushToken(to) {
				continue
			}
			out = append(out, expoMessage{
				To:    to,
				Title: msg.Title,
				Body:  msg.Body,
				Sound: msg.Sound,
				Data:  msg.Data,
			})
		}
	}
	return out
}
