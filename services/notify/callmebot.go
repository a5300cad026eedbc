package notifysvc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sendgrid/rest"

	"github.com/invasionlatina/backend/core"
)

// callMeBotService sends WhatsApp messages to the club phone through the CallMeBot API.
// The phone owner must have allowed CallMeBot to message it first.
type callMeBotService struct {
	url     string
	phone   string
	apiKey  string
	timeout time.Duration
	client  *rest.Client
	logger  core.Logger
}

var _ core.WhatsAppService = (*callMeBotService)(nil)

func NewCallMeBotService(conf *core.Config, logger core.Logger) core.WhatsAppService {
	return &callMeBotService{
		url:     conf.Notify.WhatsAppURL,
		phone:   conf.Notify.WhatsAppPhone,
		apiKey:  conf.Notify.WhatsAppAPIKey,
		timeout: conf.Notify.Timeout,
		client:  &rest.Client{HTTPClient: &http.Client{Timeout: conf.Notify.Timeout}},
		logger:  logger,
	}
}

func (svc *callMeBotService) Send(text string) {
	if svc.phone == "" || svc.apiKey == "" {
		svc.logger.Warn("whatsapp notification skipped: phone or api key not configured")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), svc.timeout)
		defer cancel()

		res, err := svc.client.SendWithContext(ctx, rest.Request{
			Method:  rest.Get,
			BaseURL: svc.url,
			QueryParams: map[string]string{
				"phone":  svc.phone,
				"text":   text,
				"apikey": svc.apiKey,
			},
		})
		if err != nil {
			svc.logger.Error(fmt.Sprintf("sending whatsapp message: %v", err), err)
		} else if res.StatusCode >= http.StatusBadRequest {
			svc.logger.Error(fmt.Sprintf("sending whatsapp message - status: %d - body: %s", res.StatusCode, res.Body))
		}
	}()
}
