// Package paymentsvc implements core.PaymentService.
package paymentsvc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/invasionlatina/backend/core"
)

// DeclinedMethod is the payment method id that ConsoleService always refuses.
const DeclinedMethod = "pm_card_declined"

// ConsoleService accepts every charge and logs it instead of calling a payment provider. Used until
// the card payments go live. It keeps the charges when recording.
type ConsoleService struct {
	logger    core.Logger
	recording bool

	mu      sync.Mutex
	charges []core.PaymentRequest
	refunds []string
}

var _ core.PaymentService = (*ConsoleService)(nil)

func NewConsoleService(logger core.Logger) *ConsoleService {
	return &ConsoleService{logger: logger}
}

// NewConsoleServiceMock returns a silent ConsoleService recording every charge and refund.
func NewConsoleServiceMock() *ConsoleService {
	return &ConsoleService{recording: true}
}

func (svc *ConsoleService) Charge(ctx context.Context, req *core.PaymentRequest) (core.Payment, error) {
	if err := ctx.Err(); err != nil {
		return core.Payment{}, err
	}
	if req.PaymentMethodID == DeclinedMethod {
		return core.Payment{}, core.ErrPaymentDeclined
	}

	p := core.Payment{
		ID:          "pi_mock_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16],
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Status:      "succeeded",
	}
	if svc.recording {
		svc.mu.Lock()
		svc.charges = append(svc.charges, *req)
		svc.mu.Unlock()
		return p, nil
	}
	svc.logger.Info(fmt.Sprintf("payment %s: %d %s from %s (%s)",
		p.ID, req.AmountCents, req.Currency, req.CustomerEmail, req.Description))
	return p, nil
}

func (svc *ConsoleService) Refund(_ context.Context, paymentID string) error {
	if svc.recording {
		svc.mu.Lock()
		svc.refunds = append(svc.refunds, paymentID)
		svc.mu.Unlock()
		return nil
	}
	svc.logger.Info("refund of payment " + paymentID)
	return nil
}

func (svc *ConsoleService) Charges() []core.PaymentRequest {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.PaymentRequest(nil), svc.charges...)
}

func (svc *ConsoleService) Refunds() []string {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]string(nil), svc.refunds...)
}
