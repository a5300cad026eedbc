package core

import "context"

var ErrPaymentDeclined = NewConflictError("Paiement refusé")

type (
	// PaymentRequest is a card charge. Amounts are in cents.
	PaymentRequest struct {
		AmountCents     int64  `json:"amount"`
		Currency        string `json:"currency"`
		PaymentMethodID string `json:"payment_method_id"`
		CustomerEmail   string `json:"customer_email"`
		Description     string `json:"description"`
	}

	Payment struct {
		ID          string `json:"id"`
		AmountCents int64  `json:"amount"`
		Currency    string `json:"currency"`
		Status      string `json:"status"`
	}

	// PaymentService charges the customers' cards.
	PaymentService interface {
		// Charge returns ErrPaymentDeclined when the card is refused.
		Charge(ctx context.Context, req *PaymentRequest) (Payment, error)
		Refund(ctx context.Context, paymentID string) error
	}
)
