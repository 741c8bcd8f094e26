package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/samsara/booking-engine/internal/config"
	"github.com/sirupsen/logrus"
)

// Gateway is a payment provider that can open orders and refund captured payments
type Gateway interface {
	// Name identifies the provider in payment records and audits
	Name() string
	// KeyID is the public key the client needs to open checkout, if any
	KeyID() string
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	Refund(ctx context.Context, req RefundRequest) (*Refund, error)
}

// PaymentConfirmer is implemented by providers whose checkout is confirmed by asking the
// provider for the payment instead of checking a client-supplied signature
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID string) (*Payment, error)
}

// Payment is the provider's view of a checkout
type Payment struct {
	ID        string
	OrderID   string
	Amount    float64
	Currency  string
	Status    string
	Succeeded bool
}

// OrderRequest describes an order in major currency units
type OrderRequest struct {
	Amount   float64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order is the handle the client uses to complete checkout
type Order struct {
	ID       string
	Amount   float64
	Currency string
	Receipt  string
	Status   string
}

// RefundRequest refunds part or all of a captured payment
type RefundRequest struct {
	PaymentID string
	Amount    float64
	Currency  string
	Notes     map[string]string
}

// Refund is the provider's record of a refund
type Refund struct {
	ID        string
	PaymentID string
	Amount    float64
	Status    string
}

// Error is a failed provider call
// Retryable is true for timeouts, rate limiting and 5xx responses
type Error struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s failed (status %d, code %s): %s", e.Op, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("gateway %s failed: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a gateway error worth retrying later
func IsRetryable(err error) bool {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Retryable
	}
	return false
}

// retryableStatus reports whether an HTTP status indicates a transient failure
func retryableStatus(status int) bool {
	return status == 429 || status >= 500
}

// ToMinorUnits converts a major unit amount (rupees, dollars) to the smallest unit
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts a smallest unit amount back to major units
func FromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}

// New builds the provider selected by GATEWAY_PROVIDER
func New(cfg config.GatewayConfig, logger *logrus.Logger) (Gateway, error) {
	switch cfg.Provider {
	case "razorpay":
		return NewRazorpayGateway(cfg.KeyID, cfg.KeySecret, cfg.BaseURL, cfg.Timeout, logger), nil
	case "stripe":
		return NewStripeGateway(cfg.StripeSecretKey, cfg.StripePublishableKey, cfg.Timeout, logger), nil
	case "sandbox":
		return NewSandboxGateway(logger), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway provider: %s", cfg.Provider)
	}
}
