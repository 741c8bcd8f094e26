package gateway

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SandboxGateway is an in-process provider for development and tests
// Orders and refunds always succeed unless a failure is injected
type SandboxGateway struct {
	logger *logrus.Logger

	mu          sync.Mutex
	orderErr    error
	refundErr   error
	orders      map[string]Order
	refunds     []Refund
	refundCalls int
}

// NewSandboxGateway creates a sandbox provider
func NewSandboxGateway(logger *logrus.Logger) *SandboxGateway {
	logger.Warn("Payment gateway running in sandbox mode - no money moves")
	return &SandboxGateway{
		logger: logger,
		orders: make(map[string]Order),
	}
}

// Name returns the provider name
func (g *SandboxGateway) Name() string {
	return "sandbox"
}

// KeyID returns a placeholder public key
func (g *SandboxGateway) KeyID() string {
	return "sandbox_key"
}

// FailOrders makes subsequent CreateOrder calls return err (nil clears it)
func (g *SandboxGateway) FailOrders(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orderErr = err
}

// FailRefunds makes subsequent Refund calls return err (nil clears it)
func (g *SandboxGateway) FailRefunds(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundErr = err
}

// CreateOrder records an order with a generated id
func (g *SandboxGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "create_order", Message: "request cancelled", Retryable: true, Err: err}
	}
	if g.orderErr != nil {
		return nil, g.orderErr
	}

	order := Order{
		ID:       "order_sbx_" + shortID(),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}
	g.orders[order.ID] = order

	g.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"amount":   order.Amount,
	}).Debug("Sandbox order created")

	return &order, nil
}

// Refund records a processed refund with a generated id
func (g *SandboxGateway) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refundCalls++
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "refund", Message: "request cancelled", Retryable: true, Err: err}
	}
	if g.refundErr != nil {
		return nil, g.refundErr
	}

	refund := Refund{
		ID:        "rfnd_sbx_" + shortID(),
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		Status:    "processed",
	}
	g.refunds = append(g.refunds, refund)

	g.logger.WithFields(logrus.Fields{
		"refund_id":  refund.ID,
		"payment_id": refund.PaymentID,
		"amount":     refund.Amount,
	}).Debug("Sandbox refund processed")

	return &refund, nil
}

// RefundCalls returns how many refunds were attempted, including failed ones
func (g *SandboxGateway) RefundCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refundCalls
}

// Refunds returns the refunds processed so far
func (g *SandboxGateway) Refunds() []Refund {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Refund, len(g.refunds))
	copy(out, g.refunds)
	return out
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}
