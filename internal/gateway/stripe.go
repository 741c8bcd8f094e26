package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeGateway maps orders to PaymentIntents and refunds to Stripe refunds
type StripeGateway struct {
	client         *client.API
	publishableKey string
	logger         *logrus.Logger
}

// NewStripeGateway creates a Stripe client bounded by timeout
func NewStripeGateway(secretKey, publishableKey string, timeout time.Duration, logger *logrus.Logger) *StripeGateway {
	httpClient := &http.Client{Timeout: timeout}
	return newStripeGateway(secretKey, publishableKey, stripe.NewBackends(httpClient), logger)
}

func newStripeGateway(secretKey, publishableKey string, backends *stripe.Backends, logger *logrus.Logger) *StripeGateway {
	sc := client.New(secretKey, backends)

	logger.Info("Stripe client initialized successfully")
	return &StripeGateway{
		client:         sc,
		publishableKey: publishableKey,
		logger:         logger,
	}
}

// Name returns the provider name
func (g *StripeGateway) Name() string {
	return "stripe"
}

// KeyID returns the publishable key used by Stripe.js
func (g *StripeGateway) KeyID() string {
	return g.publishableKey
}

// CreateOrder creates a PaymentIntent for the amount in major units
func (g *StripeGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(ToMinorUnits(req.Amount)),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethodTypes: []*string{stripe.String("card")},
	}
	params.Context = ctx
	params.AddMetadata("receipt", req.Receipt)
	for k, v := range req.Notes {
		params.AddMetadata(k, v)
	}

	g.logger.WithFields(logrus.Fields{
		"receipt":  req.Receipt,
		"amount":   req.Amount,
		"currency": req.Currency,
	}).Info("Creating Stripe payment intent")

	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		g.logger.WithError(err).Error("Failed to create payment intent")
		return nil, stripeError("create_order", err)
	}

	return &Order{
		ID:       pi.ID,
		Amount:   FromMinorUnits(pi.Amount),
		Currency: strings.ToUpper(string(pi.Currency)),
		Receipt:  req.Receipt,
		Status:   string(pi.Status),
	}, nil
}

// Refund refunds part of a PaymentIntent
func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentID),
		Amount:        stripe.Int64(ToMinorUnits(req.Amount)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	for k, v := range req.Notes {
		params.AddMetadata(k, v)
	}

	g.logger.WithFields(logrus.Fields{
		"payment_id": req.PaymentID,
		"amount":     req.Amount,
	}).Info("Requesting Stripe refund")

	refund, err := g.client.Refunds.New(params)
	if err != nil {
		g.logger.WithError(err).Error("Refund failed")
		return nil, stripeError("refund", err)
	}

	return &Refund{
		ID:        refund.ID,
		PaymentID: req.PaymentID,
		Amount:    FromMinorUnits(refund.Amount),
		Status:    string(refund.Status),
	}, nil
}

// ConfirmPayment retrieves the PaymentIntent behind an order
// The PaymentIntent is both the order and the payment, so its ID is what refunds reference
func (g *StripeGateway) ConfirmPayment(ctx context.Context, orderID string) (*Payment, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.client.PaymentIntents.Get(orderID, params)
	if err != nil {
		g.logger.WithError(err).WithField("order_id", orderID).Error("Failed to retrieve payment intent")
		return nil, stripeError("confirm_payment", err)
	}

	return &Payment{
		ID:        pi.ID,
		OrderID:   pi.ID,
		Amount:    FromMinorUnits(pi.Amount),
		Currency:  strings.ToUpper(string(pi.Currency)),
		Status:    string(pi.Status),
		Succeeded: pi.Status == stripe.PaymentIntentStatusSucceeded,
	}, nil
}

func stripeError(op string, err error) *Error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &Error{
			Op:         op,
			StatusCode: stripeErr.HTTPStatusCode,
			Code:       string(stripeErr.Code),
			Message:    stripeErr.Msg,
			Retryable:  retryableStatus(stripeErr.HTTPStatusCode),
			Err:        err,
		}
	}
	return &Error{Op: op, Message: "failed to call payment gateway", Retryable: true, Err: err}
}
