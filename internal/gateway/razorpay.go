package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// RazorpayGateway talks to the Razorpay orders and refunds REST API
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	logger    *logrus.Logger
	client    *http.Client
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"` // paise
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayRefundRequest struct {
	Amount int64             `json:"amount"`
	Notes  map[string]string `json:"notes,omitempty"`
}

type razorpayRefundResponse struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// NewRazorpayGateway creates a Razorpay client bounded by timeout
func NewRazorpayGateway(keyID, keySecret, baseURL string, timeout time.Duration, logger *logrus.Logger) *RazorpayGateway {
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider name
func (g *RazorpayGateway) Name() string {
	return "razorpay"
}

// KeyID returns the public key id used by Razorpay checkout
func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}

// CreateOrder opens a Razorpay order for the amount in major units
func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	payload := razorpayOrderRequest{
		Amount:   ToMinorUnits(req.Amount),
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	}

	g.logger.WithFields(logrus.Fields{
		"receipt":  req.Receipt,
		"amount":   payload.Amount,
		"currency": req.Currency,
	}).Info("Creating Razorpay order")

	var resp razorpayOrderResponse
	if err := g.post(ctx, "create_order", "/v1/orders", payload, &resp); err != nil {
		return nil, err
	}

	g.logger.WithFields(logrus.Fields{
		"order_id": resp.ID,
		"receipt":  resp.Receipt,
		"status":   resp.Status,
	}).Info("Razorpay order created")

	return &Order{
		ID:       resp.ID,
		Amount:   FromMinorUnits(resp.Amount),
		Currency: resp.Currency,
		Receipt:  resp.Receipt,
		Status:   resp.Status,
	}, nil
}

// Refund refunds part of a captured payment
func (g *RazorpayGateway) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	if req.PaymentID == "" {
		return nil, &Error{Op: "refund", Message: "payment id is required"}
	}

	payload := razorpayRefundRequest{
		Amount: ToMinorUnits(req.Amount),
		Notes:  req.Notes,
	}

	g.logger.WithFields(logrus.Fields{
		"payment_id": req.PaymentID,
		"amount":     payload.Amount,
	}).Info("Requesting Razorpay refund")

	var resp razorpayRefundResponse
	path := fmt.Sprintf("/v1/payments/%s/refund", req.PaymentID)
	if err := g.post(ctx, "refund", path, payload, &resp); err != nil {
		return nil, err
	}

	g.logger.WithFields(logrus.Fields{
		"refund_id":  resp.ID,
		"payment_id": resp.PaymentID,
		"status":     resp.Status,
	}).Info("Razorpay refund accepted")

	return &Refund{
		ID:        resp.ID,
		PaymentID: resp.PaymentID,
		Amount:    FromMinorUnits(resp.Amount),
		Status:    resp.Status,
	}, nil
}

func (g *RazorpayGateway) post(ctx context.Context, op, path string, payload, out interface{}) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return &Error{Op: op, Message: "failed to marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return &Error{Op: op, Message: "failed to build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// Timeouts and connection failures never reached a decision at the provider
		g.logger.WithError(err).WithField("op", op).Error("Failed to call Razorpay")
		return &Error{Op: op, Message: "failed to call payment gateway", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: "failed to read response", Retryable: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp razorpayErrorResponse
		_ = json.Unmarshal(body, &errResp)

		gwErr := &Error{
			Op:         op,
			StatusCode: resp.StatusCode,
			Code:       errResp.Error.Code,
			Message:    errResp.Error.Description,
			Retryable:  retryableStatus(resp.StatusCode),
		}
		if gwErr.Message == "" {
			gwErr.Message = string(body)
		}

		g.logger.WithFields(logrus.Fields{
			"op":          op,
			"status_code": resp.StatusCode,
			"code":        gwErr.Code,
			"retryable":   gwErr.Retryable,
		}).Warn("Razorpay returned an error")
		return gwErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: "failed to parse response", Err: err}
	}
	return nil
}
