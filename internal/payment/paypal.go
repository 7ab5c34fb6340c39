package payment

import (
	"bytes"         // Request bodies
	"context"       // Request scoped operations
	"encoding/json" // Payload encoding
	"errors"        // Error construction
	"fmt"           // Error wrapping
	"io"            // Body reading
	"net/http"      // HTTP client
	"net/url"       // Path escaping
	"strings"       // URL normalisation
	"time"          // Client timeout

	"retail_pos/internal/apperr" // Error taxonomy

	"github.com/sirupsen/logrus"            // Structured logging
	"golang.org/x/oauth2"                   // OAuth2 client plumbing
	"golang.org/x/oauth2/clientcredentials" // Client credentials grant
)

// PayPalConfig holds the processor credentials and checkout presentation
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string        // e.g. https://api-m.sandbox.paypal.com
	Currency     string        // ISO 4217 code
	BrandName    string        // Shown on the approval page
	Locale       string        // Approval page locale
	ReturnURL    string        // Redirect after approval
	CancelURL    string        // Redirect after cancellation
	Timeout      time.Duration // Per request
}

// PayPal is a Processor backed by the PayPal Orders v2 API
type PayPal struct {
	cfg    PayPalConfig
	client *http.Client
	creds  clientcredentials.Config
}

// NewPayPal builds a PayPal client
func NewPayPal(cfg PayPalConfig) *PayPal {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &PayPal{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		creds: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.BaseURL + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
	}
}

// accessToken runs a fresh client credentials grant; tokens are never reused
// across calls.
func (p *PayPal) accessToken(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	tok, err := p.creds.Token(ctx)
	if err != nil {
		return "", apperr.Upstream("Failed to obtain processor access token", err)
	}
	return tok.AccessToken, nil
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	Amount      amount `json:"amount"`
	ReferenceID string `json:"reference_id"`
}

type experienceContext struct {
	PaymentMethodPreference string `json:"payment_method_preference"`
	PaymentMethodSelected   string `json:"payment_method_selected"`
	BrandName               string `json:"brand_name"`
	Locale                  string `json:"locale"`
	LandingPage             string `json:"landing_page"`
	ShippingPreference      string `json:"shipping_preference"`
	UserAction              string `json:"user_action"`
	ReturnURL               string `json:"return_url"`
	CancelURL               string `json:"cancel_url"`
}

type createOrderBody struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
	PaymentSource struct {
		PayPal struct {
			ExperienceContext experienceContext `json:"experience_context"`
		} `json:"paypal"`
	} `json:"payment_source"`
}

// CreateOrder opens a CAPTURE intent order for the request amount
func (p *PayPal) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	body := createOrderBody{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			Amount:      amount{CurrencyCode: p.cfg.Currency, Value: req.Amount.StringFixed(2)},
			ReferenceID: req.ReferenceID,
		}},
	}
	body.PaymentSource.PayPal.ExperienceContext = experienceContext{
		PaymentMethodPreference: "IMMEDIATE_PAYMENT_REQUIRED",
		PaymentMethodSelected:   "PAYPAL",
		BrandName:               p.cfg.BrandName,
		Locale:                  p.cfg.Locale,
		LandingPage:             "LOGIN",
		ShippingPreference:      "GET_FROM_FILE",
		UserAction:              "PAY_NOW",
		ReturnURL:               p.cfg.ReturnURL,
		CancelURL:               p.cfg.CancelURL,
	}
	return p.do(ctx, http.MethodPost, "/v2/checkout/orders", body, "Failed to create processor order")
}

// CaptureOrder captures an approved order
func (p *PayPal) CaptureOrder(ctx context.Context, orderID string) (*Order, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	return p.do(ctx, http.MethodPost, path, struct{}{}, "Failed to capture payment")
}

// GetOrder reads an order
func (p *PayPal) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(orderID)
	return p.do(ctx, http.MethodGet, path, nil, "Failed to fetch order status")
}

func (p *PayPal) do(ctx context.Context, method, path string, payload any, failure string) (*Order, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, apperr.Upstream(failure, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, apperr.Upstream(failure, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperr.Upstream(failure, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Upstream(failure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logrus.WithFields(logrus.Fields{
			"method": method,          // HTTP method
			"path":   path,            // Processor endpoint
			"status": resp.StatusCode, // Processor status code
			"body":   string(raw),     // Processor error payload
		}).Warn("Processor call failed")
		return nil, apperr.Upstream(failure, fmt.Errorf("processor returned %d", resp.StatusCode))
	}

	var order Order
	if err := json.Unmarshal(raw, &order.Payload); err != nil {
		return nil, apperr.Upstream(failure, fmt.Errorf("malformed processor response: %w", err))
	}
	order.ID, _ = order.Payload["id"].(string)
	order.Status, _ = order.Payload["status"].(string)
	if order.ID == "" {
		return nil, apperr.Upstream(failure, errors.New("processor response has no order id"))
	}
	return &order, nil
}
