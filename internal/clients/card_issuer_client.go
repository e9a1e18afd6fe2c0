package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gift-backend/internal/config"

	"github.com/sirupsen/logrus"
)

// CardIssuerClient HTTP client for the external virtual card issuer
type CardIssuerClient struct {
	BaseURL  string
	APIKey   string
	CardType string
	Source   string
	Client   *http.Client
	logger   *logrus.Logger
}

// NewCardIssuerClient Create a card issuer client
func NewCardIssuerClient(cfg config.CardIssuerConfig, logger *logrus.Logger) *CardIssuerClient {
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	logger.WithFields(logrus.Fields{
		"endpoint": cfg.Endpoint,
		"timeout":  timeout,
	}).Info("🔧 [CardIssuer] Creating client")

	return &CardIssuerClient{
		BaseURL:  strings.TrimRight(cfg.Endpoint, "/"),
		APIKey:   cfg.APIKey,
		CardType: cfg.CardType,
		Source:   cfg.Source,
		Client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// IssueCardMetadata metadata attached to an issue request
type IssueCardMetadata struct {
	Source         string `json:"source"`
	CommitmentHash string `json:"commitmentHash,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

// IssueCardBody issuer request body
type IssueCardBody struct {
	Amount         float64           `json:"amount"`
	Currency       string            `json:"currency"`
	CardType       string            `json:"cardType"`
	RecipientEmail string            `json:"recipientEmail"`
	Metadata       IssueCardMetadata `json:"metadata"`
}

// IssuedCard issuer response body
type IssuedCard struct {
	CardID     string `json:"cardId"`
	CardNumber string `json:"cardNumber"`
	CVV        string `json:"cvv"`
	ExpiryDate string `json:"expiryDate"`
	Status     string `json:"status,omitempty"`
}

// Complete reports whether every field the pipeline needs is present.
func (c *IssuedCard) Complete() bool {
	return c.CardID != "" && c.CardNumber != "" && c.CVV != "" && c.ExpiryDate != ""
}

// CardDetails card lookup response
type CardDetails struct {
	CardID     string  `json:"cardId"`
	Status     string  `json:"status"`
	Balance    float64 `json:"balance"`
	Currency   string  `json:"currency"`
	ExpiryDate string  `json:"expiryDate"`
	LastFour   string  `json:"lastFour,omitempty"`
}

// ErrMalformedResponse the issuer answered 2xx with a body that could not be parsed
var ErrMalformedResponse = errors.New("malformed card issuer response")

// IssuerStatusError non-2xx response from the issuer
type IssuerStatusError struct {
	StatusCode int
	Body       string
}

func (e *IssuerStatusError) Error() string {
	return fmt.Sprintf("card issuer returned status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the status indicates the issuer itself could not be reached.
func (e *IssuerStatusError) Transient() bool {
	switch e.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IssueCard POST /v1/cards/issue
func (c *CardIssuerClient) IssueCard(ctx context.Context, body *IssueCardBody) (*IssuedCard, error) {
	if body.CardType == "" {
		body.CardType = c.CardType
	}
	if body.Metadata.Source == "" {
		body.Metadata.Source = c.Source
	}

	var card IssuedCard
	if err := c.do(ctx, http.MethodPost, "/v1/cards/issue", body, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// GetCard GET /v1/cards/{id}
func (c *CardIssuerClient) GetCard(ctx context.Context, cardID string) (*CardDetails, error) {
	var details CardDetails
	if err := c.do(ctx, http.MethodGet, "/v1/cards/"+cardID, nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// Health GET /v1/health
func (c *CardIssuerClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/health", nil, nil)
}

func (c *CardIssuerClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("card issuer request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read card issuer response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("⚠️ [CardIssuer] Non-success response")
		return &IssuerStatusError{StatusCode: resp.StatusCode, Body: truncateBody(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func truncateBody(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
