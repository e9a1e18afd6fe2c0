package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"

	"gift-backend/internal/clients"
	"gift-backend/internal/errs"
	"gift-backend/internal/metrics"
	"gift-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	feeRate = decimal.RequireFromString("0.002")
	feeMin  = decimal.NewFromInt(5)
	feeMax  = decimal.NewFromInt(500)
)

// IssuanceFee 0.2% of the amount clamped to [5, 500]. Informational only.
func IssuanceFee(usd decimal.Decimal) decimal.Decimal {
	fee := usd.Mul(feeRate)
	if fee.LessThan(feeMin) {
		return feeMin
	}
	if fee.GreaterThan(feeMax) {
		return feeMax
	}
	return fee.Round(2)
}

// IssueCardRequest what the pipeline asks of a card issuer
type IssueCardRequest struct {
	USDAmount      decimal.Decimal
	Recipient      string
	CommitmentHash string
}

// CardIssuerGateway issues exactly one card per call
type CardIssuerGateway interface {
	Issue(ctx context.Context, req IssueCardRequest) (*models.CardRecord, error)
	Health(ctx context.Context) error
}

// CardIssuerAPI the external issuer operations the HTTP gateway uses
type CardIssuerAPI interface {
	IssueCard(ctx context.Context, body *clients.IssueCardBody) (*clients.IssuedCard, error)
	GetCard(ctx context.Context, cardID string) (*clients.CardDetails, error)
	Health(ctx context.Context) error
}

// HTTPCardIssuerGateway calls the external issuer and falls back to a
// protocol-backed card when the issuer cannot be reached
type HTTPCardIssuerGateway struct {
	api     CardIssuerAPI
	minter  *ProtocolCardMinter
	timeout time.Duration
	now     func() time.Time
	logger  *logrus.Logger
}

// NewHTTPCardIssuerGateway Create a live gateway
func NewHTTPCardIssuerGateway(api CardIssuerAPI, fallbackSecret string, timeout time.Duration, logger *logrus.Logger) *HTTPCardIssuerGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPCardIssuerGateway{
		api:     api,
		minter:  NewProtocolCardMinter(fallbackSecret),
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

func (g *HTTPCardIssuerGateway) Issue(ctx context.Context, req IssueCardRequest) (*models.CardRecord, error) {
	if !req.USDAmount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", errs.ErrIssuerRejected)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	issuedAt := g.now().UTC()
	amount, _ := req.USDAmount.Float64()
	start := time.Now()
	card, err := g.api.IssueCard(callCtx, &clients.IssueCardBody{
		Amount:         amount,
		Currency:       "USD",
		RecipientEmail: req.Recipient,
		Metadata: clients.IssueCardMetadata{
			CommitmentHash: req.CommitmentHash,
			Timestamp:      issuedAt.UnixMilli(),
		},
	})
	elapsed := time.Since(start).Seconds()

	fields := logrus.Fields{"commitment_hash": req.CommitmentHash}

	if err != nil {
		if !issuerUnreachable(err) {
			metrics.CardIssuance.WithLabelValues("rejected").Inc()
			metrics.CardIssuanceDuration.WithLabelValues("rejected").Observe(elapsed)
			g.logger.WithFields(fields).WithError(err).Error("❌ [CardIssuer] Issuance rejected")
			return nil, fmt.Errorf("%w: %v", errs.ErrIssuerRejected, err)
		}

		g.logger.WithFields(fields).WithError(err).
			WithField("code", errs.CodeIssuerUnreachable).
			Warn("⚠️ [CardIssuer] Issuer unreachable, minting protocol-backed card")
		record := g.minter.Mint(req, issuedAt)
		metrics.CardIssuance.WithLabelValues("protocol_backed").Inc()
		metrics.CardIssuanceDuration.WithLabelValues("protocol_backed").Observe(elapsed)
		return record, nil
	}

	if card == nil || !card.Complete() {
		metrics.CardIssuance.WithLabelValues("rejected").Inc()
		g.logger.WithFields(fields).Error("❌ [CardIssuer] Response missing card fields")
		return nil, fmt.Errorf("%w: issuer response missing card fields", errs.ErrIssuerRejected)
	}

	metrics.CardIssuance.WithLabelValues("issuer").Inc()
	metrics.CardIssuanceDuration.WithLabelValues("issuer").Observe(elapsed)
	g.logger.WithFields(fields).WithField("card_id", card.CardID).Info("✅ [CardIssuer] Card issued")

	return &models.CardRecord{
		ExternalID:   card.CardID,
		Number:       card.CardNumber,
		CVV:          card.CVV,
		MaskedNumber: models.MaskCardNumber(card.CardNumber),
		LastFour:     models.LastFourDigits(card.CardNumber),
		Expiry:       card.ExpiryDate,
		Balance:      req.USDAmount,
		Fee:          IssuanceFee(req.USDAmount),
		Currency:     "USD",
		IssuedAt:     issuedAt,
	}, nil
}

// LookupCard reads the issuer's current view of a card it issued.
// Protocol-backed cards never reached the issuer and fail with ErrProtocolBackedCard.
func (g *HTTPCardIssuerGateway) LookupCard(ctx context.Context, cardID string) (*clients.CardDetails, error) {
	if strings.HasPrefix(cardID, protocolCardIDPrefix) {
		return nil, ErrProtocolBackedCard
	}
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.api.GetCard(callCtx, url.PathEscape(cardID))
}

func (g *HTTPCardIssuerGateway) Health(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.api.Health(callCtx)
}

// issuerUnreachable only connectivity failures and gateway-class statuses are
// transient. Anything else, a bad endpoint included, is a rejection.
func issuerUnreachable(err error) bool {
	var statusErr *clients.IssuerStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	if errors.Is(err, clients.ErrMalformedResponse) {
		return false
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED):
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// protocolCardIDPrefix marks cards minted locally by the fallback
const protocolCardIDPrefix = "pb_"

// ErrProtocolBackedCard the card was minted by the fallback and is unknown to the issuer
var ErrProtocolBackedCard = errors.New("protocol-backed card is not held by the issuer")

// ProtocolCardMinter derives a protocol-backed card from the request alone
type ProtocolCardMinter struct {
	secret []byte
}

func NewProtocolCardMinter(secret string) *ProtocolCardMinter {
	return &ProtocolCardMinter{secret: []byte(secret)}
}

// Mint is deterministic in (secret, request, issue year).
func (m *ProtocolCardMinter) Mint(req IssueCardRequest, issuedAt time.Time) *models.CardRecord {
	record := deriveCard(m.secret, "4000", protocolCardIDPrefix, req, issuedAt)
	record.IsProtocolBacked = true
	return record
}

// SandboxCardIssuerGateway deterministic issuer used outside production, no network
type SandboxCardIssuerGateway struct {
	secret []byte
	now    func() time.Time
	logger *logrus.Logger
}

func NewSandboxCardIssuerGateway(secret string, logger *logrus.Logger) *SandboxCardIssuerGateway {
	if secret == "" {
		secret = "sandbox"
	}
	return &SandboxCardIssuerGateway{secret: []byte(secret), now: time.Now, logger: logger}
}

func (g *SandboxCardIssuerGateway) Issue(_ context.Context, req IssueCardRequest) (*models.CardRecord, error) {
	if !req.USDAmount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", errs.ErrIssuerRejected)
	}
	record := deriveCard(g.secret, "4111", "sandbox_", req, g.now().UTC())
	metrics.CardIssuance.WithLabelValues("sandbox").Inc()
	g.logger.WithField("commitment_hash", req.CommitmentHash).Info("🧪 [CardIssuer] Sandbox card issued")
	return record, nil
}

func (g *SandboxCardIssuerGateway) Health(context.Context) error { return nil }

func deriveCard(secret []byte, prefix, idPrefix string, req IssueCardRequest, issuedAt time.Time) *models.CardRecord {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(req.CommitmentHash))
	mac.Write([]byte{0})
	mac.Write([]byte(req.Recipient))
	mac.Write([]byte{0})
	mac.Write([]byte(req.USDAmount.String()))
	sum := mac.Sum(nil)

	var number strings.Builder
	number.WriteString(prefix)
	for i := 0; number.Len() < 15; i++ {
		number.WriteByte('0' + sum[i]%10)
	}
	number.WriteByte('0' + luhnCheckDigit(number.String()))
	cardNumber := number.String()

	cvv := fmt.Sprintf("%d%d%d", sum[20]%10, sum[21]%10, sum[22]%10)

	return &models.CardRecord{
		ExternalID:   idPrefix + hex.EncodeToString(sum[24:32]),
		Number:       cardNumber,
		CVV:          cvv,
		MaskedNumber: models.MaskCardNumber(cardNumber),
		LastFour:     models.LastFourDigits(cardNumber),
		Expiry:       fmt.Sprintf("12/%d", issuedAt.Year()+3),
		Balance:      req.USDAmount,
		Fee:          IssuanceFee(req.USDAmount),
		Currency:     "USD",
		IssuedAt:     issuedAt,
	}
}

// luhnCheckDigit for a number that does not yet carry its check digit
func luhnCheckDigit(partial string) byte {
	sum := 0
	double := true
	for i := len(partial) - 1; i >= 0; i-- {
		d := int(partial[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return byte((10 - sum%10) % 10)
}

// LuhnValid reports whether a digit string passes the Luhn check
func LuhnValid(number string) bool {
	if len(number) < 2 {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	return luhnCheckDigit(number[:len(number)-1]) == number[len(number)-1]-'0'
}
