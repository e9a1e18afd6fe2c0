package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"syscall"
	"testing"
	"time"

	"gift-backend/internal/clients"
	"gift-backend/internal/config"
	"gift-backend/internal/errs"
	"gift-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *HTTPCardIssuerGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := clients.NewCardIssuerClient(config.CardIssuerConfig{
		Endpoint: server.URL,
		APIKey:   "key",
		Timeout:  5,
		CardType: "BLACK",
		Source:   "gift-backend",
	}, testLogger())
	return NewHTTPCardIssuerGateway(client, "fallback-secret", timeout, testLogger())
}

func issueRequest() IssueCardRequest {
	return IssueCardRequest{
		USDAmount:      decimal.NewFromInt(100),
		Recipient:      "friend@example.com",
		CommitmentHash: CommitmentHash("c1"),
	}
}

func TestIssuanceFee(t *testing.T) {
	requireDecimalEqual(t, decimal.NewFromInt(5), IssuanceFee(decimal.NewFromInt(100)))
	requireDecimalEqual(t, decimal.NewFromInt(10), IssuanceFee(decimal.NewFromInt(5000)))
	requireDecimalEqual(t, decimal.NewFromInt(500), IssuanceFee(decimal.NewFromInt(1_000_000)))
}

func TestGatewayIssuesCard(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var body clients.IssueCardBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, float64(100), body.Amount)
		require.Equal(t, "USD", body.Currency)
		require.Equal(t, CommitmentHash("c1"), body.Metadata.CommitmentHash)

		_ = json.NewEncoder(w).Encode(clients.IssuedCard{
			CardID: "card_1", CardNumber: "4111111111111111", CVV: "321", ExpiryDate: "12/2029",
		})
	}, time.Second)

	card, err := gateway.Issue(context.Background(), issueRequest())
	require.NoError(t, err)
	require.Equal(t, "card_1", card.ExternalID)
	require.Equal(t, "**** **** **** 1111", card.MaskedNumber)
	require.Equal(t, "1111", card.LastFour)
	require.False(t, card.IsProtocolBacked)
	requireDecimalEqual(t, decimal.NewFromInt(100), card.Balance)
	requireDecimalEqual(t, decimal.NewFromInt(5), card.Fee)
}

func TestGatewayRejectsIncompleteResponse(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cardId":"card_1","cardNumber":"4111111111111111"}`))
	}, time.Second)

	_, err := gateway.Issue(context.Background(), issueRequest())
	require.ErrorIs(t, err, errs.ErrIssuerRejected)
}

func TestGatewayRejectsMalformedBody(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}, time.Second)

	_, err := gateway.Issue(context.Background(), issueRequest())
	require.ErrorIs(t, err, errs.ErrIssuerRejected)
}

func TestGatewayRejectionHasNoFallback(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusInternalServerError} {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}, time.Second)

		card, err := gateway.Issue(context.Background(), issueRequest())
		require.Nil(t, card)
		require.ErrorIs(t, err, errs.ErrIssuerRejected, "status %d", status)
	}
}

func TestGatewayFallsBackWhenUnreachable(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}, 50*time.Millisecond)

		card, err := gateway.Issue(context.Background(), issueRequest())
		require.NoError(t, err)
		requireProtocolBackedCard(t, card)
	})

	t.Run("service unavailable", func(t *testing.T) {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}, time.Second)

		card, err := gateway.Issue(context.Background(), issueRequest())
		require.NoError(t, err)
		requireProtocolBackedCard(t, card)
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		endpoint := server.URL
		server.Close()

		client := clients.NewCardIssuerClient(config.CardIssuerConfig{Endpoint: endpoint, Timeout: 1}, testLogger())
		gateway := NewHTTPCardIssuerGateway(client, "fallback-secret", time.Second, testLogger())

		card, err := gateway.Issue(context.Background(), issueRequest())
		require.NoError(t, err)
		requireProtocolBackedCard(t, card)
	})
}

func TestGatewayLookupCard(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/cards/card_9" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"cardId":"card_9","status":"active","balance":100,"currency":"USD"}`))
	}, time.Second)

	details, err := gateway.LookupCard(context.Background(), "card_9")
	require.NoError(t, err)
	require.Equal(t, "active", details.Status)

	_, err = gateway.LookupCard(context.Background(), "card_unknown")
	var statusErr *clients.IssuerStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	minted := NewProtocolCardMinter("fallback-secret").Mint(issueRequest(), time.Now())
	_, err = gateway.LookupCard(context.Background(), minted.ExternalID)
	require.ErrorIs(t, err, ErrProtocolBackedCard)
}

func TestGatewayBadEndpointHasNoFallback(t *testing.T) {
	client := clients.NewCardIssuerClient(config.CardIssuerConfig{Endpoint: "api.starpayinfo.com", Timeout: 1}, testLogger())
	gateway := NewHTTPCardIssuerGateway(client, "fallback-secret", time.Second, testLogger())

	card, err := gateway.Issue(context.Background(), issueRequest())
	require.Nil(t, card)
	require.ErrorIs(t, err, errs.ErrIssuerRejected)
}

func TestIssuerUnreachableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"deadline", fmt.Errorf("card issuer request failed: %w", context.DeadlineExceeded), true},
		{"dns", &url.Error{Op: "Post", URL: "https://issuer", Err: &net.DNSError{Err: "no such host", Name: "issuer", IsNotFound: true}}, true},
		{"refused", &url.Error{Op: "Post", URL: "https://issuer", Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}, true},
		{"reset", fmt.Errorf("failed to read card issuer response: %w", syscall.ECONNRESET), true},
		{"eof", &url.Error{Op: "Post", URL: "https://issuer", Err: io.EOF}, true},
		{"bad gateway", &clients.IssuerStatusError{StatusCode: http.StatusBadGateway}, true},
		{"bad request", &clients.IssuerStatusError{StatusCode: http.StatusBadRequest}, false},
		{"malformed body", fmt.Errorf("%w: unexpected token", clients.ErrMalformedResponse), false},
		{"unsupported scheme", &url.Error{Op: "Post", URL: "api.starpayinfo.com/v1/cards/issue", Err: errors.New("unsupported protocol scheme \"\"")}, false},
		{"marshal", errors.New("failed to marshal request: json: unsupported value"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, issuerUnreachable(tc.err))
		})
	}
}

func requireProtocolBackedCard(t *testing.T, card *models.CardRecord) {
	t.Helper()
	require.NotNil(t, card)
	require.True(t, card.IsProtocolBacked)
	require.True(t, strings.HasPrefix(card.Number, "4000"))
	require.True(t, LuhnValid(card.Number))
	require.Len(t, card.CVV, 3)
	require.Equal(t, fmt.Sprintf("12/%d", card.IssuedAt.Year()+3), card.Expiry)
	requireDecimalEqual(t, decimal.NewFromInt(100), card.Balance)
}

func TestProtocolCardMinterDeterministic(t *testing.T) {
	minter := NewProtocolCardMinter("fallback-secret")
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := minter.Mint(issueRequest(), issuedAt)
	second := minter.Mint(issueRequest(), issuedAt)
	require.Equal(t, first.Number, second.Number)
	require.Equal(t, first.CVV, second.CVV)
	require.Equal(t, first.ExternalID, second.ExternalID)

	require.Len(t, first.Number, 16)
	require.True(t, strings.HasPrefix(first.Number, "4000"))
	require.True(t, LuhnValid(first.Number))
	require.Len(t, first.CVV, 3)
	require.Equal(t, "12/2029", first.Expiry)
	require.True(t, first.IsProtocolBacked)
	requireDecimalEqual(t, decimal.NewFromInt(100), first.Balance)

	other := issueRequest()
	other.CommitmentHash = CommitmentHash("c2")
	require.NotEqual(t, first.Number, minter.Mint(other, issuedAt).Number)
}

func TestSandboxGateway(t *testing.T) {
	gateway := NewSandboxCardIssuerGateway("sandbox-secret", testLogger())

	card, err := gateway.Issue(context.Background(), issueRequest())
	require.NoError(t, err)
	require.True(t, LuhnValid(card.Number))
	require.False(t, card.IsProtocolBacked)
	require.NoError(t, gateway.Health(context.Background()))

	_, err = gateway.Issue(context.Background(), IssueCardRequest{USDAmount: decimal.Zero})
	require.ErrorIs(t, err, errs.ErrIssuerRejected)
}

func TestLuhnValid(t *testing.T) {
	require.True(t, LuhnValid("4111111111111111"))
	require.True(t, LuhnValid("79927398713"))
	require.False(t, LuhnValid("4111111111111112"))
	require.False(t, LuhnValid("41x1"))
}
