package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gift-backend/internal/dto"
	"gift-backend/internal/errs"
	"gift-backend/internal/models"
	"gift-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakePipeline struct {
	create func(req services.CreateGiftRequest) (*services.CreateGiftResult, error)
	read   func(token string) (*models.GiftRecord, error)
	claim  func(token string) (*services.ClaimResult, error)
}

func (f *fakePipeline) CreateGift(_ context.Context, req services.CreateGiftRequest) (*services.CreateGiftResult, error) {
	return f.create(req)
}

func (f *fakePipeline) Read(_ context.Context, token string) (*models.GiftRecord, error) {
	return f.read(token)
}

func (f *fakePipeline) Claim(_ context.Context, token string) (*services.ClaimResult, error) {
	return f.claim(token)
}

type fakeChecker struct {
	result services.ValidationResult
}

func (f fakeChecker) Validate(*models.PaymentProof) services.ValidationResult { return f.result }

func newGiftEngine(pipeline GiftPipeline, checker ProofChecker) *gin.Engine {
	h := NewGiftHandler(pipeline, checker, "https://gift.example/", testLogger())
	r := gin.New()
	r.POST("/api/gifts", h.CreateGiftHandler)
	r.GET("/api/gifts/:token", h.GetGiftHandler)
	r.POST("/api/gifts/:token/claim", h.ClaimGiftHandler)
	r.POST("/api/proofs/validate", h.ValidateProofHandler)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const createBody = `{
	"proof": {"commitment": "c1", "proof": "fam1_abc", "nullifier": "n1", "tx_signature": "sig"},
	"recipient": "friend@example.com",
	"token_symbol": "SOL",
	"token_amount": "0.75",
	"usd_equivalent": "100",
	"scheduled_at": "2026-12-24T18:00:00Z"
}`

func TestCreateGiftHandler(t *testing.T) {
	var got services.CreateGiftRequest
	pipeline := &fakePipeline{create: func(req services.CreateGiftRequest) (*services.CreateGiftResult, error) {
		got = req
		return &services.CreateGiftResult{
			ClaimToken: "gift1.token",
			Status:     models.GiftStatusWaitingForDelivery,
			Gift:       &models.GiftRecord{CommitmentHash: "0xabc"},
		}, nil
	}}
	r := newGiftEngine(pipeline, fakeChecker{})

	req := httptest.NewRequest(http.MethodPost, "/api/gifts", bytes.NewBufferString(createBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp dto.CreateGiftResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "gift1.token", resp.ClaimToken)
	require.Equal(t, models.GiftStatusWaitingForDelivery, resp.Status)
	require.Equal(t, "0xabc", resp.CommitmentHash)
	require.Equal(t, "https://gift.example/claim/gift1.token", resp.ClaimURL)

	require.Equal(t, "c1", got.Proof.Commitment)
	require.Equal(t, "sig", got.Proof.LedgerTxRef)
	require.True(t, got.USDEquivalent.Equal(decimal.NewFromInt(100)))
	require.True(t, got.TokenAmount.Equal(decimal.RequireFromString("0.75")))
	require.NotNil(t, got.ScheduledAt)
	require.True(t, got.ScheduledAt.Equal(time.Date(2026, 12, 24, 18, 0, 0, 0, time.UTC)))
}

func TestCreateGiftHandlerRejectsBadBody(t *testing.T) {
	called := false
	pipeline := &fakePipeline{create: func(services.CreateGiftRequest) (*services.CreateGiftResult, error) {
		called = true
		return nil, nil
	}}
	r := newGiftEngine(pipeline, fakeChecker{})

	w := doJSON(t, r, http.MethodPost, "/api/gifts", map[string]string{"recipient": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, called)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, string(errs.CodeInvalidRequest), resp.Code)
	require.Equal(t, string(errs.PhaseRequest), resp.Phase)
}

func TestCreateGiftHandlerMapsPhaseErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{errs.NewPhaseError(errs.PhasePaymentVerification, errs.CodeNullifierReused, "nullifier already used"), http.StatusConflict},
		{errs.NewPhaseError(errs.PhasePaymentVerification, errs.CodeUnrecognizedProofFormat, "unknown family"), http.StatusBadRequest},
		{errs.NewPhaseError(errs.PhasePaymentVerification, errs.CodeLedgerTransactionFailed, "tx failed"), http.StatusUnprocessableEntity},
		{errs.NewPhaseError(errs.PhaseCardIssuance, errs.CodeIssuerRejected, "declined"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		pe := tc.err.(*errs.PhaseError)
		t.Run(string(pe.Code), func(t *testing.T) {
			pipeline := &fakePipeline{create: func(services.CreateGiftRequest) (*services.CreateGiftResult, error) {
				return nil, tc.err
			}}
			r := newGiftEngine(pipeline, fakeChecker{})

			req := httptest.NewRequest(http.MethodPost, "/api/gifts", bytes.NewBufferString(createBody))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tc.status, w.Code)
			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.False(t, resp.Success)
			require.Equal(t, string(pe.Code), resp.Code)
			require.Equal(t, string(pe.Phase), resp.Phase)
			require.Equal(t, pe.Reason, resp.Error)
		})
	}
}

func TestGetGiftHandler(t *testing.T) {
	pipeline := &fakePipeline{read: func(token string) (*models.GiftRecord, error) {
		if token != "gift1.good" {
			return nil, errs.NewPhaseError(errs.PhaseRequest, errs.CodeCorruptToken, "claim token is corrupt")
		}
		return &models.GiftRecord{
			Status: models.GiftStatusDelivered,
			Card:   &models.CardRecord{MaskedNumber: "**** **** **** 1111"},
		}, nil
	}}
	r := newGiftEngine(pipeline, fakeChecker{})

	w := doJSON(t, r, http.MethodGet, "/api/gifts/gift1.good", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.GiftViewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, models.GiftStatusDelivered, resp.Gift.Status)
	require.Empty(t, resp.Gift.Card.Number)
	require.NotContains(t, w.Body.String(), `"number"`)

	w = doJSON(t, r, http.MethodGet, "/api/gifts/gift1.bad", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), string(errs.CodeCorruptToken))
}

func TestClaimGiftHandler(t *testing.T) {
	claimed := map[string]bool{}
	pipeline := &fakePipeline{claim: func(token string) (*services.ClaimResult, error) {
		if claimed[token] {
			return nil, errs.NewPhaseError(errs.PhaseClaim, errs.CodeAlreadyClaimed, "gift already claimed")
		}
		claimed[token] = true
		return &services.ClaimResult{
			ClaimToken: "gift1.claimed",
			Gift: &models.GiftRecord{
				Status: models.GiftStatusClaimed,
				Card:   &models.CardRecord{Number: "4111111111111111", CVV: "123"},
			},
		}, nil
	}}
	r := newGiftEngine(pipeline, fakeChecker{})

	w := doJSON(t, r, http.MethodPost, "/api/gifts/gift1.tok/claim", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ClaimGiftResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "gift1.claimed", resp.ClaimToken)
	require.Equal(t, "4111111111111111", resp.Gift.Card.Number)

	w = doJSON(t, r, http.MethodPost, "/api/gifts/gift1.tok/claim", nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestValidateProofHandler(t *testing.T) {
	r := newGiftEngine(&fakePipeline{}, fakeChecker{result: services.ValidationResult{
		OK: false, Code: errs.CodeUnrecognizedProofFormat, Reason: "proof matches no known family",
	}})

	w := doJSON(t, r, http.MethodPost, "/api/proofs/validate", models.PaymentProof{Commitment: "c1", ProofBlob: "zzz"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ValidateProofResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Valid)
	require.Equal(t, string(errs.CodeUnrecognizedProofFormat), resp.Code)
}

func TestHTTPStatusFor(t *testing.T) {
	require.Equal(t, http.StatusGatewayTimeout, HTTPStatusFor(context.DeadlineExceeded))
	require.Equal(t, statusClientClosedRequest, HTTPStatusFor(context.Canceled))
	require.Equal(t, http.StatusConflict, HTTPStatusFor(errs.ErrInvalidTransition))
	require.Equal(t, http.StatusBadRequest, HTTPStatusFor(errs.ErrCorruptToken))
	require.Equal(t, http.StatusBadGateway, HTTPStatusFor(errs.ErrIssuerUnreachable))
	require.Equal(t, http.StatusInternalServerError, HTTPStatusFor(io.ErrUnexpectedEOF))
}
