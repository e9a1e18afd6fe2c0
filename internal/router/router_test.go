package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"gift-backend/internal/config"
	"gift-backend/internal/handlers"
	"gift-backend/internal/models"
	"gift-backend/internal/repository"
	"gift-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPipeline struct{}

func (stubPipeline) CreateGift(context.Context, services.CreateGiftRequest) (*services.CreateGiftResult, error) {
	return nil, errors.New("not used")
}

func (stubPipeline) Read(context.Context, string) (*models.GiftRecord, error) {
	return &models.GiftRecord{Status: models.GiftStatusDelivered}, nil
}

func (stubPipeline) Claim(context.Context, string) (*services.ClaimResult, error) {
	return nil, errors.New("not used")
}

type stubIssuer struct{ err error }

func (s stubIssuer) Health(context.Context) error { return s.err }

func newTestRouter(t *testing.T, mutate func(*config.Config)) *gin.Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.Default()
	cfg.Admin.JWTSecret = "admin-jwt-secret"
	if mutate != nil {
		mutate(cfg)
	}

	push := services.NewWebSocketPushService(logger)
	t.Cleanup(push.Stop)

	return SetupRouter(Dependencies{
		Config:       cfg,
		Logger:       logger,
		Gifts:        handlers.NewGiftHandler(stubPipeline{}, services.NewProofValidator(cfg.Ledger.Kind, cfg.ProofFamilies), "", logger),
		AdminAuth:    handlers.NewAdminAuthHandler(cfg.Admin, logger),
		AdminGifts:   handlers.NewAdminGiftHandler(repository.NewMemoryGiftAuditRepository(), repository.NewMemoryNullifierRepository(), nil, logger),
		WebSocket:    handlers.NewWebSocketHandler(push, logger),
		IssuerHealth: stubIssuer{},
	})
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutesRegistered(t *testing.T) {
	r := newTestRouter(t, nil)

	for path, status := range map[string]int{
		"/api/health":               http.StatusOK,
		"/api/health/issuer":        http.StatusOK,
		"/api/gifts/gift1.any":      http.StatusOK,
		"/metrics":                  http.StatusOK,
		"/ws/status":                http.StatusOK,
		"/ws/gifts?commitment=nope": http.StatusBadRequest,
		"/does/not/exist":           http.StatusNotFound,
	} {
		w := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, status, w.Code, path)
	}
}

func TestAdminRoutesRequireAllowlistAndToken(t *testing.T) {
	r := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/nullifiers/n1", nil)
	req.RemoteAddr = "8.8.8.8:1234"
	require.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/nullifiers/n1", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	require.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestCORS(t *testing.T) {
	t.Run("allow all by default", func(t *testing.T) {
		r := newTestRouter(t, nil)
		req := httptest.NewRequest(http.MethodOptions, "/api/gifts", nil)
		req.Header.Set("Origin", "https://anywhere.example")
		w := serve(r, req)
		require.Equal(t, http.StatusNoContent, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("whitelist", func(t *testing.T) {
		r := newTestRouter(t, func(cfg *config.Config) {
			cfg.CORS.AllowedOrigins = []string{"https://gift.example"}
			cfg.CORS.AllowCredentials = true
		})

		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://gift.example")
		w := serve(r, req)
		require.Equal(t, "https://gift.example", w.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

		req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		w = serve(r, req)
		require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestIssuerHealthUnavailable(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r := gin.New()
	r.GET("/h", handlers.IssuerHealthHandler(stubIssuer{err: errors.New("down")}, logger))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/h", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
