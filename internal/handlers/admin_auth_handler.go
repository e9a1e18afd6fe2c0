package handlers

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"gift-backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
)

const adminTokenIssuer = "gift-backend-admin"

// AdminAuthHandler admin password + TOTP login
type AdminAuthHandler struct {
	cfg       config.AdminConfig
	jwtSecret []byte
	now       func() time.Time
	logger    *logrus.Logger
}

// AdminLoginRequest admin login request
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code" binding:"required"`
}

// AdminLoginResponse admin login response
type AdminLoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// AdminJWTClaims admin JWT claims
type AdminJWTClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewAdminAuthHandler create admin auth handler
func NewAdminAuthHandler(cfg config.AdminConfig, logger *logrus.Logger) *AdminAuthHandler {
	if cfg.TOTPSecret == "" || cfg.Password == "" || cfg.JWTSecret == "" {
		logger.Warn("⚠️ Admin credentials not fully configured, admin login is disabled")
	}
	return &AdminAuthHandler{
		cfg:       cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		now:       time.Now,
		logger:    logger,
	}
}

func (h *AdminAuthHandler) configured() bool {
	return h.cfg.TOTPSecret != "" && h.cfg.Password != "" && len(h.jwtSecret) > 0
}

// AdminLoginHandler POST /api/admin/login
func (h *AdminAuthHandler) AdminLoginHandler(c *gin.Context) {
	if !h.configured() {
		c.JSON(http.StatusServiceUnavailable, AdminLoginResponse{
			Success: false,
			Message: "Admin login is not configured",
		})
		return
	}

	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AdminLoginResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	// same message for every credential failure
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.Password)) == 1
	if !userOK || !passOK {
		h.logger.WithField("client_ip", c.ClientIP()).Warn("Admin login failed - invalid credentials")
		c.JSON(http.StatusUnauthorized, AdminLoginResponse{
			Success: false,
			Message: "Invalid credentials",
		})
		return
	}

	valid, err := totp.ValidateCustom(req.TOTPCode, h.cfg.TOTPSecret, h.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !valid {
		h.logger.WithField("client_ip", c.ClientIP()).Warn("Admin login failed - invalid TOTP code")
		c.JSON(http.StatusUnauthorized, AdminLoginResponse{
			Success: false,
			Message: "Invalid TOTP code",
		})
		return
	}

	token, err := h.generateAdminJWTToken(req.Username)
	if err != nil {
		h.logger.WithError(err).Error("❌ Failed to sign admin token")
		c.JSON(http.StatusInternalServerError, AdminLoginResponse{
			Success: false,
			Message: "Failed to generate token",
		})
		return
	}

	h.logger.WithField("username", req.Username).Info("✅ Admin logged in")
	c.JSON(http.StatusOK, AdminLoginResponse{
		Success: true,
		Token:   token,
		Message: "Login successful",
	})
}

// GenerateTOTPSecretHandler only available while no TOTP secret is configured
func (h *AdminAuthHandler) GenerateTOTPSecretHandler(c *gin.Context) {
	if h.cfg.TOTPSecret != "" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "TOTP secret already configured",
		})
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Gift Admin",
		AccountName: h.cfg.Username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to generate TOTP secret",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"secret":  key.Secret(),
		"url":     key.URL(),
		"message": "Save this secret to admin.totpSecret (or ADMIN_TOTP_SECRET) and restart.",
	})
}

func (h *AdminAuthHandler) generateAdminJWTToken(username string) (string, error) {
	return SignAdminJWTToken(h.jwtSecret, username, time.Duration(h.cfg.TokenTTL)*time.Minute, h.now())
}

// SignAdminJWTToken issue an admin token valid for ttl from now
func SignAdminJWTToken(secret []byte, username string, ttl time.Duration, now time.Time) (string, error) {
	claims := AdminJWTClaims{
		Username: username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    adminTokenIssuer,
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateAdminJWTToken verify an admin JWT token against secret
func ValidateAdminJWTToken(secret []byte, tokenString string) (*AdminJWTClaims, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("admin jwt secret not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &AdminJWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(adminTokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*AdminJWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
