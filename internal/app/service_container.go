package app

import (
	"fmt"
	"time"

	"gift-backend/internal/clients"
	"gift-backend/internal/config"
	"gift-backend/internal/db"
	"gift-backend/internal/handlers"
	"gift-backend/internal/interfaces"
	"gift-backend/internal/metrics"
	"gift-backend/internal/repository"
	"gift-backend/internal/retry"
	"gift-backend/internal/router"
	"gift-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ServiceContainer owns every long-lived component of the server
type ServiceContainer struct {
	Config *config.Config
	Logger *logrus.Logger

	// Database (nil when every store is in memory)
	DB *gorm.DB

	// Repositories
	NullifierRepo repository.NullifierRepository
	ClaimRepo     repository.ClaimRepository
	AuditRepo     repository.GiftAuditRepository

	// Clients
	Ledger    interfaces.LedgerClient
	Publisher interfaces.EventPublisher

	// Core Services
	Validator    *services.ProofValidator
	Poller       *services.ConfirmationPoller
	Verifier     *services.PaymentVerifier
	Gateway      services.CardIssuerGateway
	Codec        *services.GiftCodec
	Orchestrator *services.IssuanceOrchestrator

	// Push & notification
	WebSocketPushService *services.WebSocketPushService
	Notifier             *services.LifecycleNotifier
}

// NewServiceContainer wire components from cfg. Call Close when done.
func NewServiceContainer(cfg *config.Config, logger *logrus.Logger) (*ServiceContainer, error) {
	logger.Info("🚀 Initializing Service Container...")

	c := &ServiceContainer{Config: cfg, Logger: logger}

	if err := c.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}
	if err := c.initClients(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	if err := c.initCoreServices(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize core services: %w", err)
	}

	logger.Info("✅ Service Container initialized successfully")
	return c, nil
}

// initRepositories picks database or memory stores per config
func (c *ServiceContainer) initRepositories() error {
	c.Logger.Info("📦 Initializing Repositories...")

	if c.Config.NeedsDatabase() {
		database, err := db.Open(c.Config.Database)
		if err != nil {
			return err
		}
		if err := db.Migrate(database); err != nil {
			return err
		}
		c.DB = database
	}

	if c.Config.Nullifiers.Store == config.StoreDatabase {
		c.NullifierRepo = repository.NewNullifierRepository(c.DB)
	} else {
		c.Logger.Warn("⚠️ Nullifier store is in memory, consumed nullifiers are lost on restart")
		c.NullifierRepo = repository.NewMemoryNullifierRepository()
	}

	if c.Config.Claims.Store == config.StoreDatabase {
		c.ClaimRepo = repository.NewClaimRepository(c.DB)
	} else {
		c.ClaimRepo = repository.NewMemoryClaimRepository()
	}

	// audit rides along with whichever database exists
	if c.DB != nil {
		c.AuditRepo = repository.NewGiftAuditRepository(c.DB)
	} else {
		c.AuditRepo = repository.NewMemoryGiftAuditRepository()
	}

	c.Logger.WithFields(logrus.Fields{
		"nullifiers": c.Config.Nullifiers.Store,
		"claims":     c.Config.Claims.Store,
	}).Info("✅ Repositories initialized")
	return nil
}

// initClients ledger and event broker connections
func (c *ServiceContainer) initClients() error {
	ledger, err := clients.NewLedgerClient(c.Config.Ledger, c.Logger)
	if err != nil {
		return err
	}
	c.Ledger = ledger

	switch c.Config.Events.Broker {
	case config.BrokerNATS:
		publisher, err := clients.NewNATSClient(c.Config.Events.NATS, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		c.Publisher = publisher
	case config.BrokerRabbitMQ:
		publisher, err := clients.NewRabbitMQPublisher(c.Config.Events.RabbitMQ, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.Publisher = publisher
	default:
		c.Logger.Info("📭 No event broker configured, lifecycle events stay local")
	}
	return nil
}

// initCoreServices the issuance pipeline
func (c *ServiceContainer) initCoreServices() error {
	c.Logger.Info("🔧 Initializing Core Services...")
	cfg := c.Config

	c.Validator = services.NewProofValidator(cfg.Ledger.Kind, cfg.ProofFamilies)
	policy := retry.NewPolicy(
		time.Duration(cfg.Verification.BaseDelayMs)*time.Millisecond,
		time.Duration(cfg.Verification.MaxDelayMs)*time.Millisecond,
		cfg.Verification.Jitter,
	)
	c.Poller = services.NewConfirmationPoller(c.Ledger, policy, retry.SystemClock(), c.Logger)
	c.Verifier = services.NewPaymentVerifier(
		c.Validator,
		c.Poller,
		c.NullifierRepo,
		services.PaymentVerifierConfig{
			Strict:          cfg.Verification.Strict,
			MaxPollAttempts: cfg.Verification.MaxPollAttempts,
		},
		c.Logger,
	)

	switch cfg.CardIssuer.Mode {
	case config.IssuerModeLive:
		api := clients.NewCardIssuerClient(cfg.CardIssuer, c.Logger)
		c.Gateway = services.NewHTTPCardIssuerGateway(api, cfg.CardIssuer.FallbackSecret, cfg.CardIssuer.RequestTimeout(), c.Logger)
	default:
		c.Logger.Warn("🧪 Card issuer in sandbox mode, cards are simulated")
		secret := cfg.CardIssuer.FallbackSecret
		if secret == "" {
			secret = cfg.Codec.Secret
		}
		c.Gateway = services.NewSandboxCardIssuerGateway(secret, c.Logger)
	}

	codec, err := services.NewGiftCodec(cfg.Codec.Secret)
	if err != nil {
		return err
	}
	c.Codec = codec

	c.WebSocketPushService = services.NewWebSocketPushService(c.Logger)
	c.Notifier = services.NewLifecycleNotifier(c.AuditRepo, c.Publisher, c.WebSocketPushService, cfg.Events.ClaimBaseURL, c.Logger)

	c.Orchestrator = services.NewIssuanceOrchestrator(
		c.Verifier,
		c.Gateway,
		c.Codec,
		c.ClaimRepo,
		c.Notifier,
		cfg.Claims.Policy,
		c.Logger,
	)

	c.Logger.WithFields(logrus.Fields{
		"ledger":       cfg.Ledger.Kind,
		"strict":       cfg.Verification.Strict,
		"issuer_mode":  cfg.CardIssuer.Mode,
		"claim_policy": cfg.Claims.Policy,
		"broker":       cfg.Events.Broker,
	}).Info("✅ Core services initialized")
	return nil
}

// Router build the HTTP engine over the container's services
func (c *ServiceContainer) Router() *gin.Engine {
	var cards handlers.CardLookup
	if live, ok := c.Gateway.(*services.HTTPCardIssuerGateway); ok {
		cards = live
	}

	return router.SetupRouter(router.Dependencies{
		Config:       c.Config,
		Logger:       c.Logger,
		Gifts:        handlers.NewGiftHandler(c.Orchestrator, c.Validator, c.Config.Events.ClaimBaseURL, c.Logger),
		AdminAuth:    handlers.NewAdminAuthHandler(c.Config.Admin, c.Logger),
		AdminGifts:   handlers.NewAdminGiftHandler(c.AuditRepo, c.NullifierRepo, cards, c.Logger),
		WebSocket:    handlers.NewWebSocketHandler(c.WebSocketPushService, c.Logger),
		IssuerHealth: c.Gateway,
	})
}

// Close release connections in reverse start order
func (c *ServiceContainer) Close() {
	if c.WebSocketPushService != nil {
		c.WebSocketPushService.Stop()
	}
	if c.Publisher != nil {
		c.Publisher.Close()
		metrics.BrokerConnectionStatus.WithLabelValues(c.Config.Events.Broker).Set(0)
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	c.Logger.Info("👋 Service Container closed")
}
