package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Log           LogConfig           `yaml:"log"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Verification  VerificationConfig  `yaml:"verification"`
	ProofFamilies []ProofFamilyConfig `yaml:"proof_families"`
	CardIssuer    CardIssuerConfig    `yaml:"card_issuer"`
	Codec         CodecConfig         `yaml:"codec"`
	Nullifiers    NullifierConfig     `yaml:"nullifiers"`
	Claims        ClaimsConfig        `yaml:"claims"`
	Events        EventsConfig        `yaml:"events"`
	CORS          CORSConfig          `yaml:"cors"`
	Admin         AdminConfig         `yaml:"admin"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig Database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres | sqlite
	DSN    string `yaml:"dsn"`
}

// LogConfig logrus configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// Ledger kinds
const (
	LedgerSolana = "solana"
	LedgerEVM    = "evm"
)

// LedgerConfig ledger RPC configuration
type LedgerConfig struct {
	Kind        string `yaml:"kind"`
	RPCEndpoint string `yaml:"rpcEndpoint"`
	Commitment  string `yaml:"commitment"` // solana commitment level used for lookups
	Timeout     int    `yaml:"timeout"`    // per-lookup timeout (seconds)
}

// LookupTimeout per-lookup timeout as a duration
func (l LedgerConfig) LookupTimeout() time.Duration {
	return time.Duration(l.Timeout) * time.Second
}

// VerificationConfig payment verification policy
type VerificationConfig struct {
	// Strict makes "not found after retries" a terminal failure instead of a
	// logged, tolerated condition.
	Strict          bool    `yaml:"strict"`
	MaxPollAttempts int     `yaml:"maxPollAttempts"`
	BaseDelayMs     int     `yaml:"baseDelayMs"`
	MaxDelayMs      int     `yaml:"maxDelayMs"`
	Jitter          float64 `yaml:"jitter"`
}

// ProofFamilyConfig one accepted proof format family
type ProofFamilyConfig struct {
	Name             string `yaml:"name"`
	ProofPrefix      string `yaml:"proofPrefix"`
	CommitmentPrefix string `yaml:"commitmentPrefix"`
}

// Card issuer modes
const (
	IssuerModeLive    = "live"
	IssuerModeSandbox = "sandbox"
)

// CardIssuerConfig external card issuer configuration
type CardIssuerConfig struct {
	Mode           string `yaml:"mode"`
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"apiKey"`
	Timeout        int    `yaml:"timeout"` // seconds
	CardType       string `yaml:"cardType"`
	Source         string `yaml:"source"`
	FallbackSecret string `yaml:"fallbackSecret"`
}

// RequestTimeout issuer call timeout as a duration
func (c CardIssuerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// CodecConfig claim token codec configuration
type CodecConfig struct {
	Secret string `yaml:"secret"`
}

// Store kinds shared by nullifier and claim stores
const (
	StoreDatabase = "database"
	StoreMemory   = "memory"
)

// NullifierConfig consumed nullifier store configuration
type NullifierConfig struct {
	Store string `yaml:"store"`
}

// Claim policies
const (
	ClaimPolicyIdempotent = "idempotent"
	ClaimPolicyReject     = "reject"
)

// ClaimsConfig claim registry configuration
type ClaimsConfig struct {
	Policy string `yaml:"policy"`
	Store  string `yaml:"store"`
}

// Event brokers
const (
	BrokerNATS     = "nats"
	BrokerRabbitMQ = "rabbitmq"
	BrokerNone     = "none"
)

// EventsConfig lifecycle event publishing configuration
type EventsConfig struct {
	Broker       string         `yaml:"broker"`
	ClaimBaseURL string         `yaml:"claimBaseUrl"` // used to build the claim link for the notification sender
	NATS         NATSConfig     `yaml:"nats"`
	RabbitMQ     RabbitMQConfig `yaml:"rabbitmq"`
}

// NATSConfig NATSMessage server configuration
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnect_wait"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// RabbitMQConfig RabbitMQ publisher configuration
type RabbitMQConfig struct {
	URL              string `yaml:"url"`
	Exchange         string `yaml:"exchange"`
	RoutingKeyPrefix string `yaml:"routing_key_prefix"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`   // List of allowed origins
	AllowCredentials bool     `yaml:"allowCredentials"` // Whether to allow credentials
	MaxAge           int      `yaml:"maxAge"`           // Max age for preflight requests (seconds)
}

// AdminConfig Admin API access control configuration
type AdminConfig struct {
	AllowedIPs []string `yaml:"allowedIPs"` // List of allowed IP addresses or CIDR ranges
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	TOTPSecret string   `yaml:"totpSecret"`
	JWTSecret  string   `yaml:"jwtSecret"`
	TokenTTL   int      `yaml:"tokenTtlMinutes"`
}

// Default returns a configuration usable for local development.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Ledger.Kind == "" {
		c.Ledger.Kind = LedgerSolana
	}
	if c.Ledger.RPCEndpoint == "" {
		c.Ledger.RPCEndpoint = "https://api.devnet.solana.com"
	}
	if c.Ledger.Commitment == "" {
		c.Ledger.Commitment = "confirmed"
	}
	if c.Ledger.Timeout <= 0 {
		c.Ledger.Timeout = 10
	}
	if c.Verification.MaxPollAttempts <= 0 {
		c.Verification.MaxPollAttempts = 4
	}
	if c.Verification.BaseDelayMs <= 0 {
		c.Verification.BaseDelayMs = 1000
	}
	if c.Verification.MaxDelayMs <= 0 {
		c.Verification.MaxDelayMs = 8000
	}
	if len(c.ProofFamilies) == 0 {
		c.ProofFamilies = []ProofFamilyConfig{
			{Name: "shadowwire-dev", ProofPrefix: "sw_proof_", CommitmentPrefix: "sw_commit_"},
			{Name: "shadowwire", ProofPrefix: "shadow_proof_"},
		}
	}
	if c.CardIssuer.Mode == "" {
		c.CardIssuer.Mode = IssuerModeSandbox
	}
	if c.CardIssuer.Endpoint == "" {
		c.CardIssuer.Endpoint = "https://api.starpayinfo.com"
	}
	if c.CardIssuer.Timeout <= 0 {
		c.CardIssuer.Timeout = 10
	}
	if c.CardIssuer.CardType == "" {
		c.CardIssuer.CardType = "BLACK"
	}
	if c.CardIssuer.Source == "" {
		c.CardIssuer.Source = "gift-backend"
	}
	if c.Nullifiers.Store == "" {
		c.Nullifiers.Store = StoreDatabase
	}
	if c.Claims.Policy == "" {
		c.Claims.Policy = ClaimPolicyIdempotent
	}
	if c.Claims.Store == "" {
		c.Claims.Store = StoreDatabase
	}
	if c.Events.Broker == "" {
		c.Events.Broker = BrokerNone
	}
	if c.Events.NATS.Timeout <= 0 {
		c.Events.NATS.Timeout = 10
	}
	if c.Events.NATS.ReconnectWait <= 0 {
		c.Events.NATS.ReconnectWait = 5
	}
	if c.Events.NATS.SubjectPrefix == "" {
		c.Events.NATS.SubjectPrefix = "gift"
	}
	if c.Events.RabbitMQ.Exchange == "" {
		c.Events.RabbitMQ.Exchange = "gift.events"
	}
	if c.Events.RabbitMQ.RoutingKeyPrefix == "" {
		c.Events.RabbitMQ.RoutingKeyPrefix = "gift"
	}
	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}
	if c.Admin.TokenTTL <= 0 {
		c.Admin.TokenTTL = 60
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Ledger.Kind {
	case LedgerSolana, LedgerEVM:
	default:
		return fmt.Errorf("unsupported ledger kind %q", c.Ledger.Kind)
	}
	switch c.CardIssuer.Mode {
	case IssuerModeLive:
		if c.CardIssuer.APIKey == "" {
			return fmt.Errorf("card_issuer.apiKey is required in live mode")
		}
		if c.CardIssuer.FallbackSecret == "" {
			return fmt.Errorf("card_issuer.fallbackSecret is required in live mode")
		}
		endpoint, err := url.Parse(c.CardIssuer.Endpoint)
		if err != nil || (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
			return fmt.Errorf("card_issuer.endpoint must be an absolute http(s) URL, got %q", c.CardIssuer.Endpoint)
		}
	case IssuerModeSandbox:
	default:
		return fmt.Errorf("unsupported card issuer mode %q", c.CardIssuer.Mode)
	}
	if len(c.Codec.Secret) < 16 {
		return fmt.Errorf("codec.secret must be at least 16 characters")
	}
	for i, f := range c.ProofFamilies {
		if f.ProofPrefix == "" {
			return fmt.Errorf("proof_families[%d]: proofPrefix is required", i)
		}
	}
	for _, store := range []string{c.Nullifiers.Store, c.Claims.Store} {
		if store != StoreDatabase && store != StoreMemory {
			return fmt.Errorf("unsupported store %q", store)
		}
	}
	if c.Claims.Policy != ClaimPolicyIdempotent && c.Claims.Policy != ClaimPolicyReject {
		return fmt.Errorf("unsupported claim policy %q", c.Claims.Policy)
	}
	switch c.Events.Broker {
	case BrokerNATS, BrokerRabbitMQ, BrokerNone:
	default:
		return fmt.Errorf("unsupported event broker %q", c.Events.Broker)
	}
	if c.NeedsDatabase() && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when a database store is configured")
	}
	return nil
}

// NeedsDatabase reports whether any store is database-backed.
func (c *Config) NeedsDatabase() bool {
	return c.Nullifiers.Store == StoreDatabase || c.Claims.Store == StoreDatabase
}

// LoadConfig Load configuration file
func LoadConfig(configPath string) (*Config, error) {
	// ifconfiguration file pathempty，Use default path
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("🔧 Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	log.Printf("✅ Loading configuration from config file: %s", configPath)

	overrideFromEnv(&config)
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Printf("📋 [Config] ledger=%s endpoint=%s strict=%v issuer=%s broker=%s",
		config.Ledger.Kind, config.Ledger.RPCEndpoint, config.Verification.Strict,
		config.CardIssuer.Mode, config.Events.Broker)

	if len(config.CORS.AllowedOrigins) == 0 {
		log.Printf("📋 [Config] CORS: not configured (will allow all origins *)")
	}

	return &config, nil
}

// overrideFromEnv Overrideconfiguration
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}

	if kind := os.Getenv("LEDGER_KIND"); kind != "" {
		config.Ledger.Kind = kind
	}
	if rpcURL := os.Getenv("LEDGER_RPC_ENDPOINT"); rpcURL != "" {
		config.Ledger.RPCEndpoint = rpcURL
	}
	if strict := os.Getenv("VERIFICATION_STRICT"); strict != "" {
		config.Verification.Strict = strict == "true"
	}

	if mode := os.Getenv("CARD_ISSUER_MODE"); mode != "" {
		config.CardIssuer.Mode = mode
	}
	if endpoint := os.Getenv("CARD_ISSUER_ENDPOINT"); endpoint != "" {
		config.CardIssuer.Endpoint = endpoint
	}
	if apiKey := os.Getenv("CARD_ISSUER_API_KEY"); apiKey != "" {
		config.CardIssuer.APIKey = apiKey
	}
	if secret := os.Getenv("CARD_FALLBACK_SECRET"); secret != "" {
		config.CardIssuer.FallbackSecret = secret
	}

	if secret := os.Getenv("CLAIM_TOKEN_SECRET"); secret != "" {
		config.Codec.Secret = secret
	}

	if broker := os.Getenv("EVENTS_BROKER"); broker != "" {
		config.Events.Broker = broker
	}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.Events.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.Events.NATS.Timeout = t
		}
	}
	if amqpURL := os.Getenv("RABBITMQ_URL"); amqpURL != "" {
		config.Events.RabbitMQ.URL = amqpURL
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}

	if password := os.Getenv("ADMIN_PASSWORD"); password != "" {
		config.Admin.Password = password
	}
	if totpSecret := os.Getenv("ADMIN_TOTP_SECRET"); totpSecret != "" {
		config.Admin.TOTPSecret = totpSecret
	}
	if jwtSecret := os.Getenv("ADMIN_JWT_SECRET"); jwtSecret != "" {
		config.Admin.JWTSecret = jwtSecret
	}
}
