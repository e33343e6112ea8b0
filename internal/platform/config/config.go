package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration, assembled once in main.
type Config struct {
	Server    Server
	Backend   BackendConfig
	Payment   PaymentConfig
	Wizard    WizardConfig
	Session   SessionConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Tracking  TrackingConfig
	RateLimit RateLimitConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	Environment string
	// TrustedProxies lists load balancer addresses or CIDRs allowed to
	// report the client IP in forwarding headers.
	TrustedProxies []string
}

// IsProduction selects JSON logging and strict defaults.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// BackendConfig points at the league's REST API.
type BackendConfig struct {
	BaseURL          string
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// PaymentConfig carries the hosted checkout settings. RequestedAmount is the
// advisory amount sent with order creation; the server's order amount wins.
type PaymentConfig struct {
	KeyID           string
	ScriptURL       string
	RequestedAmount int64
	MerchantName    string
	Description     string
	ThemeColor      string
}

type WizardConfig struct {
	SessionTTL time.Duration
}

// SessionConfig controls partner/admin login tokens issued by this service.
type SessionConfig struct {
	SigningKey string
	TTL        time.Duration
	Issuer     string
}

// RedisConfig is optional; an empty URL disables Redis-backed stores.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig is optional; no brokers means audit events stay in memory.
type KafkaConfig struct {
	Brokers     []string
	EventsTopic string
}

type TrackingConfig struct {
	TTL time.Duration
}

// RateLimitConfig tunes the per-IP limiter. Limits are requests per window.
type RateLimitConfig struct {
	Disabled    bool
	TrackLimit  int
	WizardLimit int
	OTPLimit    int
	LoginLimit  int
	AdminLimit  int
	Window      time.Duration
	OTPWindow   time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:           envString("BRPL_ADDR", ":8080"),
			Environment:    envString("BRPL_ENV", "development"),
			TrustedProxies: envList("TRUSTED_PROXIES"),
		},
		Backend: BackendConfig{
			BaseURL:          strings.TrimRight(envString("BACKEND_BASE_URL", "https://brpl.net/api"), "/"),
			BreakerThreshold: envInt("BACKEND_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  envDuration("BACKEND_BREAKER_COOLDOWN", 30*time.Second),
		},
		Payment: PaymentConfig{
			KeyID:           envString("PAYMENT_KEY_ID", ""),
			ScriptURL:       envString("PAYMENT_SCRIPT_URL", "https://checkout.razorpay.com/v1/checkout.js"),
			RequestedAmount: int64(envInt("PAYMENT_REQUESTED_AMOUNT", 2)),
			MerchantName:    envString("PAYMENT_MERCHANT_NAME", "BRPL"),
			Description:     envString("PAYMENT_DESCRIPTION", "Registration Fee"),
			ThemeColor:      envString("PAYMENT_THEME_COLOR", "#263574"),
		},
		Wizard: WizardConfig{
			SessionTTL: envDuration("WIZARD_SESSION_TTL", 30*time.Minute),
		},
		Session: SessionConfig{
			// Use a default for development - should be overridden in production
			SigningKey: envString("SESSION_SIGNING_KEY", "dev-secret-key-change-in-production"),
			TTL:        envDuration("SESSION_TTL", 24*time.Hour),
			Issuer:     envString("SESSION_ISSUER", "brpl-gateway"),
		},
		Redis: RedisConfig{
			URL:          envString("REDIS_URL", ""),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     envList("KAFKA_BROKERS"),
			EventsTopic: envString("KAFKA_EVENTS_TOPIC", "brpl.wizard.events"),
		},
		Tracking: TrackingConfig{
			TTL: envDuration("TRACKING_TTL", 30*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Disabled:    envBool("RATE_LIMIT_DISABLED"),
			TrackLimit:  envInt("RATE_LIMIT_TRACK", 60),
			WizardLimit: envInt("RATE_LIMIT_WIZARD", 120),
			OTPLimit:    envInt("RATE_LIMIT_OTP", 5),
			LoginLimit:  envInt("RATE_LIMIT_LOGIN", 10),
			AdminLimit:  envInt("RATE_LIMIT_ADMIN", 120),
			Window:      envDuration("RATE_LIMIT_WINDOW", time.Minute),
			OTPWindow:   envDuration("RATE_LIMIT_OTP_WINDOW", 10*time.Minute),
		},
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
