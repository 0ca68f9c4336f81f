package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port        string
	DatabaseURL string
	APIPrefix   string
	CORSOrigins []string

	JWTSecret            string
	JWTIssuer            string
	JWTAlgorithm         string
	AccessTokenTTL       time.Duration
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	BcryptCost           int

	FrontendBaseURL string

	LogLevel  string
	LogFormat string

	Mail MailConfig
}

// MailConfig selects and configures the outbound mail transport.
type MailConfig struct {
	Transport    string // log, smtp or amqp
	From         string
	FromName     string
	Server       string
	Port         int
	Username     string
	Password     string
	AMQPURL      string
	AMQPExchange string
	QueueSize    int
	Workers      int
}

// Mail transports understood by MAIL_TRANSPORT.
const (
	MailTransportLog  = "log"
	MailTransportSMTP = "smtp"
	MailTransportAMQP = "amqp"
)

// StoreConfig is the subset needed by tooling that only touches the user store.
type StoreConfig struct {
	DatabaseURL string
	BcryptCost  int
}

var supportedAlgorithms = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:            fallback(os.Getenv("PORT"), "8080"),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		APIPrefix:       strings.TrimRight(fallback(os.Getenv("API_PREFIX"), "/api/v1"), "/"),
		CORSOrigins:     parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		JWTSecret:       strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:       fallback(os.Getenv("JWT_ISSUER"), "lms-backend"),
		JWTAlgorithm:    strings.ToUpper(fallback(os.Getenv("JWT_ALGORITHM"), "HS256")),
		FrontendBaseURL: strings.TrimRight(fallback(os.Getenv("FRONTEND_BASE_URL"), "http://localhost:3000"), "/"),
		LogLevel:        fallback(os.Getenv("LOG_LEVEL"), "info"),
		LogFormat:       fallback(os.Getenv("LOG_FORMAT"), "console"),
		BcryptCost:      positiveInt(os.Getenv("BCRYPT_COST"), 0),
	}

	minutes := fallback(os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"), "30")
	ttlMinutes, err := strconv.Atoi(minutes)
	if err != nil || ttlMinutes <= 0 {
		return Config{}, fmt.Errorf("invalid ACCESS_TOKEN_EXPIRE_MINUTES: %q", minutes)
	}
	cfg.AccessTokenTTL = time.Duration(ttlMinutes) * time.Minute

	if cfg.VerificationTokenTTL, err = duration("VERIFICATION_TOKEN_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ResetTokenTTL, err = duration("RESET_TOKEN_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}

	cfg.Mail = MailConfig{
		Transport:    strings.ToLower(fallback(os.Getenv("MAIL_TRANSPORT"), MailTransportLog)),
		From:         fallback(os.Getenv("MAIL_FROM"), "no-reply@lms.local"),
		FromName:     fallback(os.Getenv("MAIL_FROM_NAME"), "AI LMS Support"),
		Server:       strings.TrimSpace(os.Getenv("MAIL_SERVER")),
		Port:         positiveInt(os.Getenv("MAIL_PORT"), 587),
		Username:     strings.TrimSpace(os.Getenv("MAIL_USERNAME")),
		Password:     os.Getenv("MAIL_PASSWORD"),
		AMQPURL:      strings.TrimSpace(os.Getenv("MAIL_AMQP_URL")),
		AMQPExchange: fallback(os.Getenv("MAIL_AMQP_EXCHANGE"), "lms.mail"),
		QueueSize:    positiveInt(os.Getenv("MAIL_QUEUE_SIZE"), 100),
		Workers:      positiveInt(os.Getenv("MAIL_WORKERS"), 2),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errDatabaseURL
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if !supportedAlgorithms[cfg.JWTAlgorithm] {
		return Config{}, fmt.Errorf("JWT_ALGORITHM %q is not supported (use HS256, HS384 or HS512)", cfg.JWTAlgorithm)
	}
	if err := cfg.Mail.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadStore reads only DATABASE_URL and BCRYPT_COST, so admin tooling runs
// without the JWT and mail settings the API server needs.
func LoadStore() (StoreConfig, error) {
	cfg := StoreConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		BcryptCost:  positiveInt(os.Getenv("BCRYPT_COST"), 0),
	}
	if cfg.DatabaseURL == "" {
		return StoreConfig{}, errDatabaseURL
	}
	return cfg, nil
}

var errDatabaseURL = errors.New("DATABASE_URL is required")

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (m MailConfig) validate() error {
	switch m.Transport {
	case MailTransportLog:
		return nil
	case MailTransportSMTP:
		if m.Server == "" {
			return errors.New("MAIL_SERVER is required for the smtp mail transport")
		}
		return nil
	case MailTransportAMQP:
		if m.AMQPURL == "" {
			return errors.New("MAIL_AMQP_URL is required for the amqp mail transport")
		}
		return nil
	default:
		return fmt.Errorf("unsupported MAIL_TRANSPORT %q", m.Transport)
	}
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positiveInt(value string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration for %s: %q", key, v)
	}
	return d, nil
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
