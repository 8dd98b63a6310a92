package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

// Investment source-of-truth policies understood by the summary engine.
const (
	InvestmentPolicyHoldings = "holdings"
	InvestmentPolicyAdditive = "additive"
)

// Plaid environments.
const (
	PlaidEnvSandbox     = "sandbox"
	PlaidEnvDevelopment = "development"
	PlaidEnvProduction  = "production"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Supabase   SupabaseConfig
	Encryption EncryptionConfig
	Plaid      PlaidConfig
	Summary    SummaryConfig
	Scheduler  SchedulerConfig
	TLS        TLSConfig
	Firebase   FirebaseConfig
	Telemetry  TelemetryConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// SupabaseConfig holds what is needed to verify Supabase-issued access tokens.
type SupabaseConfig struct {
	JWTSecret string
	Audience  string
}

type EncryptionConfig struct {
	Key string
}

type PlaidConfig struct {
	ClientID       string
	Secret         string
	Environment    string
	CallTimeout    time.Duration
	MaxConcurrency int
}

type SummaryConfig struct {
	InvestmentPolicy string
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type FirebaseConfig struct {
	CredentialsFile string
	// MessagesFile optionally overrides the built-in notification texts.
	MessagesFile string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

type LogConfig struct {
	Level  slog.Level
	Format string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	plaidTimeout, err := getDurationEnv("PLAID_CALL_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	plaidConcurrency, err := strconv.Atoi(getEnv("AGGREGATION_MAX_CONCURRENCY", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid AGGREGATION_MAX_CONCURRENCY: %w", err)
	}

	schedulerWorkers, err := strconv.Atoi(getEnv("SCHEDULER_WORKERS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_WORKERS: %w", err)
	}
	schedulerJobDelay, err := getDurationEnv("SCHEDULER_JOB_DELAY", time.Second)
	if err != nil {
		return nil, err
	}
	schedulerQueueSize, err := strconv.Atoi(getEnv("SCHEDULER_QUEUE_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_QUEUE_SIZE: %w", err)
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: splitList(getEnv("ALLOWED_HOSTS", "")),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "wealthdash"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Supabase: SupabaseConfig{
			JWTSecret: getEnv("SUPABASE_JWT_SECRET", ""),
			Audience:  getEnv("SUPABASE_JWT_AUDIENCE", "authenticated"),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Plaid: PlaidConfig{
			ClientID:       getEnv("PLAID_CLIENT_ID", ""),
			Secret:         getEnv("PLAID_SECRET", ""),
			Environment:    strings.ToLower(getEnv("PLAID_ENV", PlaidEnvSandbox)),
			CallTimeout:    plaidTimeout,
			MaxConcurrency: plaidConcurrency,
		},
		Summary: SummaryConfig{
			InvestmentPolicy: strings.ToLower(getEnv("SUMMARY_INVESTMENT_POLICY", InvestmentPolicyHoldings)),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getBoolEnv("SCHEDULER_ENABLED", true),
			ScheduleTimes: splitList(getEnv("SCHEDULER_TIMES", "06:00,18:00")),
			WorkerCount:   schedulerWorkers,
			JobDelay:      schedulerJobDelay,
			QueueSize:     schedulerQueueSize,
			RunOnStartup:  getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
		},
		TLS: TLSConfig{
			Enabled:      getBoolEnv("TLS_ENABLED", false),
			CertPath:     getEnv("TLS_CERT_PATH", ""),
			KeyPath:      getEnv("TLS_KEY_PATH", ""),
			RedirectHTTP: getBoolEnv("TLS_REDIRECT_HTTP", false),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			MessagesFile:    getEnv("NOTIFICATION_MESSAGES_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "wealthdash-api"),
			Environment:  getEnv("OTEL_ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
		},
		Log: LogConfig{
			Level:  logLevel,
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and cross-field constraints.
func (c *Config) Validate() error {
	if c.Supabase.JWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.Encryption.Key == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(c.Encryption.Key) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes")
	}

	if err := validation.ValidateStruct(&c.Plaid,
		validation.Field(&c.Plaid.ClientID, validation.Required.Error("PLAID_CLIENT_ID is required")),
		validation.Field(&c.Plaid.Secret, validation.Required.Error("PLAID_SECRET is required")),
		validation.Field(&c.Plaid.Environment, validation.In(PlaidEnvSandbox, PlaidEnvDevelopment, PlaidEnvProduction)),
		validation.Field(&c.Plaid.CallTimeout, validation.Min(100*time.Millisecond)),
		validation.Field(&c.Plaid.MaxConcurrency, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("invalid plaid config: %w", err)
	}

	if err := validation.ValidateStruct(&c.Summary,
		validation.Field(&c.Summary.InvestmentPolicy, validation.In(InvestmentPolicyHoldings, InvestmentPolicyAdditive)),
	); err != nil {
		return fmt.Errorf("invalid SUMMARY_INVESTMENT_POLICY: %w", err)
	}

	if err := validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Format, validation.In("json", "text")),
	); err != nil {
		return fmt.Errorf("invalid LOG_FORMAT: %w", err)
	}

	if c.Scheduler.Enabled {
		if err := validation.ValidateStruct(&c.Scheduler,
			validation.Field(&c.Scheduler.ScheduleTimes, validation.Required),
			validation.Field(&c.Scheduler.WorkerCount, validation.Min(1)),
			validation.Field(&c.Scheduler.QueueSize, validation.Min(1)),
		); err != nil {
			return fmt.Errorf("invalid scheduler config: %w", err)
		}
	}

	if c.TLS.Enabled {
		if c.TLS.CertPath == "" {
			return fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if c.TLS.KeyPath == "" {
			return fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
