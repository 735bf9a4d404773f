// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by the configuration.
const (
	CheckpointSQLite = "sqlite"
	CheckpointBadger = "badger"
	CheckpointMemory = "memory"

	ListingCatalog = "catalog"
	ListingTavily  = "tavily"

	ClassifierRules  = "rules"
	ClassifierOpenAI = "openai"
	ClassifierGRPC   = "grpc"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string

	CheckpointBackend string
	DBPath            string
	BadgerDir         string
	BadgerGCInterval  time.Duration
	SessionRetention  time.Duration
	RetentionInterval time.Duration

	Listing    ListingConfig
	Classifier ClassifierConfig
	Quote      QuoteConfig

	PolicyFile          string
	CollaboratorTimeout time.Duration

	ChatRateLimit  int
	ChatRateWindow time.Duration
	AllowedOrigins []string

	ConversationLog ConversationLogConfig
}

// ListingConfig selects and configures the listing search backend.
type ListingConfig struct {
	Backend      string
	TavilyAPIKey string
	CatalogPath  string
	MaxListings  int
}

// ClassifierConfig selects and configures the intent classifier.
type ClassifierConfig struct {
	Strategy      string
	OpenAIAPIKey  string
	OpenAIModel   string
	Addr          string
	MinConfidence float64
	Retries       int
	Timeout       time.Duration
}

// QuoteConfig holds loan pricing defaults.
type QuoteConfig struct {
	DefaultTenureMonths int
	DownPaymentRatio    float64
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),

		CheckpointBackend: strings.ToLower(getEnv("CHECKPOINT_BACKEND", CheckpointSQLite)),
		DBPath:            getEnv("DB_PATH", "./data/autofinance.db"),
		BadgerDir:         getEnv("BADGER_DIR", "./data/badger"),
		BadgerGCInterval:  getEnvDuration("BADGER_GC_INTERVAL", 10*time.Minute),
		SessionRetention:  getEnvDuration("SESSION_RETENTION", 168*time.Hour),
		RetentionInterval: getEnvDuration("RETENTION_INTERVAL", time.Hour),

		Listing: ListingConfig{
			Backend:      strings.ToLower(getEnv("LISTING_BACKEND", ListingCatalog)),
			TavilyAPIKey: getEnv("TAVILY_API_KEY", ""),
			CatalogPath:  getEnv("LISTING_CATALOG_PATH", ""),
			MaxListings:  getEnvInt("MAX_LISTINGS", 5),
		},
		Classifier: ClassifierConfig{
			Strategy:      strings.ToLower(getEnv("CLASSIFIER", ClassifierRules)),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Addr:          getEnv("CLASSIFIER_ADDR", ""),
			MinConfidence: getEnvFloat("CLASSIFIER_MIN_CONFIDENCE", 0.6),
			Retries:       getEnvInt("CLASSIFIER_RETRIES", 2),
			Timeout:       getEnvDuration("CLASSIFIER_TIMEOUT", 15*time.Second),
		},
		Quote: QuoteConfig{
			DefaultTenureMonths: getEnvInt("DEFAULT_TENURE_MONTHS", 60),
			DownPaymentRatio:    getEnvFloat("DOWN_PAYMENT_RATIO", 0.20),
		},

		PolicyFile:          getEnv("POLICY_FILE", ""),
		CollaboratorTimeout: getEnvDuration("COLLABORATOR_TIMEOUT", 10*time.Second),

		ChatRateLimit:  getEnvInt("CHAT_RATE_LIMIT", 30),
		ChatRateWindow: getEnvDuration("CHAT_RATE_WINDOW", time.Minute),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),

		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	switch c.CheckpointBackend {
	case CheckpointSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case CheckpointBadger:
		if c.BadgerDir == "" {
			return fmt.Errorf("BADGER_DIR cannot be empty")
		}
	case CheckpointMemory:
	default:
		return fmt.Errorf("CHECKPOINT_BACKEND must be sqlite, badger, or memory, got %q", c.CheckpointBackend)
	}

	switch c.Listing.Backend {
	case ListingCatalog:
	case ListingTavily:
		if c.Listing.TavilyAPIKey == "" {
			return fmt.Errorf("TAVILY_API_KEY is required for the tavily listing backend")
		}
	default:
		return fmt.Errorf("LISTING_BACKEND must be catalog or tavily, got %q", c.Listing.Backend)
	}
	if c.Listing.MaxListings <= 0 || c.Listing.MaxListings > 5 {
		return fmt.Errorf("MAX_LISTINGS must be between 1 and 5")
	}

	switch c.Classifier.Strategy {
	case ClassifierRules:
	case ClassifierOpenAI:
		if c.Classifier.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai classifier")
		}
	case ClassifierGRPC:
		if c.Classifier.Addr == "" {
			return fmt.Errorf("CLASSIFIER_ADDR is required for the grpc classifier")
		}
	default:
		return fmt.Errorf("CLASSIFIER must be rules, openai, or grpc, got %q", c.Classifier.Strategy)
	}
	if c.Classifier.MinConfidence < 0 || c.Classifier.MinConfidence > 1 {
		return fmt.Errorf("CLASSIFIER_MIN_CONFIDENCE must be in [0,1]")
	}

	if c.Quote.DefaultTenureMonths <= 0 {
		return fmt.Errorf("DEFAULT_TENURE_MONTHS must be > 0")
	}
	if c.Quote.DownPaymentRatio < 0 || c.Quote.DownPaymentRatio >= 1 {
		return fmt.Errorf("DOWN_PAYMENT_RATIO must be in [0,1)")
	}
	if c.ChatRateLimit <= 0 || c.ChatRateWindow <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT and CHAT_RATE_WINDOW must be > 0")
	}
	if c.SessionRetention <= 0 || c.RetentionInterval <= 0 {
		return fmt.Errorf("SESSION_RETENTION and RETENTION_INTERVAL must be > 0")
	}

	if c.ConversationLog.Enabled {
		if c.ConversationLog.Dir == "" {
			return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
		}
		if c.ConversationLog.GlobalEnabled && c.ConversationLog.GlobalPath == "" {
			return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
		}
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
