package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("CHECKPOINT_BACKEND", "memory")
	t.Setenv("LISTING_BACKEND", "catalog")
	t.Setenv("CLASSIFIER", "rules")
	t.Setenv("SESSION_RETENTION", "168h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Classifier.MinConfidence != 0.6 || cfg.Quote.DefaultTenureMonths != 60 || cfg.Quote.DownPaymentRatio != 0.20 {
		t.Fatalf("defaults = %+v / %+v", cfg.Classifier, cfg.Quote)
	}
	if cfg.CollaboratorTimeout != 10*time.Second || cfg.SessionRetention != 168*time.Hour {
		t.Fatalf("durations = %v / %v", cfg.CollaboratorTimeout, cfg.SessionRetention)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHECKPOINT_BACKEND", "Badger")
	t.Setenv("BADGER_DIR", "/tmp/af-badger")
	t.Setenv("LISTING_BACKEND", "tavily")
	t.Setenv("TAVILY_API_KEY", "tvly-test")
	t.Setenv("CLASSIFIER", "grpc")
	t.Setenv("CLASSIFIER_ADDR", "localhost:50051")
	t.Setenv("CLASSIFIER_MIN_CONFIDENCE", "0.75")
	t.Setenv("DOWN_PAYMENT_RATIO", "0.3")
	t.Setenv("COLLABORATOR_TIMEOUT", "2s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CheckpointBackend != CheckpointBadger || cfg.Listing.Backend != ListingTavily || cfg.Classifier.Strategy != ClassifierGRPC {
		t.Fatalf("backends = %q %q %q", cfg.CheckpointBackend, cfg.Listing.Backend, cfg.Classifier.Strategy)
	}
	if cfg.Classifier.MinConfidence != 0.75 || cfg.Quote.DownPaymentRatio != 0.3 || cfg.CollaboratorTimeout != 2*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if strings.Join(cfg.AllowedOrigins, "|") != "https://a.example|https://b.example" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:              "8080",
			CheckpointBackend: CheckpointMemory,
			SessionRetention:  time.Hour,
			RetentionInterval: time.Minute,
			Listing:           ListingConfig{Backend: ListingCatalog, MaxListings: 5},
			Classifier:        ClassifierConfig{Strategy: ClassifierRules, MinConfidence: 0.6},
			Quote:             QuoteConfig{DefaultTenureMonths: 60, DownPaymentRatio: 0.2},
			ChatRateLimit:     10,
			ChatRateWindow:    time.Minute,
			ConversationLog:   ConversationLogConfig{QueueSize: 10},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown checkpoint backend", func(c *Config) { c.CheckpointBackend = "redis" }, "CHECKPOINT_BACKEND"},
		{"sqlite without path", func(c *Config) { c.CheckpointBackend = CheckpointSQLite }, "DB_PATH"},
		{"tavily without key", func(c *Config) { c.Listing.Backend = ListingTavily }, "TAVILY_API_KEY"},
		{"too many listings", func(c *Config) { c.Listing.MaxListings = 8 }, "MAX_LISTINGS"},
		{"openai without key", func(c *Config) { c.Classifier.Strategy = ClassifierOpenAI }, "OPENAI_API_KEY"},
		{"grpc without addr", func(c *Config) { c.Classifier.Strategy = ClassifierGRPC }, "CLASSIFIER_ADDR"},
		{"confidence above one", func(c *Config) { c.Classifier.MinConfidence = 1.5 }, "CLASSIFIER_MIN_CONFIDENCE"},
		{"full down payment", func(c *Config) { c.Quote.DownPaymentRatio = 1 }, "DOWN_PAYMENT_RATIO"},
		{"log dir missing", func(c *Config) { c.ConversationLog.Enabled = true }, "CONVERSATION_LOG_DIR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
