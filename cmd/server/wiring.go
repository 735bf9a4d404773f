package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/autofinance/internal/config"
	"github.com/ashureev/autofinance/internal/intent"
	"github.com/ashureev/autofinance/internal/listing"
	"github.com/ashureev/autofinance/internal/store"
)

func openRepository(cfg *config.Config, logger *slog.Logger) (store.Repository, error) {
	switch cfg.CheckpointBackend {
	case config.CheckpointSQLite:
		return store.NewSQLite(cfg.DBPath)
	case config.CheckpointBadger:
		return store.OpenBadger(store.BadgerConfig{
			Dir:        cfg.BadgerDir,
			GCInterval: cfg.BadgerGCInterval,
			Logger:     logger,
		})
	case config.CheckpointMemory:
		slog.Warn("Using in-memory checkpoint store; sessions will not survive restarts")
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.CheckpointBackend)
	}
}

func newSearcher(cfg *config.Config) (listing.Searcher, error) {
	var next listing.Searcher
	switch cfg.Listing.Backend {
	case config.ListingTavily:
		t, err := listing.NewTavily(listing.TavilyConfig{
			APIKey:     cfg.Listing.TavilyAPIKey,
			MaxResults: cfg.Listing.MaxListings,
		})
		if err != nil {
			return nil, err
		}
		next = t
	case config.ListingCatalog:
		var (
			c   *listing.Catalog
			err error
		)
		if cfg.Listing.CatalogPath == "" {
			c, err = listing.DefaultCatalog()
		} else {
			c, err = listing.LoadCatalog(cfg.Listing.CatalogPath)
		}
		if err != nil {
			return nil, err
		}
		next = c
	default:
		return nil, fmt.Errorf("unknown listing backend %q", cfg.Listing.Backend)
	}
	return listing.NewCapped(next, cfg.Listing.MaxListings), nil
}

// newClassifier builds the configured classifier behind retries and the
// confidence gate. The returned func releases any connection it holds.
func newClassifier(cfg *config.Config, logger *slog.Logger) (intent.Classifier, func(), error) {
	var (
		base    intent.Classifier
		cleanup = func() {}
	)
	switch cfg.Classifier.Strategy {
	case config.ClassifierRules:
		base = intent.NewRuleClassifier()
	case config.ClassifierOpenAI:
		base = intent.NewOpenAIClassifier(cfg.Classifier.OpenAIAPIKey, cfg.Classifier.OpenAIModel)
	case config.ClassifierGRPC:
		slog.Info("Connecting to classifier service via gRPC", "address", cfg.Classifier.Addr)
		g, err := intent.NewGrpcClassifier(intent.DefaultGrpcClientConfig(cfg.Classifier.Addr), logger)
		if err != nil {
			return nil, cleanup, err
		}
		base, cleanup = g, g.Close
	default:
		return nil, cleanup, fmt.Errorf("unknown classifier %q", cfg.Classifier.Strategy)
	}

	if cfg.Classifier.Retries > 0 && cfg.Classifier.Strategy != config.ClassifierRules {
		base = intent.WithRetry(base, intent.RetryConfig{
			MaxAttempts: cfg.Classifier.Retries + 1,
			Backoff:     200 * time.Millisecond,
		})
	}
	return intent.NewGate(base, cfg.Classifier.MinConfidence), cleanup, nil
}
