package main

import (
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/benchmark-cli/internal/analyzer"
	"github.com/sells-group/benchmark-cli/internal/fetcher"
	"github.com/sells-group/benchmark-cli/internal/mapping"
	"github.com/sells-group/benchmark-cli/internal/pipeline"
	"github.com/sells-group/benchmark-cli/internal/resilience"
)

func newFetcher() *fetcher.HTTPFetcher {
	retry := resilience.RetryPolicy{
		MaxAttempts:    cfg.Fetch.MaxRetries,
		InitialBackoff: time.Duration(cfg.Fetch.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Fetch.MaxBackoffMs) * time.Millisecond,
		Multiplier:     cfg.Fetch.BackoffMult,
		ShouldRetry:    resilience.IsTransient,
		OnRetry:        resilience.RetryLogger("fetcher", "get"),
	}
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.Fetch.Timeout(),
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		RatePerHost:  rate.Limit(cfg.Fetch.RatePerHost),
		Retry:        retry,
	})
}

func newAnalyzer() (*analyzer.Analyzer, error) {
	provider, err := analyzer.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return analyzer.New(cfg.Analyzer, provider), nil
}

func newParser() (pipeline.Parser, error) {
	switch cfg.Ingest.Parser {
	case "mock":
		return pipeline.MockParser{}, nil
	case "keyword":
		m, err := mapping.Load(cfg.Mapping.Path)
		if err != nil {
			return nil, err
		}
		return &pipeline.KeywordParser{Fetcher: newFetcher(), Mapping: m}, nil
	default:
		return nil, eris.Errorf("unsupported parser: %s", cfg.Ingest.Parser)
	}
}
