// Package pipeline wires the fetch → clean → analyze → persist flow and the
// per-product snapshot ingestion batch job.
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/benchmark-cli/internal/analyzer"
	"github.com/sells-group/benchmark-cli/internal/extract"
	"github.com/sells-group/benchmark-cli/internal/fetcher"
	"github.com/sells-group/benchmark-cli/internal/model"
	"github.com/sells-group/benchmark-cli/internal/store"
)

// Analysis runs one task through the LLM pipeline, one page at a time,
// continuing past individual page failures.
type Analysis struct {
	fetcher     fetcher.Fetcher
	analyzer    *analyzer.Analyzer
	store       store.AnalysisStore
	concurrency int
}

// NewAnalysis wires the per-page pipeline.
func NewAnalysis(f fetcher.Fetcher, a *analyzer.Analyzer, st store.AnalysisStore, concurrency int) *Analysis {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Analysis{fetcher: f, analyzer: a, store: st, concurrency: concurrency}
}

// Run validates the task and processes every URL. The returned slice has one
// entry per URL in input order; failed pages carry Err and are never fatal
// to the rest of the task. The error return is reserved for an invalid task.
func (p *Analysis) Run(ctx context.Context, task model.Task) ([]model.PageResult, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("competitor", task.Competitor),
		zap.String("product", task.Product),
		zap.String("criterion", task.Criterion),
	)
	log.Info("analysis task started", zap.Int("urls", len(task.URLs)))

	results := make([]model.PageResult, len(task.URLs))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, url := range task.URLs {
		g.Go(func() error {
			res := p.processPage(gCtx, task, url)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, r := range results {
		if r.Err != "" {
			failed++
		}
	}
	log.Info("analysis task finished",
		zap.Int("ok", len(results)-failed),
		zap.Int("failed", failed),
	)
	return results, nil
}

func (p *Analysis) processPage(ctx context.Context, task model.Task, url string) model.PageResult {
	page := model.PageResult{
		Competitor: task.Competitor,
		Product:    task.Product,
		Criterion:  task.Criterion,
		SourceURL:  url,
		ParsedAt:   time.Now().UTC(),
	}

	raw, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		zap.L().Warn("page fetch failed", zap.String("url", url), zap.Error(err))
		page.Err = err.Error()
		return page
	}

	page.CleanedText = extract.Clean(raw)
	if page.CleanedText == "" {
		zap.L().Warn("page has no usable content", zap.String("url", url))
		page.Err = "no usable content"
		return page
	}

	fact, err := p.analyzer.Analyze(ctx, page)
	if err != nil {
		zap.L().Warn("page analysis failed", zap.String("url", url), zap.Error(err))
		page.Err = err.Error()
		return page
	}

	if _, err := p.store.InsertFact(ctx, fact); err != nil {
		zap.L().Error("fact persist failed", zap.String("url", url), zap.Error(err))
		page.Err = err.Error()
		return page
	}
	return page
}
