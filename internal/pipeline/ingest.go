package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/benchmark-cli/internal/model"
	"github.com/sells-group/benchmark-cli/internal/store"
)

// Ingest is the batch job that fills a new snapshot: it walks every known
// bank, invokes the parser, and upserts one feature value per criterion,
// logging one outcome record per bank.
type Ingest struct {
	store       store.Store
	parser      Parser
	concurrency int
}

// IngestResult summarizes one batch run.
type IngestResult struct {
	SnapshotID  string `json:"snapshot_id"`
	Status      string `json:"status"`
	BanksOK     int    `json:"banks_ok"`
	BanksFailed int    `json:"banks_failed"`
}

// NewIngest wires the snapshot batch job.
func NewIngest(st store.Store, parser Parser, concurrency int) *Ingest {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Ingest{store: st, parser: parser, concurrency: concurrency}
}

// Run creates a snapshot for the product and fills it. Per-bank failures
// are logged and skipped; the snapshot completes as long as at least one
// bank parsed. It fails when every bank failed or a storage error aborts
// the run. The snapshot always reaches a terminal state on exit.
func (j *Ingest) Run(ctx context.Context, productID, note string) (*IngestResult, error) {
	if _, err := j.store.GetOrCreateProduct(ctx, productID); err != nil {
		return nil, err
	}

	banks, err := j.store.ListBanks(ctx)
	if err != nil {
		return nil, err
	}
	if len(banks) == 0 {
		return nil, eris.New("ingest: no banks configured, seed the database first")
	}
	criteria, err := j.store.ListCriteria(ctx)
	if err != nil {
		return nil, err
	}
	if len(criteria) == 0 {
		return nil, eris.New("ingest: no criteria configured, seed the database first")
	}

	snap, err := j.store.CreateSnapshot(ctx, productID, note)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("snapshot", snap.ID), zap.String("product", productID))

	if err := j.store.SetSnapshotStatus(ctx, snap.ID, model.ParsingInProgress); err != nil {
		return nil, err
	}

	// Whatever happens below, the snapshot must not be left in_progress.
	finalStatus := model.ParsingFailed
	defer func() {
		if err := j.store.SetSnapshotStatus(context.WithoutCancel(ctx), snap.ID, finalStatus); err != nil {
			log.Error("snapshot final status write failed", zap.Error(err))
		}
	}()

	sourceName, sourceURL := j.parser.Source()
	if sourceURL == "" {
		sourceURL = "https://" + productID + ".invalid"
	}
	source, err := j.store.GetOrCreateSource(ctx, sourceName, sourceURL)
	if err != nil {
		return nil, err
	}

	var ok, failed atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, bank := range banks {
		g.Go(func() error {
			if err := j.ingestBank(gCtx, snap, bank, criteria, source.ID); err != nil {
				failed.Add(1)
				log.Warn("bank ingestion failed", zap.String("bank", bank.ID), zap.Error(err))
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	if ok.Load() > 0 {
		finalStatus = model.ParsingCompleted
	}

	result := &IngestResult{
		SnapshotID:  snap.ID,
		Status:      string(finalStatus),
		BanksOK:     int(ok.Load()),
		BanksFailed: int(failed.Load()),
	}
	log.Info("ingestion finished",
		zap.String("status", result.Status),
		zap.Int("banks_ok", result.BanksOK),
		zap.Int("banks_failed", result.BanksFailed),
	)
	return result, nil
}

func (j *Ingest) ingestBank(ctx context.Context, snap *model.Snapshot, bank model.Bank, criteria []model.Criterion, sourceID string) error {
	features, err := j.parser.Parse(ctx, bank, criteria)
	if err != nil {
		logErr := j.store.AppendParseLog(ctx, &model.ParseLog{
			SourceID:   sourceID,
			SnapshotID: &snap.ID,
			Status:     model.LogError,
			Message:    fmt.Sprintf("Error parsing %s", bank.Name),
			ErrorTrace: err.Error(),
		})
		if logErr != nil {
			zap.L().Error("parse log write failed", zap.Error(logErr))
		}
		return err
	}

	for _, criterion := range criteria {
		feature, found := features[criterion.ID]
		if !found {
			continue
		}
		raw := feature.RawData
		if raw == nil {
			raw, _ = json.Marshal(feature)
		}
		err := j.store.UpsertFeature(ctx, &model.FeatureValue{
			SnapshotID:  snap.ID,
			BankID:      bank.ID,
			CriterionID: criterion.ID,
			Value:       feature.Present,
			Confidence:  feature.Confidence,
			SourceID:    &sourceID,
			SourceURL:   feature.SourceURL,
			RawData:     raw,
		})
		if err != nil {
			return err
		}
	}

	return j.store.AppendParseLog(ctx, &model.ParseLog{
		SourceID:   sourceID,
		SnapshotID: &snap.ID,
		Status:     model.LogSuccess,
		Message:    fmt.Sprintf("Successfully parsed %s", bank.Name),
	})
}
