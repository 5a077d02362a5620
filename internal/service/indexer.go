package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xxxsen/consultrag/internal/ai"
	"github.com/xxxsen/consultrag/internal/model"
	"github.com/xxxsen/consultrag/internal/passage"
	"github.com/xxxsen/consultrag/internal/vectorstore"
)

type IndexerOptions struct {
	// Concurrency bounds in-flight records; values below 2 index sequentially.
	Concurrency int
	// SkipUnchanged reuses a stored passage whose content hash and model tag
	// both match.
	SkipUnchanged bool
}

type indexOutcome int

const (
	outcomeIndexed indexOutcome = iota
	outcomeSkipped
	outcomeFailed
)

type indexResult struct {
	outcome indexOutcome
	err     error
}

type Indexer struct {
	vectorizer *ai.Vectorizer
	store      *vectorstore.Store
	limiter    *rate.Limiter
	opts       IndexerOptions
	now        func() time.Time
}

// NewIndexer builds an indexer for one user scope. limiter may be nil and is
// normally shared by every scope so the provider sees a single budget.
func NewIndexer(vectorizer *ai.Vectorizer, store *vectorstore.Store, limiter *rate.Limiter, opts IndexerOptions) *Indexer {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Indexer{
		vectorizer: vectorizer,
		store:      store,
		limiter:    limiter,
		opts:       opts,
		now:        time.Now,
	}
}

// IndexBatch serializes, vectorizes and stores every record. A failing
// record is logged and reported; it never aborts the batch and the batch
// itself never fails.
func (ix *Indexer) IndexBatch(ctx context.Context, records []model.ConsultationRecord) *model.IndexReport {
	logger := logutil.GetLogger(ctx).With(zap.String("scope", ix.store.Scope()))
	report := &model.IndexReport{Total: len(records), Failures: []model.IndexFailure{}}
	results := make([]indexResult, len(records))

	var g errgroup.Group
	g.SetLimit(ix.opts.Concurrency)
	for i := range records {
		if err := ctx.Err(); err != nil {
			results[i] = indexResult{outcome: outcomeFailed, err: err}
			continue
		}
		g.Go(func() error {
			results[i] = ix.indexOne(ctx, &records[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, res := range results {
		switch res.outcome {
		case outcomeIndexed:
			report.Indexed++
		case outcomeSkipped:
			report.Skipped++
		default:
			logger.Warn("index record failed",
				zap.Int("position", i),
				zap.String("record_id", records[i].ID),
				zap.Error(res.err))
			report.Failures = append(report.Failures, model.IndexFailure{
				RecordID: records[i].ID,
				Err:      res.err.Error(),
			})
		}
	}
	logger.Info("index batch finished",
		zap.Int("total", report.Total),
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failures)))
	return report
}

func (ix *Indexer) indexOne(ctx context.Context, rec *model.ConsultationRecord) indexResult {
	text, err := passage.Render(*rec)
	if err != nil {
		return indexResult{outcome: outcomeFailed, err: err}
	}
	recordID := strings.TrimSpace(rec.ID)
	hash := passage.ContentHash(text)
	if ix.opts.SkipUnchanged {
		existing, ok, err := ix.store.Get(ctx, recordID)
		if err == nil && ok && existing.ContentHash == hash && existing.ModelTag == ix.vectorizer.ModelTag() {
			return indexResult{outcome: outcomeSkipped}
		}
	}
	if ix.limiter != nil {
		if err := ix.limiter.Wait(ctx); err != nil {
			return indexResult{outcome: outcomeFailed, err: err}
		}
	}
	vec, err := ix.vectorizer.Vectorize(ctx, text, ai.TaskRetrievalDocument)
	if err != nil {
		return indexResult{outcome: outcomeFailed, err: err}
	}
	if err := ix.store.Upsert(ctx, &model.IndexedPassage{
		RecordID:    recordID,
		PassageText: text,
		Vector:      vec.Values,
		ModelTag:    vec.ModelTag,
		ContentHash: hash,
		IndexedAt:   ix.now().UTC(),
	}); err != nil {
		return indexResult{outcome: outcomeFailed, err: err}
	}
	return indexResult{outcome: outcomeIndexed}
}
