package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/consultrag/internal/model"
	"github.com/xxxsen/consultrag/internal/service"
	"github.com/xxxsen/consultrag/internal/source"
)

const ReindexJobName = "consultation_reindex"

// ReindexJob reloads records from the source and feeds them to each user's
// indexer. With no configured users it asks the source who has records.
type ReindexJob struct {
	pool  *service.Pool
	src   source.Source
	users []string
}

func NewReindexJob(pool *service.Pool, src source.Source, users []string) *ReindexJob {
	return &ReindexJob{pool: pool, src: src, users: users}
}

func (j *ReindexJob) Name() string {
	return ReindexJobName
}

func (j *ReindexJob) Run(ctx context.Context) error {
	if j.src == nil || j.pool == nil {
		return nil
	}
	users := j.users
	if len(users) == 0 {
		var err error
		users, err = j.src.Users(ctx)
		if err != nil {
			return err
		}
	}
	var errs []error
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := j.ReindexUser(ctx, user); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReindexUser indexes one user's records. Only a source failure is an
// error; per-record failures are in the report.
func (j *ReindexJob) ReindexUser(ctx context.Context, userID string) (*model.IndexReport, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))
	records, err := j.src.Load(ctx, userID)
	if err != nil {
		logger.Error("load consultation records failed", zap.Error(err))
		return nil, fmt.Errorf("load records of %s: %w", userID, err)
	}
	report := j.pool.Get(userID).IndexBatch(ctx, records)
	logger.Info("user reindexed",
		zap.Int("records", report.Total), zap.Int("failed", len(report.Failures)))
	return report, nil
}
