package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/consultrag/internal/ai"
	"github.com/xxxsen/consultrag/internal/kvstore"
	"github.com/xxxsen/consultrag/internal/model"
	"github.com/xxxsen/consultrag/internal/service"
)

type memSource struct {
	byUser map[string][]model.ConsultationRecord
	failOn string
}

func (m *memSource) Load(ctx context.Context, userID string) ([]model.ConsultationRecord, error) {
	if userID == m.failOn {
		return nil, errors.New("connection refused")
	}
	return m.byUser[userID], nil
}

func (m *memSource) Users(ctx context.Context) ([]string, error) {
	return []string{"alice", "bob"}, nil
}

func (m *memSource) Close() error { return nil }

type constEmbedder struct{}

func (constEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return []float32{1, float32(len(text))}, nil
}

func (constEmbedder) ModelName() string { return "fake/const" }

func newPool(t *testing.T) *service.Pool {
	pool, err := service.NewPool(service.RAGDeps{
		Vectorizer: ai.NewVectorizer(constEmbedder{}, time.Second),
	}, kvstore.NewMemory(), 8)
	require.NoError(t, err)
	return pool
}

func TestReindexJobIndexesEveryUser(t *testing.T) {
	pool := newPool(t)
	src := &memSource{byUser: map[string][]model.ConsultationRecord{
		"alice": {{ID: "a1", Status: "completed"}, {ID: "a2", Status: "completed"}},
		"bob":   {{ID: "b1", Status: "cancelled"}},
	}}
	j := NewReindexJob(pool, src, nil)
	require.Equal(t, ReindexJobName, j.Name())
	require.NoError(t, j.Run(context.Background()))

	stats, err := pool.Get("alice").Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Count)
	stats, err = pool.Get("bob").Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Count)
}

func TestReindexJobContinuesAfterSourceFailure(t *testing.T) {
	pool := newPool(t)
	src := &memSource{
		byUser: map[string][]model.ConsultationRecord{"bob": {{ID: "b1"}}},
		failOn: "alice",
	}
	err := NewReindexJob(pool, src, []string{"alice", "bob"}).Run(context.Background())
	require.ErrorContains(t, err, "connection refused")

	stats, err := pool.Get("bob").Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Count)
}
