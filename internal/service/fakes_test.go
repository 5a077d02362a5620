package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xxxsen/consultrag/internal/ai"
	"github.com/xxxsen/consultrag/internal/composer"
	"github.com/xxxsen/consultrag/internal/kvstore"
	"github.com/xxxsen/consultrag/internal/model"
	"github.com/xxxsen/consultrag/internal/vectorstore"
)

var vocabulary = []string{"allergy", "refund", "fever", "visit", "doctor", "fee"}

// keywordEmbedder maps text to keyword counts plus a bias dimension, so
// related texts land close to each other.
type keywordEmbedder struct {
	model   string
	failOn  string
	calls   atomic.Int32
	mu      sync.Mutex
	byTasks map[string]int
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{model: "fake/kw-1", byTasks: map[string]int{}}
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.byTasks[taskType]++
	e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New("quota exceeded")
	}
	lower := strings.ToLower(text)
	vec := make([]float32, 0, len(vocabulary)+1)
	for _, word := range vocabulary {
		vec = append(vec, float32(strings.Count(lower, word)))
	}
	return append(vec, 0.1), nil
}

func (e *keywordEmbedder) ModelName() string { return e.model }

type scriptedGenerator struct {
	reply string
	err   error
	calls atomic.Int32
	last  ai.GenerateRequest
}

func (g *scriptedGenerator) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	g.calls.Add(1)
	g.last = req
	return g.reply, g.err
}

func record(id, diagnosis, notes string) model.ConsultationRecord {
	return model.ConsultationRecord{
		ID:           id,
		Participants: []model.Participant{{Name: "Dr. Lee", Role: model.RoleDoctor}},
		ScheduledAt:  time.Date(2024, 12, 24, 9, 0, 0, 0, time.UTC),
		Status:       "completed",
		Diagnosis:    diagnosis,
		Notes:        notes,
	}
}

type fixture struct {
	embedder  *keywordEmbedder
	generator *scriptedGenerator
	kv        kvstore.Store
	svc       *RAGService
}

func newFixture(reply string, configured bool) *fixture {
	emb := newKeywordEmbedder()
	gen := &scriptedGenerator{reply: reply}
	kv := kvstore.NewMemory()
	deps := RAGDeps{
		Vectorizer:            ai.NewVectorizer(emb, time.Second),
		Composer:              composer.New(gen, composer.Options{Timeout: time.Second}),
		CredentialsConfigured: configured,
	}
	return &fixture{
		embedder:  emb,
		generator: gen,
		kv:        kv,
		svc:       NewRAGService(deps, vectorstore.New(kv, "alice")),
	}
}
