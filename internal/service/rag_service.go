package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xxxsen/consultrag/internal/ai"
	"github.com/xxxsen/consultrag/internal/composer"
	"github.com/xxxsen/consultrag/internal/escalation"
	"github.com/xxxsen/consultrag/internal/model"
	"github.com/xxxsen/consultrag/internal/retrieval"
	"github.com/xxxsen/consultrag/internal/vectorstore"
)

const (
	UnavailableAnswer = "The assistant is currently unavailable. Please try again later or contact our support team."
	NoRecordsAnswer   = "I couldn't find any consultation records related to your question."
	SupportSuffix     = "\n\nIf you need further help, please contact our support team."

	DefaultTopK = 5
)

// RAGDeps are shared by every user scope.
type RAGDeps struct {
	Vectorizer *ai.Vectorizer
	Composer   *composer.Composer
	Rules      *escalation.Rules
	Limiter    *rate.Limiter
	Indexer    IndexerOptions
	TopK       int
	// CredentialsConfigured is false when no API key was supplied; every
	// question then gets the unavailable answer without a network call.
	CredentialsConfigured bool
}

type RAGService struct {
	deps    RAGDeps
	store   *vectorstore.Store
	indexer *Indexer
}

func NewRAGService(deps RAGDeps, store *vectorstore.Store) *RAGService {
	if deps.TopK <= 0 {
		deps.TopK = DefaultTopK
	}
	if deps.Rules == nil {
		deps.Rules = escalation.DefaultRules()
	}
	return &RAGService{
		deps:    deps,
		store:   store,
		indexer: NewIndexer(deps.Vectorizer, store, deps.Limiter, deps.Indexer),
	}
}

func (s *RAGService) Scope() string {
	return s.store.Scope()
}

func (s *RAGService) Store() *vectorstore.Store {
	return s.store
}

func (s *RAGService) IndexBatch(ctx context.Context, records []model.ConsultationRecord) *model.IndexReport {
	return s.indexer.IndexBatch(ctx, records)
}

func (s *RAGService) Stats(ctx context.Context) (model.IndexStats, error) {
	return s.store.Stats(ctx)
}

// Clear drops the scope's cached passages, e.g. on sign-out.
func (s *RAGService) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// AnswerQuestion always returns a usable result. Missing credentials, remote
// or storage failures and empty retrievals degrade to fixed answers that
// request escalation.
func (s *RAGService) AnswerQuestion(ctx context.Context, question, userDisplayName string) model.QueryResult {
	logger := logutil.GetLogger(ctx).With(zap.String("scope", s.store.Scope()))
	question = strings.TrimSpace(question)
	if question == "" {
		return unavailable()
	}
	if !s.deps.CredentialsConfigured {
		logger.Warn("assistant credentials not configured")
		return unavailable()
	}

	vec, err := s.deps.Vectorizer.Vectorize(ctx, question, ai.TaskRetrievalQuery)
	if err != nil {
		logger.Error("vectorize question failed", zap.Error(err))
		return unavailable()
	}
	all, err := s.store.GetAll(ctx)
	if err != nil {
		logger.Error("load passages failed", zap.Error(err))
		return unavailable()
	}
	candidates, dropped := retrieval.Compatible(all, vec.ModelTag, len(vec.Values))
	if dropped > 0 {
		logger.Warn("ignore passages from another embedding model",
			zap.Int("dropped", dropped), zap.String("model_tag", vec.ModelTag))
	}
	top := retrieval.Retrieve(vec.Values, candidates, s.deps.TopK)
	if len(top) == 0 {
		return model.QueryResult{AnswerText: NoRecordsAnswer, NeedsEscalation: true}
	}

	passages := make([]model.IndexedPassage, 0, len(top))
	for _, item := range top {
		passages = append(passages, item.Passage)
	}
	answer := s.deps.Composer.Compose(ctx, question, passages, userDisplayName)
	escalate := answer.Fallback || s.deps.Rules.ShouldEscalate(question, answer.Text, len(top))
	text := answer.Text
	if escalate {
		text += SupportSuffix
	}
	logger.Debug("question answered",
		zap.Int("retrieved", len(top)),
		zap.Bool("fallback", answer.Fallback),
		zap.Bool("escalate", escalate))
	return model.QueryResult{AnswerText: text, NeedsEscalation: escalate}
}

func unavailable() model.QueryResult {
	return model.QueryResult{AnswerText: UnavailableAnswer, NeedsEscalation: true}
}
