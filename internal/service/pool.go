package service

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xxxsen/consultrag/internal/kvstore"
	"github.com/xxxsen/consultrag/internal/vectorstore"
)

const defaultPoolSize = 256

// Pool hands out one RAGService per user scope. All services share the
// kv backend and the remote clients.
type Pool struct {
	mu    sync.Mutex
	deps  RAGDeps
	kv    kvstore.Store
	cache *lru.Cache[string, *RAGService]
}

func NewPool(deps RAGDeps, kv kvstore.Store, size int) (*Pool, error) {
	if size <= 0 {
		size = defaultPoolSize
	}
	cache, err := lru.New[string, *RAGService](size)
	if err != nil {
		return nil, err
	}
	return &Pool{deps: deps, kv: kv, cache: cache}, nil
}

func (p *Pool) Get(userID string) *RAGService {
	scope := strings.TrimSpace(userID)
	if scope == "" {
		scope = vectorstore.DefaultScope
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if svc, ok := p.cache.Get(scope); ok {
		return svc
	}
	svc := NewRAGService(p.deps, vectorstore.New(p.kv, scope))
	p.cache.Add(scope, svc)
	return svc
}
