package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/consultrag/internal/kvstore"
	"github.com/xxxsen/consultrag/internal/model"
	appErr "github.com/xxxsen/consultrag/internal/pkg/errors"
)

const DefaultScope = "default"

// Store keeps at most one IndexedPassage per record id for a single user
// scope. Keys look like u/<scope>/passage/<recordId>; Clear only touches
// the scope's own keys.
type Store struct {
	kv     kvstore.Store
	scope  string
	prefix string
}

func New(kv kvstore.Store, scope string) *Store {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = DefaultScope
	}
	return &Store{
		kv:     kv,
		scope:  scope,
		prefix: "u/" + url.PathEscape(scope) + "/passage/",
	}
}

func (s *Store) Scope() string {
	return s.scope
}

func (s *Store) key(recordID string) string {
	return s.prefix + recordID
}

// Upsert inserts or overwrites the passage for p.RecordID.
func (s *Store) Upsert(ctx context.Context, p *model.IndexedPassage) error {
	if p == nil || strings.TrimSpace(p.RecordID) == "" {
		return appErr.NewStorageError("upsert", fmt.Errorf("record id is required: %w", appErr.ErrInvalid))
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return appErr.NewStorageError("upsert", err)
	}
	if err := s.kv.Set(ctx, s.key(p.RecordID), raw); err != nil {
		return appErr.NewStorageError("upsert", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, recordID string) (*model.IndexedPassage, bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.key(recordID))
	if err != nil {
		return nil, false, appErr.NewStorageError("get", err)
	}
	if !ok {
		return nil, false, nil
	}
	p := &model.IndexedPassage{}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, false, appErr.NewStorageError("get", err)
	}
	return p, true, nil
}

// GetAll returns a snapshot of the scope in record id order. Entries that
// fail to decode are skipped; the cache is rebuildable from the source.
func (s *Store) GetAll(ctx context.Context) ([]model.IndexedPassage, error) {
	out := make([]model.IndexedPassage, 0)
	err := s.kv.Scan(ctx, s.prefix, func(key string, value []byte) error {
		var p model.IndexedPassage
		if err := json.Unmarshal(value, &p); err != nil {
			logutil.GetLogger(ctx).Warn("skip undecodable passage",
				zap.String("key", key), zap.Error(err))
			return nil
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, appErr.NewStorageError("scan", err)
	}
	return out, nil
}

// Clear removes every passage of the scope.
func (s *Store) Clear(ctx context.Context) error {
	removed, err := s.kv.RemovePrefix(ctx, s.prefix)
	if err != nil {
		return appErr.NewStorageError("clear", err)
	}
	logutil.GetLogger(ctx).Info("vector store cleared",
		zap.String("scope", s.scope), zap.Int("removed", removed))
	return nil
}

func (s *Store) Stats(ctx context.Context) (model.IndexStats, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return model.IndexStats{}, err
	}
	stats := model.IndexStats{Count: len(all)}
	for _, p := range all {
		if p.IndexedAt.After(stats.LastIndexedAt) {
			stats.LastIndexedAt = p.IndexedAt
		}
	}
	return stats, nil
}

// Export writes the scope as JSON lines, one passage per line.
func (s *Store) Export(ctx context.Context, w io.Writer) (int, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	for i := range all {
		if err := enc.Encode(&all[i]); err != nil {
			return i, appErr.NewStorageError("export", err)
		}
	}
	return len(all), nil
}

// Import reads JSON lines produced by Export and upserts each passage.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	dec := json.NewDecoder(r)
	cnt := 0
	for {
		if err := ctx.Err(); err != nil {
			return cnt, err
		}
		var p model.IndexedPassage
		if err := dec.Decode(&p); err != nil {
			if errors.Is(err, io.EOF) {
				return cnt, nil
			}
			return cnt, appErr.NewStorageError("import", err)
		}
		if len(p.Vector) == 0 {
			return cnt, appErr.NewStorageError("import", fmt.Errorf("passage %q has no vector: %w", p.RecordID, appErr.ErrInvalid))
		}
		if err := s.Upsert(ctx, &p); err != nil {
			return cnt, err
		}
		cnt++
	}
}
