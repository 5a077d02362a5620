package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/consultrag/internal/filestore"
	appErr "github.com/xxxsen/consultrag/internal/pkg/errors"
)

// SnapshotService copies a scope's passages to and from a file store so a
// new host can start warm instead of re-embedding every record.
type SnapshotService struct {
	files filestore.Store
}

func NewSnapshotService(files filestore.Store) *SnapshotService {
	return &SnapshotService{files: files}
}

var snapshotNameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// snapshotKey maps (scope, name) to "<escaped scope>.<name>.jsonl". Names
// never contain a dot, so the last two dots always delimit the name and two
// scopes can not share a key.
func snapshotKey(scope, name string) (string, error) {
	if !snapshotNameRegex.MatchString(name) {
		return "", fmt.Errorf("snapshot name %q: %w", name, appErr.ErrInvalid)
	}
	return url.PathEscape(scope) + "." + name + ".jsonl", nil
}

func (s *SnapshotService) Export(ctx context.Context, svc *RAGService, name string) (int, error) {
	key, err := snapshotKey(svc.Scope(), name)
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	cnt, err := svc.Store().Export(ctx, &buf)
	if err != nil {
		return 0, err
	}
	if err := s.files.Save(ctx, key, filestore.NewBytesReader(buf.Bytes()), int64(buf.Len())); err != nil {
		return 0, appErr.NewStorageError("snapshot save", err)
	}
	logutil.GetLogger(ctx).Info("snapshot exported",
		zap.String("scope", svc.Scope()), zap.String("key", key), zap.Int("passages", cnt))
	return cnt, nil
}

func (s *SnapshotService) Import(ctx context.Context, svc *RAGService, name string) (int, error) {
	key, err := snapshotKey(svc.Scope(), name)
	if err != nil {
		return 0, err
	}
	rc, err := s.files.Open(ctx, key)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	cnt, err := svc.Store().Import(ctx, rc)
	if err != nil {
		return cnt, err
	}
	logutil.GetLogger(ctx).Info("snapshot imported",
		zap.String("scope", svc.Scope()), zap.String("key", key), zap.Int("passages", cnt))
	return cnt, nil
}
