package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/xxxsen/consultrag/internal/model"
)

// DefaultUser owns the records of a file that holds a plain array.
const DefaultUser = "default"

type fileConfig struct {
	Path string `json:"path"`
}

// fileSource re-reads the file on every call so edits are picked up by the
// next re-index.
type fileSource struct {
	path string
}

func init() {
	Register("file", createFileSource)
}

func createFileSource(args interface{}) (Source, error) {
	cfg := &fileConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("file source path is required")
	}
	return &fileSource{path: cfg.Path}, nil
}

func (s *fileSource) read() (map[string][]model.ConsultationRecord, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read source file: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var records []model.ConsultationRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("decode source file: %w", err)
		}
		return map[string][]model.ConsultationRecord{DefaultUser: records}, nil
	}
	byUser := map[string][]model.ConsultationRecord{}
	if err := json.Unmarshal(raw, &byUser); err != nil {
		return nil, fmt.Errorf("decode source file: %w", err)
	}
	return byUser, nil
}

func (s *fileSource) Load(ctx context.Context, userID string) ([]model.ConsultationRecord, error) {
	_ = ctx
	byUser, err := s.read()
	if err != nil {
		return nil, err
	}
	if userID == "" {
		userID = DefaultUser
	}
	return byUser[userID], nil
}

func (s *fileSource) Users(ctx context.Context) ([]string, error) {
	_ = ctx
	byUser, err := s.read()
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(byUser))
	for user := range byUser {
		users = append(users, user)
	}
	sort.Strings(users)
	return users, nil
}

func (s *fileSource) Close() error {
	return nil
}
