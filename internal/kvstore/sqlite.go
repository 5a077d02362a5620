package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/didi/gendry/builder"
	_ "modernc.org/sqlite"
)

const (
	sqliteTable            = "kv_entries"
	defaultBusyTimeoutMs   = 5000
	defaultMaxConns        = 8
	sqliteSchema           = `CREATE TABLE IF NOT EXISTS kv_entries (kv_key TEXT PRIMARY KEY, kv_value BLOB NOT NULL)`
	sqliteScanBatchHintCap = 64
)

type sqliteConfig struct {
	Path          string `json:"path"`
	BusyTimeoutMs int    `json:"busy_timeout_ms"`
	MaxConns      int    `json:"max_conns"`
}

type sqliteStore struct {
	db *sql.DB
}

func init() {
	Register("sqlite", createSqliteStore)
}

func createSqliteStore(args interface{}) (Store, error) {
	cfg := &sqliteConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite store path is required")
	}
	return OpenSqlite(cfg.Path, cfg.BusyTimeoutMs, cfg.MaxConns)
}

// OpenSqlite opens (creating if needed) a WAL-mode database at path. Under
// WAL readers see the last committed state while a writer holds the lock,
// so the pool keeps several connections; writers queue on busy_timeout.
func OpenSqlite(path string, busyTimeoutMs int, maxConns int) (Store, error) {
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = defaultBusyTimeoutMs
	}
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)", path, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init kv schema: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	where := map[string]interface{}{
		"kv_key": key,
	}
	sqlStr, args, err := builder.BuildSelect(sqliteTable, where, []string{"kv_value"})
	if err != nil {
		return nil, false, err
	}
	var value []byte
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *sqliteStore) Set(ctx context.Context, key string, value []byte) error {
	data := map[string]interface{}{
		"kv_key":   key,
		"kv_value": value,
	}
	sqlStr, args, err := builder.BuildInsert(sqliteTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr = strings.Replace(sqlStr, "INSERT INTO", "INSERT OR REPLACE INTO", 1)
	_, err = s.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (s *sqliteStore) Remove(ctx context.Context, key string) error {
	where := map[string]interface{}{
		"kv_key": key,
	}
	sqlStr, args, err := builder.BuildDelete(sqliteTable, where)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (s *sqliteStore) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	sqlStr, args := "DELETE FROM "+sqliteTable, []interface{}(nil)
	if prefix != "" {
		var err error
		sqlStr, args, err = builder.BuildDelete(sqliteTable, prefixWhere(prefix))
		if err != nil {
			return 0, err
		}
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(cnt), nil
}

// Scan reads the whole range before invoking fn, so fn may write to the
// store while no read cursor is open.
func (s *sqliteStore) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	where := prefixWhere(prefix)
	where["_orderby"] = "kv_key asc"
	sqlStr, args, err := builder.BuildSelect(sqliteTable, where, []string{"kv_key", "kv_value"})
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	type entry struct {
		key   string
		value []byte
	}
	entries := make([]entry, 0, sqliteScanBatchHintCap)
	for rows.Next() {
		var item entry
		if err := rows.Scan(&item.key, &item.value); err != nil {
			_ = rows.Close()
			return err
		}
		entries = append(entries, item)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()
	for _, item := range entries {
		if err := fn(item.key, item.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func prefixWhere(prefix string) map[string]interface{} {
	where := map[string]interface{}{}
	if prefix == "" {
		return where
	}
	where["kv_key >="] = prefix
	if end := PrefixEnd(prefix); end != "" {
		where["kv_key <"] = end
	}
	return where
}
